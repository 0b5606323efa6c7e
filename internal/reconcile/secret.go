package reconcile

import (
	"crypto/rand"
	"fmt"
)

const (
	secretLength   = 32
	secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// NewSecret returns a random password drawn from crypto/rand. Bytes are
// rejection-sampled so every alphabet character is equally likely. A failed
// read surfaces ErrSecretGeneration; there is no weaker fallback.
func NewSecret() (string, error) {
	// Largest multiple of len(secretAlphabet) that fits in a byte. Bytes
	// at or above it are discarded to keep the distribution uniform.
	limit := byte(256 / len(secretAlphabet) * len(secretAlphabet))

	out := make([]byte, 0, secretLength)
	buf := make([]byte, secretLength)
	for len(out) < secretLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("%w: %v", ErrSecretGeneration, err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, secretAlphabet[int(b)%len(secretAlphabet)])
			if len(out) == secretLength {
				break
			}
		}
	}
	return string(out), nil
}
