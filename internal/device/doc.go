// Package device discovers and classifies Zigbee USB coordinator adapters.
//
// The package has three independent pieces:
//   - Descriptor: a raw snapshot of one serial device found on the host
//   - Classify: a pure function mapping a Descriptor to a known adapter
//     Kind with a confidence tier
//   - Enumerator: the host scanner producing Descriptors from /dev and sysfs
//
// Classification is total: hardware the signature table does not know is
// reported as KindUnknown rather than an error, so new adapters still show
// up in device listings.
//
// Thread Safety:
//   - Classify and SortMatches are pure functions, safe for concurrent use.
//   - Enumerator holds no mutable state between Enumerate calls.
package device
