package envconfig

import (
	"bytes"
	"embed"
	"os"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// MaterializeResult reports what happened to one template-backed file.
type MaterializeResult struct {
	Path    string `json:"path"`
	Created bool   `json:"created"`
}

// templateContext is the data rendered into template-backed files.
type templateContext struct {
	EnvironmentConfig

	// CommentPrefix disables every bridge directive when the cloud bridge
	// is off, matching mosquitto's conf.d comment syntax.
	CommentPrefix string
	Protocol      string
	BridgeUser    string
	BridgePass    string
}

// Placeholders written into bridge.conf when credentials are unset, so the
// file has valid syntax but an obviously non-functional identity.
const (
	placeholderUser = "XXXXXXXX-XXXX-XXXX-XXXX-XXXXXXXXXXXX"
	placeholderPass = "XXXXXXXXXX"
)

func newTemplateContext(cfg EnvironmentConfig) templateContext {
	ctx := templateContext{
		EnvironmentConfig: cfg,
		Protocol:          normalizeProtocol(cfg.CloudProtocol),
		BridgeUser:        cfg.CloudUser,
		BridgePass:        cfg.CloudPassword,
	}
	if !cfg.CloudEnabled {
		ctx.CommentPrefix = "#"
	}
	if ctx.BridgeUser == "" {
		ctx.BridgeUser = placeholderUser
	}
	if ctx.BridgePass == "" {
		ctx.BridgePass = placeholderPass
	}
	return ctx
}

// MaterializeTemplates creates the adjacent template-backed files that must
// exist before the stack starts: the mosquitto bridge file and the gateway
// configuration.
//
// Both follow the create-if-absent, never-overwrite rule. The gateway file
// in particular accumulates runtime-learned state (network key, paired
// device table) that must survive restarts, so an existing file is never
// touched here regardless of its content.
func (s *Store) MaterializeTemplates(cfg EnvironmentConfig) ([]MaterializeResult, error) {
	targets := []struct {
		tmpl string
		path string
	}{
		{"templates/bridge.conf.tmpl", s.BridgeConfPath()},
		{"templates/zigbee2mqtt.yaml.tmpl", s.GatewayConfigPath()},
	}

	ctx := newTemplateContext(cfg)
	results := make([]MaterializeResult, 0, len(targets))

	for _, target := range targets {
		if _, err := os.Stat(target.path); err == nil {
			results = append(results, MaterializeResult{Path: target.path})
			continue
		} else if !os.IsNotExist(err) {
			return results, &ApplyError{Path: target.path, Op: "stat", Err: err}
		}

		rendered, err := renderTemplate(target.tmpl, ctx)
		if err != nil {
			return results, err
		}
		if err := s.writeAtomic(target.path, rendered); err != nil {
			return results, err
		}
		results = append(results, MaterializeResult{Path: target.path, Created: true})
	}

	return results, nil
}

// RegenerateBridgeConf rewrites bridge.conf from the template. Unlike
// materialization this is an explicit overwrite, used when the user changes
// cloud-bridge settings: the file holds no runtime-learned state, only what
// the store itself renders into it.
func (s *Store) RegenerateBridgeConf(cfg EnvironmentConfig) error {
	rendered, err := renderTemplate("templates/bridge.conf.tmpl", newTemplateContext(cfg))
	if err != nil {
		return err
	}
	return s.writeAtomic(s.BridgeConfPath(), rendered)
}

func renderTemplate(name string, ctx templateContext) ([]byte, error) {
	tmpl, err := template.ParseFS(templateFS, name)
	if err != nil {
		return nil, &ApplyError{Path: name, Op: "parse template", Err: err}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return nil, &ApplyError{Path: name, Op: "render template", Err: err}
	}
	return buf.Bytes(), nil
}
