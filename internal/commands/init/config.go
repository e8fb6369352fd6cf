// Package initcmd writes a starter configuration file.
package initcmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/colonyops/kash/internal/core/config"
	"github.com/colonyops/kash/pkg/tmpl"
)

const configTemplate = `# kash configuration
workspace: {{ .Workspace }}
theme: {{ .Theme }}

# Global parameter defaults. Workspace params (kash params set) and --param
# values take precedence.
params: {}

llm:
  default_model: {{ .LLM.DefaultModel }}
  endpoint: {{ .LLM.Endpoint }}
  api_key_env: {{ .LLM.APIKeyEnv }}

engine:
  max_parallel: {{ .Engine.MaxParallel }}

selection:
  max_history: {{ .Selection.MaxHistory }}

watcher:
  enabled: {{ .Watcher.Enabled }}

fetch:
  timeout_seconds: {{ .Fetch.TimeoutSeconds }}
  user_agent: {{ .Fetch.UserAgent | default "kash" }}
`

// RenderConfig renders cfg as a commented config file.
func RenderConfig(cfg config.Config) (string, error) {
	return tmpl.Render(configTemplate, cfg)
}

// WriteConfig writes a starter config to path. An existing file is only
// replaced when force is set, after it has been backed up. The returned
// string is the backup path, if any.
func WriteConfig(path string, cfg config.Config, force bool) (string, error) {
	if ConfigExists(path) && !force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	backup, err := BackupConfig(path)
	if err != nil {
		return "", err
	}

	out, err := RenderConfig(cfg)
	if err != nil {
		return backup, fmt.Errorf("render config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return backup, fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return backup, fmt.Errorf("write config: %w", err)
	}
	return backup, nil
}
