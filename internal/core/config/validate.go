package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/kash/internal/core/styles"
	"github.com/colonyops/kash/pkg/tmpl"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("workspace", c.Workspace, notEmpty),
		criterio.Run("engine.max_parallel", c.Engine.MaxParallel, atLeast(1)),
		criterio.Run("selection.max_history", c.Selection.MaxHistory, atLeast(1)),
		criterio.Run("catalog.busy_timeout_ms", c.Catalog.BusyTimeoutMS, atLeast(0)),
		criterio.Run("fetch.timeout_seconds", c.Fetch.TimeoutSeconds, atLeast(1)),
		criterio.Run("theme", c.Theme, validTheme),
		c.validateTitles(),
	)
}

func validTheme(name string) error {
	if _, ok := styles.GetPalette(name); !ok {
		return fmt.Errorf("unknown theme %q (available: %s)", name, strings.Join(styles.ThemeNames(), ", "))
	}
	return nil
}

// ValidateDeep adds file system checks to Validate. The configPath argument
// is the config file location (empty skips the config file check).
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("workspace", c.Workspace, isDirectoryOrNotExist),
		c.validateParamsFiles(configPath),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	for _, name := range slices.Sorted(maps.Keys(c.Params)) {
		if strings.Contains(name, "-") {
			warnings = append(warnings, ValidationWarning{
				Category: "Params",
				Item:     name,
				Message:  "parameter names use underscores; this value will never match",
			})
		}
	}

	if c.LLM.APIKeyEnv != "" && os.Getenv(c.LLM.APIKeyEnv) == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "LLM",
			Item:     c.LLM.APIKeyEnv,
			Message:  "environment variable is not set; LLM actions will fail",
		})
	}

	for i, dir := range c.Watcher.Skip {
		if strings.Contains(dir, "/") {
			warnings = append(warnings, ValidationWarning{
				Category: "Watcher",
				Item:     fmt.Sprintf("skip[%d]", i),
				Message:  "only top-level folder names are matched",
			})
		}
	}

	return warnings
}

func notEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("cannot be empty")
	}
	return nil
}

func atLeast(n int) func(int) error {
	return func(v int) error {
		if v < n {
			return fmt.Errorf("must be at least %d", n)
		}
		return nil
	}
}

func (c *Config) validateTitles() error {
	var errs criterio.FieldErrorsBuilder
	for _, name := range slices.Sorted(maps.Keys(c.Titles)) {
		if err := tmpl.Validate(c.Titles[name]); err != nil {
			errs = errs.Append(fmt.Sprintf("titles[%q]", name), fmt.Errorf("template error: %w", err))
		}
	}
	return errs.ToError()
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

func (c *Config) validateParamsFiles(configPath string) error {
	if len(c.ParamsFiles) == 0 {
		return nil
	}

	configDir := filepath.Dir(configPath)
	var errs criterio.FieldErrorsBuilder

	for i, file := range c.ParamsFiles {
		path := file
		if !filepath.IsAbs(path) {
			path = filepath.Join(configDir, path)
		}

		if _, err := os.Stat(path); err != nil {
			errs = errs.Append(fmt.Sprintf("params_files[%d]", i), fmt.Errorf("file not found: %s", file))
		}
	}

	return errs.ToError()
}
