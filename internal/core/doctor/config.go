package doctor

import (
	"context"

	"github.com/colonyops/kash/internal/core/config"
)

// ConfigCheck validates the loaded configuration and reports its warnings.
type ConfigCheck struct {
	cfg  *config.Config
	path string
}

func NewConfigCheck(cfg *config.Config, path string) *ConfigCheck {
	return &ConfigCheck{cfg: cfg, path: path}
}

func (c *ConfigCheck) Name() string { return "Config" }

func (c *ConfigCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	label := c.path
	if label == "" {
		label = "defaults"
	}
	if err := c.cfg.ValidateDeep(c.path); err != nil {
		result.fail(label, err.Error())
		return result
	}
	result.pass(label, "valid")

	for _, w := range c.cfg.Warnings() {
		subject := w.Category
		if w.Item != "" {
			subject += " " + w.Item
		}
		result.warn(subject, w.Message)
	}
	return result
}
