package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/kash/internal/core/config"
	"github.com/colonyops/kash/internal/core/styles"
	"github.com/colonyops/kash/pkg/iojson"
)

type ConfigValidateCmd struct {
	flags *Flags
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "kash config validate",
				Description: "Validates the configuration file, checking title templates, params files and the workspace path.",
				Action:      cmd.run,
			},
		},
	})

	return app
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (cmd *ConfigValidateCmd) run(_ context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	err := cfg.ValidateDeep(cmd.flags.ConfigPath)
	warnings := cfg.Warnings()

	var fields []fieldError
	var fieldErrs criterio.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		for _, fe := range fieldErrs {
			fields = append(fields, fieldError{Field: fe.Field, Message: fe.Err.Error()})
		}
	case err != nil:
		fields = append(fields, fieldError{Message: err.Error()})
	}

	if cmd.flags.JSON {
		out := struct {
			Valid    bool                       `json:"valid"`
			Errors   []fieldError               `json:"errors,omitempty"`
			Warnings []config.ValidationWarning `json:"warnings,omitempty"`
		}{
			Valid:    len(fields) == 0,
			Errors:   fields,
			Warnings: warnings,
		}
		if werr := iojson.WriteWith(c.Root().Writer, stderr, out); werr != nil {
			return werr
		}
		if len(fields) > 0 {
			return cli.Exit("", 1)
		}
		return nil
	}

	for _, w := range warnings {
		line := fmt.Sprintf("%s: %s", w.Category, w.Message)
		if w.Item != "" {
			line += " (" + w.Item + ")"
		}
		_, _ = fmt.Fprintln(stderr, styles.TextWarningStyle.Render("● ")+line)
	}
	for _, fe := range fields {
		label := fe.Field
		if label == "" {
			label = "config"
		}
		_, _ = fmt.Fprintln(stderr, styles.TextErrorStyle.Render("✘ ")+label+": "+fe.Message)
	}

	if len(fields) == 0 {
		_, _ = fmt.Fprintln(stderr, styles.TextSuccessStyle.Render("✔ ")+"Configuration is valid")
		return nil
	}
	_, _ = fmt.Fprintln(stderr, styles.TextErrorStyle.Render(fmt.Sprintf("%d error(s) found", len(fields))))
	return cli.Exit("", 1)
}
