package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	initcmd "github.com/colonyops/kash/internal/commands/init"
	"github.com/colonyops/kash/internal/core/styles"
)

type InitCmd struct {
	flags *Flags
	force bool
}

// NewInitCmd creates a new init command
func NewInitCmd(flags *Flags) *InitCmd {
	return &InitCmd{flags: flags}
}

// Register adds the init command to the application
func (cmd *InitCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "init",
		Usage:     "Write a starter config file",
		UsageText: "kash init [--force]",
		Description: `Writes a config file with the current settings (defaults plus any
--workspace override) to the --config path. An existing file is backed up to
<path>.bak when --force is given.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "force",
				Usage:       "overwrite an existing config file",
				Destination: &cmd.force,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *InitCmd) run(_ context.Context, c *cli.Command) error {
	backup, err := initcmd.WriteConfig(cmd.flags.ConfigPath, *cmd.flags.Config, cmd.force)
	if err != nil {
		return err
	}
	if backup != "" {
		_, _ = fmt.Fprintln(stderr, styles.TextMutedStyle.Render("Previous config saved to "+backup))
	}
	_, _ = fmt.Fprintln(c.Root().Writer, cmd.flags.ConfigPath)
	return nil
}
