package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// ActionNameCompleter returns a ShellCompleteFunc that suggests registered
// action names for the first positional argument.
//
// When the user's last typed argument starts with "-", it falls back to the
// default flag completion behavior.
func ActionNameCompleter(flags *Flags) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		if args := cmd.Args(); args.Present() {
			last := args.Slice()[args.Len()-1]
			if len(last) > 0 && last[0] == '-' {
				cli.DefaultCompleteWithFlags(ctx, cmd)
				return
			}
			// Only the action name is completed; locators are left to the shell.
			if args.Len() > 1 {
				return
			}
		}

		app, err := flags.app(ctx)
		if err != nil {
			return
		}
		if err := app.Registry.EnsureLoaded(); err != nil {
			return
		}

		w := cmd.Root().Writer
		for _, name := range app.Registry.Names() {
			_, _ = fmt.Fprintln(w, name)
		}
	}
}
