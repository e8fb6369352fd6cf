package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/kash/internal/core/styles"
	"github.com/colonyops/kash/pkg/iojson"
)

type PreconditionsCmd struct {
	flags *Flags

	satisfied bool
}

func NewPreconditionsCmd(flags *Flags) *PreconditionsCmd {
	return &PreconditionsCmd{flags: flags}
}

func (cmd *PreconditionsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "preconditions",
		Aliases:   []string{"pre"},
		Usage:     "List built-in preconditions and whether they hold",
		UsageText: "kash preconditions [--satisfied] [locators...]",
		Description: `Evaluates every built-in precondition against the given items, or the
current selection. A precondition holds only if it holds for every item.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "satisfied",
				Aliases:     []string{"s"},
				Usage:       "only list preconditions that hold",
				Destination: &cmd.satisfied,
			},
		},
		Action: cmd.run,
	})
	return app
}

type preconditionInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Holds       bool   `json:"holds"`
}

func (cmd *PreconditionsCmd) run(ctx context.Context, c *cli.Command) error {
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}
	items, err := app.Engine.Inputs(ctx, c.Args().Slice())
	if err != nil {
		return err
	}

	holds := map[string]bool{}
	for _, p := range app.Preconditions.Satisfied(items) {
		holds[p.Name()] = true
	}

	var infos []preconditionInfo
	for _, p := range app.Preconditions.All() {
		if cmd.satisfied && !holds[p.Name()] {
			continue
		}
		infos = append(infos, preconditionInfo{Name: p.Name(), Description: p.Description(), Holds: holds[p.Name()]})
	}

	out := c.Root().Writer
	if cmd.flags.JSON {
		if infos == nil {
			infos = []preconditionInfo{}
		}
		return iojson.WriteWith(out, stderr, infos)
	}

	if len(items) == 0 {
		_, _ = fmt.Fprintln(stderr, styles.TextMutedStyle.Render("No items selected; nothing holds"))
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "HOLDS\tNAME\tDESCRIPTION")
	for _, info := range infos {
		mark := styles.TextMutedStyle.Render("-")
		if info.Holds {
			mark = styles.TextSuccessStyle.Render("✔")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", mark, info.Name, info.Description)
	}
	return w.Flush()
}
