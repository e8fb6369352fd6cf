package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/kash/internal/core/action"
	"github.com/colonyops/kash/internal/core/param"
	"github.com/colonyops/kash/internal/core/styles"
	"github.com/colonyops/kash/pkg/iojson"
)

type ActionsCmd struct {
	flags *Flags

	applicable bool
}

func NewActionsCmd(flags *Flags) *ActionsCmd {
	return &ActionsCmd{flags: flags}
}

func (cmd *ActionsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "actions",
		Usage:     "List available actions",
		UsageText: "kash actions [--applicable] [locators...]",
		Description: `Lists registered actions with their argument counts and preconditions.

With --applicable only actions that accept the given items (or the current
selection) are listed.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "applicable",
				Aliases:     []string{"a"},
				Usage:       "only list actions applicable to the items",
				Destination: &cmd.applicable,
			},
		},
		Action: cmd.run,
	})
	return app
}

// actionInfo is the JSON output format for kash actions --json.
type actionInfo struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Version      string         `json:"version"`
	Args         action.Args    `json:"args"`
	Precondition string         `json:"precondition,omitempty"`
	Output       string         `json:"output,omitempty"`
	Cacheable    bool           `json:"cacheable"`
	PerItem      bool           `json:"per_item"`
	Query        bool           `json:"query"`
	Params       map[string]any `json:"params,omitempty"`
}

func newActionInfo(s action.Spec) actionInfo {
	info := actionInfo{
		Name:         s.Name,
		Description:  s.Description,
		Version:      s.Version,
		Args:         s.Args,
		Precondition: s.Precondition.Name(),
		Cacheable:    s.Cacheable,
		PerItem:      s.PerItem,
		Query:        s.Query,
	}
	if s.OutputType != "" {
		info.Output = string(s.OutputType)
		if s.OutputFormat != "" {
			info.Output += "/" + string(s.OutputFormat)
		}
	}
	if len(s.Params) > 0 {
		info.Params = param.Schema(s.Params)
	}
	return info
}

func (cmd *ActionsCmd) run(ctx context.Context, c *cli.Command) error {
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}

	var list []action.Action
	if cmd.applicable || c.Args().Present() {
		list, err = app.Engine.Suggest(ctx, c.Args().Slice())
	} else {
		err = app.Registry.EnsureLoaded()
		list = app.Registry.All()
	}
	if err != nil {
		return err
	}

	out := c.Root().Writer
	if cmd.flags.JSON {
		infos := make([]actionInfo, 0, len(list))
		for _, a := range list {
			infos = append(infos, newActionInfo(a.Spec()))
		}
		return iojson.WriteWith(out, stderr, infos)
	}

	if len(list) == 0 {
		_, _ = fmt.Fprintln(stderr, "No applicable actions")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tARGS\tPRECONDITION\tDESCRIPTION")
	for _, a := range list {
		info := newActionInfo(a.Spec())
		pre := info.Precondition
		if pre == "" {
			pre = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			styles.TextPrimaryBoldStyle.Render(info.Name),
			info.Args,
			pre,
			info.Description,
		)
	}
	return w.Flush()
}
