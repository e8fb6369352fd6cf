package commands

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/param"
	"github.com/colonyops/kash/pkg/iojson"
)

type ParamsCmd struct {
	flags *Flags

	reader iojson.FileReader[map[string]any]
}

func NewParamsCmd(flags *Flags) *ParamsCmd {
	return &ParamsCmd{flags: flags}
}

func (cmd *ParamsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "params",
		Usage: "Manage workspace parameter defaults",
		Description: `Workspace parameters are stored in .kash/params.yml and apply to every
action that declares a parameter of the same name. Call-site --param values
override them; global config params sit below them.`,
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List declared parameters and their workspace values",
				Action: cmd.list,
			},
			{
				Name:      "get",
				Usage:     "Print a workspace parameter",
				UsageText: "kash params get <name>",
				Action:    cmd.get,
			},
			{
				Name:      "set",
				Usage:     "Set workspace parameters",
				UsageText: "kash params set <name=value>...",
				Action:    cmd.set,
			},
			{
				Name:      "unset",
				Usage:     "Remove workspace parameters",
				UsageText: "kash params unset <name>...",
				Action:    cmd.unset,
			},
			{
				Name:      "load",
				Usage:     "Set workspace parameters from a JSON object",
				UsageText: "kash params load [-f params.json]",
				Flags:     []cli.Flag{cmd.reader.Flag()},
				Action:    cmd.load,
			},
		},
	})
	return app
}

// paramRow is the JSON output format for kash params list --json.
type paramRow struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Default    any      `json:"default,omitempty"`
	Workspace  any      `json:"workspace,omitempty"`
	DeclaredBy []string `json:"declared_by"`
}

func (cmd *ParamsCmd) list(ctx context.Context, c *cli.Command) error {
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}
	users, decls, err := app.Params()
	if err != nil {
		return err
	}
	ws, err := app.Store.Params().All()
	if err != nil {
		return err
	}

	slices.SortFunc(decls, func(a, b param.Param) int { return strings.Compare(a.Name, b.Name) })
	rows := make([]paramRow, 0, len(decls))
	for _, p := range decls {
		rows = append(rows, paramRow{
			Name:       p.Name,
			Kind:       string(p.Kind),
			Default:    p.Default,
			Workspace:  ws[p.Name],
			DeclaredBy: users[p.Name],
		})
	}

	out := c.Root().Writer
	if cmd.flags.JSON {
		return iojson.WriteWith(out, stderr, rows)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tKIND\tDEFAULT\tWORKSPACE\tACTIONS")
	for _, r := range rows {
		wsVal := "-"
		if r.Workspace != nil {
			wsVal = fmt.Sprint(r.Workspace)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n", r.Name, r.Kind, r.Default, wsVal, strings.Join(r.DeclaredBy, ", "))
	}
	return w.Flush()
}

func (cmd *ParamsCmd) get(ctx context.Context, c *cli.Command) error {
	name := c.Args().First()
	if name == "" {
		return errs.Validation("arguments", "a parameter name is required")
	}
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}
	v, ok, err := app.Store.Params().Get(name)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Validation("param", "%s is not set in this workspace", name)
	}

	if cmd.flags.JSON {
		return iojson.WriteWith(c.Root().Writer, stderr, map[string]any{name: v})
	}
	_, _ = fmt.Fprintln(c.Root().Writer, v)
	return nil
}

func (cmd *ParamsCmd) set(ctx context.Context, c *cli.Command) error {
	values, err := parseParams(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return errs.Validation("arguments", "expected name=value pairs")
	}
	return cmd.apply(ctx, values)
}

func (cmd *ParamsCmd) load(ctx context.Context, _ *cli.Command) error {
	values, err := cmd.reader.Read()
	if err != nil {
		return err
	}
	return cmd.apply(ctx, values)
}

// apply validates and stores values in name order so failures are
// reproducible.
func (cmd *ParamsCmd) apply(ctx context.Context, values map[string]any) error {
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(values)) {
		if err := app.Store.Params().Set(name, values[name]); err != nil {
			return err
		}
	}
	return nil
}

func (cmd *ParamsCmd) unset(ctx context.Context, c *cli.Command) error {
	if !c.Args().Present() {
		return errs.Validation("arguments", "a parameter name is required")
	}
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}
	for _, name := range c.Args().Slice() {
		if err := app.Store.Params().Unset(name); err != nil {
			return err
		}
	}
	return nil
}
