package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/kash/internal/core/action"
	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/internal/core/styles"
	"github.com/colonyops/kash/internal/kash"
	"github.com/colonyops/kash/pkg/iojson"
)

type RunCmd struct {
	flags *Flags

	params   []string
	rerun    bool
	noSelect bool
}

// NewRunCmd creates a new run command
func NewRunCmd(flags *Flags) *RunCmd {
	return &RunCmd{flags: flags}
}

// Register adds the run command to the application
func (cmd *RunCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Run an action on items",
		UsageText: "kash run <action> [locators...] [--param name=value ...]",
		Description: `Runs an action on the items named by locators. A locator is a store path,
a glob over store paths, an absolute file path or a URL. With no locators the
action runs on the current selection.

Cacheable actions whose outputs already exist are not run again; use --rerun
to force a new run. Outputs become the new selection unless the action is a
query or --no-select is given.`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "param",
				Aliases:     []string{"p"},
				Usage:       "set an action parameter as name=value (repeatable)",
				Destination: &cmd.params,
			},
			&cli.BoolFlag{
				Name:        "rerun",
				Usage:       "ignore cached outputs and run again",
				Destination: &cmd.rerun,
			},
			&cli.BoolFlag{
				Name:        "no-select",
				Usage:       "leave the current selection unchanged",
				Destination: &cmd.noSelect,
			},
		},
		ShellComplete: ActionNameCompleter(cmd.flags),
		Action:        cmd.run,
	})

	return app
}

func (cmd *RunCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() == 0 {
		return errs.Validation("action", "an action name is required")
	}
	name := c.Args().First()
	locators := c.Args().Tail()

	params, err := parseParams(cmd.params)
	if err != nil {
		return err
	}

	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}

	var opts []kash.InvokeOption
	if cmd.rerun {
		opts = append(opts, kash.WithRerun())
	}
	if cmd.noSelect {
		opts = append(opts, kash.WithoutSelection())
	}

	res, err := app.Engine.Invoke(ctx, name, locators, params, opts...)
	if cmd.flags.JSON {
		if werr := iojson.WriteWith(c.Root().Writer, stderr, runOutput{Result: res, Items: res.Items}); werr != nil {
			return werr
		}
		if err != nil {
			return cli.Exit("", 1)
		}
		return nil
	}
	if err != nil {
		return err
	}

	printResult(c, res)
	return nil
}

// runOutput adds the output items to the JSON result. Query outputs are
// never saved, so this is the only place they appear.
type runOutput struct {
	*action.Result
	Items []*item.Item `json:"items,omitempty"`
}

func printResult(c *cli.Command, res *action.Result) {
	out := c.Root().Writer

	status := string(res.Status)
	switch res.Status {
	case action.StatusSucceeded:
		status = styles.TextSuccessStyle.Render(status)
	case action.StatusCacheHit, action.StatusSkipped:
		status = styles.TextWarningStyle.Render(status)
	}
	_, _ = fmt.Fprintf(stderr, "%s %s %s\n",
		styles.TextPrimaryBoldStyle.Render(res.Action),
		status,
		styles.TextMutedStyle.Render(res.Elapsed.Round(time.Millisecond).String()),
	)
	if res.SkipReason != "" {
		_, _ = fmt.Fprintf(stderr, "  %s\n", styles.TextMutedStyle.Render(res.SkipReason))
	}
	for _, p := range res.Archived {
		_, _ = fmt.Fprintf(stderr, "  %s\n", styles.TextMutedStyle.Render("archived "+p))
	}

	for _, p := range res.Paths {
		_, _ = fmt.Fprintln(out, p)
	}
	// Query results are never saved, so print them inline.
	for _, it := range res.Items {
		if it.StorePath == "" {
			_, _ = fmt.Fprint(out, it.Body)
		}
	}
}

// parseParams turns name=value pairs into a param map. Values stay strings;
// the engine coerces them to the declared kind.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, &errs.InvalidParameterError{Param: pair, Err: fmt.Errorf("expected name=value")}
		}
		out[name] = value
	}
	return out, nil
}
