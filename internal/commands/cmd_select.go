package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/internal/core/selection"
	"github.com/colonyops/kash/internal/core/styles"
	"github.com/colonyops/kash/pkg/iojson"
)

type SelectCmd struct {
	flags *Flags
}

func NewSelectCmd(flags *Flags) *SelectCmd {
	return &SelectCmd{flags: flags}
}

func (cmd *SelectCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "select",
		Usage:     "Show or change the current selection",
		UsageText: "kash select [locators...]",
		Description: `With locators, makes the items they resolve to the current selection.
Without, prints the current selection.

Every change pushes a new entry onto the selection history; use 'prev' and
'next' to move through it.`,
		Action: cmd.run,
		Commands: []*cli.Command{
			{
				Name:   "prev",
				Usage:  "Move to the previous selection",
				Action: cmd.prev,
			},
			{
				Name:   "next",
				Usage:  "Move to the next selection",
				Action: cmd.next,
			},
			{
				Name:   "history",
				Usage:  "List the selection history",
				Action: cmd.history,
			},
			{
				Name:   "clear",
				Usage:  "Forget the selection history",
				Action: cmd.clear,
			},
			{
				Name:      "drop",
				Usage:     "Remove items from the current selection",
				UsageText: "kash select drop <locators...>",
				Action:    cmd.drop,
			},
		},
	})
	return app
}

func (cmd *SelectCmd) run(ctx context.Context, c *cli.Command) error {
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}

	var items []*item.Item
	if c.Args().Present() {
		items, err = app.Engine.Select(ctx, c.Args().Slice())
	} else {
		items, err = app.Engine.Current(ctx)
	}
	if isNoSelection(err) {
		_, _ = fmt.Fprintln(stderr, "Nothing selected")
		return nil
	}
	if err != nil {
		return err
	}
	return cmd.printItems(c, items)
}

func (cmd *SelectCmd) prev(ctx context.Context, c *cli.Command) error {
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}
	items, err := app.Engine.Previous(ctx)
	if err != nil {
		return err
	}
	return cmd.printItems(c, items)
}

func (cmd *SelectCmd) next(ctx context.Context, c *cli.Command) error {
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}
	items, err := app.Engine.Next(ctx)
	if err != nil {
		return err
	}
	return cmd.printItems(c, items)
}

func (cmd *SelectCmd) history(ctx context.Context, c *cli.Command) error {
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}
	entries, cursor, err := app.Engine.SelectionHistory(ctx)
	if err != nil {
		return err
	}

	out := c.Root().Writer
	if cmd.flags.JSON {
		return iojson.WriteWith(out, stderr, map[string]any{"cursor": cursor, "entries": entries})
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(stderr, "Selection history is empty")
		return nil
	}

	for i, e := range entries {
		marker := "  "
		line := fmt.Sprintf("%d: %s", i, strings.Join(e.Paths, ", "))
		if i == cursor {
			marker = styles.TextPrimaryBoldStyle.Render("> ")
			line = styles.TextForegroundBoldStyle.Render(line)
		}
		_, _ = fmt.Fprintf(out, "%s%s", marker, line)
		if e.Command != "" {
			_, _ = fmt.Fprintf(out, "  %s", styles.TextMutedStyle.Render(e.Command))
		}
		_, _ = fmt.Fprintln(out)
	}
	return nil
}

func (cmd *SelectCmd) clear(ctx context.Context, _ *cli.Command) error {
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}
	return app.Selections.Clear(ctx)
}

func (cmd *SelectCmd) drop(ctx context.Context, c *cli.Command) error {
	if !c.Args().Present() {
		return errs.Validation("locators", "select drop needs at least one locator")
	}
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}
	items, err := app.Engine.Resolve(ctx, c.Args().Slice())
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(items))
	for _, it := range items {
		paths = append(paths, it.StorePath)
	}

	_, err = app.Selections.Unselect(ctx, paths)
	if err == nil {
		items, err = app.Engine.Current(ctx)
	}
	if isNoSelection(err) {
		_, _ = fmt.Fprintln(stderr, "Nothing selected")
		return nil
	}
	if err != nil {
		return err
	}
	return cmd.printItems(c, items)
}

func (cmd *SelectCmd) printItems(c *cli.Command, items []*item.Item) error {
	out := c.Root().Writer
	if cmd.flags.JSON {
		paths := make([]string, 0, len(items))
		for _, it := range items {
			paths = append(paths, it.StorePath)
		}
		return iojson.WriteWith(out, stderr, map[string]any{"paths": paths})
	}
	for _, it := range items {
		_, _ = fmt.Fprintf(out, "%s  %s\n", it.StorePath, styles.TextMutedStyle.Render(it.DisplayTitle()))
	}
	return nil
}

func isNoSelection(err error) bool {
	return errors.Is(err, selection.ErrNoCurrent)
}
