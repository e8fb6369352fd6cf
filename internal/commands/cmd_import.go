package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/pkg/iojson"
)

type ImportCmd struct {
	flags *Flags
}

func NewImportCmd(flags *Flags) *ImportCmd {
	return &ImportCmd{flags: flags}
}

func (cmd *ImportCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "import",
		Usage:     "Copy files or URLs into the workspace",
		UsageText: "kash import <path|url>...",
		Description: `Imports external files and URLs as items and selects them.

Files already inside the workspace are loaded rather than copied. A URL that
is already known resolves to its existing resource item.`,
		Action: cmd.run,
	})
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "archive",
		Usage:     "Move items to the archive",
		UsageText: "kash archive <locator>...",
		Action:    cmd.archive,
	})
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "unarchive",
		Usage:     "Restore archived items",
		UsageText: "kash unarchive <path>...",
		Action:    cmd.unarchive,
	})
	return app
}

func (cmd *ImportCmd) run(ctx context.Context, c *cli.Command) error {
	if !c.Args().Present() {
		return errs.Validation("arguments", "nothing to import")
	}
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}

	var paths []string
	for _, src := range c.Args().Slice() {
		it, err := app.Store.Import(ctx, src)
		if err != nil {
			return err
		}
		paths = append(paths, it.StorePath)
	}

	if _, err := app.Engine.Select(ctx, paths); err != nil {
		return err
	}
	return cmd.printPaths(c, paths)
}

func (cmd *ImportCmd) archive(ctx context.Context, c *cli.Command) error {
	return cmd.move(ctx, c, true)
}

func (cmd *ImportCmd) unarchive(ctx context.Context, c *cli.Command) error {
	return cmd.move(ctx, c, false)
}

func (cmd *ImportCmd) move(ctx context.Context, c *cli.Command, archive bool) error {
	if !c.Args().Present() {
		return errs.Validation("arguments", "no items given")
	}
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}

	var items []*item.Item
	if archive {
		items, err = app.Engine.Resolve(ctx, c.Args().Slice())
		if err != nil {
			return err
		}
	} else {
		for _, p := range c.Args().Slice() {
			items = append(items, &item.Item{StorePath: p})
		}
	}

	var moved []string
	for _, it := range items {
		var to string
		if archive {
			to, err = app.Store.Archive(ctx, it.StorePath)
		} else {
			to, err = app.Store.Unarchive(ctx, it.StorePath)
		}
		if err != nil {
			return err
		}
		moved = append(moved, to)
	}

	// Archived paths no longer resolve; drop them from the history.
	if archive {
		if _, err := app.Engine.Current(ctx); err != nil && !isNoSelection(err) {
			return err
		}
	}
	return cmd.printPaths(c, moved)
}

func (cmd *ImportCmd) printPaths(c *cli.Command, paths []string) error {
	out := c.Root().Writer
	if cmd.flags.JSON {
		return iojson.WriteWith(out, stderr, map[string]any{"paths": paths})
	}
	for _, p := range paths {
		_, _ = fmt.Fprintln(out, p)
	}
	return nil
}
