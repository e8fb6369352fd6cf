package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/internal/core/styles"
	"github.com/colonyops/kash/pkg/iojson"
)

const defaultWrap = 100

type ShowCmd struct {
	flags *Flags

	render bool
}

func NewShowCmd(flags *Flags) *ShowCmd {
	return &ShowCmd{flags: flags}
}

func (cmd *ShowCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "show",
		Usage:     "Print items",
		UsageText: "kash show [--render] [locators...]",
		Description: `Prints the items named by locators, or the current selection, as they are
stored on disk: YAML frontmatter followed by the body.

With --render Markdown bodies are rendered for the terminal.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "render",
				Aliases:     []string{"r"},
				Usage:       "render Markdown for the terminal",
				Destination: &cmd.render,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ShowCmd) run(ctx context.Context, c *cli.Command) error {
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}

	var items []*item.Item
	if c.Args().Present() {
		items, err = app.Engine.Resolve(ctx, c.Args().Slice())
	} else {
		items, err = app.Engine.Current(ctx)
	}
	if err != nil {
		return err
	}

	out := c.Root().Writer
	if cmd.flags.JSON {
		return iojson.WriteWith(out, stderr, items)
	}

	for i, it := range items {
		if i > 0 {
			_, _ = fmt.Fprintln(out)
		}
		if cmd.render && it.Format.IsMarkdown() {
			if err := renderMarkdown(out, it); err != nil {
				return err
			}
			continue
		}
		raw, err := item.Render(it)
		if err != nil {
			return err
		}
		_, _ = out.Write(raw)
	}
	return nil
}

func renderMarkdown(w io.Writer, it *item.Item) error {
	width := defaultWrap
	if cols, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && cols > 0 {
		width = min(cols, defaultWrap)
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(styles.GlamourStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	body := it.Body
	if it.Title != "" {
		body = "# " + it.Title + "\n\n" + body
	}
	rendered, err := r.Render(body)
	if err != nil {
		return fmt.Errorf("render %s: %w", it.StorePath, err)
	}
	_, err = fmt.Fprint(w, rendered)
	return err
}
