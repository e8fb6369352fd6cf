package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/kash/internal/core/catalog"
	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/internal/store/filestore"
	"github.com/colonyops/kash/pkg/iojson"
)

type LsCmd struct {
	flags *Flags

	itemType string
	format   string
}

// NewLsCmd creates a new ls command
func NewLsCmd(flags *Flags) *LsCmd {
	return &LsCmd{flags: flags}
}

// Register adds the ls command to the application
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "ls",
		Usage:     "List items in the workspace",
		UsageText: "kash ls [--type doc] [--format markdown] [prefix]",
		Description: `Displays a table of indexed items with their type, format, size and title.

An optional prefix narrows the listing to store paths starting with it.
Use --json for one JSON object per line.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "type",
				Aliases:     []string{"t"},
				Usage:       "only list items of this type",
				Destination: &cmd.itemType,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "only list items in this format",
				Destination: &cmd.format,
			},
		},
		Action: cmd.run,
	})

	return app
}

// itemInfo is the JSON output format for kash ls --json.
type itemInfo struct {
	Path     string `json:"path"`
	Type     string `json:"type"`
	Format   string `json:"format,omitempty"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
	Derived  bool   `json:"derived"`
}

func (cmd *LsCmd) run(ctx context.Context, c *cli.Command) error {
	filter := filestore.Filter{Prefix: c.Args().First()}
	if cmd.itemType != "" {
		t, err := item.ParseItemType(cmd.itemType)
		if err != nil {
			return err
		}
		filter.Type = t
	}
	if cmd.format != "" {
		f, err := item.ParseFormat(cmd.format)
		if err != nil {
			return err
		}
		filter.Format = f
	}

	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}
	entries := app.Store.List(filter)

	out := c.Root().Writer
	if cmd.flags.JSON {
		for _, e := range entries {
			if err := iojson.WriteLine(out, newItemInfo(e)); err != nil {
				return fmt.Errorf("encode item: %w", err)
			}
		}
		return nil
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(stderr, "No items found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PATH\tFORMAT\tSIZE\tMODIFIED\tTITLE")
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = e.URL
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Path,
			e.Format,
			humanize.IBytes(uint64(max(e.Size, 0))),
			humanize.Time(e.ModTime),
			item.Abbreviate(title, 60),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if scanErrs := app.Store.ScanErrors(); len(scanErrs) > 0 {
		_, _ = fmt.Fprintf(stderr, "\n%d file(s) could not be read; run 'kash doctor' for details\n", len(scanErrs))
	}
	return nil
}

func newItemInfo(e catalog.Entry) itemInfo {
	return itemInfo{
		Path:     e.Path,
		Type:     e.Type,
		Format:   e.Format,
		Title:    e.Title,
		URL:      e.URL,
		Size:     e.Size,
		Modified: e.ModTime.UTC().Format(time.RFC3339),
		Derived:  e.OpFingerprint != "",
	}
}
