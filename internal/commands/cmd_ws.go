package commands

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/kash/internal/core/styles"
	"github.com/colonyops/kash/pkg/iojson"
)

type WorkspaceCmd struct {
	flags *Flags
}

func NewWorkspaceCmd(flags *Flags) *WorkspaceCmd {
	return &WorkspaceCmd{flags: flags}
}

func (cmd *WorkspaceCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:    "ws",
		Aliases: []string{"workspace"},
		Usage:   "Workspace management commands",
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "Create a workspace",
				UsageText: "kash ws init [dir]",
				Description: `Creates the workspace state directory (.kash) in dir, or in the configured
workspace when dir is omitted. Existing workspaces are left as they are.`,
				Action: cmd.init,
			},
			{
				Name:   "info",
				Usage:  "Summarise the workspace",
				Action: cmd.info,
			},
			{
				Name:  "rebuild",
				Usage: "Re-scan every file and rebuild the index",
				Description: `Discards the index and cached operation records, then re-reads every item.
Use this after editing many files outside kash.`,
				Action: cmd.rebuild,
			},
		},
	})
	return app
}

func (cmd *WorkspaceCmd) init(ctx context.Context, c *cli.Command) error {
	if dir := c.Args().First(); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		cmd.flags.Config.Workspace = abs
	}
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.Root().Writer, app.Store.Root())
	return nil
}

// workspaceInfo is the JSON output format for kash ws info --json.
type workspaceInfo struct {
	Root       string         `json:"root"`
	Items      int            `json:"items"`
	ByType     map[string]int `json:"by_type"`
	Bytes      int64          `json:"bytes"`
	Operations int            `json:"operations"`
	ScanErrors []string       `json:"scan_errors,omitempty"`
}

func (cmd *WorkspaceCmd) info(ctx context.Context, c *cli.Command) error {
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}

	st := app.Store.Stats()
	info := workspaceInfo{
		Root:       app.Store.Root(),
		Items:      st.Items,
		ByType:     st.ByType,
		Bytes:      st.Bytes,
		Operations: st.Operations,
	}
	for _, e := range app.Store.ScanErrors() {
		info.ScanErrors = append(info.ScanErrors, e.Error())
	}

	out := c.Root().Writer
	if cmd.flags.JSON {
		return iojson.WriteWith(out, stderr, info)
	}

	_, _ = fmt.Fprintln(out, styles.TextPrimaryBoldStyle.Render(info.Root))
	_, _ = fmt.Fprintf(out, "  %d items, %s, %d cached operations\n",
		info.Items, humanize.IBytes(uint64(max(info.Bytes, 0))), info.Operations)
	for _, t := range slices.Sorted(maps.Keys(info.ByType)) {
		_, _ = fmt.Fprintf(out, "  %-10s %d\n", t, info.ByType[t])
	}
	if n := len(info.ScanErrors); n > 0 {
		_, _ = fmt.Fprintln(out, styles.TextWarningStyle.Render(fmt.Sprintf("  %d unreadable file(s)", n)))
		for _, e := range info.ScanErrors {
			_, _ = fmt.Fprintf(out, "    %s\n", styles.TextMutedStyle.Render(e))
		}
	}
	return nil
}

func (cmd *WorkspaceCmd) rebuild(ctx context.Context, c *cli.Command) error {
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}
	if err := app.Store.Rebuild(ctx); err != nil {
		return err
	}

	st := app.Store.Stats()
	_, _ = fmt.Fprintf(stderr, "Indexed %d item(s)\n", st.Items)
	return nil
}
