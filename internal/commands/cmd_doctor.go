package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/kash/internal/core/doctor"
	"github.com/colonyops/kash/internal/core/styles"
	"github.com/colonyops/kash/pkg/iojson"
)

type DoctorCmd struct {
	flags   *Flags
	autofix bool
}

func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your workspace",
		UsageText:   "kash doctor [--fix]",
		Description: "Runs diagnostic checks on configuration, the workspace index, temp files and the catalog.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "fix",
				Aliases:     []string{"autofix"},
				Usage:       "rebuild a stale index and remove leftover temp files",
				Destination: &cmd.autofix,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	app, err := cmd.flags.app(ctx)
	if err != nil {
		return err
	}
	rep := app.Doctor.RunChecks(ctx, cmd.autofix)

	if cmd.flags.JSON {
		return cmd.outputJSON(c, rep)
	}

	return cmd.outputText(app.Store.Root(), rep)
}

func (cmd *DoctorCmd) outputJSON(c *cli.Command, rep doctor.Report) error {
	out := struct {
		Healthy bool `json:"healthy"`
		doctor.Report
	}{
		Healthy: rep.Healthy(),
		Report:  rep,
	}

	if err := iojson.WriteWith(c.Root().Writer, stderr, out); err != nil {
		return err
	}
	if !rep.Healthy() {
		return cli.Exit("", 1)
	}
	return nil
}

func (cmd *DoctorCmd) outputText(root string, rep doctor.Report) error {
	w := stderr
	divider := styles.TextMutedStyle.Render(strings.Repeat("─", 40))

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, styles.TextPrimaryBoldStyle.Render("Kash Doctor"), styles.TextMutedStyle.Render(root))
	_, _ = fmt.Fprintln(w, divider)
	_, _ = fmt.Fprintln(w)

	for _, result := range rep.Results {
		_, _ = fmt.Fprintln(w, styles.TextForegroundBoldStyle.Render(result.Name))

		for _, f := range result.Findings {
			var detail string
			if f.Detail != "" {
				detail = " " + styles.TextMutedStyle.Render(f.Detail)
			}

			var icon string
			switch f.Status {
			case doctor.StatusPass:
				icon = styles.TextSuccessStyle.Render("✔")
			case doctor.StatusWarn:
				icon = styles.TextWarningStyle.Render("●")
			case doctor.StatusFail:
				icon = styles.TextErrorStyle.Render("✘")
			}

			_, _ = fmt.Fprintf(w, "  %s %s%s\n", icon, f.Label, detail)
		}

		_, _ = fmt.Fprintln(w)
	}

	summary := fmt.Sprintf("%s  %s  %s",
		styles.TextSuccessStyle.Render(fmt.Sprintf("%d passed", rep.Passed)),
		styles.TextWarningStyle.Render(fmt.Sprintf("%d warnings", rep.Warned)),
		styles.TextErrorStyle.Render(fmt.Sprintf("%d failed", rep.Failed)),
	)
	_, _ = fmt.Fprintln(w, summary)

	if !cmd.autofix && rep.Fixable > 0 {
		_, _ = fmt.Fprintln(w)
		hint := styles.TextMutedStyle.Render(fmt.Sprintf("Run 'kash doctor --fix' to fix %d issue(s)", rep.Fixable))
		_, _ = fmt.Fprintln(w, hint)
	}

	if !rep.Healthy() {
		return cli.Exit("", 1)
	}

	return nil
}
