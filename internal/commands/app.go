package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/styles"
	"github.com/colonyops/kash/internal/kash"
	"github.com/colonyops/kash/pkg/iojson"
)

// app opens the workspace on first use. main closes it in the After hook.
func (f *Flags) app(ctx context.Context) (*kash.App, error) {
	if f.App != nil {
		return f.App, nil
	}
	if f.Config == nil {
		return nil, errors.New("config not loaded")
	}

	a, err := kash.Open(ctx, f.Config, kash.WithConfigPath(f.ConfigPath))
	if err != nil {
		return nil, fmt.Errorf("open workspace %s: %w", f.Config.Workspace, err)
	}
	f.App = a
	return a, nil
}

// Close releases the workspace if a command opened it.
func (f *Flags) Close() error {
	if f.App == nil {
		return nil
	}
	err := f.App.Close()
	f.App = nil
	return err
}

// ReportError prints err with its kind, as JSON when --json is set, and
// returns the process exit code.
func ReportError(w io.Writer, flags *Flags, err error) int {
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) && exitErr.Error() == "" {
		return exitErr.ExitCode()
	}

	kind := errs.KindOf(err)
	if flags != nil && flags.JSON {
		_, _ = fmt.Fprintln(w, iojson.MarshalError(err.Error(), map[string]any{"kind": kind}))
		return 1
	}

	_, _ = fmt.Fprintf(w, "%s %s\n",
		styles.TextErrorBoldStyle.Render(string(kind)+":"),
		err.Error(),
	)
	return 1
}

// stderr is where human-readable status goes, so stdout stays pipeable.
var stderr io.Writer = os.Stderr
