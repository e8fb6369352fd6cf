package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/kash/internal/core/config"
	"github.com/colonyops/kash/internal/core/errs"
)

// runCLI runs kash with args against workspace and returns stdout.
func runCLI(t *testing.T, workspace string, args ...string) (string, error) {
	t.Helper()
	stderr = io.Discard

	flags := &Flags{}
	root := NewRoot(flags)
	root.Before = func(ctx context.Context, _ *cli.Command) (context.Context, error) {
		cfg, err := config.Load("", flags.Workspace)
		if err != nil {
			return ctx, err
		}
		cfg.Watcher.Enabled = false
		flags.Config = cfg
		return ctx, nil
	}
	root.After = func(context.Context, *cli.Command) error { return flags.Close() }

	var out bytes.Buffer
	root.Writer = &out
	root.ErrWriter = io.Discard

	argv := append([]string{"kash", "--log-file", "", "--log-level", "error", "--workspace", workspace}, args...)
	err := root.Run(context.Background(), argv)
	return out.String(), err
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty", pairs: nil, want: nil},
		{name: "pairs", pairs: []string{"max_words=40", "model = gpt-4o"}, want: map[string]any{"max_words": "40", "model": " gpt-4o"}},
		{name: "value with equals", pairs: []string{"separator=a=b"}, want: map[string]any{"separator": "a=b"}},
		{name: "missing equals", pairs: []string{"max_words"}, wantErr: true},
		{name: "missing name", pairs: []string{"=3"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.pairs)
			if tt.wantErr {
				assert.Equal(t, errs.KindInvalidParameter, errs.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCLI_ImportRunAndSelect(t *testing.T) {
	ws := t.TempDir()
	src := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(src, []byte("<html><body><p>Hello there</p><p>Bye now</p></body></html>"), 0o644))

	out, err := runCLI(t, ws, "import", src)
	require.NoError(t, err)
	imported := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(imported, "docs/"), imported)

	out, err = runCLI(t, ws, "--json", "run", "strip_html")
	require.NoError(t, err)
	var res struct {
		Status string   `json:"status"`
		Inputs []string `json:"inputs"`
		Paths  []string `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "succeeded", res.Status)
	assert.Equal(t, []string{imported}, res.Inputs)
	require.Len(t, res.Paths, 1)

	out, err = runCLI(t, ws, "select")
	require.NoError(t, err)
	assert.Contains(t, out, res.Paths[0])

	out, err = runCLI(t, ws, "run", "word_count")
	require.NoError(t, err)
	assert.Contains(t, out, "4\ttotal")

	out, err = runCLI(t, ws, "--json", "ls", "--type", "doc")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}

func TestCLI_Params(t *testing.T) {
	ws := t.TempDir()

	_, err := runCLI(t, ws, "params", "set", "max_words=42")
	require.NoError(t, err)

	out, err := runCLI(t, ws, "params", "get", "max_words")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	_, err = runCLI(t, ws, "params", "set", "max_words=lots")
	assert.Equal(t, errs.KindInvalidParameter, errs.KindOf(err))

	_, err = runCLI(t, ws, "params", "unset", "max_words")
	require.NoError(t, err)
	_, err = runCLI(t, ws, "params", "get", "max_words")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestCLI_RunErrors(t *testing.T) {
	ws := t.TempDir()

	_, err := runCLI(t, ws, "run", "summarise")
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = runCLI(t, ws, "run")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestReportError(t *testing.T) {
	err := errs.Content("summarize", "model returned nothing")

	var buf bytes.Buffer
	code := ReportError(&buf, &Flags{JSON: true}, err)
	assert.Equal(t, 1, code)

	var got struct {
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "content", got.Data["kind"])
	assert.Contains(t, got.Message, "model returned nothing")

	buf.Reset()
	code = ReportError(&buf, &Flags{}, errors.New("plain"))
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "unexpected:")
	assert.Contains(t, buf.String(), "plain")

	buf.Reset()
	code = ReportError(&buf, &Flags{}, cli.Exit("", 3))
	assert.Equal(t, 3, code)
	assert.Empty(t, buf.String())
}

func TestCLI_Preconditions(t *testing.T) {
	ws := t.TempDir()
	src := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(src, []byte("<html><body><p>Hi</p></body></html>"), 0o644))

	_, err := runCLI(t, ws, "import", src)
	require.NoError(t, err)

	out, err := runCLI(t, ws, "--json", "preconditions", "--satisfied")
	require.NoError(t, err)

	var infos []struct {
		Name  string `json:"name"`
		Holds bool   `json:"holds"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		assert.True(t, info.Holds)
		names = append(names, info.Name)
	}
	assert.Contains(t, names, "is_html")
	assert.Contains(t, names, "is_doc")
	assert.NotContains(t, names, "is_markdown")
}

func TestCLI_SelectDrop(t *testing.T) {
	ws := t.TempDir()
	dir := t.TempDir()
	a := filepath.Join(dir, "a.html")
	b := filepath.Join(dir, "b.html")
	require.NoError(t, os.WriteFile(a, []byte("<p>first</p>"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("<p>second</p>"), 0o644))

	out, err := runCLI(t, ws, "import", a, b)
	require.NoError(t, err)
	paths := strings.Fields(out)
	require.Len(t, paths, 2)

	out, err = runCLI(t, ws, "select", "drop", paths[0])
	require.NoError(t, err)
	assert.NotContains(t, out, paths[0])
	assert.Contains(t, out, paths[1])

	_, err = runCLI(t, ws, "select", "drop")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestCLI_ActionsSchema(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "--json", "actions")
	require.NoError(t, err)

	var infos []struct {
		Name   string `json:"name"`
		Params struct {
			Type       string                    `json:"type"`
			Properties map[string]map[string]any `json:"properties"`
		} `json:"params"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &infos))

	var found bool
	for _, info := range infos {
		if info.Name != "summarize" {
			continue
		}
		found = true
		assert.Equal(t, "object", info.Params.Type)
		assert.Equal(t, "integer", info.Params.Properties["max_words"]["type"])
		assert.InDelta(t, 150, info.Params.Properties["max_words"]["default"], 0)
	}
	assert.True(t, found, "summarize is listed")
}
