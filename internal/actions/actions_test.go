package actions

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/kash/internal/core/action"
	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/fetch"
	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/internal/core/llm"
	"github.com/colonyops/kash/internal/core/param"
)

// run resolves a's params with callSite overrides and runs it on items.
func run(t *testing.T, a action.Action, items []*item.Item, callSite map[string]any, exec action.ExecContext) (action.Output, error) {
	t.Helper()
	values, err := param.Resolve(a.Spec().Params, callSite, nil, nil)
	require.NoError(t, err)
	return a.Run(context.Background(), action.Input{Items: items, Params: values, Exec: exec})
}

func doc(f item.Format, title, body string) *item.Item {
	return &item.Item{Type: item.TypeDoc, Format: f, State: item.StateDraft, Title: title, Body: body}
}

func TestRegister(t *testing.T) {
	reg := action.NewRegistry()
	reg.AddLoader(Register)
	require.NoError(t, reg.EnsureLoaded())

	assert.Equal(t, []string{
		"combine", "fetch_page", "markdownify_html", "render_markdown",
		"strip_html", "summarize", "word_count",
	}, reg.Names())

	err := Register(reg)
	require.ErrorIs(t, err, action.ErrDuplicate)
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     string
		wantSkip bool
	}{
		{
			name: "paragraphs and script",
			body: `<p>Hello <b>world</b></p><script>var x = 1</script><p>Bye</p>`,
			want: "Hello world\n\nBye",
		},
		{
			name: "line breaks",
			body: "<div>one<br/>two</div>",
			want: "one\ntwo",
		},
		{
			name:     "no tags",
			body:     "just text",
			wantSkip: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := doc(item.FormatHTML, "Page", tt.body)
			in.StorePath = "docs/page.doc.html"

			out, err := run(t, StripHTML, []*item.Item{in}, nil, action.ExecContext{})
			if tt.wantSkip {
				_, ok := action.IsSkip(err)
				assert.True(t, ok, "expected skip, got %v", err)
				return
			}
			require.NoError(t, err)
			require.Len(t, out.Items, 1)
			assert.Equal(t, tt.want, out.Items[0].Body)
			assert.Equal(t, item.FormatPlaintext, out.Items[0].Format)
			assert.Equal(t, []string{"docs/page.doc.html"}, out.Items[0].Relations.DerivedFrom)
		})
	}
}

func TestStripHTML_Precondition(t *testing.T) {
	pre := StripHTML.Spec().Precondition
	assert.True(t, pre.Apply(doc(item.FormatHTML, "", "<p>x</p>")))
	assert.True(t, pre.Apply(doc(item.FormatMarkdown, "", "text <div>x</div>")))
	assert.False(t, pre.Apply(doc(item.FormatMarkdown, "", "plain")))
}

func TestMarkdownifyHTML(t *testing.T) {
	body := `<html><head><title>My Page</title></head><body>` +
		`<h1>Intro</h1><p>Some <strong>bold</strong> and <a href="https://x.com">link</a>.</p>` +
		`<ul><li>one</li><li>two</li></ul><ol><li>first</li><li>second</li></ol></body></html>`

	out, err := run(t, MarkdownifyHTML, []*item.Item{doc(item.FormatHTML, "", body)}, nil, action.ExecContext{})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)

	got := out.Items[0]
	assert.Equal(t, "My Page", got.Title)
	assert.Equal(t, item.FormatMarkdown, got.Format)
	assert.Contains(t, got.Body, "# Intro")
	assert.Contains(t, got.Body, "Some **bold** and [link](https://x.com).")
	assert.Contains(t, got.Body, "- one\n- two")
	assert.Contains(t, got.Body, "1. first\n2. second")
}

func TestMarkdownifyHTML_EmptyIsContentError(t *testing.T) {
	_, err := run(t, MarkdownifyHTML, []*item.Item{doc(item.FormatHTML, "", "<script>x()</script>")}, nil, action.ExecContext{})
	assert.Equal(t, errs.KindContent, errs.KindOf(err))
}

func TestRenderMarkdown(t *testing.T) {
	md := "Intro text.\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"

	tests := []struct {
		name      string
		params    map[string]any
		wantTitle bool
	}{
		{name: "with title", wantTitle: true},
		{name: "no_title", params: map[string]any{"no_title": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, RenderMarkdown, []*item.Item{doc(item.FormatMarkdown, "Notes & Such", md)}, tt.params, action.ExecContext{})
			require.NoError(t, err)
			require.Len(t, out.Items, 1)

			got := out.Items[0]
			assert.Equal(t, item.TypeExport, got.Type)
			assert.Equal(t, item.FormatHTML, got.Format)
			assert.Contains(t, got.Body, "<title>Notes &amp; Such</title>")
			assert.Contains(t, got.Body, "<table>")
			assert.Contains(t, got.Body, "<p>Intro text.</p>")
			assert.Equal(t, tt.wantTitle, strings.Contains(got.Body, "<h1>Notes &amp; Such</h1>"))
		})
	}
}

func TestSummarize(t *testing.T) {
	var gotModel, gotPrompt string
	completer := llm.Func(func(_ context.Context, model string, msgs []llm.Message, _ llm.Options) (string, error) {
		gotModel = model
		gotPrompt = msgs[0].Content
		return "  A short summary.  ", nil
	})

	in := doc(item.FormatMarkdown, "Long Read", "Lots of words here.")
	out, err := run(t, Summarize, []*item.Item{in}, map[string]any{"max_words": "40"}, action.ExecContext{LLM: completer})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)

	assert.Equal(t, DefaultModel, gotModel)
	assert.Contains(t, gotPrompt, "at most 40 words")
	assert.Equal(t, "A short summary.", out.Items[0].Body)
	assert.Empty(t, out.Items[0].Title, "title is left for the template")
}

func TestSummarize_Errors(t *testing.T) {
	in := doc(item.FormatPlaintext, "x", "body")

	t.Run("empty completion", func(t *testing.T) {
		empty := llm.Func(func(context.Context, string, []llm.Message, llm.Options) (string, error) {
			return " \n", nil
		})
		_, err := run(t, Summarize, []*item.Item{in}, nil, action.ExecContext{LLM: empty})
		assert.Equal(t, errs.KindContent, errs.KindOf(err))
	})

	t.Run("no backend", func(t *testing.T) {
		_, err := run(t, Summarize, []*item.Item{in}, nil, action.ExecContext{})
		require.ErrorIs(t, err, llm.ErrUnavailable)
	})

	t.Run("bad max_words", func(t *testing.T) {
		_, err := param.Resolve(Summarize.Spec().Params, map[string]any{"max_words": 0}, nil, nil)
		assert.Equal(t, errs.KindInvalidParameter, errs.KindOf(err))
	})
}

func TestFetchPage(t *testing.T) {
	page := `<html><head><title> Example
	Domain </title></head><body><p>hi</p></body></html>`

	tests := []struct {
		name      string
		res       fetch.Result
		err       error
		wantTitle string
		wantKind  errs.Kind
	}{
		{
			name:      "html",
			res:       fetch.Result{Body: []byte(page), ContentType: "text/html; charset=utf-8"},
			wantTitle: "Example Domain",
		},
		{
			name:      "no title",
			res:       fetch.Result{Body: []byte("<p>hi</p>"), ContentType: "text/html"},
			wantTitle: "Page at https://example.com/a",
		},
		{
			name:     "not html",
			res:      fetch.Result{Body: []byte("%PDF"), ContentType: "application/pdf"},
			wantKind: errs.KindContent,
		},
		{
			name:     "network failure",
			err:      errors.New("connection refused"),
			wantKind: errs.KindUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := fetch.Func(func(context.Context, string) (fetch.Result, error) {
				return tt.res, tt.err
			})
			res := &item.Item{Type: item.TypeResource, Format: item.FormatURL, URL: "https://example.com/a"}

			out, err := run(t, FetchPage, []*item.Item{res}, nil, action.ExecContext{Fetcher: fetcher})
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, errs.KindOf(err))
				return
			}
			require.NoError(t, err)
			require.Len(t, out.Items, 1)
			assert.Equal(t, tt.wantTitle, out.Items[0].Title)
			assert.Equal(t, "https://example.com/a", out.Items[0].URL)
			assert.Equal(t, item.FormatHTML, out.Items[0].Format)
		})
	}
}

func TestCombine(t *testing.T) {
	a := doc(item.FormatMarkdown, "Alpha", "first\n")
	a.StorePath = "docs/alpha.doc.md"
	b := doc(item.FormatPlaintext, "Beta", "second")
	b.StorePath = "docs/beta.doc.txt"

	t.Run("headings", func(t *testing.T) {
		out, err := run(t, Combine, []*item.Item{a, b}, nil, action.ExecContext{})
		require.NoError(t, err)
		require.Len(t, out.Items, 1)
		assert.Equal(t, "## Alpha\n\nfirst\n\n## Beta\n\nsecond\n", out.Items[0].Body)
		assert.Equal(t, []string{"docs/alpha.doc.md", "docs/beta.doc.txt"}, out.Items[0].Relations.DerivedFrom)
	})

	t.Run("separator", func(t *testing.T) {
		out, err := run(t, Combine, []*item.Item{a, b}, map[string]any{"headings": false, "separator": "---"}, action.ExecContext{})
		require.NoError(t, err)
		assert.Equal(t, "first\n\n---\n\nsecond\n", out.Items[0].Body)
	})

	t.Run("needs two inputs", func(t *testing.T) {
		assert.Error(t, Combine.Spec().Args.Check(1))
	})
}

func TestWordCount(t *testing.T) {
	a := doc(item.FormatPlaintext, "A", "one two three")
	a.StorePath = "docs/a.doc.txt"
	b := doc(item.FormatMarkdown, "B", "four five")
	b.StorePath = "docs/b.doc.md"

	out, err := run(t, WordCount, []*item.Item{a, b}, nil, action.ExecContext{})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)

	got := out.Items[0]
	assert.Equal(t, item.StateTransient, got.State)
	assert.Equal(t, 5, got.Extra["total_words"])
	assert.Equal(t, map[string]any{"docs/a.doc.txt": 3, "docs/b.doc.md": 2}, got.Extra["word_counts"])
	require.NoError(t, got.Validate())

	spec := WordCount.Spec()
	assert.True(t, spec.Query)
	assert.False(t, spec.Cacheable)
}
