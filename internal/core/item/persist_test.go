package item

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/kash/internal/core/errs"
)

func TestRoundTrip(t *testing.T) {
	created := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	tests := []struct {
		name string
		path string
		item *Item
	}{
		{
			name: "markdown doc",
			path: "docs/test.doc.md",
			item: &Item{Type: TypeDoc, Format: FormatMarkdown, State: StateDraft, Title: "Test", Body: "# Hello"},
		},
		{
			name: "provenance and unknown keys",
			path: "docs/summary.doc.md",
			item: &Item{
				Type:        TypeDoc,
				Format:      FormatMarkdown,
				State:       StateDraft,
				Title:       "Summary",
				Description: "short",
				Body:        "Body text\n\nwith paragraphs\n",
				CreatedAt:   created,
				ModifiedAt:  created.Add(time.Hour),
				Source: &Source{
					Operation: Operation{
						ActionName:    "summarize",
						ActionVersion: "v1.0.0",
						Arguments:     []Input{{Path: "docs/a.doc.md", Fingerprint: "abc"}},
						Options:       map[string]any{"model": "gpt-4o", "max_words": 120},
					},
					OutputNum:   0,
					Cacheable:   true,
					Fingerprint: "opfp",
				},
				Relations: Relations{DerivedFrom: []string{"docs/a.doc.md"}},
				Extra:     map[string]any{"word_count": 4},
				Unknown: map[string]any{
					"future_field": "kept",
					"nested":       map[string]any{"a": []any{1, "two"}},
				},
			},
		},
		{
			name: "url resource sidecar",
			path: "resources/example.resource.yml",
			item: &Item{Type: TypeResource, Format: FormatURL, State: StateDraft, URL: "https://example.com/", Title: "Example", ThumbnailURL: "https://example.com/t.png"},
		},
		{
			name: "binary sidecar",
			path: "resources/report.resource.yml",
			item: &Item{Type: TypeResource, Format: FormatPDF, State: StateDraft, Title: "Report", ExternalPath: "resources/report.resource.pdf", ContentHash: "deadbeef"},
		},
		{
			name: "empty body",
			path: "docs/empty.doc.txt",
			item: &Item{Type: TypeDoc, Format: FormatPlaintext, Title: "Empty"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Render(tt.item)
			require.NoError(t, err)

			got, err := Parse(tt.path, raw)
			require.NoError(t, err)

			want := tt.item.Clone()
			want.StorePath = tt.path
			assert.Equal(t, want, got)
			assert.Equal(t, tt.item.Fingerprint(), got.Fingerprint())
		})
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	it := &Item{Type: TypeDoc, Format: FormatHTML, Title: "Page", Body: "<p>x</p>"}

	header, body, err := Marshal(it)
	require.NoError(t, err)
	assert.Contains(t, string(header), "title: Page")
	assert.Equal(t, "<p>x</p>", string(body))

	got, err := Unmarshal(header, body)
	require.NoError(t, err)
	assert.Equal(t, it, got)
}

func TestRender_KnownKeysFirst(t *testing.T) {
	it := &Item{
		Type:    TypeDoc,
		Format:  FormatMarkdown,
		Title:   "T",
		Body:    "b",
		Unknown: map[string]any{"aaa": 1},
	}
	raw, err := Render(it)
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: T\ntype: doc\nformat: markdown\naaa: 1\n---\nb", string(raw))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		raw  string
		kind errs.Kind
	}{
		{"unterminated", "docs/a.doc.md", "---\ntitle: x\nbody", errs.KindParse},
		{"bad yaml", "docs/a.doc.md", "---\ntitle: [x\n---\nbody", errs.KindParse},
		{"not a mapping", "docs/a.doc.md", "---\n- a\n- b\n---\nbody", errs.KindParse},
		{"empty", "docs/a.doc.md", "---\n---\nbody", errs.KindParse},
		{"extension mismatch", "docs/a.doc.html", "---\ntype: doc\nformat: markdown\n---\nbody", errs.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.path, []byte(tt.raw))
			require.Error(t, err)
			assert.Equal(t, tt.kind, errs.KindOf(err))
		})
	}
}

func TestParse_WithoutFrontmatter(t *testing.T) {
	it, err := Parse("docs/notes.md", []byte("# Notes\n"))
	require.NoError(t, err)
	assert.Equal(t, TypeDoc, it.Type)
	assert.Equal(t, FormatMarkdown, it.Format)
	assert.Equal(t, "notes", it.Title)
	assert.Equal(t, "# Notes\n", it.Body)

	yml, err := Parse("configs/settings.yml", []byte("key: value\n"))
	require.NoError(t, err)
	assert.Equal(t, TypeConfig, yml.Type)
	assert.Equal(t, FormatYAML, yml.Format)
	assert.Equal(t, "key: value\n", yml.Body)

	bin, err := Parse("assets/logo.png", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, bin.Format)
	assert.Equal(t, "assets/logo.png", bin.ExternalPath)
	assert.NotEmpty(t, bin.ContentHash)
	assert.Empty(t, bin.Body)
}

func TestOpaque(t *testing.T) {
	it := Opaque("docs/broken.doc.md", []byte("---\ntitle: [\n"))
	assert.Equal(t, FormatBinary, it.Format)
	assert.Equal(t, "docs/broken.doc.md", it.ExternalPath)
	assert.Empty(t, it.Body)
	require.NoError(t, it.Validate())
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello_world"},
		{"Café Déjà Vu!", "cafe_deja_vu"},
		{"  --  ", "untitled"},
		{"", "untitled"},
		{"a/b\\c", "a_b_c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.in), tt.in)
	}
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "test.doc.md", BaseName(&Item{Type: TypeDoc, Format: FormatMarkdown, Title: "Test"}))
	assert.Equal(t, "example_com_page.resource.yml",
		BaseName(&Item{Type: TypeResource, Format: FormatURL, URL: "https://example.com/page"}))
	assert.Equal(t, "report.resource.yml", BaseName(&Item{Type: TypeResource, Format: FormatPDF, Title: "Report"}))
	assert.Equal(t, "resources/report.resource.pdf", PayloadName("resources/report.resource.yml", FormatPDF))
}

func TestCanonicalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://Example.COM", "https://example.com/"},
		{"http://example.com:80/a?b=1#frag", "http://example.com/a?b=1"},
		{"https://example.com:8443/a", "https://example.com:8443/a"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalizeURL(tt.in), tt.in)
	}
}
