// Package item defines the Item, the unit of content stored in a workspace,
// along with its identity fingerprint and persisted form.
package item

import (
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/colonyops/kash/internal/core/errs"
)

// Relations records links to other items by store path.
type Relations struct {
	DerivedFrom []string `yaml:"derived_from,omitempty" json:"derived_from,omitempty"`
}

func (r Relations) IsZero() bool { return len(r.DerivedFrom) == 0 }

// Item is a document, resource or other piece of content. It is a plain value
// type: execution state is passed alongside items, never stored on them.
type Item struct {
	Type         ItemType       `json:"type"`
	Format       Format         `json:"format,omitempty"`
	State        State          `json:"state,omitempty"`
	Title        string         `json:"title,omitempty"`
	URL          string         `json:"url,omitempty"`
	Description  string         `json:"description,omitempty"`
	Body         string         `json:"body,omitempty"`
	ExternalPath string         `json:"external_path,omitempty"`
	ContentHash  string         `json:"content_hash,omitempty"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time      `json:"created_at,omitzero"`
	ModifiedAt   time.Time      `json:"modified_at,omitzero"`
	Source       *Source        `json:"source,omitempty"`
	Relations    Relations      `json:"relations,omitzero"`
	Extra        map[string]any `json:"extra,omitempty"`

	// Unknown holds frontmatter keys this version does not recognise so they
	// survive a load/save cycle.
	Unknown map[string]any `json:"-"`

	// StorePath is the workspace-relative path once persisted. Not written to
	// the frontmatter.
	StorePath string `json:"store_path,omitempty"`
}

// Option configures an Item built with New.
type Option func(*Item)

func WithTitle(title string) Option { return func(it *Item) { it.Title = title } }

func WithBody(body string) Option { return func(it *Item) { it.Body = body } }

func WithURL(u string) Option { return func(it *Item) { it.URL = u } }

func WithDescription(d string) Option { return func(it *Item) { it.Description = d } }

func WithPayload(p, hash string) Option {
	return func(it *Item) {
		it.ExternalPath = p
		it.ContentHash = hash
	}
}

func WithExtra(key string, value any) Option {
	return func(it *Item) {
		if it.Extra == nil {
			it.Extra = map[string]any{}
		}
		it.Extra[key] = value
	}
}

// New builds and validates an item. Unsupported type and format combinations
// are rejected rather than coerced.
func New(t ItemType, f Format, opts ...Option) (*Item, error) {
	it := &Item{Type: t, Format: f, State: StateDraft}
	for _, opt := range opts {
		opt(it)
	}
	if err := it.Validate(); err != nil {
		return nil, err
	}
	return it, nil
}

// Validate checks the type, format and the fields each format requires.
func (it *Item) Validate() error {
	switch {
	case !it.Type.IsValid():
		return errs.Validation("type", "unknown item type %q", it.Type)
	case it.Format != "" && !it.Format.IsValid():
		return errs.Validation("format", "unknown format %q", it.Format)
	case !it.State.IsValid():
		return errs.Validation("state", "unknown state %q", it.State)
	}

	if it.Format == "" {
		if it.Type.ExpectsBody() {
			return errs.Validation("format", "%s items require a format", it.Type)
		}
		return nil
	}

	switch {
	case it.Type.ExpectsBody() && !it.Format.HasBody():
		return errs.Validation("format", "%s items cannot use format %s", it.Type, it.Format)
	case it.Format == FormatURL && it.URL == "":
		return errs.Validation("url", "url resources require a url")
	case it.Format.IsBinary() && it.ExternalPath == "" && it.ContentHash == "":
		return errs.Validation("external_path", "%s items require a payload", it.Format)
	case it.Format.IsText() && it.ExternalPath != "":
		return errs.Validation("external_path", "%s items store their body inline", it.Format)
	case it.Format.IsBinary() && it.Body != "":
		return errs.Validation("body", "%s items cannot carry an inline body", it.Format)
	}
	return nil
}

// HasBody reports whether the item carries non-whitespace body text.
func (it *Item) HasBody() bool {
	return strings.TrimSpace(it.Body) != ""
}

// HasPayload reports whether the item references binary content on disk.
func (it *Item) HasPayload() bool {
	return it.ExternalPath != ""
}

// IsSidecar reports whether the item is persisted as a metadata-only YAML
// file rather than frontmatter followed by a body.
func (it *Item) IsSidecar() bool {
	return !it.Format.IsText()
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	c := *it
	c.Extra = cloneMap(it.Extra)
	c.Unknown = cloneMap(it.Unknown)
	c.Relations.DerivedFrom = slices.Clone(it.Relations.DerivedFrom)
	if it.Source != nil {
		src := *it.Source
		src.Operation = it.Source.Operation.Clone()
		c.Source = &src
	}
	return &c
}

// Derive returns a new draft item derived from it. Provenance fields are reset
// and DerivedFrom points at the parent.
func (it *Item) Derive(t ItemType, f Format, body string) *Item {
	d := &Item{
		Type:         t,
		Format:       f,
		State:        StateDraft,
		Title:        it.Title,
		URL:          it.URL,
		Description:  it.Description,
		Body:         body,
		ThumbnailURL: it.ThumbnailURL,
	}
	if it.StorePath != "" {
		d.Relations.DerivedFrom = []string{it.StorePath}
	}
	return d
}

// DisplayTitle returns the best human label for the item.
func (it *Item) DisplayTitle() string {
	switch {
	case it.Title != "":
		return it.Title
	case it.URL != "":
		return it.URL
	case it.StorePath != "":
		return path.Base(it.StorePath)
	default:
		return "untitled " + string(it.Type)
	}
}

func (it *Item) String() string {
	if it.StorePath != "" {
		return it.StorePath
	}
	return fmt.Sprintf("%s %q", it.Type, it.DisplayTitle())
}

// Abbreviate shortens body text for display.
func Abbreviate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}
