package item

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/kash/internal/core/errs"
)

var (
	fence        = []byte("---\n")
	closingFence = []byte("\n---\n")
)

// frontmatter is the on-disk metadata layout. Field order here is the order
// keys are written in.
type frontmatter struct {
	Title        string         `yaml:"title,omitempty"`
	Type         ItemType       `yaml:"type"`
	Format       Format         `yaml:"format,omitempty"`
	State        State          `yaml:"state,omitempty"`
	URL          string         `yaml:"url,omitempty"`
	Description  string         `yaml:"description,omitempty"`
	Payload      string         `yaml:"payload,omitempty"`
	ContentHash  string         `yaml:"content_hash,omitempty"`
	ThumbnailURL string         `yaml:"thumbnail_url,omitempty"`
	CreatedAt    string         `yaml:"created_at,omitempty"`
	ModifiedAt   string         `yaml:"modified_at,omitempty"`
	Source       *Source        `yaml:"source,omitempty"`
	Relations    *Relations     `yaml:"relations,omitempty"`
	Extra        map[string]any `yaml:"extra,omitempty"`
}

var knownKeys = map[string]bool{
	"title": true, "type": true, "format": true, "state": true, "url": true,
	"description": true, "payload": true, "content_hash": true, "thumbnail_url": true,
	"created_at": true, "modified_at": true, "source": true, "relations": true, "extra": true,
}

// Marshal splits an item into its YAML metadata and its body bytes. Binary
// and url items have no inline body.
func Marshal(it *Item) ([]byte, []byte, error) {
	fm := frontmatter{
		Title:        it.Title,
		Type:         it.Type,
		Format:       it.Format,
		State:        it.State,
		URL:          it.URL,
		Description:  it.Description,
		Payload:      it.ExternalPath,
		ContentHash:  it.ContentHash,
		ThumbnailURL: it.ThumbnailURL,
		CreatedAt:    formatTime(it.CreatedAt),
		ModifiedAt:   formatTime(it.ModifiedAt),
		Source:       it.Source,
		Extra:        it.Extra,
	}
	if !it.Relations.IsZero() {
		rel := it.Relations
		fm.Relations = &rel
	}

	var node yaml.Node
	if err := node.Encode(fm); err != nil {
		return nil, nil, fmt.Errorf("encode frontmatter: %w", err)
	}

	for _, k := range sortedKeys(it.Unknown) {
		if knownKeys[k] {
			continue
		}
		var val yaml.Node
		if err := val.Encode(it.Unknown[k]); err != nil {
			return nil, nil, fmt.Errorf("encode frontmatter key %s: %w", k, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&val,
		)
	}

	header, err := yaml.Marshal(&node)
	if err != nil {
		return nil, nil, fmt.Errorf("encode frontmatter: %w", err)
	}

	if it.IsSidecar() {
		return header, nil, nil
	}
	return header, []byte(it.Body), nil
}

// Unmarshal rebuilds an item from its metadata and body. Keys it does not
// recognise are kept in Unknown.
func Unmarshal(header, body []byte) (*Item, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(header, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("empty frontmatter")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("frontmatter is not a mapping")
	}

	var fm frontmatter
	if err := root.Decode(&fm); err != nil {
		return nil, err
	}

	it := &Item{
		Type:         fm.Type,
		Format:       fm.Format,
		State:        fm.State,
		Title:        fm.Title,
		URL:          fm.URL,
		Description:  fm.Description,
		ExternalPath: fm.Payload,
		ContentHash:  fm.ContentHash,
		ThumbnailURL: fm.ThumbnailURL,
		Source:       fm.Source,
		Extra:        fm.Extra,
		Body:         string(body),
	}
	if fm.Relations != nil {
		it.Relations = *fm.Relations
	}

	var err error
	if it.CreatedAt, err = parseTime(fm.CreatedAt); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if it.ModifiedAt, err = parseTime(fm.ModifiedAt); err != nil {
		return nil, fmt.Errorf("modified_at: %w", err)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		if knownKeys[key] {
			continue
		}
		var v any
		if err := root.Content[i+1].Decode(&v); err != nil {
			return nil, fmt.Errorf("key %s: %w", key, err)
		}
		if it.Unknown == nil {
			it.Unknown = map[string]any{}
		}
		it.Unknown[key] = v
	}

	return it, nil
}

// Render produces the file contents for an item: frontmatter fenced by ---
// followed by the body, or a bare YAML document for sidecar items.
func Render(it *Item) ([]byte, error) {
	header, body, err := Marshal(it)
	if err != nil {
		return nil, err
	}
	if it.IsSidecar() {
		return header, nil
	}

	var buf bytes.Buffer
	buf.Grow(len(header) + len(body) + 8)
	buf.Write(fence)
	buf.Write(header)
	buf.Write(fence)
	buf.Write(body)
	return buf.Bytes(), nil
}

// Parse reads a stored file. p is the workspace-relative path and is used to
// infer metadata for files that carry no frontmatter. Malformed frontmatter
// yields an errs.ParseError.
func Parse(p string, raw []byte) (*Item, error) {
	if bytes.HasPrefix(raw, fence) {
		header, body, err := splitFrontmatter(raw)
		if err != nil {
			return nil, &errs.ParseError{Path: p, Err: err}
		}
		it, err := Unmarshal(header, body)
		if err != nil {
			return nil, &errs.ParseError{Path: p, Err: err}
		}
		return withPath(it, p)
	}

	if isSidecarPath(p) {
		if it, ok := parseSidecar(raw); ok {
			return withPath(it, p)
		}
	}

	return infer(p, raw), nil
}

// Opaque wraps content that could not be parsed as a binary item so it can
// still be indexed.
func Opaque(p string, raw []byte) *Item {
	it := infer(p, raw)
	it.Format = FormatBinary
	it.Body = ""
	it.ExternalPath = p
	it.ContentHash = HashBytes(raw)
	return it
}

func withPath(it *Item, p string) (*Item, error) {
	if err := checkExt(it, p); err != nil {
		return nil, err
	}
	it.StorePath = p
	return it, nil
}

func splitFrontmatter(raw []byte) ([]byte, []byte, error) {
	rest := raw[len(fence):]
	if bytes.HasPrefix(rest, fence) {
		return nil, rest[len(fence):], errors.New("empty frontmatter")
	}
	if idx := bytes.Index(rest, closingFence); idx >= 0 {
		return rest[:idx+1], rest[idx+len(closingFence):], nil
	}
	if bytes.HasSuffix(rest, []byte("\n---")) {
		return rest[:len(rest)-3], nil, nil
	}
	return nil, nil, errors.New("unterminated frontmatter")
}

func isSidecarPath(p string) bool {
	ext := path.Ext(p)
	return ext == ".yml" || ext == ".yaml"
}

// parseSidecar accepts a bare YAML document only when it declares a type;
// ordinary YAML files fall through to inference.
func parseSidecar(raw []byte) (*Item, bool) {
	var head struct {
		Type ItemType `yaml:"type"`
	}
	if err := yaml.Unmarshal(raw, &head); err != nil || !head.Type.IsValid() {
		return nil, false
	}
	it, err := Unmarshal(raw, nil)
	if err != nil || !it.IsSidecar() {
		return nil, false
	}
	return it, true
}

// checkExt enforces that the declared format matches the file extension.
func checkExt(it *Item, p string) error {
	if it.Format == "" {
		return nil
	}
	want := it.Format.Ext()
	if it.IsSidecar() {
		want = "yml"
	}
	got := strings.TrimPrefix(path.Ext(p), ".")
	if got == "yaml" {
		got = "yml"
	}
	if got != want {
		return errs.Validation("format", "%s has extension .%s but declares format %s", p, got, it.Format)
	}
	return nil
}

// infer builds an item from a file without frontmatter, using the folder for
// the type and the extension for the format.
func infer(p string, raw []byte) *Item {
	t := TypeDoc
	if dir, _, ok := strings.Cut(p, "/"); ok {
		if ft, ok := TypeForFolder(dir); ok {
			t = ft
		}
	}

	base := path.Base(p)
	name, _, _ := strings.Cut(base, ".")

	f, ok := FormatFromExt(path.Ext(p))
	if !ok {
		if utf8.Valid(raw) {
			f = FormatPlaintext
		} else {
			f = FormatBinary
		}
	}

	it := &Item{Type: t, Format: f, State: StateDraft, Title: name, StorePath: p}
	if f.IsText() {
		it.Body = string(raw)
	} else {
		it.ExternalPath = p
		it.ContentHash = HashBytes(raw)
	}
	if !t.ExpectsBody() && f.IsText() && it.Body == "" {
		it.Format = ""
	}
	return it
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
