package item

import (
	"fmt"
	"strings"
)

// ItemType is the kind of content an item holds.
type ItemType string

const (
	TypeDoc       ItemType = "doc"
	TypeConcept   ItemType = "concept"
	TypeResource  ItemType = "resource"
	TypeAsset     ItemType = "asset"
	TypeConfig    ItemType = "config"
	TypeExport    ItemType = "export"
	TypeChat      ItemType = "chat"
	TypeExtension ItemType = "extension"
	TypeScript    ItemType = "script"
	TypeLog       ItemType = "log"
)

var typeFolders = map[ItemType]string{
	TypeDoc:       "docs",
	TypeConcept:   "concepts",
	TypeResource:  "resources",
	TypeAsset:     "assets",
	TypeConfig:    "configs",
	TypeExport:    "exports",
	TypeChat:      "chats",
	TypeExtension: "extensions",
	TypeScript:    "scripts",
	TypeLog:       "logs",
}

// ItemTypes returns every known type in a stable order.
func ItemTypes() []ItemType {
	return []ItemType{
		TypeDoc, TypeConcept, TypeResource, TypeAsset, TypeConfig,
		TypeExport, TypeChat, TypeExtension, TypeScript, TypeLog,
	}
}

// ParseItemType converts s to an ItemType.
func ParseItemType(s string) (ItemType, error) {
	t := ItemType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown item type %q", s)
	}
	return t, nil
}

func (t ItemType) IsValid() bool {
	_, ok := typeFolders[t]
	return ok
}

// ExpectsBody is false for types that are meaningful without a body.
func (t ItemType) ExpectsBody() bool {
	return t != TypeResource && t != TypeConcept
}

// Folder is the workspace directory items of this type are stored in.
func (t ItemType) Folder() string {
	return typeFolders[t]
}

// TypeForFolder maps a top-level workspace folder back to its type.
func TypeForFolder(folder string) (ItemType, bool) {
	for t, f := range typeFolders {
		if f == folder {
			return t, true
		}
	}
	return "", false
}

// State tracks the review status of an item.
type State string

const (
	StateDraft     State = "draft"
	StateReviewed  State = "reviewed"
	StateTransient State = "transient"
)

func (s State) IsValid() bool {
	switch s {
	case "", StateDraft, StateReviewed, StateTransient:
		return true
	}
	return false
}

// Format is the encoding of an item's body or payload.
type Format string

const (
	FormatURL       Format = "url"
	FormatPlaintext Format = "plaintext"
	FormatMarkdown  Format = "markdown"
	FormatMdHTML    Format = "md_html"
	FormatHTML      Format = "html"
	FormatYAML      Format = "yaml"
	FormatDiff      Format = "diff"
	FormatPython    Format = "python"
	FormatShell     Format = "shellscript"
	FormatJSON      Format = "json"
	FormatCSV       Format = "csv"
	FormatLog       Format = "log"
	FormatPDF       Format = "pdf"
	FormatDocx      Format = "docx"
	FormatJPEG      Format = "jpeg"
	FormatPNG       Format = "png"
	FormatGIF       Format = "gif"
	FormatSVG       Format = "svg"
	FormatMP3       Format = "mp3"
	FormatM4A       Format = "m4a"
	FormatMP4       Format = "mp4"
	FormatBinary    Format = "binary"
)

type formatInfo struct {
	ext  string
	body bool
	text bool
}

var formats = map[Format]formatInfo{
	FormatURL:       {ext: "yml"},
	FormatPlaintext: {ext: "txt", body: true, text: true},
	FormatMarkdown:  {ext: "md", body: true, text: true},
	FormatMdHTML:    {ext: "md", body: true, text: true},
	FormatHTML:      {ext: "html", body: true, text: true},
	FormatYAML:      {ext: "yml", body: true, text: true},
	FormatDiff:      {ext: "diff", body: true, text: true},
	FormatPython:    {ext: "py", body: true, text: true},
	FormatShell:     {ext: "sh", body: true, text: true},
	FormatJSON:      {ext: "json", body: true, text: true},
	FormatCSV:       {ext: "csv", body: true, text: true},
	FormatLog:       {ext: "log", body: true, text: true},
	FormatPDF:       {ext: "pdf", body: true},
	FormatDocx:      {ext: "docx", body: true},
	FormatJPEG:      {ext: "jpg", body: true},
	FormatPNG:       {ext: "png", body: true},
	FormatGIF:       {ext: "gif", body: true},
	FormatSVG:       {ext: "svg", body: true},
	FormatMP3:       {ext: "mp3", body: true},
	FormatM4A:       {ext: "m4a", body: true},
	FormatMP4:       {ext: "mp4", body: true},
	FormatBinary:    {ext: "bin", body: true},
}

var extFormats = map[string]Format{
	"md":       FormatMarkdown,
	"markdown": FormatMarkdown,
	"txt":      FormatPlaintext,
	"text":     FormatPlaintext,
	"html":     FormatHTML,
	"htm":      FormatHTML,
	"yml":      FormatYAML,
	"yaml":     FormatYAML,
	"diff":     FormatDiff,
	"patch":    FormatDiff,
	"py":       FormatPython,
	"sh":       FormatShell,
	"json":     FormatJSON,
	"csv":      FormatCSV,
	"log":      FormatLog,
	"pdf":      FormatPDF,
	"docx":     FormatDocx,
	"jpg":      FormatJPEG,
	"jpeg":     FormatJPEG,
	"png":      FormatPNG,
	"gif":      FormatGIF,
	"svg":      FormatSVG,
	"mp3":      FormatMP3,
	"m4a":      FormatM4A,
	"mp4":      FormatMP4,
	"bin":      FormatBinary,
}

// ParseFormat converts s to a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("unknown format %q", s)
	}
	return f, nil
}

// FormatFromExt guesses a format from a file extension, with or without the
// leading dot.
func FormatFromExt(ext string) (Format, bool) {
	f, ok := extFormats[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return f, ok
}

func (f Format) IsValid() bool {
	_, ok := formats[f]
	return ok
}

// Ext is the file extension used when persisting this format.
func (f Format) Ext() string { return formats[f].ext }

// HasBody is false only for formats that are pure references.
func (f Format) HasBody() bool { return formats[f].body }

// IsText reports whether the body is stored inline below the frontmatter.
func (f Format) IsText() bool { return formats[f].text }

// IsBinary formats are stored as a payload file with a YAML sidecar.
func (f Format) IsBinary() bool { return f.HasBody() && !f.IsText() }

func (f Format) IsAudio() bool { return f == FormatMP3 || f == FormatM4A }

func (f Format) IsVideo() bool { return f == FormatMP4 }

func (f Format) IsImage() bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatGIF, FormatSVG:
		return true
	}
	return false
}

// IsMarkdown covers plain markdown and markdown with embedded html.
func (f Format) IsMarkdown() bool { return f == FormatMarkdown || f == FormatMdHTML }

// SupportsFrontmatter reports whether metadata can be embedded in the file
// itself rather than in a sidecar.
func (f Format) SupportsFrontmatter() bool { return f.IsText() }
