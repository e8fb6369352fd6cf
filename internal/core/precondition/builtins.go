package precondition

import (
	"regexp"
	"strings"

	"github.com/colonyops/kash/internal/core/item"
)

var (
	fencedCodeRe = regexp.MustCompile("(?m)^```")
	curlyVarsRe  = regexp.MustCompile(`\{[A-Za-z_][A-Za-z0-9_]*\}`)
	htmlTagRe    = regexp.MustCompile(`<(p|div|span|a|h[1-6]|ul|ol|li|table|br|img|html|body)\b[^>]*>`)
	timestampRe  = regexp.MustCompile(`data-timestamp="[0-9.]+"|\[\d{1,2}:\d{2}(:\d{2})?\]`)
)

var (
	IsResource = New("is_resource", "Item is a resource.", func(it *item.Item) bool {
		return it.Type == item.TypeResource
	})
	IsConcept = New("is_concept", "Item is a concept.", func(it *item.Item) bool {
		return it.Type == item.TypeConcept
	})
	IsConfig = New("is_config", "Item is a config.", func(it *item.Item) bool {
		return it.Type == item.TypeConfig
	})
	IsChat = New("is_chat", "Item is a chat transcript.", func(it *item.Item) bool {
		return it.Type == item.TypeChat
	})
	IsDoc = New("is_doc", "Item is a document.", func(it *item.Item) bool {
		return it.Type == item.TypeDoc
	})
	IsURLResource = New("is_url_resource", "Item is a resource that points at a URL.", func(it *item.Item) bool {
		return it.Type == item.TypeResource && it.Format == item.FormatURL && it.URL != ""
	})
	IsAudioResource = New("is_audio_resource", "Item is an audio file.", func(it *item.Item) bool {
		return it.Type == item.TypeResource && it.Format.IsAudio()
	})
	IsVideoResource = New("is_video_resource", "Item is a video file.", func(it *item.Item) bool {
		return it.Type == item.TypeResource && it.Format.IsVideo()
	})
	HasBody = New("has_body", "Item has non-empty body text.", func(it *item.Item) bool {
		return it.HasBody()
	})
	HasTextBody = New("has_text_body", "Item has a text body.", func(it *item.Item) bool {
		return it.HasBody() && it.Format.IsText()
	})
	HasHTMLBody = New("has_html_body", "Item body contains HTML tags.", func(it *item.Item) bool {
		return it.HasBody() && (it.Format == item.FormatHTML || it.Format == item.FormatMdHTML || htmlTagRe.MatchString(it.Body))
	})
	IsPlaintext = New("is_plaintext", "Item is plain text.", func(it *item.Item) bool {
		return it.Format == item.FormatPlaintext && it.HasBody()
	})
	IsMarkdown = New("is_markdown", "Item is Markdown (with or without embedded HTML).", func(it *item.Item) bool {
		return it.Format.IsMarkdown() && it.HasBody()
	})
	IsHTML = New("is_html", "Item is an HTML document.", func(it *item.Item) bool {
		return it.Format == item.FormatHTML && it.HasBody()
	})
	IsTextDoc = New("is_text_doc", "Item is a text document (plaintext or Markdown).", func(it *item.Item) bool {
		return it.Type == item.TypeDoc && it.HasBody() &&
			(it.Format == item.FormatPlaintext || it.Format.IsMarkdown())
	})
	IsPDF = New("is_pdf", "Item is a PDF.", func(it *item.Item) bool {
		return it.Format == item.FormatPDF
	})
	ContainsFencedCode = New("contains_fenced_code", "Body contains fenced code blocks.", func(it *item.Item) bool {
		return fencedCodeRe.MatchString(it.Body)
	})
	ContainsCurlyVars = New("contains_curly_vars", "Body contains {variable} placeholders.", func(it *item.Item) bool {
		return curlyVarsRe.MatchString(it.Body)
	})
	HasManyParagraphs = New("has_many_paragraphs", "Body has more than four paragraphs.", func(it *item.Item) bool {
		return strings.Count(it.Body, "\n\n") > 4
	})
	HasLotsOfHTMLTags = New("has_lots_of_html_tags", "Body contains many HTML tags.", func(it *item.Item) bool {
		return len(htmlTagRe.FindAllStringIndex(it.Body, 21)) > 20
	})
	HasTimestamps = New("has_timestamps", "Body contains timestamp markers.", func(it *item.Item) bool {
		return timestampRe.MatchString(it.Body)
	})
	HasThumbnailURL = New("has_thumbnail_url", "Item has a thumbnail URL.", func(it *item.Item) bool {
		return it.ThumbnailURL != ""
	})
)

// Builtins returns a registry holding every built-in precondition.
func Builtins() *Registry {
	r := NewRegistry()
	for _, p := range []Precondition{
		IsResource, IsConcept, IsConfig, IsChat, IsDoc,
		IsURLResource, IsAudioResource, IsVideoResource,
		HasBody, HasTextBody, HasHTMLBody,
		IsPlaintext, IsMarkdown, IsHTML, IsTextDoc, IsPDF,
		ContainsFencedCode, ContainsCurlyVars, HasManyParagraphs, HasLotsOfHTMLTags,
		HasTimestamps, HasThumbnailURL,
	} {
		// Names above are unique.
		_ = r.Register(p)
	}
	return r
}
