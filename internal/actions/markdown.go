package actions

import (
	"bytes"
	"context"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/colonyops/kash/internal/core/action"
	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/internal/core/param"
	"github.com/colonyops/kash/internal/core/precondition"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM, extension.Footnote))

var RenderMarkdown = action.Must(action.NewPerItem(action.Spec{
	Name:         "render_markdown",
	Description:  "Render Markdown as an HTML page. GFM tables and footnotes are supported.",
	Precondition: precondition.IsMarkdown,
	Params: []param.Param{
		param.Bool("no_title", false, "Don't add the title as a heading in the page body."),
	},
	OutputType:    item.TypeExport,
	OutputFormat:  item.FormatHTML,
	Cacheable:     true,
	TitleTemplate: "{{ .Title }}",
}, renderMarkdown))

func renderMarkdown(_ context.Context, it *item.Item, in action.Input) (*item.Item, error) {
	var content bytes.Buffer
	if err := markdown.Convert([]byte(it.Body), &content); err != nil {
		return nil, errs.Content("render_markdown", "convert %s: %v", it, err)
	}

	title := html.EscapeString(it.DisplayTitle())

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	page.WriteString("<title>" + title + "</title>\n</head>\n<body>\n")
	if !in.Params.Bool("no_title") && it.Title != "" {
		page.WriteString("<h1>" + title + "</h1>\n")
	}
	page.Write(content.Bytes())
	page.WriteString("</body>\n</html>\n")

	return it.Derive(item.TypeExport, item.FormatHTML, page.String()), nil
}
