package actions

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/colonyops/kash/internal/core/action"
	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/internal/core/precondition"
)

var (
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
	multiSpaceRe   = regexp.MustCompile(`[ \t]{2,}`)
)

// skipped elements contribute nothing to text output.
var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"svg": true, "template": true, "head": true,
}

var StripHTML = action.Must(action.NewPerItem(action.Spec{
	Name:          "strip_html",
	Description:   "Strip HTML tags from HTML or Markdown, leaving plain text.",
	Precondition:  precondition.IsHTML.Or(precondition.HasHTMLBody),
	OutputType:    item.TypeDoc,
	OutputFormat:  item.FormatPlaintext,
	Cacheable:     true,
	TitleTemplate: "{{ .Title }}",
}, stripHTML))

func stripHTML(_ context.Context, it *item.Item, _ action.Input) (*item.Item, error) {
	text, tags, err := plainText(it.Body)
	if err != nil {
		return nil, errs.Content("strip_html", "parse %s: %v", it, err)
	}
	if tags == 0 {
		return nil, action.Skip("%s has no HTML tags", it)
	}
	return it.Derive(item.TypeDoc, item.FormatPlaintext, text), nil
}

// plainText tokenizes src and returns its text content along with the number
// of tags seen.
func plainText(src string) (string, int, error) {
	z := html.NewTokenizer(strings.NewReader(src))

	var (
		b     strings.Builder
		tags  int
		depth int // inside a skipped element
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", tags, err
			}
			return cleanText(b.String()), tags, nil

		case html.StartTagToken:
			tags++
			name, _ := z.TagName()
			tag := string(name)
			if skipped[tag] {
				depth++
			}
			if blockTags[tag] {
				b.WriteString("\n\n")
			} else if tag == "br" {
				b.WriteString("\n")
			}

		case html.EndTagToken:
			tags++
			name, _ := z.TagName()
			tag := string(name)
			if skipped[tag] && depth > 0 {
				depth--
			}
			if blockTags[tag] {
				b.WriteString("\n\n")
			}

		case html.SelfClosingTagToken:
			tags++
			name, _ := z.TagName()
			if string(name) == "br" {
				b.WriteString("\n")
			}

		case html.TextToken:
			if depth == 0 {
				b.Write(z.Text())
			}
		}
	}
}

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"pre": true, "blockquote": true, "tr": true, "table": true, "ul": true, "ol": true,
}

// cleanText collapses runs of blank lines and spaces and trims every line.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlineRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

var MarkdownifyHTML = action.Must(action.NewPerItem(action.Spec{
	Name:          "markdownify_html",
	Description:   "Convert HTML to Markdown.",
	Precondition:  precondition.IsHTML.Or(precondition.HasHTMLBody),
	OutputType:    item.TypeDoc,
	OutputFormat:  item.FormatMarkdown,
	Cacheable:     true,
	TitleTemplate: "{{ .Title }}",
}, markdownifyHTML))

func markdownifyHTML(_ context.Context, it *item.Item, _ action.Input) (*item.Item, error) {
	doc, err := html.Parse(strings.NewReader(it.Body))
	if err != nil {
		return nil, errs.Content("markdownify_html", "parse %s: %v", it, err)
	}

	var b strings.Builder
	w := &mdWriter{b: &b}
	w.walk(doc, 0)

	md := cleanText(b.String())
	if md == "" {
		return nil, errs.Content("markdownify_html", "%s has no text content", it)
	}

	out := it.Derive(item.TypeDoc, item.FormatMarkdown, md)
	if out.Title == "" {
		out.Title = w.title
	}
	return out, nil
}

const maxDepth = 100

// mdWriter renders a parsed HTML tree as Markdown.
type mdWriter struct {
	b     *strings.Builder
	title string
	pre   int
}

func (w *mdWriter) walk(n *html.Node, depth int) {
	if depth > maxDepth {
		return
	}

	switch n.Type {
	case html.TextNode:
		if w.pre > 0 {
			w.b.WriteString(n.Data)
			return
		}
		text := strings.Join(strings.Fields(n.Data), " ")
		if text != "" {
			if strings.HasPrefix(n.Data, " ") || strings.HasPrefix(n.Data, "\n") {
				w.b.WriteString(" ")
			}
			w.b.WriteString(text)
			if strings.HasSuffix(n.Data, " ") || strings.HasSuffix(n.Data, "\n") {
				w.b.WriteString(" ")
			}
		}
		return

	case html.ElementNode:
		switch n.Data {
		case "title":
			if n.FirstChild != nil && w.title == "" {
				w.title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		case "script", "style", "noscript", "iframe", "svg", "template":
			return
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(n.Data[1] - '0')
			w.b.WriteString("\n\n" + strings.Repeat("#", level) + " ")
		case "p", "div", "section", "article", "table":
			w.b.WriteString("\n\n")
		case "br":
			w.b.WriteString("\n")
			return
		case "hr":
			w.b.WriteString("\n\n---\n\n")
			return
		case "li":
			if n.Parent != nil && n.Parent.Data == "ol" {
				fmt.Fprintf(w.b, "\n%d. ", siblingIndex(n))
			} else {
				w.b.WriteString("\n- ")
			}
		case "blockquote":
			w.b.WriteString("\n\n> ")
		case "tr":
			w.b.WriteString("\n")
		case "td", "th":
			w.b.WriteString("| ")
		case "pre":
			w.pre++
			w.b.WriteString("\n\n```\n")
		case "code":
			if w.pre == 0 {
				w.b.WriteString("`")
			}
		case "strong", "b":
			w.b.WriteString("**")
		case "em", "i":
			w.b.WriteString("_")
		case "a":
			w.b.WriteString("[")
		case "img":
			if alt := attr(n, "alt"); alt != "" || attr(n, "src") != "" {
				fmt.Fprintf(w.b, "![%s](%s)", alt, attr(n, "src"))
			}
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, depth+1)
	}

	if n.Type != html.ElementNode {
		return
	}
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6", "p", "div", "section", "article", "blockquote", "table":
		w.b.WriteString("\n\n")
	case "td", "th":
		w.b.WriteString(" ")
	case "tr":
		w.b.WriteString("|")
	case "pre":
		w.pre--
		w.b.WriteString("\n```\n\n")
	case "code":
		if w.pre == 0 {
			w.b.WriteString("`")
		}
	case "strong", "b":
		w.b.WriteString("**")
	case "em", "i":
		w.b.WriteString("_")
	case "a":
		if href := attr(n, "href"); href != "" && !strings.HasPrefix(href, "#") {
			fmt.Fprintf(w.b, "](%s)", href)
		} else {
			w.b.WriteString("]")
		}
	}
}

func siblingIndex(n *html.Node) int {
	i := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && s.Data == "li" {
			i++
		}
	}
	return i
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// pageTitle returns the text of the first <title> element, if any.
func pageTitle(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) != "title" {
				continue
			}
			if z.Next() == html.TextToken {
				return strings.Join(strings.Fields(string(z.Text())), " ")
			}
			return ""
		}
	}
}
