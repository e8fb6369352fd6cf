package actions

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/colonyops/kash/internal/core/action"
	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/internal/core/precondition"
)

var errNoFetcher = errors.New("no fetcher configured")

var FetchPage = action.Must(action.NewPerItem(action.Spec{
	Name:          "fetch_page",
	Description:   "Fetch the HTML of a URL resource.",
	Precondition:  precondition.IsURLResource,
	OutputType:    item.TypeDoc,
	OutputFormat:  item.FormatHTML,
	Cacheable:     true,
	TitleTemplate: "{{ .Title }}",
}, fetchPage))

func fetchPage(ctx context.Context, it *item.Item, in action.Input) (*item.Item, error) {
	if in.Exec.Fetcher == nil {
		return nil, errNoFetcher
	}

	res, err := in.Exec.Fetcher.Fetch(ctx, it.URL)
	if err != nil {
		return nil, err
	}

	switch mt := res.MediaType(); mt {
	case "text/html", "application/xhtml+xml", "":
	default:
		return nil, errs.Content("fetch_page", "%s returned %s, not HTML", it.URL, mt)
	}
	if !utf8.Valid(res.Body) {
		return nil, errs.Content("fetch_page", "%s is not valid UTF-8", it.URL)
	}

	body := string(res.Body)
	out := it.Derive(item.TypeDoc, item.FormatHTML, body)
	if out.Title == "" {
		out.Title = pageTitle(body)
	}
	if out.Title == "" {
		out.Title = fmt.Sprintf("Page at %s", it.URL)
	}
	return out, nil
}
