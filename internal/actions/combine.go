package actions

import (
	"context"
	"strings"

	"github.com/colonyops/kash/internal/core/action"
	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/internal/core/param"
	"github.com/colonyops/kash/internal/core/precondition"
)

var Combine = action.Must(action.New(action.Spec{
	Name:         "combine",
	Description:  "Combine two or more text documents into one Markdown document.",
	Precondition: precondition.HasTextBody,
	Args:         action.Args{Min: 2, Max: -1},
	Params: []param.Param{
		param.Bool("headings", true, "Start each part with its title as a heading."),
		param.String("separator", "", "Text placed between parts (default: a blank line)."),
	},
	OutputType:    item.TypeDoc,
	OutputFormat:  item.FormatMarkdown,
	Cacheable:     true,
	TitleTemplate: `Combined: {{ join .Titles ", " | trunc 80 }}`,
}, combine))

func combine(_ context.Context, in action.Input) (action.Output, error) {
	sep := in.Params.String("separator")
	if sep == "" {
		sep = "\n\n"
	} else {
		sep = "\n\n" + sep + "\n\n"
	}

	parts := make([]string, 0, len(in.Items))
	derived := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		body := strings.TrimSpace(it.Body)
		if in.Params.Bool("headings") {
			body = "## " + it.DisplayTitle() + "\n\n" + body
		}
		parts = append(parts, body)
		if it.StorePath != "" {
			derived = append(derived, it.StorePath)
		}
	}

	out := &item.Item{
		Type:      item.TypeDoc,
		Format:    item.FormatMarkdown,
		State:     item.StateDraft,
		Body:      strings.Join(parts, sep) + "\n",
		Relations: item.Relations{DerivedFrom: derived},
	}
	return action.Output{Items: []*item.Item{out}}, nil
}
