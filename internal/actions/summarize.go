package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/colonyops/kash/internal/core/action"
	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/internal/core/llm"
	"github.com/colonyops/kash/internal/core/param"
	"github.com/colonyops/kash/internal/core/precondition"
)

// DefaultModel is used when neither the call site, the workspace nor the
// config names a model.
const DefaultModel = "gpt-4o-mini"

const summarizePrompt = `Summarize the following text in Markdown, using at most %d words.
Keep the key facts and conclusions. Do not add a preamble.`

var Summarize = action.Must(action.NewPerItem(action.Spec{
	Name:         "summarize",
	Description:  "Summarize a text document with an LLM.",
	Precondition: precondition.HasBody.And(precondition.HasTextBody),
	Params: []param.Param{
		param.String("model", DefaultModel, "LLM model to use.",
			param.WithValues("gpt-4o-mini", "gpt-4o", "o3-mini"), param.OpenEnded()),
		param.Int("max_words", 150, "Upper bound on summary length in words.",
			param.WithValidator(positive)),
	},
	OutputType:    item.TypeDoc,
	OutputFormat:  item.FormatMarkdown,
	Cacheable:     true,
	TitleTemplate: "Summary of {{ .Title }}",
}, summarize))

func positive(v any) error {
	if n, ok := v.(int); ok && n <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func summarize(ctx context.Context, it *item.Item, in action.Input) (*item.Item, error) {
	completer := in.Exec.LLM
	if completer == nil {
		completer = llm.Unavailable{}
	}

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(summarizePrompt, in.Params.Int("max_words"))},
		{Role: llm.RoleUser, Content: it.Body},
	}
	out, err := completer.Complete(ctx, in.Params.String("model"), msgs, llm.Options{})
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", it, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return nil, errs.Content("summarize", "model returned an empty summary for %s", it)
	}

	// Left empty so the title template applies.
	d := it.Derive(item.TypeDoc, item.FormatMarkdown, out)
	d.Title = ""
	return d, nil
}
