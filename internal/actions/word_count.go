package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/colonyops/kash/internal/core/action"
	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/internal/core/precondition"
)

// WordCount reports word counts without touching the selection. Its log
// item is transient and never written to the workspace.
var WordCount = action.Must(action.New(action.Spec{
	Name:          "word_count",
	Description:   "Count the words in each text item.",
	Precondition:  precondition.HasTextBody,
	Args:          action.ArgsOneOrMore,
	OutputType:    item.TypeLog,
	OutputFormat:  item.FormatLog,
	Query:         true,
	TitleTemplate: "Word count",
}, wordCount))

func wordCount(_ context.Context, in action.Input) (action.Output, error) {
	counts := make(map[string]any, len(in.Items))
	total := 0

	var b strings.Builder
	for _, it := range in.Items {
		n := len(strings.Fields(it.Body))
		total += n
		counts[it.String()] = n
		fmt.Fprintf(&b, "%d\t%s\n", n, it)
	}
	fmt.Fprintf(&b, "%d\ttotal\n", total)

	out := &item.Item{
		Type:   item.TypeLog,
		Format: item.FormatLog,
		State:  item.StateTransient,
		Body:   b.String(),
		Extra: map[string]any{
			"word_counts": counts,
			"total_words": total,
		},
	}
	return action.Output{Items: []*item.Item{out}}, nil
}
