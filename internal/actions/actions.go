// Package actions holds the built-in actions and registers them with an
// action registry.
package actions

import (
	"fmt"

	"github.com/colonyops/kash/internal/core/action"
)

// Builtins returns the built-in actions, sorted by name.
func Builtins() []action.Action {
	return []action.Action{
		Combine,
		FetchPage,
		MarkdownifyHTML,
		RenderMarkdown,
		StripHTML,
		Summarize,
		WordCount,
	}
}

// Register adds every built-in action to reg. It has the shape of an
// action.Loader so it can be deferred with reg.AddLoader(actions.Register).
func Register(reg *action.Registry) error {
	for _, a := range Builtins() {
		if _, err := reg.Register(a); err != nil {
			return fmt.Errorf("builtin %s: %w", a.Spec().Name, err)
		}
	}
	return nil
}
