// Package logging provides component loggers and context fields for log
// events emitted during an action invocation.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component creates a new logger with a component identifier.
// Uses the "cmp" key for consistency with zerolog conventions. Events logged
// with .Ctx(ctx) pick up invocation fields via ContextHook.
func Component(name string) zerolog.Logger {
	return log.With().Str("cmp", name).Logger().Hook(ContextHook{})
}
