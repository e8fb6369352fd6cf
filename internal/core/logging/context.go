package logging

import "context"

type contextKey string

const (
	invocationIDKey contextKey = "invocation_id"
	actionKey       contextKey = "action"
)

// WithInvocation adds the invocation ID and action name to the context.
func WithInvocation(ctx context.Context, invocationID, action string) context.Context {
	ctx = context.WithValue(ctx, invocationIDKey, invocationID)
	return context.WithValue(ctx, actionKey, action)
}

// GetInvocationID retrieves the invocation ID from the context.
// Returns empty string if not present.
func GetInvocationID(ctx context.Context) string {
	if id, ok := ctx.Value(invocationIDKey).(string); ok {
		return id
	}
	return ""
}

// GetAction retrieves the action name from the context.
// Returns empty string if not present.
func GetAction(ctx context.Context) string {
	if name, ok := ctx.Value(actionKey).(string); ok {
		return name
	}
	return ""
}
