package logging

import (
	"context"
	"testing"
)

func TestWithInvocation(t *testing.T) {
	ctx := WithInvocation(context.Background(), "inv-123", "strip_html")

	if got := GetInvocationID(ctx); got != "inv-123" {
		t.Errorf("GetInvocationID() = %q, want %q", got, "inv-123")
	}

	if got := GetAction(ctx); got != "strip_html" {
		t.Errorf("GetAction() = %q, want %q", got, "strip_html")
	}
}

func TestGetInvocation_NotPresent(t *testing.T) {
	ctx := context.Background()

	if got := GetInvocationID(ctx); got != "" {
		t.Errorf("GetInvocationID() = %q, want empty string", got)
	}

	if got := GetAction(ctx); got != "" {
		t.Errorf("GetAction() = %q, want empty string", got)
	}
}
