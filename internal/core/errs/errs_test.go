package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"validation", Validation("format", "bad"), KindValidation},
		{"parse", &ParseError{Path: "a.md", Err: errors.New("x")}, KindParse},
		{"precondition", &PreconditionError{Precondition: "has_body"}, KindPrecondition},
		{"param", &InvalidParameterError{Param: "model"}, KindInvalidParameter},
		{"content", Content("strip_html", "bad markup"), KindContent},
		{"cache", &CacheConsistencyError{Fingerprint: "abc"}, KindCacheConsistency},
		{"storage", &StorageError{Op: "write", Err: errors.New("disk full")}, KindStorage},
		{"wrapped", fmt.Errorf("invoke: %w", &PreconditionError{Precondition: "is_html"}), KindPrecondition},
		{"plain", errors.New("boom"), KindUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestStorage_KeepsClassifiedErrors(t *testing.T) {
	assert.NoError(t, Storage("write", "x", nil))

	cache := &CacheConsistencyError{Fingerprint: "abc"}
	assert.Same(t, cache, Storage("load", "x", cache))

	err := Storage("write", "docs/a.md", context.Canceled)
	var storage *StorageError
	require.ErrorAs(t, err, &storage)
	assert.Equal(t, "docs/a.md", storage.Path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	base := errors.New("boom")
	err := Classify(base)

	var unexpected *UnexpectedError
	require.ErrorAs(t, err, &unexpected)
	assert.ErrorIs(t, err, base)
	assert.Same(t, err, Classify(err))

	content := Content("summarize", "empty")
	assert.Same(t, content, Classify(content))
}

func TestPreconditionError_Message(t *testing.T) {
	err := &PreconditionError{
		Action:       "render_markdown",
		Precondition: "is_markdown",
		Item:         "docs/page.doc.html",
		Hint:         "try markdownify_html first",
	}
	assert.Equal(t,
		"action render_markdown requires is_markdown; docs/page.doc.html does not satisfy it (try markdownify_html first)",
		err.Error())
}
