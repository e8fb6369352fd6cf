// Package errs defines the error kinds surfaced by the workspace and the
// execution engine. Callers classify failures with KindOf rather than by
// matching message strings.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for callers deciding whether to suggest a fix,
// retry, or report.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindParse            Kind = "parse"
	KindPrecondition     Kind = "precondition"
	KindInvalidParameter Kind = "invalid_parameter"
	KindContent          Kind = "content"
	KindCacheConsistency Kind = "cache_consistency"
	KindStorage          Kind = "storage"
	KindUnexpected       Kind = "unexpected"
)

// ValidationError reports a malformed item, action declaration or request.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, msg)
	}
	return "validation failed: " + msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validation builds a ValidationError with a formatted reason.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ParseError reports a file whose frontmatter could not be decoded. It is
// recoverable: the file can still be treated as opaque content.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PreconditionError names the predicate an input item failed.
type PreconditionError struct {
	Action       string
	Precondition string
	Item         string
	Hint         string
}

func (e *PreconditionError) Error() string {
	var b strings.Builder
	if e.Action != "" {
		fmt.Fprintf(&b, "action %s requires %s", e.Action, e.Precondition)
	} else {
		fmt.Fprintf(&b, "precondition %s failed", e.Precondition)
	}
	if e.Item != "" {
		fmt.Fprintf(&b, "; %s does not satisfy it", e.Item)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (%s)", e.Hint)
	}
	return b.String()
}

// InvalidParameterError names the rejected parameter and value.
type InvalidParameterError struct {
	Param string
	Value any
	Err   error
}

func (e *InvalidParameterError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid parameter %s: %v", e.Param, e.Err)
	}
	return fmt.Sprintf("invalid parameter %s=%v: %v", e.Param, e.Value, e.Err)
}

func (e *InvalidParameterError) Unwrap() error { return e.Err }

// ContentError is returned by actions that cannot process the content they
// were given.
type ContentError struct {
	Action string
	Item   string
	Err    error
}

func (e *ContentError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s: cannot process %s: %v", e.Action, e.Item, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *ContentError) Unwrap() error { return e.Err }

// Content builds a ContentError.
func Content(action string, format string, args ...any) error {
	return &ContentError{Action: action, Err: fmt.Errorf(format, args...)}
}

// CacheConsistencyError means the index references an output that is gone or
// no longer matches its recorded fingerprint.
type CacheConsistencyError struct {
	Fingerprint string
	Path        string
	Reason      string
}

func (e *CacheConsistencyError) Error() string {
	return fmt.Sprintf("cache entry %s is inconsistent: %s (%s); run `kash ws rebuild` or rerun with --rerun",
		short(e.Fingerprint), e.Reason, e.Path)
}

// StorageError wraps a filesystem or catalog failure.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError. It returns nil for a nil err and
// leaves errors that already carry a kind untouched.
func Storage(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnexpected {
		return err
	}
	return &StorageError{Op: op, Path: path, Err: err}
}

// UnexpectedError is the catch-all for internal failures.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error: %v", e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

// KindOf classifies err. Errors outside the taxonomy are KindUnexpected.
func KindOf(err error) Kind {
	var (
		validation   *ValidationError
		parse        *ParseError
		precondition *PreconditionError
		param        *InvalidParameterError
		content      *ContentError
		cache        *CacheConsistencyError
		storage      *StorageError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &precondition):
		return KindPrecondition
	case errors.As(err, &param):
		return KindInvalidParameter
	case errors.As(err, &cache):
		return KindCacheConsistency
	case errors.As(err, &content):
		return KindContent
	case errors.As(err, &parse):
		return KindParse
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &storage):
		return KindStorage
	default:
		return KindUnexpected
	}
}

// Classify returns err unchanged when it already has a kind, otherwise it
// wraps it in an UnexpectedError.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var unexpected *UnexpectedError
	if errors.As(err, &unexpected) || KindOf(err) != KindUnexpected {
		return err
	}
	return &UnexpectedError{Err: err}
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
