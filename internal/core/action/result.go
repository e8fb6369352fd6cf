package action

import (
	"time"

	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/item"
)

// Result is the structured outcome of an invocation. Rendering it is the
// caller's job.
type Result struct {
	InvocationID string        `json:"invocation_id"`
	Action       string        `json:"action"`
	Status       Status        `json:"status"`
	Items        []*item.Item  `json:"-"`
	Paths        []string      `json:"paths,omitempty"`
	Inputs       []string      `json:"inputs,omitempty"`
	Operations   []string      `json:"operations,omitempty"`
	Archived     []string      `json:"archived,omitempty"`
	SkipReason   string        `json:"skip_reason,omitempty"`
	Trace        []Status      `json:"trace,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
	Err          error         `json:"-"`
	ErrorKind    errs.Kind     `json:"error_kind,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// SetError records err on the result.
func (r *Result) SetError(err error) {
	r.Err = err
	r.ErrorKind = errs.KindOf(err)
	r.Error = err.Error()
	r.Status = StatusFailed
}
