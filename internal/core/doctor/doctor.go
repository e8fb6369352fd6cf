// Package doctor runs health checks against a workspace and its
// configuration.
package doctor

import "context"

// Status grades a finding.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

func (s Status) severity() int {
	switch s {
	case StatusWarn:
		return 1
	case StatusFail:
		return 2
	default:
		return 0
	}
}

// Finding is one line of a check's output. Fixable findings are repaired by
// `kash doctor --fix`.
type Finding struct {
	Label   string `json:"label"`
	Status  Status `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Fixable bool   `json:"fixable,omitempty"`
}

// Result is what one check found. Status is the worst finding's status and
// is filled in by Run.
type Result struct {
	Name     string    `json:"name"`
	Status   Status    `json:"status"`
	Findings []Finding `json:"findings"`
}

func (r *Result) pass(label, detail string) { r.add(label, StatusPass, detail, false) }
func (r *Result) warn(label, detail string) { r.add(label, StatusWarn, detail, false) }
func (r *Result) fail(label, detail string) { r.add(label, StatusFail, detail, false) }

func (r *Result) add(label string, st Status, detail string, fixable bool) {
	r.Findings = append(r.Findings, Finding{Label: label, Status: st, Detail: detail, Fixable: fixable})
}

func (r *Result) grade() {
	r.Status = StatusPass
	for _, f := range r.Findings {
		if f.Status.severity() > r.Status.severity() {
			r.Status = f.Status
		}
	}
}

// Check is one diagnostic.
type Check interface {
	Name() string
	Run(ctx context.Context) Result
}

// Report is the outcome of a doctor run.
type Report struct {
	Results []Result `json:"checks"`
	Passed  int      `json:"passed"`
	Warned  int      `json:"warned"`
	Failed  int      `json:"failed"`
	// Fixable counts warnings and failures that --fix repairs.
	Fixable int `json:"fixable"`
}

// Healthy reports whether nothing failed. Warnings do not count.
func (r Report) Healthy() bool { return r.Failed == 0 }

// Run executes checks in order. Once ctx ends the remaining checks are
// reported as failed without running.
func Run(ctx context.Context, checks ...Check) Report {
	rep := Report{Results: make([]Result, 0, len(checks))}
	for _, c := range checks {
		var res Result
		if err := ctx.Err(); err != nil {
			res = Result{Name: c.Name()}
			res.fail("not run", err.Error())
		} else {
			res = c.Run(ctx)
		}
		res.grade()
		rep.tally(res)
		rep.Results = append(rep.Results, res)
	}
	return rep
}

func (r *Report) tally(res Result) {
	for _, f := range res.Findings {
		switch f.Status {
		case StatusPass:
			r.Passed++
		case StatusWarn:
			r.Warned++
		case StatusFail:
			r.Failed++
		}
		if f.Fixable && f.Status != StatusPass {
			r.Fixable++
		}
	}
}
