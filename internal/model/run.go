package model

import "time"

// Stage identifies one of the three rollup stages.
type Stage string

const (
	StageDaily   Stage = "daily"
	StageWeekly  Stage = "weekly"
	StageMonthly Stage = "monthly"
)

// StageRun is an audit record for a single stage invocation.
type StageRun struct {
	ID         string     `json:"id"`
	Stage      Stage      `json:"stage"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
}

// ItemFailure records one failed item inside a stage run.
type ItemFailure struct {
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
	Reason   string `json:"reason"`
}

// RunReport accumulates per-item outcomes for a stage run. Item failures
// are collected rather than propagated so a run can finish the rest of
// its backlog.
type RunReport struct {
	Stage     Stage         `json:"stage"`
	Succeeded int           `json:"succeeded"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

// AddSuccess counts one successfully produced artifact.
func (r *RunReport) AddSuccess() {
	r.Succeeded++
}

// AddFailure records one failed item.
func (r *RunReport) AddFailure(sourceID, name string, err error) {
	r.Failures = append(r.Failures, ItemFailure{
		SourceID: sourceID,
		Name:     name,
		Reason:   err.Error(),
	})
}

// Failed returns the number of failed items.
func (r *RunReport) Failed() int {
	return len(r.Failures)
}
