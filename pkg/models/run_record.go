package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/ethpandaops/uptimeoor/pkg/idgen"
)

// RunStatus is the lifecycle status of a run record.
type RunStatus string

// Run statuses.
const (
	RunStatusCreated RunStatus = "created"
	RunStatusFailed  RunStatus = "failed"
	RunStatusPassed  RunStatus = "passed"
)

// IsTerminal reports whether the status can no longer change.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusFailed || s == RunStatusPassed
}

// RunFailType classifies why a run failed. The zero value means the run did
// not fail and is encoded as JSON null.
type RunFailType string

// Run fail types.
const (
	FailTypeNone    RunFailType = ""
	FailTypeTimeout RunFailType = "timeout"
	FailTypeTest    RunFailType = "test"
	FailTypeError   RunFailType = "error"
)

// MarshalJSON encodes FailTypeNone as null.
func (f RunFailType) MarshalJSON() ([]byte, error) {
	if f == FailTypeNone {
		return []byte("null"), nil
	}

	return []byte(`"` + string(f) + `"`), nil
}

// UnmarshalJSON decodes null as FailTypeNone.
func (f *RunFailType) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*f = FailTypeNone

		return nil
	}

	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid fail type %s", s)
	}

	*f = RunFailType(s[1 : len(s)-1])

	return nil
}

// EventTypeEnd marks a test execution that ran to completion.
const EventTypeEnd = "end"

// RunStats are the aggregate test counts reported by a test runner.
type RunStats struct {
	Suites     int   `json:"suites" yaml:"suites" mapstructure:"suites" validate:"min=0"`
	Tests      int   `json:"tests" yaml:"tests" mapstructure:"tests" validate:"min=0"`
	Passes     int   `json:"passes" yaml:"passes" mapstructure:"passes" validate:"min=0"`
	Pending    int   `json:"pending" yaml:"pending" mapstructure:"pending" validate:"min=0"`
	Failures   int   `json:"failures" yaml:"failures" mapstructure:"failures" validate:"min=0"`
	DurationMs int64 `json:"duration" yaml:"duration" mapstructure:"duration" validate:"min=0"`
}

// RunEvent is one event emitted while a routine's tests execute.
type RunEvent struct {
	Type   string         `json:"type" yaml:"type" validate:"required"`
	TimeMs int64          `json:"timeMs" yaml:"timeMs" validate:"min=0"`
	Data   map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// Stats decodes data.stats, returning nil when absent or malformed.
func (e *RunEvent) Stats() *RunStats {
	raw, ok := e.Data["stats"]
	if !ok || raw == nil {
		return nil
	}

	var stats RunStats
	if err := mapstructure.Decode(raw, &stats); err != nil {
		return nil
	}

	return &stats
}

// canonicalEvents returns a copy of events whose data maps hold what a JSON
// decode produces (numbers as float64), so a record compares equal before
// and after it passes through the cache or the database. Data that cannot
// be encoded is kept as is.
func canonicalEvents(events []RunEvent) []RunEvent {
	if events == nil {
		return nil
	}

	out := make([]RunEvent, len(events))

	for i, e := range events {
		out[i] = e

		if e.Data == nil {
			continue
		}

		raw, err := json.Marshal(e.Data)
		if err != nil {
			continue
		}

		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			continue
		}

		out[i].Data = data
	}

	return out
}

// TestResult is the raw payload a test execution reports on completion.
type TestResult struct {
	Events        []RunEvent `json:"events" yaml:"events" validate:"dive"`
	Console       *string    `json:"console" yaml:"console"`
	RunDurationMs int64      `json:"runDurationMs" yaml:"runDurationMs" validate:"min=0"`
	CreatedAt     time.Time  `json:"createdAt" yaml:"createdAt" validate:"required"`
}

var _ Entity = (*TestResult)(nil)

// Normalize implements Entity.
func (r *TestResult) Normalize() {
	r.Events = canonicalEvents(r.Events)
	r.CreatedAt = normalizeTime(r.CreatedAt)
}

// Validate implements Entity.
func (r *TestResult) Validate() error {
	return validateStruct(r).orNil()
}

// RunRecordPatch is the change a completed test result applies to a run
// record.
type RunRecordPatch struct {
	Status         RunStatus   `json:"status" yaml:"status"`
	FailType       RunFailType `json:"failType" yaml:"failType"`
	Stats          *RunStats   `json:"stats" yaml:"stats"`
	Events         []RunEvent  `json:"events" yaml:"events"`
	Console        *string     `json:"console" yaml:"console"`
	RunDurationMs  int64       `json:"runDurationMs" yaml:"runDurationMs"`
	TestDurationMs *int64      `json:"testDurationMs" yaml:"testDurationMs"`
	CompletedAt    *time.Time  `json:"completedAt" yaml:"completedAt"`
}

// GetPatchFromResult classifies a completed test result.
//
// The checks run in order and the first match wins:
//   - no events at all: failed with an error (the execution never started)
//   - last event is not the end marker: failed with a timeout
//   - end marker with failing tests: failed with a test failure
//   - otherwise: passed
func GetPatchFromResult(result *TestResult) RunRecordPatch {
	completedAt := normalizeTime(result.CreatedAt)

	patch := RunRecordPatch{
		Events:        result.Events,
		Console:       result.Console,
		RunDurationMs: result.RunDurationMs,
		CompletedAt:   &completedAt,
	}

	var last *RunEvent
	if n := len(result.Events); n > 0 {
		last = &result.Events[n-1]
	}

	if last != nil {
		timeMs := last.TimeMs
		patch.TestDurationMs = &timeMs
		patch.Stats = last.Stats()
	}

	switch {
	case last == nil:
		patch.Status, patch.FailType = RunStatusFailed, FailTypeError
	case last.Type != EventTypeEnd:
		patch.Status, patch.FailType = RunStatusFailed, FailTypeTimeout
	case patch.Stats != nil && patch.Stats.Failures > 0:
		patch.Status, patch.FailType = RunStatusFailed, FailTypeTest
	default:
		patch.Status, patch.FailType = RunStatusPassed, FailTypeNone
	}

	return patch
}

// RunRecord tracks one run from dispatch through classification.
type RunRecord struct {
	ID             string      `json:"id" yaml:"id" validate:"required,startswith=rs-"`
	ProjectID      string      `json:"projectId" yaml:"projectId" validate:"required"`
	RunID          string      `json:"runId" yaml:"runId" validate:"required"`
	RoutineID      string      `json:"routineId" yaml:"routineId" validate:"required"`
	Type           RunType     `json:"type" yaml:"type" validate:"required,oneof=manual scheduled"`
	Status         RunStatus   `json:"status" yaml:"status" validate:"required,oneof=created failed passed"`
	FailType       RunFailType `json:"failType" yaml:"failType" validate:"omitempty,oneof=timeout test error"`
	Events         []RunEvent  `json:"events" yaml:"events" validate:"omitempty,dive"`
	Stats          *RunStats   `json:"stats" yaml:"stats"`
	RunDurationMs  int64       `json:"runDurationMs" yaml:"runDurationMs" validate:"min=0"`
	TestDurationMs *int64      `json:"testDurationMs" yaml:"testDurationMs" validate:"omitempty,min=0"`
	Console        *string     `json:"console" yaml:"console"`
	CompletedAt    *time.Time  `json:"completedAt" yaml:"completedAt"`
	CreatedAt      time.Time   `json:"createdAt" yaml:"createdAt" validate:"required"`
	UpdatedAt      time.Time   `json:"updatedAt" yaml:"updatedAt" validate:"required"`
}

var _ Entity = (*RunRecord)(nil)

// NewRunRecordFromRun creates the CREATED record for a dispatched run.
func NewRunRecordFromRun(run *Run, now time.Time) (*RunRecord, error) {
	r := &RunRecord{
		ID:        idgen.SwapPrefix(run.ID, idgen.PrefixRunRecord),
		ProjectID: run.ProjectID,
		RunID:     run.ID,
		RoutineID: run.RoutineID,
		Type:      run.Type,
		Status:    RunStatusCreated,
	}

	stamp(&r.CreatedAt, &r.UpdatedAt, now)
	r.Normalize()

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// ApplyPatch moves a CREATED record to its terminal status. Records that
// are already terminal are left untouched and ErrRecordTerminal is
// returned.
func (r *RunRecord) ApplyPatch(patch RunRecordPatch, now time.Time) error {
	if r.Status.IsTerminal() {
		return fmt.Errorf("patching %s: %w", r.ID, ErrRecordTerminal)
	}

	r.Status = patch.Status
	r.FailType = patch.FailType
	r.Stats = patch.Stats
	r.Events = canonicalEvents(patch.Events)
	r.Console = patch.Console
	r.RunDurationMs = patch.RunDurationMs
	r.TestDurationMs = patch.TestDurationMs
	r.CompletedAt = normalizeTimePtr(patch.CompletedAt)
	r.UpdatedAt = normalizeTime(now)

	return nil
}

// Normalize implements Entity.
func (r *RunRecord) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.ProjectID = strings.TrimSpace(r.ProjectID)
	r.RunID = strings.TrimSpace(r.RunID)
	r.RoutineID = strings.TrimSpace(r.RoutineID)

	if r.Status == "" {
		r.Status = RunStatusCreated
	}

	if r.Type == "" {
		r.Type = RunTypeScheduled
	}

	r.Events = canonicalEvents(r.Events)
	r.CompletedAt = normalizeTimePtr(r.CompletedAt)
	r.CreatedAt = normalizeTime(r.CreatedAt)
	r.UpdatedAt = normalizeTime(r.UpdatedAt)
}

// Validate implements Entity.
func (r *RunRecord) Validate() error {
	verr := validateStruct(r)

	if r.Status == RunStatusFailed && r.FailType == FailTypeNone {
		verr.add("runRecord.failType", "required_if", "is required when status is failed")
	}

	if r.Status != RunStatusFailed && r.FailType != FailTypeNone {
		verr.add("runRecord.failType", "excluded_unless", "must be null unless status is failed")
	}

	if r.Status.IsTerminal() && r.CompletedAt == nil {
		verr.add("runRecord.completedAt", "required_if", "is required once the run completed")
	}

	return verr.orNil()
}
