package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statsData(failures, passes float64) map[string]any {
	return map[string]any{
		"stats": map[string]any{
			"suites":   float64(1),
			"tests":    failures + passes,
			"passes":   passes,
			"failures": failures,
			"pending":  float64(0),
			"duration": float64(1200),
		},
	}
}

func TestGetPatchFromResult(t *testing.T) {
	createdAt := time.Date(2018, 1, 1, 0, 3, 3, 0, time.UTC)
	console := "ok"

	tests := []struct {
		name         string
		events       []RunEvent
		wantStatus   RunStatus
		wantFailType RunFailType
		wantStats    *RunStats
		wantDuration *int64
	}{
		{
			name:         "no events is an error",
			events:       []RunEvent{},
			wantStatus:   RunStatusFailed,
			wantFailType: FailTypeError,
		},
		{
			name:         "nil events is an error",
			events:       nil,
			wantStatus:   RunStatusFailed,
			wantFailType: FailTypeError,
		},
		{
			name: "cut off before end is a timeout",
			events: []RunEvent{
				{Type: "start", TimeMs: 0},
				{Type: "pass", TimeMs: 300},
			},
			wantStatus:   RunStatusFailed,
			wantFailType: FailTypeTimeout,
			wantDuration: ptr(int64(300)),
		},
		{
			name: "timeout even when partial stats show no failures",
			events: []RunEvent{
				{Type: "start", TimeMs: 0},
				{Type: "suite end", TimeMs: 500, Data: statsData(0, 2)},
			},
			wantStatus:   RunStatusFailed,
			wantFailType: FailTypeTimeout,
			wantStats:    &RunStats{Suites: 1, Tests: 2, Passes: 2, DurationMs: 1200},
			wantDuration: ptr(int64(500)),
		},
		{
			name: "failing assertions are a test failure",
			events: []RunEvent{
				{Type: "start", TimeMs: 0},
				{Type: EventTypeEnd, TimeMs: 900, Data: statsData(2, 3)},
			},
			wantStatus:   RunStatusFailed,
			wantFailType: FailTypeTest,
			wantStats:    &RunStats{Suites: 1, Tests: 5, Passes: 3, Failures: 2, DurationMs: 1200},
			wantDuration: ptr(int64(900)),
		},
		{
			name: "clean end passes",
			events: []RunEvent{
				{Type: "start", TimeMs: 0},
				{Type: EventTypeEnd, TimeMs: 700, Data: statsData(0, 4)},
			},
			wantStatus:   RunStatusPassed,
			wantFailType: FailTypeNone,
			wantStats:    &RunStats{Suites: 1, Tests: 4, Passes: 4, DurationMs: 1200},
			wantDuration: ptr(int64(700)),
		},
		{
			name: "end without stats passes",
			events: []RunEvent{
				{Type: EventTypeEnd, TimeMs: 10},
			},
			wantStatus:   RunStatusPassed,
			wantFailType: FailTypeNone,
			wantDuration: ptr(int64(10)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &TestResult{
				Events:        tt.events,
				Console:       &console,
				RunDurationMs: 1500,
				CreatedAt:     createdAt,
			}

			patch := GetPatchFromResult(result)

			assert.Equal(t, tt.wantStatus, patch.Status)
			assert.Equal(t, tt.wantFailType, patch.FailType)
			assert.Equal(t, tt.wantStats, patch.Stats)
			assert.Equal(t, tt.wantDuration, patch.TestDurationMs)
			assert.Equal(t, tt.events, patch.Events)
			assert.Equal(t, &console, patch.Console)
			assert.Equal(t, int64(1500), patch.RunDurationMs)
			require.NotNil(t, patch.CompletedAt)
			assert.Equal(t, createdAt, *patch.CompletedAt)
		})
	}
}

func TestRunEventStats_Malformed(t *testing.T) {
	e := RunEvent{Type: EventTypeEnd, Data: map[string]any{"stats": "nope"}}
	assert.Nil(t, e.Stats())

	e = RunEvent{Type: EventTypeEnd}
	assert.Nil(t, e.Stats())
}

func TestRunFailTypeJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A RunFailType `json:"a"`
		B RunFailType `json:"b"`
	}{A: FailTypeNone, B: FailTypeTimeout})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":null,"b":"timeout"}`, string(data))

	var out struct {
		A RunFailType `json:"a"`
		B RunFailType `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":null,"b":"test"}`), &out))
	assert.Equal(t, FailTypeNone, out.A)
	assert.Equal(t, FailTypeTest, out.B)

	assert.Error(t, json.Unmarshal([]byte(`{"a":3}`), &out))
}

func TestNewRunRecordFromRun(t *testing.T) {
	now := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	run := &Run{
		ID:        "rn-01HABCDEF",
		ProjectID: "pj-1",
		RoutineID: "rt-1",
		Type:      RunTypeManual,
		CreatedAt: now,
	}

	rec, err := NewRunRecordFromRun(run, now)
	require.NoError(t, err)

	assert.Equal(t, "rs-01HABCDEF", rec.ID)
	assert.Equal(t, run.ID, rec.RunID)
	assert.Equal(t, RunStatusCreated, rec.Status)
	assert.Equal(t, FailTypeNone, rec.FailType)
	assert.Equal(t, RunTypeManual, rec.Type)
	assert.Nil(t, rec.Events)
	assert.Nil(t, rec.CompletedAt)
	assert.Equal(t, now, rec.CreatedAt)
}

func TestRunRecordApplyPatch(t *testing.T) {
	now := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	rec, err := NewRunRecordFromRun(&Run{
		ID: "rn-1", ProjectID: "pj-1", RoutineID: "rt-1", Type: RunTypeScheduled,
	}, now)
	require.NoError(t, err)

	patch := GetPatchFromResult(&TestResult{
		Events: []RunEvent{
			{Type: EventTypeEnd, TimeMs: 700, Data: statsData(1, 4)},
		},
		RunDurationMs: 900,
		CreatedAt:     now.Add(time.Minute),
	})

	later := now.Add(2 * time.Minute)
	require.NoError(t, rec.ApplyPatch(patch, later))

	assert.Equal(t, RunStatusFailed, rec.Status)
	assert.Equal(t, FailTypeTest, rec.FailType)
	assert.Equal(t, now.Add(time.Minute), *rec.CompletedAt)
	assert.Equal(t, later, rec.UpdatedAt)
	assert.Equal(t, now, rec.CreatedAt)
	require.NoError(t, rec.Validate())

	// Terminal records are immutable.
	snapshot := *rec
	err = rec.ApplyPatch(GetPatchFromResult(&TestResult{CreatedAt: later}), later.Add(time.Hour))
	assert.ErrorIs(t, err, ErrRecordTerminal)
	assert.Equal(t, snapshot, *rec)
}

func TestRunRecordValidate_FailTypeConsistency(t *testing.T) {
	at := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    RunStatus
		failType  RunFailType
		completed bool
		wantField string
	}{
		{name: "failed needs a fail type", status: RunStatusFailed, completed: true, wantField: "runRecord.failType"},
		{name: "passed has no fail type", status: RunStatusPassed, failType: FailTypeTest, completed: true, wantField: "runRecord.failType"},
		{name: "terminal needs completion", status: RunStatusPassed, wantField: "runRecord.completedAt"},
		{name: "bad fail type", status: RunStatusFailed, failType: "oops", completed: true, wantField: "runRecord.failType"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &RunRecord{
				ID: "rs-1", ProjectID: "pj-1", RunID: "rn-1", RoutineID: "rt-1",
				Type: RunTypeScheduled, Status: tt.status, FailType: tt.failType,
				CreatedAt: at, UpdatedAt: at,
			}
			if tt.completed {
				rec.CompletedAt = &at
			}

			var verr *ValidationError
			require.ErrorAs(t, rec.Validate(), &verr)

			fields := make([]string, 0, len(verr.Violations))
			for _, v := range verr.Violations {
				fields = append(fields, v.Field)
			}

			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}
