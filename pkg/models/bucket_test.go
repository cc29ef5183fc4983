package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedRecord(t *testing.T, id, completedAt string, status RunStatus, stats *RunStats) *RunRecord {
	t.Helper()

	at := ts(t, completedAt)
	rec := &RunRecord{
		ID:          id,
		ProjectID:   "pj-1",
		RunID:       "rn-" + id[3:],
		RoutineID:   "rt-1",
		Type:        RunTypeScheduled,
		Status:      status,
		Stats:       stats,
		CompletedAt: &at,
		CreatedAt:   at,
		UpdatedAt:   at,
	}

	if status == RunStatusFailed {
		rec.FailType = FailTypeTest
	}

	return rec
}

func TestNewBucketStats(t *testing.T) {
	tests := []struct {
		name             string
		failures, passes int
		wantTotal        int
		wantAvailability float64
	}{
		{name: "empty", wantTotal: 0, wantAvailability: 0},
		{name: "all passing", passes: 4, wantTotal: 4, wantAvailability: 1},
		{name: "all failing", failures: 3, wantTotal: 3, wantAvailability: 0},
		{name: "mixed", failures: 2, passes: 3, wantTotal: 5, wantAvailability: 0.6},
		{name: "keeps precision", failures: 1, passes: 2, wantTotal: 3, wantAvailability: 2.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewBucketStats(tt.failures, tt.passes)
			assert.Equal(t, tt.failures, s.Failures)
			assert.Equal(t, tt.passes, s.Passes)
			assert.Equal(t, tt.wantTotal, s.Total)
			assert.Equal(t, tt.wantAvailability, s.Availability)
		})
	}
}

func TestCreateBucket(t *testing.T) {
	now := ts(t, "2018-01-01T00:10:00.000Z")
	rec := completedRecord(t, "rs-a", "2018-01-01T00:03:03.000Z", RunStatusPassed,
		&RunStats{Failures: 2, Passes: 3})

	b, err := CreateBucket(rec, BucketSizeMin5, now)
	require.NoError(t, err)

	assert.Equal(t, BucketStats{Failures: 2, Passes: 3, Total: 5, Availability: 0.6}, b.Tests)
	assert.Equal(t, BucketStats{Failures: 0, Passes: 1, Total: 1, Availability: 1}, b.Runs)
	assert.Equal(t, GenerateBucketID("rt-1", BucketSizeMin5, *rec.CompletedAt), b.ID)
	assert.Equal(t, "2018-01-01T00:00:00.000Z", b.Start.Format(ISOFormat))
	assert.Equal(t, "2018-01-01T00:04:59.999Z", b.End.Format(ISOFormat))
	assert.Equal(t, "pj-1", b.ProjectID)
	assert.Equal(t, "rt-1", b.RoutineID)
	assert.Equal(t, now, b.CreatedAt)
	assert.Equal(t, now, b.UpdatedAt)
}

func TestCreateBucket_RunCounters(t *testing.T) {
	now := ts(t, "2018-01-01T00:10:00.000Z")

	tests := []struct {
		name   string
		status RunStatus
		stats  *RunStats
		runs   BucketStats
		tests  BucketStats
	}{
		{
			name:   "failed run without stats",
			status: RunStatusFailed,
			runs:   BucketStats{Failures: 1, Total: 1},
			tests:  BucketStats{},
		},
		{
			name:   "created run counts nothing",
			status: RunStatusCreated,
			stats:  &RunStats{Passes: 2},
			runs:   BucketStats{},
			tests:  BucketStats{Passes: 2, Total: 2, Availability: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := completedRecord(t, "rs-a", "2018-01-01T00:03:03.000Z", tt.status, tt.stats)

			b, err := CreateBucket(rec, BucketSizeHour, now)
			require.NoError(t, err)
			assert.Equal(t, tt.runs, b.Runs)
			assert.Equal(t, tt.tests, b.Tests)
		})
	}
}

func TestCreateBucket_Incomplete(t *testing.T) {
	rec := &RunRecord{ID: "rs-a", RoutineID: "rt-1", ProjectID: "pj-1"}

	_, err := CreateBucket(rec, BucketSizeDay, time.Now())
	assert.ErrorIs(t, err, ErrRecordIncomplete)
}

func TestBucketUpdate_Accumulates(t *testing.T) {
	now := ts(t, "2018-01-01T01:00:00.000Z")

	records := []*RunRecord{
		completedRecord(t, "rs-1", "2018-01-01T00:01:00.000Z", RunStatusPassed, &RunStats{Passes: 3}),
		completedRecord(t, "rs-2", "2018-01-01T00:12:00.000Z", RunStatusFailed, &RunStats{Failures: 1, Passes: 2}),
		completedRecord(t, "rs-3", "2018-01-01T00:40:00.000Z", RunStatusPassed, &RunStats{Passes: 3}),
		completedRecord(t, "rs-4", "2018-01-01T00:59:59.999Z", RunStatusFailed, nil),
	}

	b, err := CreateBucket(records[0], BucketSizeHour, now)
	require.NoError(t, err)

	for i, rec := range records[1:] {
		at := now.Add(time.Duration(i+1) * time.Minute)

		got, err := b.Update(rec, at)
		require.NoError(t, err)
		assert.Same(t, b, got)
		assert.Equal(t, at, b.UpdatedAt)
	}

	assert.Equal(t, now, b.CreatedAt)

	assert.Equal(t, BucketStats{Failures: 2, Passes: 2, Total: 4, Availability: 0.5}, b.Runs)
	assert.Equal(t, BucketStats{Failures: 1, Passes: 8, Total: 9, Availability: 8.0 / 9.0}, b.Tests)
}

func TestBucketUpdate_Mismatch(t *testing.T) {
	now := ts(t, "2018-01-01T01:00:00.000Z")
	first := completedRecord(t, "rs-1", "2018-01-01T00:01:00.000Z", RunStatusPassed, &RunStats{Passes: 3})

	b, err := CreateBucket(first, BucketSizeMin5, now)
	require.NoError(t, err)

	before := *b

	tests := []struct {
		name string
		rec  *RunRecord
	}{
		{
			name: "different interval",
			rec:  completedRecord(t, "rs-2", "2018-01-01T00:05:00.000Z", RunStatusFailed, &RunStats{Failures: 1}),
		},
		{
			name: "different routine",
			rec: func() *RunRecord {
				r := completedRecord(t, "rs-3", "2018-01-01T00:02:00.000Z", RunStatusPassed, nil)
				r.RoutineID = "rt-2"

				return r
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Update(tt.rec, now.Add(time.Hour))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrBucketIDMismatch))
			assert.Equal(t, before, *b, "counters must be unchanged")
		})
	}
}

func TestBucketDeltaFromRecord(t *testing.T) {
	rec := completedRecord(t, "rs-1", "2018-01-01T00:01:00.000Z", RunStatusFailed,
		&RunStats{Failures: 4, Passes: 6})

	assert.Equal(t, BucketDelta{RunFailures: 1, TestFailures: 4, TestPasses: 6}, BucketDeltaFromRecord(rec))
}

func TestBucketNormalize_DerivesStats(t *testing.T) {
	b := &Bucket{
		Tests: BucketStats{Failures: 1, Passes: 1, Total: 99, Availability: 0.1},
	}
	b.Normalize()

	assert.Equal(t, 2, b.Tests.Total)
	assert.Equal(t, 0.5, b.Tests.Availability)
}

func TestBucketValidate(t *testing.T) {
	b := &Bucket{
		ID:   "xx-1",
		Size: "minute",
		Tests: BucketStats{
			Failures: -1,
		},
	}
	b.Normalize()

	err := b.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	fields := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		fields = append(fields, v.Field)
	}

	assert.Contains(t, fields, "bucket.id")
	assert.Contains(t, fields, "bucket.size")
	assert.Contains(t, fields, "bucket.tests.failures")
	assert.Contains(t, fields, "bucket.routineId")
}
