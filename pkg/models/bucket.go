package models

import (
	"fmt"
	"strings"
	"time"
)

// BucketStats holds pass/fail counters and the availability they imply.
// Total and Availability are always derived from Failures and Passes.
type BucketStats struct {
	Failures     int     `json:"failures" yaml:"failures" validate:"min=0"`
	Passes       int     `json:"passes" yaml:"passes" validate:"min=0"`
	Total        int     `json:"total" yaml:"total" validate:"min=0"`
	Availability float64 `json:"availability" yaml:"availability" validate:"min=0,max=1"`
}

// NewBucketStats builds stats from failure and pass counts.
func NewBucketStats(failures, passes int) BucketStats {
	s := BucketStats{Failures: failures, Passes: passes}
	s.derive()

	return s
}

func (s *BucketStats) derive() {
	s.Total = s.Failures + s.Passes
	s.Availability = 0

	if s.Total > 0 {
		s.Availability = float64(s.Passes) / float64(s.Total)
	}
}

// Add increments the counters and re-derives total and availability.
func (s *BucketStats) Add(failures, passes int) {
	s.Failures += failures
	s.Passes += passes
	s.derive()
}

// BucketDelta is the additive counter change one completed run record
// contributes to a bucket. It is safe to apply with an atomic
// add-to-counters storage operation.
type BucketDelta struct {
	RunFailures  int `json:"runFailures"`
	RunPasses    int `json:"runPasses"`
	TestFailures int `json:"testFailures"`
	TestPasses   int `json:"testPasses"`
}

// BucketDeltaFromRecord returns the counter deltas for a run record.
func BucketDeltaFromRecord(record *RunRecord) BucketDelta {
	var d BucketDelta

	switch record.Status {
	case RunStatusPassed:
		d.RunPasses = 1
	case RunStatusFailed:
		d.RunFailures = 1
	}

	if record.Stats != nil {
		d.TestFailures = record.Stats.Failures
		d.TestPasses = record.Stats.Passes
	}

	return d
}

// Bucket aggregates run and test outcomes for one routine over one fixed
// UTC interval.
type Bucket struct {
	ID        string      `json:"id" yaml:"id" validate:"required,startswith=bk-"`
	Size      BucketSize  `json:"size" yaml:"size" validate:"required,oneof=min5 hour day week month"`
	Tests     BucketStats `json:"tests" yaml:"tests"`
	Runs      BucketStats `json:"runs" yaml:"runs"`
	RoutineID string      `json:"routineId" yaml:"routineId" validate:"required"`
	ProjectID string      `json:"projectId" yaml:"projectId" validate:"required"`
	Start     time.Time   `json:"start" yaml:"start" validate:"required"`
	End       time.Time   `json:"end" yaml:"end" validate:"required,gtfield=Start"`
	CreatedAt time.Time   `json:"createdAt" yaml:"createdAt" validate:"required"`
	UpdatedAt time.Time   `json:"updatedAt" yaml:"updatedAt" validate:"required"`
}

var _ Entity = (*Bucket)(nil)

// CreateBucket builds the bucket of the given size that a completed run
// record falls into, seeded with that record's counters.
func CreateBucket(record *RunRecord, size BucketSize, now time.Time) (*Bucket, error) {
	if record.CompletedAt == nil {
		return nil, fmt.Errorf("creating %s bucket for %s: %w", size, record.ID, ErrRecordIncomplete)
	}

	completedAt := *record.CompletedAt
	delta := BucketDeltaFromRecord(record)

	b := &Bucket{
		ID:        GenerateBucketID(record.RoutineID, size, completedAt),
		Size:      size,
		Tests:     NewBucketStats(delta.TestFailures, delta.TestPasses),
		Runs:      NewBucketStats(delta.RunFailures, delta.RunPasses),
		RoutineID: record.RoutineID,
		ProjectID: record.ProjectID,
		Start:     GetStart(size, completedAt),
		End:       GetEnd(size, completedAt),
	}

	stamp(&b.CreatedAt, &b.UpdatedAt, now)
	b.Normalize()

	if err := b.Validate(); err != nil {
		return nil, err
	}

	return b, nil
}

// Update adds a completed run record to the bucket. The record must map to
// this bucket; otherwise ErrBucketIDMismatch is returned and the counters
// are left untouched. On success UpdatedAt is set to now.
func (b *Bucket) Update(record *RunRecord, now time.Time) (*Bucket, error) {
	if record.CompletedAt == nil {
		return b, fmt.Errorf("updating bucket %s with %s: %w", b.ID, record.ID, ErrRecordIncomplete)
	}

	expected := GenerateBucketID(record.RoutineID, b.Size, *record.CompletedAt)
	if expected != b.ID {
		return b, fmt.Errorf("%w: record %s maps to %s, not %s",
			ErrBucketIDMismatch, record.ID, expected, b.ID)
	}

	b.Apply(BucketDeltaFromRecord(record))
	b.UpdatedAt = normalizeTime(now)

	return b, nil
}

// Apply adds a counter delta to the bucket.
func (b *Bucket) Apply(d BucketDelta) {
	b.Runs.Add(d.RunFailures, d.RunPasses)
	b.Tests.Add(d.TestFailures, d.TestPasses)
}

// Normalize implements Entity.
func (b *Bucket) Normalize() {
	b.ID = strings.TrimSpace(b.ID)
	b.RoutineID = strings.TrimSpace(b.RoutineID)
	b.ProjectID = strings.TrimSpace(b.ProjectID)
	b.Tests.derive()
	b.Runs.derive()
	b.Start = normalizeTime(b.Start)
	b.End = normalizeTime(b.End)
	b.CreatedAt = normalizeTime(b.CreatedAt)
	b.UpdatedAt = normalizeTime(b.UpdatedAt)
}

// Validate implements Entity.
func (b *Bucket) Validate() error {
	return validateStruct(b).orNil()
}
