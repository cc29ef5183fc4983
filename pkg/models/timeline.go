package models

import (
	"sort"
	"strings"
	"time"

	"github.com/ethpandaops/uptimeoor/pkg/idgen"
)

// TimelineStatus is the aggregate health of a routine over a span.
type TimelineStatus string

// Timeline statuses.
const (
	TimelineStatusUp       TimelineStatus = "up"
	TimelineStatusImpaired TimelineStatus = "impaired"
	TimelineStatusDown     TimelineStatus = "down"
	TimelineStatusTimeout  TimelineStatus = "timeout"
	TimelineStatusUnknown  TimelineStatus = "unknown"
)

// StatusOfRecord maps one run record to the timeline status it reports.
func StatusOfRecord(record *RunRecord) TimelineStatus {
	switch record.Status {
	case RunStatusPassed:
		return TimelineStatusUp
	case RunStatusFailed:
		switch record.FailType {
		case FailTypeTimeout:
			return TimelineStatusTimeout
		case FailTypeTest:
			if record.Stats != nil && record.Stats.Passes > 0 {
				return TimelineStatusImpaired
			}

			return TimelineStatusDown
		default:
			return TimelineStatusDown
		}
	default:
		return TimelineStatusUnknown
	}
}

// TimelineEvent is a contiguous span during which a routine's status held
// constant.
type TimelineEvent struct {
	ID          string         `json:"id" yaml:"id" validate:"required,startswith=te-"`
	ProjectID   string         `json:"projectId" yaml:"projectId" validate:"required"`
	RoutineID   string         `json:"routineId" yaml:"routineId" validate:"required"`
	Status      TimelineStatus `json:"status" yaml:"status" validate:"required,oneof=up impaired down timeout unknown"`
	Start       time.Time      `json:"start" yaml:"start" validate:"required"`
	End         time.Time      `json:"end" yaml:"end" validate:"required,gtefield=Start"`
	DurationMs  int64          `json:"durationMs" yaml:"durationMs" validate:"min=0"`
	RecordCount int            `json:"recordCount" yaml:"recordCount" validate:"min=1"`
	CreatedAt   time.Time      `json:"createdAt" yaml:"createdAt" validate:"required"`
	UpdatedAt   time.Time      `json:"updatedAt" yaml:"updatedAt" validate:"required"`
}

var _ Entity = (*TimelineEvent)(nil)

// NewTimelineEvent opens a span at a completed run record.
func NewTimelineEvent(record *RunRecord, now time.Time) (*TimelineEvent, error) {
	if record.CompletedAt == nil {
		return nil, ErrRecordIncomplete
	}

	e := &TimelineEvent{
		ID:          idgen.New(idgen.PrefixTimelineEvent),
		ProjectID:   record.ProjectID,
		RoutineID:   record.RoutineID,
		Status:      StatusOfRecord(record),
		Start:       *record.CompletedAt,
		End:         *record.CompletedAt,
		RecordCount: 1,
	}

	stamp(&e.CreatedAt, &e.UpdatedAt, now)
	e.Normalize()

	if err := e.Validate(); err != nil {
		return nil, err
	}

	return e, nil
}

// Extend grows the span to cover record. It returns false, leaving the
// event untouched, when the record reports a different status, is not
// completed, or completed before the span started.
func (e *TimelineEvent) Extend(record *RunRecord, now time.Time) bool {
	if record.CompletedAt == nil || record.CompletedAt.Before(e.Start) {
		return false
	}

	if StatusOfRecord(record) != e.Status {
		return false
	}

	if record.CompletedAt.After(e.End) {
		e.End = normalizeTime(*record.CompletedAt)
	}

	e.RecordCount++
	e.DurationMs = e.End.Sub(e.Start).Milliseconds()
	e.UpdatedAt = normalizeTime(now)

	return true
}

// BuildTimeline folds a routine's completed run records into consecutive
// timeline events ordered by start. Records that are not completed are
// skipped.
func BuildTimeline(records []*RunRecord, now time.Time) ([]*TimelineEvent, error) {
	completed := make([]*RunRecord, 0, len(records))

	for _, r := range records {
		if r.CompletedAt != nil {
			completed = append(completed, r)
		}
	}

	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].CompletedAt.Before(*completed[j].CompletedAt)
	})

	events := make([]*TimelineEvent, 0, 4)

	for _, r := range completed {
		if n := len(events); n > 0 && events[n-1].Extend(r, now) {
			continue
		}

		e, err := NewTimelineEvent(r, now)
		if err != nil {
			return nil, err
		}

		events = append(events, e)
	}

	return events, nil
}

// Normalize implements Entity.
func (e *TimelineEvent) Normalize() {
	e.ID = strings.TrimSpace(e.ID)
	e.ProjectID = strings.TrimSpace(e.ProjectID)
	e.RoutineID = strings.TrimSpace(e.RoutineID)

	if e.Status == "" {
		e.Status = TimelineStatusUnknown
	}

	e.Start = normalizeTime(e.Start)
	e.End = normalizeTime(e.End)
	e.DurationMs = e.End.Sub(e.Start).Milliseconds()
	e.CreatedAt = normalizeTime(e.CreatedAt)
	e.UpdatedAt = normalizeTime(e.UpdatedAt)
}

// Validate implements Entity.
func (e *TimelineEvent) Validate() error {
	return validateStruct(e).orNil()
}
