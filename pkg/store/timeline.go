package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ethpandaops/uptimeoor/pkg/models"
)

type timelineEventRow struct {
	ID          string    `gorm:"primaryKey"`
	ProjectID   string    `gorm:"not null;index"`
	RoutineID   string    `gorm:"not null;index:idx_timeline_routine_start"`
	Status      string    `gorm:"not null"`
	StartAt     time.Time `gorm:"not null;index:idx_timeline_routine_start"`
	EndAt       time.Time `gorm:"not null"`
	DurationMs  int64
	RecordCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (timelineEventRow) TableName() string { return "timeline_events" }

func newTimelineEventRow(e *models.TimelineEvent) *timelineEventRow {
	return &timelineEventRow{
		ID:          e.ID,
		ProjectID:   e.ProjectID,
		RoutineID:   e.RoutineID,
		Status:      string(e.Status),
		StartAt:     e.Start,
		EndAt:       e.End,
		DurationMs:  e.DurationMs,
		RecordCount: e.RecordCount,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func (row *timelineEventRow) model() *models.TimelineEvent {
	e := &models.TimelineEvent{
		ID:          row.ID,
		ProjectID:   row.ProjectID,
		RoutineID:   row.RoutineID,
		Status:      models.TimelineStatus(row.Status),
		Start:       row.StartAt,
		End:         row.EndAt,
		RecordCount: row.RecordCount,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	e.Normalize()

	return e
}

// UpsertTimelineEvent inserts or replaces a timeline event keyed by its id.
func (s *store) UpsertTimelineEvent(ctx context.Context, event *models.TimelineEvent) error {
	if err := s.upsert(ctx, newTimelineEventRow(event)); err != nil {
		return fmt.Errorf("upserting timeline event: %w", err)
	}

	return nil
}

// LatestTimelineEvent returns the routine's most recently started event.
func (s *store) LatestTimelineEvent(
	ctx context.Context, routineID string,
) (*models.TimelineEvent, error) {
	var rows []timelineEventRow
	if err := s.db.WithContext(ctx).
		Where("routine_id = ?", routineID).
		Order("start_at DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("getting latest timeline event: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("latest timeline event for %s: %w", routineID, ErrNotFound)
	}

	return rows[0].model(), nil
}

// ListTimelineEvents returns a routine's events overlapping filter, ordered
// by start.
func (s *store) ListTimelineEvents(
	ctx context.Context, routineID string, filter models.DateFilter,
) ([]*models.TimelineEvent, error) {
	q := s.db.WithContext(ctx).Where("routine_id = ?", routineID)

	if filter.Start != nil {
		q = q.Where("end_at >= ?", *filter.Start)
	}

	if filter.End != nil {
		q = q.Where("start_at <= ?", *filter.End)
	}

	var rows []timelineEventRow
	if err := q.Order("start_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing timeline events: %w", err)
	}

	events := make([]*models.TimelineEvent, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].model())
	}

	return events, nil
}
