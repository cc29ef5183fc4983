package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethpandaops/uptimeoor/pkg/models"
)

// runRecordRow is the persisted form of a run record. Events and stats are
// stored as JSON text.
type runRecordRow struct {
	ID             string `gorm:"primaryKey"`
	ProjectID      string `gorm:"not null;index"`
	RunID          string `gorm:"not null;uniqueIndex"`
	RoutineID      string `gorm:"not null;index:idx_run_records_routine_completed"`
	Type           string
	Status         string `gorm:"index"`
	FailType       string
	EventsJSON     string `gorm:"type:text"`
	StatsJSON      string `gorm:"type:text"`
	RunDurationMs  int64
	TestDurationMs *int64
	Console        *string    `gorm:"type:text"`
	CompletedAt    *time.Time `gorm:"index:idx_run_records_routine_completed"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (runRecordRow) TableName() string { return "run_records" }

func newRunRecordRow(r *models.RunRecord) (*runRecordRow, error) {
	events, err := json.Marshal(r.Events)
	if err != nil {
		return nil, fmt.Errorf("encoding events: %w", err)
	}

	row := &runRecordRow{
		ID:             r.ID,
		ProjectID:      r.ProjectID,
		RunID:          r.RunID,
		RoutineID:      r.RoutineID,
		Type:           string(r.Type),
		Status:         string(r.Status),
		FailType:       string(r.FailType),
		EventsJSON:     string(events),
		RunDurationMs:  r.RunDurationMs,
		TestDurationMs: r.TestDurationMs,
		Console:        r.Console,
		CompletedAt:    r.CompletedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}

	if r.Stats != nil {
		stats, err := json.Marshal(r.Stats)
		if err != nil {
			return nil, fmt.Errorf("encoding stats: %w", err)
		}

		row.StatsJSON = string(stats)
	}

	return row, nil
}

func (row *runRecordRow) model() (*models.RunRecord, error) {
	r := &models.RunRecord{
		ID:             row.ID,
		ProjectID:      row.ProjectID,
		RunID:          row.RunID,
		RoutineID:      row.RoutineID,
		Type:           models.RunType(row.Type),
		Status:         models.RunStatus(row.Status),
		FailType:       models.RunFailType(row.FailType),
		RunDurationMs:  row.RunDurationMs,
		TestDurationMs: row.TestDurationMs,
		Console:        row.Console,
		CompletedAt:    row.CompletedAt,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}

	if row.EventsJSON != "" {
		if err := json.Unmarshal([]byte(row.EventsJSON), &r.Events); err != nil {
			return nil, fmt.Errorf("decoding events of %s: %w", row.ID, err)
		}
	}

	if row.StatsJSON != "" {
		r.Stats = &models.RunStats{}
		if err := json.Unmarshal([]byte(row.StatsJSON), r.Stats); err != nil {
			return nil, fmt.Errorf("decoding stats of %s: %w", row.ID, err)
		}
	}

	r.Normalize()

	return r, nil
}

// UpsertRunRecord inserts or replaces a run record keyed by its id.
func (s *store) UpsertRunRecord(ctx context.Context, record *models.RunRecord) error {
	row, err := newRunRecordRow(record)
	if err != nil {
		return err
	}

	if err := s.upsert(ctx, row); err != nil {
		return fmt.Errorf("upserting run record: %w", err)
	}

	return nil
}

// GetRunRecord returns the run record with the given id.
func (s *store) GetRunRecord(ctx context.Context, id string) (*models.RunRecord, error) {
	var row runRecordRow
	if err := s.first(ctx, &row, id); err != nil {
		return nil, fmt.Errorf("getting run record %s: %w", id, err)
	}

	return row.model()
}

// ListRunRecords returns a page of a routine's completed run records,
// ordered by completion time.
func (s *store) ListRunRecords(
	ctx context.Context, routineID string,
	filter models.DateFilter, page models.Pagination,
) ([]*models.RunRecord, error) {
	q := s.db.WithContext(ctx).
		Where("routine_id = ? AND completed_at IS NOT NULL", routineID)

	var rows []runRecordRow
	if err := dateRange(q, "completed_at", filter).
		Order("completed_at ASC").
		Offset(page.Start).
		Limit(page.Limit()).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing run records: %w", err)
	}

	records := make([]*models.RunRecord, 0, len(rows))

	for i := range rows {
		r, err := rows[i].model()
		if err != nil {
			return nil, err
		}

		records = append(records, r)
	}

	return records, nil
}
