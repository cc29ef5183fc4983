package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ethpandaops/uptimeoor/pkg/models"
)

// bucketRow is the persisted form of a bucket. Both stats blocks are
// flattened into counter columns so increments can run in SQL.
type bucketRow struct {
	ID               string    `gorm:"primaryKey"`
	Size             string    `gorm:"not null;index:idx_buckets_routine_size_start"`
	RoutineID        string    `gorm:"not null;index:idx_buckets_routine_size_start"`
	ProjectID        string    `gorm:"not null;index"`
	StartAt          time.Time `gorm:"not null;index:idx_buckets_routine_size_start"`
	EndAt            time.Time `gorm:"not null"`
	TestFailures     int
	TestPasses       int
	TestTotal        int
	TestAvailability float64
	RunFailures      int
	RunPasses        int
	RunTotal         int
	RunAvailability  float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (bucketRow) TableName() string { return "buckets" }

func newBucketRow(b *models.Bucket) *bucketRow {
	return &bucketRow{
		ID:               b.ID,
		Size:             string(b.Size),
		RoutineID:        b.RoutineID,
		ProjectID:        b.ProjectID,
		StartAt:          b.Start,
		EndAt:            b.End,
		TestFailures:     b.Tests.Failures,
		TestPasses:       b.Tests.Passes,
		TestTotal:        b.Tests.Total,
		TestAvailability: b.Tests.Availability,
		RunFailures:      b.Runs.Failures,
		RunPasses:        b.Runs.Passes,
		RunTotal:         b.Runs.Total,
		RunAvailability:  b.Runs.Availability,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func (row *bucketRow) model() *models.Bucket {
	b := &models.Bucket{
		ID:        row.ID,
		Size:      models.BucketSize(row.Size),
		Tests:     models.NewBucketStats(row.TestFailures, row.TestPasses),
		Runs:      models.NewBucketStats(row.RunFailures, row.RunPasses),
		RoutineID: row.RoutineID,
		ProjectID: row.ProjectID,
		Start:     row.StartAt,
		End:       row.EndAt,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	b.Normalize()

	return b
}

// GetBucket returns the bucket with the given id.
func (s *store) GetBucket(ctx context.Context, id string) (*models.Bucket, error) {
	var row bucketRow
	if err := s.first(ctx, &row, id); err != nil {
		return nil, fmt.Errorf("getting bucket %s: %w", id, err)
	}

	return row.model(), nil
}

// CreateBucket inserts a new bucket. ErrAlreadyExists is returned when a
// bucket with the same id is already stored; callers should increment it
// instead.
func (s *store) CreateBucket(ctx context.Context, bucket *models.Bucket) error {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(newBucketRow(bucket))
	if result.Error != nil {
		return fmt.Errorf("creating bucket %s: %w", bucket.ID, result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("creating bucket %s: %w", bucket.ID, ErrAlreadyExists)
	}

	return nil
}

// availabilityExpr derives availability from a failures/passes column pair.
func availabilityExpr(failures, passes string) clause.Expr {
	return gorm.Expr(fmt.Sprintf(
		"CASE WHEN %[1]s + %[2]s > 0 THEN %[2]s * 1.0 / (%[1]s + %[2]s) ELSE 0 END",
		failures, passes,
	))
}

// IncrementBucket atomically adds delta to a stored bucket's counters and
// recomputes its totals and availability in the same transaction.
// Concurrent increments of the same bucket never lose updates.
func (s *store) IncrementBucket(
	ctx context.Context, id string, delta models.BucketDelta,
) (*models.Bucket, error) {
	var row bucketRow

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&bucketRow{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"run_failures":  gorm.Expr("run_failures + ?", delta.RunFailures),
				"run_passes":    gorm.Expr("run_passes + ?", delta.RunPasses),
				"test_failures": gorm.Expr("test_failures + ?", delta.TestFailures),
				"test_passes":   gorm.Expr("test_passes + ?", delta.TestPasses),
			})
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Model(&bucketRow{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"run_total":         gorm.Expr("run_failures + run_passes"),
				"run_availability":  availabilityExpr("run_failures", "run_passes"),
				"test_total":        gorm.Expr("test_failures + test_passes"),
				"test_availability": availabilityExpr("test_failures", "test_passes"),
			}).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", id).First(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrNotFound
		}

		return nil, fmt.Errorf("incrementing bucket %s: %w", id, err)
	}

	return row.model(), nil
}

// ListBuckets returns a routine's buckets of one size whose start falls
// inside filter, ordered by start.
func (s *store) ListBuckets(
	ctx context.Context, routineID string,
	size models.BucketSize, filter models.DateFilter,
) ([]*models.Bucket, error) {
	q := s.db.WithContext(ctx).
		Where("routine_id = ? AND size = ?", routineID, string(size))

	var rows []bucketRow
	if err := dateRange(q, "start_at", filter).
		Order("start_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing buckets: %w", err)
	}

	buckets := make([]*models.Bucket, 0, len(rows))
	for i := range rows {
		buckets = append(buckets, rows[i].model())
	}

	return buckets, nil
}
