package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ethpandaops/uptimeoor/pkg/config"
	"github.com/ethpandaops/uptimeoor/pkg/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a row whose id is taken.
	ErrAlreadyExists = errors.New("already exists")
)

// Store provides persistence for run records, buckets and timeline events.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// Transaction runs fn against a Store bound to one database
	// transaction, committing when fn returns nil and rolling back
	// otherwise. Only the Store passed to fn may be used inside fn.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	UpsertRunRecord(ctx context.Context, record *models.RunRecord) error
	GetRunRecord(ctx context.Context, id string) (*models.RunRecord, error)
	ListRunRecords(
		ctx context.Context, routineID string,
		filter models.DateFilter, page models.Pagination,
	) ([]*models.RunRecord, error)

	GetBucket(ctx context.Context, id string) (*models.Bucket, error)
	CreateBucket(ctx context.Context, bucket *models.Bucket) error
	IncrementBucket(
		ctx context.Context, id string, delta models.BucketDelta,
	) (*models.Bucket, error)
	ListBuckets(
		ctx context.Context, routineID string,
		size models.BucketSize, filter models.DateFilter,
	) ([]*models.Bucket, error)

	UpsertTimelineEvent(ctx context.Context, event *models.TimelineEvent) error
	LatestTimelineEvent(
		ctx context.Context, routineID string,
	) (*models.TimelineEvent, error)
	ListTimelineEvents(
		ctx context.Context, routineID string, filter models.DateFilter,
	) ([]*models.TimelineEvent, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(log logrus.FieldLogger, cfg *config.DatabaseConfig) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dialector = postgres.Open(s.cfg.Postgres.DSN())
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	s.db = db

	if s.cfg.Driver == "sqlite" {
		// SQLite allows a single writer, and every connection to
		// ":memory:" opens a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("getting underlying db: %w", err)
		}

		sqlDB.SetMaxOpenConns(1)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&runRecordRow{},
		&bucketRow{},
		&timelineEventRow{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// Transaction implements Store.
func (s *store) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&store{log: s.log, cfg: s.cfg, db: tx})
	})
}

// upsert inserts row or overwrites every column of the row sharing its id.
func (s *store) upsert(ctx context.Context, row any) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(row).Error
}

// first loads the row with the given id into dest.
func (s *store) first(ctx context.Context, dest any, id string) error {
	err := s.db.WithContext(ctx).Where("id = ?", id).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	return err
}

// dateRange narrows q to rows whose column falls inside filter.
func dateRange(q *gorm.DB, column string, filter models.DateFilter) *gorm.DB {
	if filter.Start != nil {
		q = q.Where(column+" >= ?", *filter.Start)
	}

	if filter.End != nil {
		q = q.Where(column+" <= ?", *filter.End)
	}

	return q
}
