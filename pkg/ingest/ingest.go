package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/uptimeoor/pkg/cache"
	"github.com/ethpandaops/uptimeoor/pkg/idgen"
	"github.com/ethpandaops/uptimeoor/pkg/models"
	"github.com/ethpandaops/uptimeoor/pkg/store"
)

// Ingester turns completed test results into run records, bucket counters
// and timeline events.
type Ingester struct {
	log   logrus.FieldLogger
	store store.Store
	cache *cache.Cache
	sizes []models.BucketSize
	now   func() time.Time
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithCache refreshes cached entities after each completion.
func WithCache(c *cache.Cache) Option {
	return func(i *Ingester) { i.cache = c }
}

// WithClock overrides the clock used for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(i *Ingester) { i.now = now }
}

// New creates an Ingester maintaining buckets of the given sizes. No sizes
// means every size.
func New(
	log logrus.FieldLogger,
	st store.Store,
	sizes []models.BucketSize,
	opts ...Option,
) *Ingester {
	if len(sizes) == 0 {
		sizes = models.AllBucketSizes
	}

	i := &Ingester{
		log:   log.WithField("component", "ingest"),
		store: st,
		sizes: sizes,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Result is everything one completion wrote.
type Result struct {
	Record   *models.RunRecord     `json:"record" yaml:"record"`
	Buckets  []*models.Bucket      `json:"buckets" yaml:"buckets"`
	Timeline *models.TimelineEvent `json:"timeline" yaml:"timeline"`
}

// Complete classifies result for run and folds it into storage. The run
// record, its buckets and the timeline are written in one transaction, so
// a failed completion leaves nothing behind and can be retried. A run that
// was already completed is rejected with models.ErrRecordTerminal so its
// outcome is never counted twice.
func (i *Ingester) Complete(
	ctx context.Context, run *models.Run, result *models.TestResult,
) (*Result, error) {
	now := i.now()

	var out *Result

	err := i.store.Transaction(ctx, func(tx store.Store) error {
		record, err := loadRecord(ctx, tx, run, now)
		if err != nil {
			return err
		}

		if err := record.ApplyPatch(models.GetPatchFromResult(result), now); err != nil {
			return err
		}

		if err := record.Validate(); err != nil {
			return fmt.Errorf("classified record %s: %w", record.ID, err)
		}

		if err := tx.UpsertRunRecord(ctx, record); err != nil {
			return err
		}

		buckets, err := i.updateBuckets(ctx, tx, record, now)
		if err != nil {
			return err
		}

		event, err := updateTimeline(ctx, tx, record, now)
		if err != nil {
			return err
		}

		out = &Result{Record: record, Buckets: buckets, Timeline: event}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log := i.log.WithFields(logrus.Fields{
		"record":    out.Record.ID,
		"routine":   out.Record.RoutineID,
		"status":    out.Record.Status,
		"fail_type": out.Record.FailType,
	})

	i.refreshCache(ctx, log, out)

	log.WithField("buckets", len(out.Buckets)).Info("Run completed")

	return out, nil
}

func loadRecord(
	ctx context.Context, st store.Store, run *models.Run, now time.Time,
) (*models.RunRecord, error) {
	id := idgen.SwapPrefix(run.ID, idgen.PrefixRunRecord)

	record, err := st.GetRunRecord(ctx, id)
	if err == nil {
		return record, nil
	}

	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	return models.NewRunRecordFromRun(run, now)
}

// updateBuckets writes the record into one bucket per configured size.
// Each bucket is created seeded with the record, or, when it already
// exists, incremented atomically by the record's delta. Writes run in
// order since a transaction holds a single connection.
func (i *Ingester) updateBuckets(
	ctx context.Context, tx store.Store, record *models.RunRecord, now time.Time,
) ([]*models.Bucket, error) {
	buckets := make([]*models.Bucket, 0, len(i.sizes))
	delta := models.BucketDeltaFromRecord(record)

	for _, size := range i.sizes {
		b, err := models.CreateBucket(record, size, now)
		if err != nil {
			return nil, err
		}

		err = tx.CreateBucket(ctx, b)
		if errors.Is(err, store.ErrAlreadyExists) {
			b, err = tx.IncrementBucket(ctx, b.ID, delta)
		}

		if err != nil {
			return nil, fmt.Errorf("updating %s bucket: %w", size, err)
		}

		buckets = append(buckets, b)
	}

	return buckets, nil
}

// updateTimeline extends the routine's latest event when the record
// continues it, otherwise opens a new one.
func updateTimeline(
	ctx context.Context, tx store.Store, record *models.RunRecord, now time.Time,
) (*models.TimelineEvent, error) {
	event, err := tx.LatestTimelineEvent(ctx, record.RoutineID)

	switch {
	case err == nil && event.Extend(record, now):
	case err == nil || errors.Is(err, store.ErrNotFound):
		event, err = models.NewTimelineEvent(record, now)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := tx.UpsertTimelineEvent(ctx, event); err != nil {
		return nil, err
	}

	return event, nil
}

// refreshCache is best effort; the database stays authoritative.
func (i *Ingester) refreshCache(ctx context.Context, log logrus.FieldLogger, out *Result) {
	if i.cache == nil {
		return
	}

	entities := make(map[string]models.Entity, len(out.Buckets)+2)
	entities[out.Record.ID] = out.Record
	entities[out.Timeline.RoutineID+":timeline"] = out.Timeline

	for _, b := range out.Buckets {
		entities[b.ID] = b
	}

	var g errgroup.Group

	for key, e := range entities {
		g.Go(func() error {
			if err := i.cache.Set(ctx, key, e, 0); err != nil {
				log.WithError(err).WithField("key", key).Warn("Failed to refresh cache")
			}

			return nil
		})
	}

	_ = g.Wait()
}
