package models

import (
	"strings"
	"time"

	"github.com/ethpandaops/uptimeoor/pkg/idgen"
)

const (
	// DefaultIntervalMinutes is how often a routine runs when unset.
	DefaultIntervalMinutes = 5

	// DefaultTimeoutMs bounds a routine's execution when unset.
	DefaultTimeoutMs = 60_000
)

// Routine is a scheduled test suite belonging to a project.
type Routine struct {
	ID              string       `json:"id" yaml:"id" validate:"required,startswith=rt-"`
	ProjectID       string       `json:"projectId" yaml:"projectId" validate:"required"`
	Name            string       `json:"name" yaml:"name" validate:"required,max=100"`
	IntervalMinutes int          `json:"intervalMinutes" yaml:"intervalMinutes" validate:"min=1,max=1440"`
	TimeoutMs       int64        `json:"timeoutMs" yaml:"timeoutMs" validate:"min=1000,max=600000"`
	Enabled         bool         `json:"enabled" yaml:"enabled"`
	Locations       []string     `json:"locations" yaml:"locations" validate:"dive,required,max=64"`
	PackageFileID   string       `json:"packageFileId,omitempty" yaml:"packageFileId,omitempty" validate:"omitempty,startswith=pf-"`
	BucketSizes     []BucketSize `json:"bucketSizes" yaml:"bucketSizes" validate:"min=1,unique,dive,oneof=min5 hour day week month"`
	CreatedAt       time.Time    `json:"createdAt" yaml:"createdAt" validate:"required"`
	UpdatedAt       time.Time    `json:"updatedAt" yaml:"updatedAt" validate:"required"`
}

var _ Entity = (*Routine)(nil)

// NewRoutine creates a routine, assigning an id when missing.
func NewRoutine(in Routine, now time.Time) (*Routine, error) {
	r := in
	if strings.TrimSpace(r.ID) == "" {
		r.ID = idgen.New(idgen.PrefixRoutine)
	}

	stamp(&r.CreatedAt, &r.UpdatedAt, now)
	r.Normalize()

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return &r, nil
}

// Normalize implements Entity.
func (r *Routine) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.ProjectID = strings.TrimSpace(r.ProjectID)
	r.Name = strings.TrimSpace(r.Name)
	r.PackageFileID = strings.TrimSpace(r.PackageFileID)
	r.Locations = trimAll(r.Locations)

	if r.Locations == nil {
		r.Locations = []string{}
	}

	if r.IntervalMinutes == 0 {
		r.IntervalMinutes = DefaultIntervalMinutes
	}

	if r.TimeoutMs == 0 {
		r.TimeoutMs = DefaultTimeoutMs
	}

	if len(r.BucketSizes) == 0 {
		r.BucketSizes = append([]BucketSize(nil), AllBucketSizes...)
	}

	r.CreatedAt = normalizeTime(r.CreatedAt)
	r.UpdatedAt = normalizeTime(r.UpdatedAt)
}

// Validate implements Entity.
func (r *Routine) Validate() error {
	return validateStruct(r).orNil()
}
