package models

import (
	"strings"
	"time"

	"github.com/ethpandaops/uptimeoor/pkg/idgen"
)

// RunType is how a run was triggered.
type RunType string

// Run types.
const (
	RunTypeManual    RunType = "manual"
	RunTypeScheduled RunType = "scheduled"
)

// Run is a single dispatched execution of a routine's test suite.
type Run struct {
	ID        string    `json:"id" yaml:"id" validate:"required,startswith=rn-"`
	ProjectID string    `json:"projectId" yaml:"projectId" validate:"required"`
	RoutineID string    `json:"routineId" yaml:"routineId" validate:"required"`
	Type      RunType   `json:"type" yaml:"type" validate:"required,oneof=manual scheduled"`
	Location  string    `json:"location,omitempty" yaml:"location,omitempty" validate:"omitempty,max=64"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt" validate:"required"`
}

var _ Entity = (*Run)(nil)

// NewRun creates a run for a routine, assigning an id when missing.
func NewRun(in Run, now time.Time) (*Run, error) {
	r := in
	if strings.TrimSpace(r.ID) == "" {
		r.ID = idgen.New(idgen.PrefixRun)
	}

	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}

	r.Normalize()

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return &r, nil
}

// Normalize implements Entity.
func (r *Run) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.ProjectID = strings.TrimSpace(r.ProjectID)
	r.RoutineID = strings.TrimSpace(r.RoutineID)
	r.Location = strings.TrimSpace(r.Location)

	if r.Type == "" {
		r.Type = RunTypeScheduled
	}

	r.CreatedAt = normalizeTime(r.CreatedAt)
}

// Validate implements Entity.
func (r *Run) Validate() error {
	return validateStruct(r).orNil()
}
