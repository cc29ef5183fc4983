package models

import (
	"strings"
	"time"

	"github.com/ethpandaops/uptimeoor/pkg/idgen"
)

// DefaultTimezone is used for projects that do not set one.
const DefaultTimezone = "UTC"

// Project groups routines, notification channels and billing under one
// owner.
type Project struct {
	ID        string    `json:"id" yaml:"id" validate:"required,startswith=pj-"`
	Name      string    `json:"name" yaml:"name" validate:"required,max=100"`
	OwnerID   string    `json:"ownerId" yaml:"ownerId" validate:"required"`
	PlanID    string    `json:"planId" yaml:"planId" validate:"required,startswith=pl-"`
	Timezone  string    `json:"timezone" yaml:"timezone" validate:"required,timezone"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt" validate:"required"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt" validate:"required"`
}

var _ Entity = (*Project)(nil)

// NewProject creates a project, assigning an id when missing.
func NewProject(in Project, now time.Time) (*Project, error) {
	p := in
	if strings.TrimSpace(p.ID) == "" {
		p.ID = idgen.New(idgen.PrefixProject)
	}

	stamp(&p.CreatedAt, &p.UpdatedAt, now)
	p.Normalize()

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Normalize implements Entity.
func (p *Project) Normalize() {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.OwnerID = strings.TrimSpace(p.OwnerID)
	p.PlanID = strings.TrimSpace(p.PlanID)
	p.Timezone = strings.TrimSpace(p.Timezone)

	if p.Timezone == "" {
		p.Timezone = DefaultTimezone
	}

	p.CreatedAt = normalizeTime(p.CreatedAt)
	p.UpdatedAt = normalizeTime(p.UpdatedAt)
}

// Validate implements Entity.
func (p *Project) Validate() error {
	return validateStruct(p).orNil()
}
