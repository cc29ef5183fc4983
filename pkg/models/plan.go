package models

import (
	"strings"
	"time"

	"github.com/ethpandaops/uptimeoor/pkg/idgen"
)

// PlanInterval is a billing period.
type PlanInterval string

// Billing periods.
const (
	PlanIntervalMonth PlanInterval = "month"
	PlanIntervalYear  PlanInterval = "year"
)

// DefaultCurrency is the ISO-4217 code plans are priced in when unset.
const DefaultCurrency = "usd"

// PlanLimits caps what a project on the plan may use. Zero means the
// feature is not included.
type PlanLimits struct {
	Routines             int            `json:"routines" yaml:"routines" validate:"min=0"`
	RunsPerMonth         int            `json:"runsPerMonth" yaml:"runsPerMonth" validate:"min=0"`
	Members              int            `json:"members" yaml:"members" validate:"min=0"`
	NotificationChannels int            `json:"notificationChannels" yaml:"notificationChannels" validate:"min=0"`
	RetentionDays        int            `json:"retentionDays" yaml:"retentionDays" validate:"min=0"`
	MinIntervalMinutes   int            `json:"minIntervalMinutes" yaml:"minIntervalMinutes" validate:"min=0,max=1440"`
	Windows              []UptimeWindow `json:"windows" yaml:"windows" validate:"dive,oneof=day week month quarter year"`
}

// Plan is a billing plan a project subscribes to.
type Plan struct {
	ID         string       `json:"id" yaml:"id" validate:"required,startswith=pl-"`
	Name       string       `json:"name" yaml:"name" validate:"required,max=64"`
	PriceCents int64        `json:"priceCents" yaml:"priceCents" validate:"min=0"`
	Currency   string       `json:"currency" yaml:"currency" validate:"required,len=3,lowercase"`
	Interval   PlanInterval `json:"interval" yaml:"interval" validate:"required,oneof=month year"`
	Limits     PlanLimits   `json:"limits" yaml:"limits"`
	Active     bool         `json:"active" yaml:"active"`
	CreatedAt  time.Time    `json:"createdAt" yaml:"createdAt" validate:"required"`
	UpdatedAt  time.Time    `json:"updatedAt" yaml:"updatedAt" validate:"required"`
}

var _ Entity = (*Plan)(nil)

// NewPlan creates a plan, assigning an id when missing.
func NewPlan(in Plan, now time.Time) (*Plan, error) {
	p := in
	if strings.TrimSpace(p.ID) == "" {
		p.ID = idgen.New(idgen.PrefixPlan)
	}

	stamp(&p.CreatedAt, &p.UpdatedAt, now)
	p.Normalize()

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// AllowsRoutine reports whether a project with count routines may add one
// more routine running every intervalMinutes.
func (p *Plan) AllowsRoutine(count, intervalMinutes int) bool {
	if count >= p.Limits.Routines {
		return false
	}

	return intervalMinutes >= p.Limits.MinIntervalMinutes
}

// Normalize implements Entity.
func (p *Plan) Normalize() {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.Currency = strings.ToLower(strings.TrimSpace(p.Currency))

	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}

	if p.Interval == "" {
		p.Interval = PlanIntervalMonth
	}

	if p.Limits.Windows == nil {
		p.Limits.Windows = []UptimeWindow{}
	}

	p.CreatedAt = normalizeTime(p.CreatedAt)
	p.UpdatedAt = normalizeTime(p.UpdatedAt)
}

// Validate implements Entity.
func (p *Plan) Validate() error {
	return validateStruct(p).orNil()
}
