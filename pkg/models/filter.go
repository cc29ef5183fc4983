package models

import (
	"fmt"
	"time"
)

// DateFilter restricts a query to an inclusive time range. Either bound may
// be open.
type DateFilter struct {
	Start *time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	End   *time.Time `json:"end,omitempty" yaml:"end,omitempty"`
}

var _ Entity = (*DateFilter)(nil)

// NewDateFilter builds a filter, rejecting start after end.
func NewDateFilter(start, end *time.Time) (DateFilter, error) {
	f := DateFilter{Start: start, End: end}
	f.Normalize()

	if err := f.Validate(); err != nil {
		return DateFilter{}, err
	}

	return f, nil
}

// Contains reports whether t falls inside the filter.
func (f DateFilter) Contains(t time.Time) bool {
	if f.Start != nil && t.Before(*f.Start) {
		return false
	}

	if f.End != nil && t.After(*f.End) {
		return false
	}

	return true
}

// Normalize implements Entity.
func (f *DateFilter) Normalize() {
	f.Start = normalizeTimePtr(f.Start)
	f.End = normalizeTimePtr(f.End)
}

// Validate implements Entity.
func (f *DateFilter) Validate() error {
	if f.Start != nil && f.End != nil && f.Start.After(*f.End) {
		return fmt.Errorf("date filter %s..%s: %w",
			f.Start.Format(ISOFormat), f.End.Format(ISOFormat), ErrInvalidRange)
	}

	return nil
}

const (
	// DefaultPageSize is used when a pagination has no end.
	DefaultPageSize = 50

	// MaxPageSize caps how many items one page may span.
	MaxPageSize = 500
)

// Pagination selects items [Start, End) of an ordered listing.
type Pagination struct {
	Start int `json:"start" yaml:"start" validate:"min=0"`
	End   int `json:"end" yaml:"end" validate:"min=0"`
}

var _ Entity = (*Pagination)(nil)

// NewPagination builds a page, rejecting start after end.
func NewPagination(start, end int) (Pagination, error) {
	p := Pagination{Start: start, End: end}
	p.Normalize()

	if err := p.Validate(); err != nil {
		return Pagination{}, err
	}

	return p, nil
}

// Limit is the number of items the page spans.
func (p Pagination) Limit() int {
	return p.End - p.Start
}

// Normalize implements Entity.
func (p *Pagination) Normalize() {
	if p.End == 0 && p.Start == 0 {
		p.End = DefaultPageSize
	}
}

// Validate implements Entity.
func (p *Pagination) Validate() error {
	if err := validateStruct(p).orNil(); err != nil {
		return err
	}

	if p.Start > p.End {
		return fmt.Errorf("pagination %d..%d: %w", p.Start, p.End, ErrInvalidRange)
	}

	if p.Limit() > MaxPageSize {
		verr := &ValidationError{}
		verr.add("pagination.end", "max", fmt.Sprintf("must be within %d of start", MaxPageSize))

		return verr
	}

	return nil
}
