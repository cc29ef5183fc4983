package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Entity is implemented by every model. Normalize coerces input into its
// canonical form and Validate checks the declared field constraints.
type Entity interface {
	Normalize()
	Validate() error
}

// Document is the JSON-object form an entity is persisted as. Dates are
// ISO-8601 strings.
type Document map[string]any

// FromJSON decodes, normalizes and validates an entity from its JSON form.
func FromJSON[T any, P interface {
	*T
	Entity
}](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding %T: %w", v, err)
	}

	p := P(&v)
	p.Normalize()

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &v, nil
}

// FromDocument rebuilds an entity from its persisted document.
func FromDocument[T any, P interface {
	*T
	Entity
}](doc Document) (*T, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	return FromJSON[T, P](data)
}

// ForDB converts an entity into its persisted document.
func ForDB(e Entity) (Document, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", e, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %T document: %w", e, err)
	}

	return doc, nil
}

// StringifyForCache renders an entity as cache text.
func StringifyForCache(e Entity) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encoding %T for cache: %w", e, err)
	}

	return string(data), nil
}

// ParseFromCache is FromJSON over cache text.
func ParseFromCache[T any, P interface {
	*T
	Entity
}](text string) (*T, error) {
	return FromJSON[T, P]([]byte(text))
}

// normalizeTime puts t in UTC at millisecond precision.
func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}

	return t.UTC().Truncate(time.Millisecond)
}

func normalizeTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	n := normalizeTime(*t)

	return &n
}

func trimAll(values []string) []string {
	if values == nil {
		return nil
	}

	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}

	return out
}

// stamp fills CreatedAt/UpdatedAt when unset.
func stamp(createdAt, updatedAt *time.Time, now time.Time) {
	now = normalizeTime(now)

	if createdAt.IsZero() {
		*createdAt = now
	}

	if updatedAt.IsZero() {
		*updatedAt = *createdAt
	}
}
