// Package idgen produces the identifiers used across uptimeoor entities.
package idgen

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Entity identifier prefixes.
const (
	PrefixBucket              = "bk-"
	PrefixNotificationChannel = "nc-"
	PrefixPackageFile         = "pf-"
	PrefixPlan                = "pl-"
	PrefixProject             = "pj-"
	PrefixRoutine             = "rt-"
	PrefixRun                 = "rn-"
	PrefixRunRecord           = "rs-"
	PrefixTimelineEvent       = "te-"
)

// Hash returns a short, stable, order-sensitive hash of the concatenated parts.
func Hash(parts ...string) string {
	return strconv.FormatUint(xxhash.Sum64String(strings.Join(parts, "")), 36)
}

// Sortable returns a random identifier whose lexical order follows creation
// time.
func Sortable() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does.
		id = uuid.New()
	}

	return strings.ReplaceAll(id.String(), "-", "")
}

// New returns prefix + a sortable random identifier.
func New(prefix string) string {
	return prefix + Sortable()
}

// StripPrefix removes the "xx-" prefix from an identifier. Identifiers
// without a dash are returned unchanged.
func StripPrefix(id string) string {
	if idx := strings.Index(id, "-"); idx >= 0 {
		return id[idx+1:]
	}

	return id
}

// SwapPrefix replaces the prefix of id with prefix.
func SwapPrefix(id, prefix string) string {
	return prefix + StripPrefix(id)
}
