package ranking

import (
	"sort"
	"strings"
)

// SortKey selects the presentation order of a ranked result.
type SortKey string

const (
	SortByCO2Key   SortKey = "co2"
	SortByName     SortKey = "name"
	SortByDistance SortKey = "distance"
	SortByDuration SortKey = "duration"
)

// DefaultSortKey keeps the ranked order.
const DefaultSortKey = SortByCO2Key

// ParseSortKey returns the sort key for s. Empty input yields the default key.
func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return DefaultSortKey, true
	case SortByCO2Key, SortByName, SortByDistance, SortByDuration:
		return k, true
	default:
		return "", false
	}
}

// SortOptions reorders ranked options for display without touching their
// annotations. Options missing the sort field go last. SortByCO2Key keeps the
// ranked order.
func SortOptions(options []RankedOption, by SortKey) []RankedOption {
	out := make([]RankedOption, len(options))
	copy(out, options)

	switch by {
	case SortByName:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].DisplayName()) < strings.ToLower(out[j].DisplayName())
		})
	case SortByDistance:
		sort.SliceStable(out, func(i, j int) bool {
			return lessOptional(out[i].DistanceKm, out[j].DistanceKm)
		})
	case SortByDuration:
		sort.SliceStable(out, func(i, j int) bool {
			return lessOptional(out[i].DurationMinutes, out[j].DurationMinutes)
		})
	}
	return out
}

func lessOptional(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}
