package ranking

import (
	"math"
	"sort"
	"strings"
)

// Rank runs the full pipeline over raw backend options.
func Rank(raw []RawOption) Result {
	options := Normalize(raw)
	if len(options) == 0 {
		return EmptyResult()
	}

	public, others := Partition(options)
	merged := Merge(others, ReduceByLabel(public))
	kept := Dedupe(SortByCO2(merged), DedupeThreshold)

	return Annotate(merged, kept)
}

// Normalize maps raw options into Options. Entries without a usable CO₂
// figure (missing, negative or non-finite) are dropped. When the backend does
// not tag a category, one is derived from the mode and sub-mode names.
func Normalize(raw []RawOption) []Option {
	out := make([]Option, 0, len(raw))
	for _, r := range raw {
		if r.CO2 == nil || !isUsable(*r.CO2) {
			continue
		}

		category, ok := ParseCategory(r.Category)
		if !ok {
			category = Classify(r.Mode, r.SubMode)
		}

		label := strings.TrimSpace(r.Label)
		if label == "" && category == CategoryPublicTransit {
			label = FormatLabel(r.SubMode)
		}

		out = append(out, Option{
			Mode:              strings.TrimSpace(r.Mode),
			SubMode:           r.SubMode,
			Label:             label,
			Category:          category,
			CO2:               *r.CO2,
			DistanceKm:        finiteOrNil(r.DistanceKm),
			DistanceLabel:     FormatDistanceLabel(r.DistanceLabel, r.DistanceKm),
			DurationMinutes:   finiteOrNil(r.DurationMinutes),
			MapsURL:           r.MapsURL,
			EnergyConsumption: finiteOrNil(r.EnergyConsumption),
			EnergyUnit:        r.EnergyUnit,
			EstimatedPrice:    finiteOrNil(r.EstimatedPrice),
		})
	}
	return out
}

// Partition splits options into public transit and everything else,
// preserving order within each side.
func Partition(options []Option) (public, others []Option) {
	for _, o := range options {
		if o.IsPublicTransit() {
			public = append(public, o)
		} else {
			others = append(others, o)
		}
	}
	return public, others
}

// ReduceByLabel keeps the lowest-CO₂ option of each label group. Ties keep
// the first option encountered. Groups are returned in order of first
// appearance. Options without a label are never grouped: each one is kept as
// its own entry.
func ReduceByLabel(public []Option) []Option {
	out := make([]Option, 0, len(public))
	index := make(map[string]int)

	for _, o := range public {
		if o.Label == "" {
			out = append(out, o)
			continue
		}
		i, seen := index[o.Label]
		if !seen {
			index[o.Label] = len(out)
			out = append(out, o)
			continue
		}
		if o.CO2 < out[i].CO2 {
			out[i] = o
		}
	}
	return out
}

// Merge concatenates non-public options with reduced public options.
func Merge(others, reducedPublic []Option) []Option {
	merged := make([]Option, 0, len(others)+len(reducedPublic))
	merged = append(merged, others...)
	return append(merged, reducedPublic...)
}

// SortByCO2 returns a copy of options sorted ascending by CO₂. The sort is
// stable so equal emissions keep their merge order.
func SortByCO2(options []Option) []Option {
	sorted := make([]Option, len(options))
	copy(sorted, options)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CO2 < sorted[j].CO2
	})
	return sorted
}

// Dedupe scans a CO₂-sorted list and drops every option whose emission is
// within threshold (relative) of the last kept option. The first option is
// always kept. A zero baseline cannot express a relative difference, so an
// option following a kept zero-emission option is always kept.
func Dedupe(sorted []Option, threshold float64) []Option {
	if len(sorted) == 0 {
		return []Option{}
	}

	kept := []Option{sorted[0]}
	last := sorted[0].CO2
	for _, o := range sorted[1:] {
		if last == 0 {
			kept = append(kept, o)
			last = o.CO2
			continue
		}
		if math.Abs(o.CO2-last)/last >= threshold {
			kept = append(kept, o)
			last = o.CO2
		}
	}
	return kept
}

// Annotate flags and scores the kept options. maxEmission is taken from the
// merged set so savings stay relative to the worst real option even when it
// was dropped as a near-duplicate.
func Annotate(merged, kept []Option) Result {
	if len(merged) == 0 || len(kept) == 0 {
		return EmptyResult()
	}

	maxEmission := merged[0].CO2
	for _, o := range merged[1:] {
		if o.CO2 > maxEmission {
			maxEmission = o.CO2
		}
	}

	ranked := make([]RankedOption, len(kept))
	ecoAssigned := false
	for i, o := range kept {
		saved := math.Max(maxEmission-o.CO2, 0)
		r := RankedOption{
			Option:  o,
			IsWorst: o.CO2 == maxEmission,
			Saved:   &saved,
		}
		if maxEmission > 0 {
			pct := roundTo(saved/maxEmission*100, 1)
			r.SavedPercent = &pct
		}
		if !ecoAssigned && o.CO2 > 0 {
			r.IsEcoFriendly = true
			ecoAssigned = true
		}
		ranked[i] = r
	}

	return Result{
		Options:     ranked,
		MaxEmission: &maxEmission,
	}
}

func isUsable(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func finiteOrNil(v *float64) *float64 {
	if v == nil || math.IsInf(*v, 0) || math.IsNaN(*v) {
		return nil
	}
	f := *v
	return &f
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
