// Package ranking turns the raw transport options returned by the CO₂ backend
// into a ranked, deduplicated and annotated comparison.
//
// The pipeline is pure and synchronous: normalize, partition public transit
// from everything else, keep the cheapest public option per label, merge and
// sort by emissions, drop near-duplicate emission values, then annotate each
// survivor with eco-friendly, worst and savings information.
package ranking

// DedupeThreshold is the minimum relative CO₂ difference between two
// consecutive ranked options for both to be kept.
const DedupeThreshold = 0.01

// RawOption is a transport option as returned by the CO₂ backend.
type RawOption struct {
	Mode              string   `json:"mode"`
	SubMode           string   `json:"subMode,omitempty"`
	Label             string   `json:"label,omitempty"`
	Category          string   `json:"category,omitempty"`
	CO2               *float64 `json:"co2"`
	DistanceKm        *float64 `json:"distanceKm,omitempty"`
	DistanceLabel     string   `json:"distanceLabel,omitempty"`
	DurationMinutes   *float64 `json:"durationMinutes,omitempty"`
	MapsURL           string   `json:"mapsUrl,omitempty"`
	EnergyConsumption *float64 `json:"consommationEnergie,omitempty"`
	EnergyUnit        string   `json:"unite,omitempty"`
	EstimatedPrice    *float64 `json:"prixEstime,omitempty"`
}

// Option is a normalized transport option.
type Option struct {
	Mode              string   `json:"mode"`
	SubMode           string   `json:"subMode,omitempty"`
	Label             string   `json:"label,omitempty"`
	Category          Category `json:"category"`
	CO2               float64  `json:"co2"`
	DistanceKm        *float64 `json:"distanceKm,omitempty"`
	DistanceLabel     string   `json:"distanceLabel,omitempty"`
	DurationMinutes   *float64 `json:"durationMinutes,omitempty"`
	MapsURL           string   `json:"mapsUrl,omitempty"`
	EnergyConsumption *float64 `json:"energyConsumption,omitempty"`
	EnergyUnit        string   `json:"energyUnit,omitempty"`
	EstimatedPrice    *float64 `json:"estimatedPrice,omitempty"`
}

// IsPublicTransit reports whether the option belongs to the public transit
// partition.
func (o Option) IsPublicTransit() bool {
	return o.Category == CategoryPublicTransit
}

// DisplayName returns the label when present, otherwise the mode.
func (o Option) DisplayName() string {
	if o.Label != "" {
		return o.Label
	}
	return o.Mode
}

// RankedOption is an option annotated with its position in the comparison.
type RankedOption struct {
	Option
	IsEcoFriendly bool `json:"isEcoFriendly"`
	IsWorst       bool `json:"isWorst"`
	// Saved is the CO₂ saved relative to the worst option, in grams.
	Saved *float64 `json:"saved,omitempty"`
	// SavedPercent is Saved as a percentage of the worst option, rounded to
	// one decimal. Nil when the worst option emits nothing.
	SavedPercent *float64 `json:"savedPercent,omitempty"`
}

// Result is the outcome of ranking one set of options.
type Result struct {
	Options []RankedOption `json:"options"`
	// MaxEmission is the largest CO₂ value of the merged set before
	// deduplication. Nil when there are no options.
	MaxEmission *float64 `json:"maxEmission,omitempty"`
	// Empty is true when there was nothing to rank.
	Empty bool `json:"empty"`
}

// EmptyResult returns the typed no-data result.
func EmptyResult() Result {
	return Result{Options: []RankedOption{}, Empty: true}
}

// EcoFriendly returns the eco-friendly option, if any.
func (r Result) EcoFriendly() (RankedOption, bool) {
	for _, o := range r.Options {
		if o.IsEcoFriendly {
			return o, true
		}
	}
	return RankedOption{}, false
}
