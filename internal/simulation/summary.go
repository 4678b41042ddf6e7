package simulation

import (
	"fmt"

	"github.com/transportco2/transportco2/internal/session"
	"github.com/transportco2/transportco2/internal/validation"
)

// Summarize projects the cumulative emissions of trips over days days.
// days == 0 selects DefaultDays.
func Summarize(trips []session.Trip, days int) (*Summary, error) {
	if days == 0 {
		days = DefaultDays
	}
	if days < 1 || days > MaxDays {
		return nil, validation.NewError("days", fmt.Sprintf("must be between 1 and %d", MaxDays), "RANGE")
	}

	out := &Summary{
		Days:      days,
		Trips:     make([]Series, 0, len(trips)),
		Total:     []float64{},
		Benchmark: []float64{},
	}
	if len(trips) == 0 {
		return out, nil
	}

	sums := make([]float64, days)
	for _, t := range trips {
		freq := t.Frequency
		if !freq.IsValid() {
			freq = session.FrequencyDaily
		}
		perDay := t.CO2 * Multiplier(freq)

		values := make([]float64, days)
		for d := 1; d <= days; d++ {
			v := perDay * float64(d)
			values[d-1] = round2(v)
			sums[d-1] += v
		}

		label := t.Label
		if label == "" {
			label = t.Mode
		}
		out.Trips = append(out.Trips, Series{
			TripID:       t.ID,
			Label:        label,
			Origin:       t.Origin,
			Destination:  t.Destination,
			Frequency:    freq,
			PerDay:       round2(perDay),
			Values:       values,
			ZeroEmission: t.CO2 == 0,
			Polluting:    t.CO2 > PollutingThreshold,
		})
	}

	out.Total = make([]float64, days)
	out.Benchmark = make([]float64, days)
	n := float64(len(trips))
	for i, s := range sums {
		out.Total[i] = round2(s)
		out.Benchmark[i] = round2(s / n)
	}
	return out, nil
}
