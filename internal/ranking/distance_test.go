package ranking_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/transportco2/transportco2/internal/ranking"
)

func TestFormatDistanceLabel(t *testing.T) {
	tests := []struct {
		name       string
		label      string
		distanceKm *float64
		want       string
	}{
		{"legs", "Bus(3,2km)+Tram (2 km)", nil, "Bus (3.2 km) + Tram (2 km)"},
		{"single leg", "  Métro (4.5 km) ", nil, "Métro (4.5 km)"},
		{"plain total kept", "12.50 km", f(12.5), "12.50 km"},
		{"leg without mode", "(7 km)", nil, "7 km"},
		{"empty segments dropped", "Bus (1 km) + ", nil, "Bus (1 km)"},
		{"fallback to distance", "", f(12.345), "12.35 km"},
		{"nothing known", "", nil, ""},
		{"non-finite distance", "", f(math.Inf(1)), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ranking.FormatDistanceLabel(tt.label, tt.distanceKm))
		})
	}
}

func TestNormalize_CarriesDistanceLabel(t *testing.T) {
	options := ranking.Normalize([]ranking.RawOption{
		{Mode: "Transport en commun", SubMode: "bus", CO2: f(40), DistanceLabel: "Bus(3,2km)+Tram(2km)"},
		{Mode: "Voiture", CO2: f(900), DistanceKm: f(8)},
	})

	assert.Equal(t, "Bus (3.2 km) + Tram (2 km)", options[0].DistanceLabel)
	assert.Equal(t, "8.00 km", options[1].DistanceLabel)
}
