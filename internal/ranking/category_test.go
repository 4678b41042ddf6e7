package ranking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/transportco2/transportco2/internal/ranking"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		mode    string
		subMode string
		want    ranking.Category
	}{
		{"Voiture", "", ranking.CategoryCar},
		{"Voiture thermique", "", ranking.CategoryCar},
		{"VOITURE ÉLECTRIQUE", "", ranking.CategoryElectricCar},
		{"Taxi", "", ranking.CategoryTaxi},
		{"Marche", "", ranking.CategoryWalking},
		{"À pied", "", ranking.CategoryWalking},
		{"Piéton", "", ranking.CategoryWalking},
		{"Vélo", "", ranking.CategoryBicycle},
		{"bicycling", "", ranking.CategoryBicycle},
		{"Transport en commun", "", ranking.CategoryPublicTransit},
		{"Transport en commun", "bus", ranking.CategoryPublicTransit},
		{"", "subway", ranking.CategoryPublicTransit},
		{"Train", "", ranking.CategoryTrain},
		{"TGV", "", ranking.CategoryTrain},
		{"Avion", "", ranking.CategoryPlane},
		{"Trottinette", "", ranking.CategoryOther},
		{"", "", ranking.CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.mode+"/"+tt.subMode, func(t *testing.T) {
			assert.Equal(t, tt.want, ranking.Classify(tt.mode, tt.subMode))
		})
	}
}

func TestClassify_DoesNotMatchPartialWords(t *testing.T) {
	// "intercommunal" contains "commun" but is not a public transit mode name.
	assert.Equal(t, ranking.CategoryOther, ranking.Classify("Intercommunal", ""))
	assert.Equal(t, ranking.CategoryCar, ranking.Classify("Thermique", ""))
}

func TestParseCategory(t *testing.T) {
	c, ok := ranking.ParseCategory(" Public_Transit ")
	assert.True(t, ok)
	assert.Equal(t, ranking.CategoryPublicTransit, c)

	_, ok = ranking.ParseCategory("hovercraft")
	assert.False(t, ok)

	_, ok = ranking.ParseCategory("")
	assert.False(t, ok)
}

func TestNormalize_BackendCategoryWins(t *testing.T) {
	options := ranking.Normalize([]ranking.RawOption{
		{Mode: "Voiture", Category: "public_transit", CO2: f(10)},
	})

	assert.Equal(t, ranking.CategoryPublicTransit, options[0].Category)
}

func TestFormatLabel(t *testing.T) {
	tests := map[string]string{
		"bus":              "Bus",
		"SUBWAY":           "Metro",
		"metro":            "Metro",
		"tram":             "Tram",
		"train":            "TER",
		"heavy_rail":       "TER",
		"high_speed_train": "TGV",
		"ferry":            "Ferry",
		"cable_car":        "Cable car",
		"":                 "",
	}

	for in, want := range tests {
		assert.Equal(t, want, ranking.FormatLabel(in), in)
	}
}

func TestNormalize_LabelFromSubMode(t *testing.T) {
	options := ranking.Normalize([]ranking.RawOption{
		{Mode: "Transport en commun", SubMode: "subway", CO2: f(12)},
		{Mode: "Voiture", SubMode: "bus", CO2: f(90)},
	})

	assert.Equal(t, "Metro", options[0].Label)
	assert.Empty(t, options[1].Label)
}
