package ranking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transportco2/transportco2/internal/ranking"
)

func TestParseSortKey(t *testing.T) {
	k, ok := ranking.ParseSortKey("")
	require.True(t, ok)
	assert.Equal(t, ranking.DefaultSortKey, k)

	k, ok = ranking.ParseSortKey("NAME")
	require.True(t, ok)
	assert.Equal(t, ranking.SortByName, k)

	_, ok = ranking.ParseSortKey("price")
	assert.False(t, ok)
}

func TestSortOptions(t *testing.T) {
	ranked := ranking.Rank([]ranking.RawOption{
		{Mode: "voiture", CO2: f(100), DistanceKm: f(12), DurationMinutes: f(20)},
		{Mode: "Transport en commun", Label: "Bus", CO2: f(40), DistanceKm: f(13)},
		{Mode: "Vélo", CO2: f(0), DistanceKm: f(11), DurationMinutes: f(45)},
	}).Options

	byName := ranking.SortOptions(ranked, ranking.SortByName)
	assert.Equal(t, []string{"Bus", "voiture", "Vélo"}, names(byName))

	byDistance := ranking.SortOptions(ranked, ranking.SortByDistance)
	assert.Equal(t, []string{"Vélo", "voiture", "Bus"}, names(byDistance))

	byDuration := ranking.SortOptions(ranked, ranking.SortByDuration)
	assert.Equal(t, []string{"voiture", "Vélo", "Bus"}, names(byDuration), "missing durations go last")

	byCO2 := ranking.SortOptions(ranked, ranking.SortByCO2Key)
	assert.Equal(t, names(ranked), names(byCO2))

	// annotations travel with their option
	assert.True(t, byName[0].IsEcoFriendly)
}

func names(options []ranking.RankedOption) []string {
	out := make([]string, len(options))
	for i, o := range options {
		out[i] = o.DisplayName()
	}
	return out
}
