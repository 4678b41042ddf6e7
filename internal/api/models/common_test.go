package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transportco2/transportco2/internal/api/models"
)

func TestNewList_NilBecomesEmpty(t *testing.T) {
	b, err := json.Marshal(models.NewList[string](nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"count":0}`, string(b))
}

func TestTimestamp_RoundTripUTC(t *testing.T) {
	local := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	b, err := json.Marshal(models.Timestamp(local))
	require.NoError(t, err)
	assert.Equal(t, `"2024-05-01T08:00:00Z"`, string(b))

	var back models.Timestamp
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, local.Equal(back.Time()))

	assert.Error(t, json.Unmarshal([]byte(`12`), &back))
}
