package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		v        float64
		decimals int
		want     Percent
	}{
		{"one decimal", 33.333333, 1, 33.3},
		{"two decimals", 73.17073170731707, 2, 73.17},
		{"binary value below half", 2.675, 2, 2.67},
		{"exact half rounds to even", 0.125, 2, 0.12},
		{"exact half rounds up to even", 0.375, 2, 0.38},
		{"integral", 95, 1, 95},
		{"zero", 0, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Round(tt.v, tt.decimals))
		})
	}
}

func TestShare(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 95.0, Share(95, 100), 1e-12)
	assert.InDelta(t, 73.1707317, Share(60, 82), 1e-6)
	assert.Equal(t, 100.0, Share(7, 7))
}

func TestPercentString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		p    Percent
		want string
	}{
		{95, "95.0"},
		{0, "0.0"},
		{100, "100.0"},
		{73.17, "73.17"},
		{2.5, "2.5"},
		{33.3, "33.3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.p.String())
	}
}

func TestPercentJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(struct {
		P Percent `json:"p"`
	}{P: 95})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"95.0"}`, string(b))

	var got struct {
		A Percent `json:"a"`
		B Percent `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"12.5","b":7.25}`), &got))
	assert.Equal(t, Percent(12.5), got.A)
	assert.Equal(t, Percent(7.25), got.B)

	var bad Percent
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &bad))
}
