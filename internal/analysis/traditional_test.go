package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTraditionalEstimateZeroIncome(t *testing.T) {
	rec, prob, risk := TraditionalEstimate(0, 500)
	require.Zero(t, rec)
	require.Equal(t, 20.0, prob)
	require.Equal(t, 80.0, risk)
}

func TestTraditionalEstimateTiers(t *testing.T) {
	tests := []struct {
		name     string
		income   float64
		expenses float64
		wantProb float64
		wantRisk float64
	}{
		{"comfortable saver", 10000, 7000, 90, 10},
		{"moderate saver", 10000, 8500, 70, 30},
		{"thin margin", 10000, 9500, 50, 50},
		{"breaking even", 10000, 10000, 20, 80},
		{"overspending", 10000, 12000, 20, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, prob, risk := TraditionalEstimate(tt.income, tt.expenses)
			require.Equal(t, tt.wantProb, prob)
			require.Equal(t, tt.wantRisk, risk)
		})
	}
}

func TestTraditionalEstimateRecommendation(t *testing.T) {
	// Healthy surplus: 20% of income wins.
	rec, _, _ := TraditionalEstimate(10000, 5000)
	require.Equal(t, 2000.0, rec)

	// Thin surplus: 90% of the surplus caps the recommendation.
	rec, _, _ = TraditionalEstimate(10000, 9000)
	require.InDelta(t, 900.0, rec, 1e-9)

	// Deficit: nothing to recommend.
	rec, _, _ = TraditionalEstimate(10000, 12000)
	require.Zero(t, rec)
}
