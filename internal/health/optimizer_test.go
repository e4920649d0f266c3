package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarwatch/config"
	"solarwatch/internal/inverter"
)

func i(v int) *int { return &v }

func TestComputeOptimizerMismatches(t *testing.T) {
	expected := map[string]int{"A": 12, "B": 8, "C": 10}
	actual := map[string]*int{"A": i(12), "B": i(7)}

	mismatches := ComputeOptimizerMismatches(expected, actual)

	require.Len(t, mismatches, 2)
	assert.Equal(t, "B", mismatches[0].Name)
	assert.Equal(t, 8, mismatches[0].Expected)
	assert.Equal(t, 7, *mismatches[0].Actual)
	assert.Equal(t, "C", mismatches[1].Name)
	assert.Nil(t, mismatches[1].Actual)
	assert.Contains(t, mismatches[1].Message(), "cloud=unknown")
}

func TestMismatchesFromCounts(t *testing.T) {
	inverters := []config.InverterConfig{
		{Name: "A", ExpectedOptimizers: 12},
		{Name: "B", ExpectedOptimizers: 0}, // unconfigured, never checked
	}
	serialByName := map[string]string{"A": "sn-a"}
	counts := map[string]*int{"SN-A": i(11)}

	mismatches := MismatchesFromCounts(inverters, serialByName, counts)

	require.Len(t, mismatches, 1)
	assert.Equal(t, "A", mismatches[0].Name)
	assert.Equal(t, 11, *mismatches[0].Actual)
}

func TestApplyOptimizerMismatches(t *testing.T) {
	reading := snap("A", inverter.StatusProducing, f(1500), nil)
	sys := aggregate(map[string]InverterHealth{
		"A": healthy("A", reading),
		"B": unhealthy("B", KindLowPower, "Producing but PAC=10.0 W (<50.0 W threshold)", nil),
	})

	updated := ApplyOptimizerMismatches(sys, []OptimizerMismatch{
		{Name: "A", Expected: 12, Actual: i(11)},
		{Name: "B", Expected: 8, Actual: nil},
	})

	require.False(t, updated.OK)

	a := updated.PerInverter["A"]
	assert.False(t, a.OK)
	assert.Equal(t, KindOptimizerMismatch, a.Kind)
	assert.Equal(t, "Optimizer count mismatch (expected 12, cloud=11)", a.Reason)

	// An already-unhealthy inverter keeps its original kind; the mismatch
	// appends to the reason.
	b := updated.PerInverter["B"]
	assert.Equal(t, KindLowPower, b.Kind)
	assert.Contains(t, b.Reason, "PAC=10.0 W")
	assert.Contains(t, b.Reason, "Optimizer count mismatch")

	// The input verdict is untouched.
	assert.True(t, sys.PerInverter["A"].OK)
}
