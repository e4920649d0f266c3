package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarwatch/internal/health"
	"solarwatch/internal/inverter"
)

func TestBuildFromVerdict(t *testing.T) {
	pac := 12.5
	reading := &inverter.Snapshot{
		Name:   "B",
		Serial: "SN123",
		Status: inverter.StatusProducing,
		PacW:   &pac,
	}
	sys := &health.SystemHealth{
		OK: false,
		PerInverter: map[string]health.InverterHealth{
			"A": {Name: "A", OK: true},
			"B": {Name: "B", OK: false, Kind: health.KindLowPower,
				Reason: "Producing but PAC=12.5 W (<50.0 W threshold)", Reading: reading},
		},
	}
	now := time.Now()

	alerts := Build(sys, nil, now)

	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, "B", a.InverterName)
	assert.Equal(t, "SN123", a.Serial)
	assert.Equal(t, inverter.StatusProducing, a.Status)
	assert.Equal(t, 12.5, *a.PacW)
	assert.Equal(t, now, a.At)
	assert.True(t, a.DeviceScoped())
}

func TestBuildWithoutReading(t *testing.T) {
	sys := &health.SystemHealth{
		OK: false,
		PerInverter: map[string]health.InverterHealth{
			"A": {Name: "A", OK: false, Kind: health.KindOffline, Reason: "No Modbus data (offline?)"},
		},
	}

	alerts := Build(sys, nil, time.Now())

	require.Len(t, alerts, 1)
	assert.Equal(t, "unknown", alerts[0].Serial)
	assert.Equal(t, -1, alerts[0].Status)
	assert.Nil(t, alerts[0].PacW)
}

func TestBuildMismatchOnly(t *testing.T) {
	actual := 7
	mismatches := []health.OptimizerMismatch{{Name: "A", Expected: 8, Actual: &actual}}

	alerts := Build(nil, mismatches, time.Now())

	require.Len(t, alerts, 1)
	assert.Equal(t, ScopeCloud, alerts[0].InverterName)
	assert.Equal(t, "A: Optimizer count mismatch (expected 8, cloud=7)", alerts[0].Message)
	assert.False(t, alerts[0].DeviceScoped())
}

func TestBuildSystemFallback(t *testing.T) {
	sys := &health.SystemHealth{
		OK:          false,
		PerInverter: map[string]health.InverterHealth{"A": {Name: "A", OK: true}},
		Reason:      "",
	}

	alerts := Build(sys, nil, time.Now())

	require.Len(t, alerts, 1)
	assert.Equal(t, ScopeSystem, alerts[0].InverterName)
	assert.Equal(t, "System health failure", alerts[0].Message)
}

func TestBuildHealthyVerdictYieldsNoAlerts(t *testing.T) {
	sys := &health.SystemHealth{
		OK:          true,
		PerInverter: map[string]health.InverterHealth{"A": {Name: "A", OK: true}},
	}

	assert.Empty(t, Build(sys, nil, time.Now()))
}
