package weather

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarwatch/internal/inverter"
)

func f(v float64) *float64 { return &v }

func TestPOAIrradianceNoonSouthFacing(t *testing.T) {
	obs := &Observation{
		GHIWM2:          f(800),
		DNIWM2:          f(700),
		DiffuseWM2:      f(100),
		SunElevationDeg: f(45),
		SunAzimuthDeg:   f(180),
	}

	poa := poaIrradiance(obs, 30, 180, 0.2)

	require.NotNil(t, poa)
	// Beam on a 30 deg south-facing plane at 45 deg elevation, sun due
	// south: cosInc = sin45*cos30 + cos45*sin30 = 0.966.
	assert.InDelta(t, 700*0.966+100*(1+0.866)/2+800*0.2*(1-0.866)/2, *poa, 2.0)
}

func TestPOAIrradianceSunBelowHorizonIsZero(t *testing.T) {
	obs := &Observation{
		GHIWM2:          f(5),
		DiffuseWM2:      f(5),
		SunElevationDeg: f(-3),
		SunAzimuthDeg:   f(90),
	}

	poa := poaIrradiance(obs, 30, 180, 0.2)

	require.NotNil(t, poa)
	assert.Equal(t, 0.0, *poa)
}

func TestPOAIrradianceMissingInputs(t *testing.T) {
	assert.Nil(t, poaIrradiance(&Observation{}, 30, 180, 0.2))

	obs := &Observation{
		SunElevationDeg: f(45),
		SunAzimuthDeg:   f(180),
	}
	assert.Nil(t, poaIrradiance(obs, 30, 180, 0.2))
}

func TestSuppressionMarksWeatherConsistentReadings(t *testing.T) {
	est := &Estimate{
		PerInverter: map[string]Expectation{
			"A": {Name: "A", ExpectedACW: f(1000)},
			"B": {Name: "B", ExpectedACW: f(1000)},
			"C": {Name: "C", ExpectedACW: f(0)},
			"D": {Name: "D"},
		},
	}
	readings := map[string]*inverter.Snapshot{
		"A": {Name: "A", PacW: f(600)}, // above 0.5 * 1000
		"B": {Name: "B", PacW: f(100)}, // well below expectation
		"C": {Name: "C", PacW: f(0)},   // nothing expected, nothing owed
		"D": {Name: "D", PacW: f(0)},   // no expectation computed
		"E": nil,
	}

	suppression := est.Suppression(readings, 0.5)

	assert.True(t, suppression["A"])
	assert.False(t, suppression["B"])
	assert.True(t, suppression["C"])
	assert.False(t, suppression["D"])
	assert.False(t, suppression["E"])
}

func TestFinite(t *testing.T) {
	assert.NotNil(t, finite(1.5))
	assert.Nil(t, finite(math.NaN()))
	assert.Nil(t, finite(math.Inf(1)))
}
