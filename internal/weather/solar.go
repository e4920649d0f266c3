package weather

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/sixdouglas/suncalc"

	"solarwatch/config"
	"solarwatch/internal/inverter"
)

// Estimator turns a weather observation into the environmental signals
// the health evaluator consumes: a dark-irradiance flag, the sun
// elevation, and per-inverter expected AC power.
type Estimator struct {
	cfg       config.WeatherConfig
	inverters []config.InverterConfig
	latitude  float64
	longitude float64
	client    *OpenMeteoClient
	log       zerolog.Logger
}

func NewEstimator(cfg config.WeatherConfig, daylight config.DaylightConfig, inverters []config.InverterConfig, log zerolog.Logger) *Estimator {
	return &Estimator{
		cfg:       cfg,
		inverters: inverters,
		latitude:  daylight.Latitude,
		longitude: daylight.Longitude,
		client:    NewOpenMeteoClient(daylight.Latitude, daylight.Longitude),
		log:       log.With().Str("component", "weather-estimator").Logger(),
	}
}

func (e *Estimator) Enabled() bool {
	return e.cfg.Enabled
}

// Estimate fetches the current observation and models each inverter's
// expected output. A fetch failure returns an error; the caller runs the
// cycle without environmental context in that case.
func (e *Estimator) Estimate(ctx context.Context, now time.Time) (*Estimate, error) {
	obs, err := e.client.Fetch(ctx, now)
	if err != nil {
		return nil, err
	}

	pos := suncalc.GetPosition(now, e.latitude, e.longitude)
	sunEl := finite(pos.Altitude * 180.0 / math.Pi)
	// suncalc azimuth is measured from south; normalize to compass degrees.
	sunAz := finite(pos.Azimuth*180.0/math.Pi + 180.0)
	obs.SunElevationDeg = sunEl
	obs.SunAzimuthDeg = sunAz

	dark := false
	if sunEl != nil && *sunEl <= 0 {
		dark = true
	}
	if obs.GHIWM2 != nil && *obs.GHIWM2 < e.cfg.DarkGHIFloorWM2 {
		dark = true
	}

	per := make(map[string]Expectation, len(e.inverters))
	for _, inv := range e.inverters {
		per[inv.Name] = e.expectation(inv, obs)
	}

	return &Estimate{
		Observation:     *obs,
		PerInverter:     per,
		DarkIrradiance:  dark,
		SunElevationDeg: sunEl,
	}, nil
}

func (e *Estimator) expectation(inv config.InverterConfig, obs *Observation) Expectation {
	out := Expectation{Name: inv.Name}

	tilt := e.cfg.TiltDeg
	if inv.TiltDeg != 0 {
		tilt = inv.TiltDeg
	}
	azimuth := e.cfg.AzimuthDeg
	if inv.AzimuthDeg != 0 {
		azimuth = inv.AzimuthDeg
	}

	poa := poaIrradiance(obs, tilt, azimuth, e.cfg.Albedo)
	out.POAWM2 = poa

	if poa == nil || obs.TempC == nil || inv.CapacityKW <= 0 {
		return out
	}

	moduleTemp := *obs.TempC + (*poa/800.0)*(e.cfg.NOCTC-20.0)
	factor := 1 + e.cfg.TempCoeffPerC*(moduleTemp-25.0)
	factor = math.Max(0.75, math.Min(1.0, factor))

	acW := inv.CapacityKW * 1000.0 * (*poa / 1000.0) * factor * e.cfg.DCACDerate
	acW = math.Min(acW, inv.CapacityKW*1000.0)
	acW = math.Max(acW, 0)
	out.ExpectedACW = &acW

	return out
}

// poaIrradiance is a plane-of-array estimate: beam on the tilted plane
// plus isotropic diffuse plus ground reflection. Sun below the horizon
// means dark, not twilight-diffuse production.
func poaIrradiance(obs *Observation, tiltDeg, azimuthDeg, albedo float64) *float64 {
	if obs.SunElevationDeg == nil || obs.SunAzimuthDeg == nil {
		return nil
	}
	if *obs.SunElevationDeg <= 0 {
		zero := 0.0
		return &zero
	}
	if obs.DiffuseWM2 == nil || obs.GHIWM2 == nil {
		return nil
	}

	tilt := tiltDeg * math.Pi / 180.0
	panelAz := azimuthDeg * math.Pi / 180.0
	alt := *obs.SunElevationDeg * math.Pi / 180.0
	az := *obs.SunAzimuthDeg * math.Pi / 180.0

	cosInc := math.Sin(alt)*math.Cos(tilt) + math.Cos(alt)*math.Sin(tilt)*math.Cos(az-panelAz)
	if cosInc < 0 {
		cosInc = 0
	}

	dni := 0.0
	if obs.DNIWM2 != nil {
		dni = *obs.DNIWM2
	}

	poa := dni*cosInc +
		*obs.DiffuseWM2*(1+math.Cos(tilt))/2.0 +
		*obs.GHIWM2*albedo*(1-math.Cos(tilt))/2.0
	return finite(poa)
}

// Suppression marks inverters whose measured output is consistent with
// the weather expectation, so a below-threshold reading is the sky's
// fault rather than the inverter's.
func (est *Estimate) Suppression(readings map[string]*inverter.Snapshot, tolerance float64) map[string]bool {
	out := make(map[string]bool, len(readings))
	for name, snap := range readings {
		exp, ok := est.PerInverter[name]
		if !ok || exp.ExpectedACW == nil || snap == nil || snap.PacW == nil {
			continue
		}
		if *exp.ExpectedACW <= 0 || *snap.PacW >= tolerance**exp.ExpectedACW {
			out[name] = true
		}
	}
	return out
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
