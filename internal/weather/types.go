package weather

import "time"

// Observation is one fetched weather/irradiance sample.
type Observation struct {
	Timestamp       time.Time `json:"timestamp"`
	Provider        string    `json:"provider"`
	GHIWM2          *float64  `json:"ghi_wm2"`
	DNIWM2          *float64  `json:"dni_wm2"`
	DiffuseWM2      *float64  `json:"diffuse_wm2"`
	TempC           *float64  `json:"temp_c"`
	CloudCoverPct   *float64  `json:"cloud_cover_pct"`
	SunAzimuthDeg   *float64  `json:"sun_azimuth_deg"`
	SunElevationDeg *float64  `json:"sun_elevation_deg"`
}

// Expectation is the modelled output for one inverter under the
// observed sky. Nil values mean the model lacked an input.
type Expectation struct {
	Name        string   `json:"name"`
	POAWM2      *float64 `json:"poa_wm2"`
	ExpectedACW *float64 `json:"expected_ac_w"`
}

// Estimate bundles the observation, the per-inverter expectations and
// the derived health-evaluator inputs for one cycle.
type Estimate struct {
	Observation     Observation            `json:"observation"`
	PerInverter     map[string]Expectation `json:"per_inverter"`
	DarkIrradiance  bool                   `json:"dark_irradiance"`
	SunElevationDeg *float64               `json:"sun_elevation_deg"`
}
