package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const openMeteoHost = "api.open-meteo.com"

// OpenMeteoClient fetches irradiance and temperature series from the
// open-meteo forecast API.
type OpenMeteoClient struct {
	latitude  float64
	longitude float64
	client    *http.Client
}

func NewOpenMeteoClient(latitude, longitude float64) *OpenMeteoClient {
	return &OpenMeteoClient{
		latitude:  latitude,
		longitude: longitude,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type openMeteoResponse struct {
	Timezone string `json:"timezone"`
	Current  struct {
		Time          string   `json:"time"`
		Temperature2M *float64 `json:"temperature_2m"`
		CloudCover    *float64 `json:"cloud_cover"`
	} `json:"current"`
	Hourly struct {
		Time                   []string   `json:"time"`
		ShortwaveRadiation     []*float64 `json:"shortwave_radiation"`
		DirectNormalIrradiance []*float64 `json:"direct_normal_irradiance"`
		DiffuseRadiation       []*float64 `json:"diffuse_radiation"`
		Temperature2M          []*float64 `json:"temperature_2m"`
		CloudCover             []*float64 `json:"cloud_cover"`
	} `json:"hourly"`
}

// Fetch returns the observation nearest to now.
func (c *OpenMeteoClient) Fetch(ctx context.Context, now time.Time) (*Observation, error) {
	query := url.Values{}
	query.Set("latitude", fmt.Sprintf("%.6f", c.latitude))
	query.Set("longitude", fmt.Sprintf("%.6f", c.longitude))
	query.Set("hourly", "shortwave_radiation,direct_normal_irradiance,diffuse_radiation,temperature_2m,cloud_cover")
	query.Set("current", "temperature_2m,cloud_cover")
	query.Set("timezone", "auto")
	query.Set("forecast_days", "1")

	endpoint := url.URL{
		Scheme:   "https",
		Host:     openMeteoHost,
		Path:     "/v1/forecast",
		RawQuery: query.Encode(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("open-meteo request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open-meteo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("open-meteo bad status: %s", resp.Status)
	}

	var payload openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("open-meteo decode: %w", err)
	}

	loc := time.UTC
	if payload.Timezone != "" {
		if parsed, err := time.LoadLocation(payload.Timezone); err == nil {
			loc = parsed
		}
	}

	idx := nearestIndex(payload.Hourly.Time, now, loc)

	obs := &Observation{
		Timestamp:     now,
		Provider:      "open-meteo",
		TempC:         payload.Current.Temperature2M,
		CloudCoverPct: payload.Current.CloudCover,
	}
	if idx >= 0 {
		obs.GHIWM2 = at(payload.Hourly.ShortwaveRadiation, idx)
		obs.DNIWM2 = at(payload.Hourly.DirectNormalIrradiance, idx)
		obs.DiffuseWM2 = at(payload.Hourly.DiffuseRadiation, idx)
		if obs.TempC == nil {
			obs.TempC = at(payload.Hourly.Temperature2M, idx)
		}
		if obs.CloudCoverPct == nil {
			obs.CloudCoverPct = at(payload.Hourly.CloudCover, idx)
		}
	}

	return obs, nil
}

func at(series []*float64, idx int) *float64 {
	if idx < 0 || idx >= len(series) {
		return nil
	}
	return series[idx]
}

func nearestIndex(times []string, target time.Time, loc *time.Location) int {
	best := -1
	var bestDelta time.Duration

	for i, raw := range times {
		t, err := time.ParseInLocation("2006-01-02T15:04", raw, loc)
		if err != nil {
			if t, err = time.ParseInLocation(time.RFC3339, raw, loc); err != nil {
				continue
			}
		}
		delta := target.Sub(t)
		if delta < 0 {
			delta = -delta
		}
		if best == -1 || delta < bestDelta {
			best = i
			bestDelta = delta
		}
	}

	return best
}
