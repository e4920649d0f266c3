package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"solarwatch/config"
)

// Inverter is one inverter from the cloud inventory.
type Inverter struct {
	Name                string `json:"name"`
	Serial              string `json:"SN"`
	Model               string `json:"model"`
	ConnectedOptimizers *int   `json:"connectedOptimizers"`
}

type inventoryResponse struct {
	Inventory struct {
		Inverters []Inverter `json:"inverters"`
	} `json:"Inventory"`
}

// Client talks to the SolarEdge monitoring API for inventory data,
// primarily per-inverter connected-optimizer counts.
type Client struct {
	cfg    config.CloudConfig
	client *http.Client
	log    zerolog.Logger
}

func NewClient(cfg config.CloudConfig, log zerolog.Logger) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log.With().Str("component", "cloud-client").Logger(),
	}
}

func (c *Client) Enabled() bool {
	return c.cfg.Enabled
}

// FetchInverters returns the site inventory's inverter list.
func (c *Client) FetchInverters(ctx context.Context) ([]Inverter, error) {
	query := url.Values{}
	query.Set("api_key", c.cfg.APIKey)

	endpoint := fmt.Sprintf("%s/site/%s/inventory?%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.SiteID, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("cloud inventory request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloud inventory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cloud inventory bad status: %s", resp.Status)
	}

	var payload inventoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("cloud inventory decode: %w", err)
	}

	c.log.Debug().Int("inverters", len(payload.Inventory.Inverters)).Msg("fetched cloud inventory")
	return payload.Inventory.Inverters, nil
}

// OptimizerCountsBySerial indexes connected-optimizer counts by
// upper-cased serial. Inverters without a count are omitted.
func OptimizerCountsBySerial(inverters []Inverter) map[string]*int {
	counts := make(map[string]*int, len(inverters))
	for _, inv := range inverters {
		if inv.ConnectedOptimizers == nil || inv.Serial == "" {
			continue
		}
		n := *inv.ConnectedOptimizers
		counts[strings.ToUpper(inv.Serial)] = &n
	}
	return counts
}
