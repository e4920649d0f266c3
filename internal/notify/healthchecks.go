package notify

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"solarwatch/config"
)

// HealthchecksNotifier pings a healthchecks.io style endpoint: the bare
// URL on success, its /fail sibling when alerts are present.
type HealthchecksNotifier struct {
	cfg    config.HealthchecksConfig
	client *http.Client
	log    zerolog.Logger
}

func NewHealthchecksNotifier(cfg config.HealthchecksConfig, log zerolog.Logger) *HealthchecksNotifier {
	return &HealthchecksNotifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.With().Str("component", "healthchecks").Logger(),
	}
}

func (n *HealthchecksNotifier) Enabled() bool {
	return n.cfg.Enabled
}

func (n *HealthchecksNotifier) PingSuccess(body string) error {
	return n.ping(n.cfg.PingURL, body)
}

func (n *HealthchecksNotifier) PingFailure(body string) error {
	return n.ping(strings.TrimRight(n.cfg.PingURL, "/")+"/fail", body)
}

func (n *HealthchecksNotifier) SendTest() error {
	return n.PingSuccess("solarwatch test ping")
}

func (n *HealthchecksNotifier) ping(url, body string) error {
	if !n.cfg.Enabled || n.cfg.PingURL == "" {
		return nil
	}

	resp, err := n.client.Post(url, "text/plain", strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("healthchecks ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("healthchecks bad status: %s", resp.Status)
	}

	n.log.Debug().Str("url", url).Msg("healthchecks ping sent")
	return nil
}
