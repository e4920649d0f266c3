package notify

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"solarwatch/config"
	"solarwatch/internal/alert"
)

// Manager coordinates the outbound channels: push notifications for the
// alert content, healthchecks pings for dead-man's-switch monitoring.
type Manager struct {
	pushover     *PushoverNotifier
	healthchecks *HealthchecksNotifier
	log          zerolog.Logger
}

func NewManager(pushoverCfg config.PushoverConfig, hcCfg config.HealthchecksConfig, log zerolog.Logger) *Manager {
	return &Manager{
		pushover:     NewPushoverNotifier(pushoverCfg, log),
		healthchecks: NewHealthchecksNotifier(hcCfg, log),
		log:          log.With().Str("component", "notifier").Logger(),
	}
}

// HandleAlerts dispatches the cycle's final alert list. An empty list is
// a healthy cycle and still pings healthchecks so silence is detectable.
func (m *Manager) HandleAlerts(alerts []alert.Alert) {
	if len(alerts) == 0 {
		m.log.Info().Msg("no alerts; sending healthchecks success ping")
		if err := m.healthchecks.PingSuccess("system ok"); err != nil {
			m.log.Warn().Err(err).Msg("healthchecks success ping failed")
		}
		return
	}

	m.log.Warn().Int("alerts", len(alerts)).Msg("alerts detected; notifying endpoints")

	if err := m.pushover.SendAlerts(alerts); err != nil {
		m.log.Warn().Err(err).Msg("pushover notification failed")
	}

	var parts []string
	for _, a := range alerts {
		parts = append(parts, fmt.Sprintf("%s:%d", a.InverterName, a.Status))
	}
	summary := strings.Join(parts, ", ")
	if summary == "" {
		summary = "alerts present"
	}
	if err := m.healthchecks.PingFailure(summary); err != nil {
		m.log.Warn().Err(err).Msg("healthchecks failure ping failed")
	}
}

// SendSummary pushes the end-of-day production summary.
func (m *Manager) SendSummary(title, body string) error {
	return m.pushover.SendMessage(title, body)
}

// SendTest triggers manual test messages on both channels.
func (m *Manager) SendTest() {
	m.log.Info().Msg("sending test notifications")
	if err := m.pushover.SendTest(); err != nil {
		m.log.Warn().Err(err).Msg("pushover test failed")
	}
	if err := m.healthchecks.SendTest(); err != nil {
		m.log.Warn().Err(err).Msg("healthchecks test failed")
	}
}
