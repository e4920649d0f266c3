package alert

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"solarwatch/internal/health"
)

// CounterStore persists the consecutive-failure counters between cycles.
// A device with no stored counter counts as zero.
type CounterStore interface {
	LoadCounters() (map[string]int, error)
	SaveCounters(counters map[string]int) error
}

// Gate applies consecutive-failure hysteresis to candidate alerts so a
// single bad cycle does not page anyone. Counters are loaded once per
// Build, mutated in memory, and written back only when they changed.
type Gate struct {
	store               CounterStore
	consecutiveRequired int
	log                 zerolog.Logger
}

func NewGate(store CounterStore, consecutiveRequired int, log zerolog.Logger) *Gate {
	if consecutiveRequired < 1 {
		consecutiveRequired = 1
	}
	return &Gate{
		store:               store,
		consecutiveRequired: consecutiveRequired,
		log:                 log.With().Str("component", "alert-gate").Logger(),
	}
}

// Build updates failure counters from the verdict, builds candidate
// alerts, and drops device-scoped ones that have not failed enough
// consecutive cycles. System- and cloud-scoped alerts and the caller's
// extra messages always pass. A nil health verdict is not an error; the
// gate falls back to mismatch-only and extra-message-only alerts.
func (g *Gate) Build(sys *health.SystemHealth, mismatches []health.OptimizerMismatch, extraMessages []string, now time.Time) ([]Alert, error) {
	counters, err := g.store.LoadCounters()
	if err != nil {
		return nil, fmt.Errorf("load alert counters: %w", err)
	}
	if counters == nil {
		counters = make(map[string]int)
	}

	changed := false
	if sys != nil {
		for _, name := range health.SortedNames(sys.PerInverter) {
			if sys.PerInverter[name].OK {
				if counters[name] != 0 {
					counters[name] = 0
					changed = true
				}
				continue
			}
			counters[name]++
			changed = true
		}
	}

	candidates := Build(sys, mismatches, now)

	var alerts []Alert
	for _, a := range candidates {
		if g.consecutiveRequired > 1 && a.DeviceScoped() && counters[a.InverterName] < g.consecutiveRequired {
			g.log.Debug().
				Str("inverter", a.InverterName).
				Int("count", counters[a.InverterName]).
				Int("required", g.consecutiveRequired).
				Msg("suppressing alert below consecutive-failure threshold")
			continue
		}
		alerts = append(alerts, a)
	}

	for _, msg := range extraMessages {
		alerts = append(alerts, Alert{
			InverterName: ScopeSystem,
			Serial:       ScopeSystem,
			Message:      msg,
			Status:       statusUnknown,
			At:           now,
		})
	}

	if changed {
		if err := g.store.SaveCounters(counters); err != nil {
			return nil, fmt.Errorf("save alert counters: %w", err)
		}
	}

	return alerts, nil
}
