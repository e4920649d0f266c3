package alert

import (
	"time"

	"solarwatch/internal/health"
)

// Sentinel scopes for alerts not tied to a single inverter.
const (
	ScopeSystem = "SYSTEM"
	ScopeCloud  = "CLOUD"
)

// statusUnknown marks alerts built without a usable reading.
const statusUnknown = -1

// Alert is one user-facing alert record. Alerts are rebuilt from scratch
// every cycle and never persisted.
type Alert struct {
	InverterName string    `json:"inverter_name"`
	Serial       string    `json:"serial"`
	Message      string    `json:"message"`
	Status       int       `json:"status"`
	PacW         *float64  `json:"pac_w"`
	At           time.Time `json:"at"`
}

// DeviceScoped reports whether the alert targets a specific inverter.
// Only device-scoped alerts pass through the consecutive-failure gate.
func (a Alert) DeviceScoped() bool {
	return a.InverterName != ScopeSystem && a.InverterName != ScopeCloud
}

// Build converts a health verdict into candidate alerts. With no health
// verdict at all (night-skip cycles), optimizer mismatches alone become
// cloud-scoped alerts.
func Build(sys *health.SystemHealth, mismatches []health.OptimizerMismatch, now time.Time) []Alert {
	if sys == nil {
		var alerts []Alert
		for _, m := range mismatches {
			alerts = append(alerts, Alert{
				InverterName: ScopeCloud,
				Serial:       ScopeCloud,
				Message:      m.Name + ": " + m.Message(),
				Status:       statusUnknown,
				At:           now,
			})
		}
		return alerts
	}

	var alerts []Alert
	for _, name := range health.SortedNames(sys.PerInverter) {
		inv := sys.PerInverter[name]
		if inv.OK {
			continue
		}

		serial := "unknown"
		status := statusUnknown
		var pac *float64
		if inv.Reading != nil {
			serial = inv.Reading.Serial
			status = inv.Reading.Status
			pac = inv.Reading.PacW
		}

		message := inv.Reason
		if message == "" {
			message = "Unknown inverter fault"
		}

		alerts = append(alerts, Alert{
			InverterName: inv.Name,
			Serial:       serial,
			Message:      message,
			Status:       status,
			PacW:         pac,
			At:           now,
		})
	}

	// Defensive fallback: an unhealthy aggregate with no flagged inverter
	// still produces a system-scoped alert.
	if len(alerts) == 0 && !sys.OK {
		message := sys.Reason
		if message == "" {
			message = "System health failure"
		}
		alerts = append(alerts, Alert{
			InverterName: ScopeSystem,
			Serial:       ScopeSystem,
			Message:      message,
			Status:       statusUnknown,
			At:           now,
		})
	}

	return alerts
}
