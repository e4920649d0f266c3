package inverter

import (
	"fmt"
	"time"
)

// SolarEdge SunSpec operating states.
const (
	StatusOff          = 1
	StatusSleeping     = 2
	StatusStarting     = 3
	StatusProducing    = 4
	StatusThrottled    = 5
	StatusShuttingDown = 6
	StatusFault        = 7
	StatusStandby      = 8
)

var statusNames = map[int]string{
	StatusOff:          "Off",
	StatusSleeping:     "Sleeping",
	StatusStarting:     "Starting",
	StatusProducing:    "Producing",
	StatusThrottled:    "Throttled",
	StatusShuttingDown: "Shutting Down",
	StatusFault:        "Fault",
	StatusStandby:      "Standby",
}

// StatusString renders a numeric SunSpec status code for humans.
func StatusString(status int) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", status)
}

// IsTransitional reports whether the status is one of the non-producing
// transitional states that darkness or low sun may legitimately explain.
func IsTransitional(status int) bool {
	return status == StatusSleeping || status == StatusStarting || status == StatusShuttingDown
}

// Snapshot is one inverter's telemetry for a single evaluation cycle.
// Nil telemetry pointers mean the register could not be read; a nil
// *Snapshot in a fleet map means the inverter was unreachable.
type Snapshot struct {
	Name      string    `json:"name"`
	Serial    string    `json:"serial"`
	Model     string    `json:"model"`
	Status    int       `json:"status"`
	PacW      *float64  `json:"pac_w"`
	VdcV      *float64  `json:"vdc_v"`
	IdcA      *float64  `json:"idc_a"`
	TotalWh   *float64  `json:"total_wh"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
