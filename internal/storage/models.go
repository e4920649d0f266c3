package storage

import (
	"time"

	"gorm.io/gorm"
)

// AlertCounter holds one inverter's consecutive-failure count between
// evaluation cycles. This is the only state that outlives a cycle.
type AlertCounter struct {
	Name  string `gorm:"primaryKey"`
	Count int
}

// SerialMapping remembers which serial a named inverter answered with,
// so optimizer validation works right after a restart, before the first
// successful Modbus identity read.
type SerialMapping struct {
	Name   string `gorm:"primaryKey"`
	Serial string
}

// HealthRun is one evaluation cycle's aggregate verdict.
type HealthRun struct {
	gorm.Model
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
	SystemOK   bool      `json:"system_ok"`
	Reason     string    `json:"reason"`
	AlertCount int       `json:"alert_count"`
}

// InverterResult is one inverter's verdict and telemetry within a run.
type InverterResult struct {
	gorm.Model
	RunID     uint      `gorm:"index" json:"run_id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	Name      string    `json:"name"`
	Serial    string    `json:"serial"`
	Status    int       `json:"status"`
	OK        bool      `json:"ok"`
	Kind      string    `json:"kind"`
	Reason    string    `json:"reason"`
	PacW      *float64  `json:"pac_w"`
	VdcV      *float64  `json:"vdc_v"`
	IdcA      *float64  `json:"idc_a"`
	TotalWh   *float64  `json:"total_wh"`
}

// AlertEvent is a dispatched alert, kept for the API and audits.
type AlertEvent struct {
	gorm.Model
	Timestamp    time.Time `gorm:"index" json:"timestamp"`
	InverterName string    `json:"inverter_name"`
	Serial       string    `json:"serial"`
	Message      string    `json:"message"`
	Status       int       `json:"status"`
	PacW         *float64  `json:"pac_w"`
}
