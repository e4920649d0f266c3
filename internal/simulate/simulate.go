package simulate

import (
	"time"

	"github.com/rs/zerolog"

	"solarwatch/config"
	"solarwatch/internal/inverter"
)

// values is one fully merged scenario: the base maps with the active
// scenario's entries layered on top, key by key.
type values struct {
	status     map[string]int
	pacW       map[string]float64
	vdcV       map[string]float64
	idcA       map[string]float64
	totalWh    map[string]float64
	serial     map[string]string
	model      map[string]string
	optimizers map[string]int
}

func merge(cfg config.SimulationConfig) values {
	base := cfg.Base
	scenario := cfg.Scenarios[cfg.Scenario]

	return values{
		status:     mergeMaps(base.Status, scenario.Status),
		pacW:       mergeMaps(base.PacW, scenario.PacW),
		vdcV:       mergeMaps(base.VdcV, scenario.VdcV),
		idcA:       mergeMaps(base.IdcA, scenario.IdcA),
		totalWh:    mergeMaps(base.TotalWh, scenario.TotalWh),
		serial:     mergeMaps(base.Serial, scenario.Serial),
		model:      mergeMaps(base.Model, scenario.Model),
		optimizers: mergeMaps(base.Optimizers, scenario.Optimizers),
	}
}

func mergeMaps[V any](base, override map[string]V) map[string]V {
	out := make(map[string]V, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Reader produces Modbus-shaped snapshots from scenario config instead
// of the wire, so the whole pipeline runs without hardware.
type Reader struct {
	names []string
	vals  values
	log   zerolog.Logger
}

func NewReader(cfg config.SimulationConfig, names []string, log zerolog.Logger) *Reader {
	return &Reader{
		names: names,
		vals:  merge(cfg),
		log:   log.With().Str("component", "simulation-reader").Str("scenario", cfg.Scenario).Logger(),
	}
}

// ReadAll returns one snapshot per fleet inverter. Values the scenario
// does not mention default to zero, the same shape a dead panel reads.
func (r *Reader) ReadAll() map[string]*inverter.Snapshot {
	now := time.Now().UTC()
	out := make(map[string]*inverter.Snapshot, len(r.names))

	for _, name := range r.names {
		serial := r.vals.serial[name]
		if serial == "" {
			serial = name
		}
		model := r.vals.model[name]
		if model == "" {
			model = "SIM"
		}

		pac := r.vals.pacW[name]
		vdc := r.vals.vdcV[name]
		idc := r.vals.idcA[name]
		total := r.vals.totalWh[name]

		snap := &inverter.Snapshot{
			Name:      name,
			Serial:    serial,
			Model:     model,
			Status:    r.vals.status[name],
			PacW:      &pac,
			VdcV:      &vdc,
			IdcA:      &idc,
			TotalWh:   &total,
			Timestamp: now,
		}
		r.log.Debug().
			Str("inverter", name).
			Int("status", snap.Status).
			Float64("pac_w", pac).
			Msg("synthetic snapshot")
		out[name] = snap
	}

	return out
}
