package simulate

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"solarwatch/config"
	"solarwatch/internal/cloud"
)

// Inventory serves cloud-shaped inverter inventory from scenario config,
// standing in for the monitoring API during simulation runs.
type Inventory struct {
	names []string
	vals  values
	log   zerolog.Logger
}

func NewInventory(cfg config.SimulationConfig, names []string, log zerolog.Logger) *Inventory {
	return &Inventory{
		names: names,
		vals:  merge(cfg),
		log:   log.With().Str("component", "simulation-inventory").Str("scenario", cfg.Scenario).Logger(),
	}
}

func (i *Inventory) Enabled() bool {
	return true
}

// FetchInverters mirrors the cloud client's inventory shape. Serials
// default to the inverter name and are upper-cased like real ones.
func (i *Inventory) FetchInverters(ctx context.Context) ([]cloud.Inverter, error) {
	out := make([]cloud.Inverter, 0, len(i.names))
	for _, name := range i.names {
		serial := i.vals.serial[name]
		if serial == "" {
			serial = name
		}
		model := i.vals.model[name]
		if model == "" {
			model = "SIM"
		}

		inv := cloud.Inverter{
			Name:   name,
			Serial: strings.ToUpper(serial),
			Model:  model,
		}
		if count, ok := i.vals.optimizers[name]; ok {
			n := count
			inv.ConnectedOptimizers = &n
		}
		out = append(out, inv)
	}

	i.log.Debug().Int("inverters", len(out)).Msg("synthetic inventory")
	return out, nil
}
