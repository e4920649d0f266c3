package inverter

import (
	"github.com/rs/zerolog"

	"solarwatch/config"
	"solarwatch/internal/modbus"
)

// FleetReader polls every configured inverter over Modbus TCP. A nil
// snapshot in the result map means that inverter was unreachable this
// cycle, which downstream health rules treat as offline.
type FleetReader struct {
	cfg config.FleetConfig
	log zerolog.Logger
}

func NewFleetReader(cfg config.FleetConfig, log zerolog.Logger) *FleetReader {
	return &FleetReader{
		cfg: cfg,
		log: log.With().Str("component", "fleet-reader").Logger(),
	}
}

// ReadAll opens a short-lived connection per inverter, reads a snapshot,
// and disconnects. The returned map always has one key per configured
// inverter.
func (r *FleetReader) ReadAll() map[string]*Snapshot {
	results := make(map[string]*Snapshot, len(r.cfg.Inverters))

	for _, inv := range r.cfg.Inverters {
		snap := r.readOne(inv)
		results[inv.Name] = snap
	}

	return results
}

func (r *FleetReader) readOne(inv config.InverterConfig) *Snapshot {
	client := modbus.NewClient(inv.Host, inv.Port, inv.Unit, r.cfg.Timeout)
	defer client.Close()

	var lastErr error
	attempts := r.cfg.Retries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := client.Connect(); err != nil {
			lastErr = err
			continue
		}

		snap, err := NewSolarEdge(client).ReadSnapshot(inv.Name)
		if err != nil {
			lastErr = err
			client.Reconnect()
			continue
		}
		return snap
	}

	r.log.Debug().
		Str("inverter", inv.Name).
		Str("host", inv.Host).
		Err(lastErr).
		Msg("no modbus data (offline?)")
	return nil
}
