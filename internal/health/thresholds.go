package health

import "solarwatch/config"

// Thresholds maps inverter name to absolute Watt limits derived from the
// percentage configuration. A nil entry means the threshold is undefined
// for that inverter and the corresponding rule must not be enforced;
// undefined is never treated as zero.
type Thresholds struct {
	LowPacW               map[string]*float64
	LowLightPeerSkipW     map[string]*float64
	MinProductionForPeerW map[string]*float64
}

// DeriveThresholds converts percent-of-capacity settings into per-inverter
// Watt values. A zero percentage or unknown capacity yields nil.
func DeriveThresholds(names []string, capacityKW map[string]*float64, cfg config.HealthConfig) Thresholds {
	derive := func(pct float64) map[string]*float64 {
		out := make(map[string]*float64, len(names))
		for _, name := range names {
			kw := capacityKW[name]
			if pct <= 0 || kw == nil {
				out[name] = nil
				continue
			}
			w := *kw * 1000.0 * (pct / 100.0)
			out[name] = &w
		}
		return out
	}

	return Thresholds{
		LowPacW:               derive(cfg.LowPacPct),
		LowLightPeerSkipW:     derive(cfg.LowLightPeerSkipPct),
		MinProductionForPeerW: derive(cfg.MinProductionForPeerPct),
	}
}
