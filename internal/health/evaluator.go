package health

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"solarwatch/config"
	"solarwatch/internal/inverter"
)

// EnvFlags carries the environmental context for one evaluation cycle.
// All of it is advisory: malformed values degrade to "unknown" rather
// than failing the evaluation.
type EnvFlags struct {
	// DarkIrradiance means estimated irradiance is below the floor at
	// which zero production is expected.
	DarkIrradiance bool
	// SunElevationDeg is the current sun elevation, nil when unknown.
	SunElevationDeg *float64
	// LowLightGrace is set during sunrise/sunset grace windows.
	LowLightGrace bool
	// PacSuppression marks inverters whose low-power alert is suppressed
	// because measured output matches the weather expectation.
	PacSuppression map[string]bool
}

// Evaluator turns fleet readings plus environmental context into a
// SystemHealth verdict. Evaluate is a pure function of its arguments;
// the evaluator itself holds only configuration and a logger.
type Evaluator struct {
	cfg config.HealthConfig
	log zerolog.Logger
}

func NewEvaluator(cfg config.HealthConfig, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		cfg: cfg,
		log: log.With().Str("component", "health-evaluator").Logger(),
	}
}

// envSuppressed is the single precedence rule for darkness and sun angle:
// either one suppresses power-related findings, on the per-inverter path
// and the fleet path alike.
func (e *Evaluator) envSuppressed(env EnvFlags) bool {
	if env.DarkIrradiance {
		return true
	}
	if e.cfg.UseMinAlertSunElevation && env.SunElevationDeg != nil &&
		*env.SunElevationDeg < e.cfg.MinAlertSunElevationDeg {
		return true
	}
	return false
}

func sanitizeEnv(env EnvFlags) EnvFlags {
	if env.SunElevationDeg != nil {
		if v := *env.SunElevationDeg; math.IsNaN(v) || math.IsInf(v, 0) {
			env.SunElevationDeg = nil
		}
	}
	return env
}

// Evaluate runs the rule pipeline over one cycle of readings.
//
// Pass order: per-inverter rules, then darkness override, then the
// cloudy override, then the peer-comparison skip, then peer comparison,
// then the grace-window clear. Each pass takes and returns an immutable
// per-inverter map.
func (e *Evaluator) Evaluate(readings map[string]*inverter.Snapshot, thresholds Thresholds, env EnvFlags) SystemHealth {
	env = sanitizeEnv(env)

	per := make(map[string]InverterHealth, len(readings))
	for name, reading := range readings {
		per[name] = e.evaluateInverter(name, reading, thresholds.LowPacW[name], env)
	}

	// Darkness is a full override: power findings clear, everything else
	// stands, and no further fleet rule runs.
	if env.DarkIrradiance {
		return aggregate(clearPowerFindings(per))
	}

	producing := producingReadings(per)
	abnormal := e.abnormalStatusPresent(per, env)

	// Cloudy override: every producing inverter uniformly below its
	// peer-skip threshold means low output is weather, not a fault.
	if len(producing) > 0 && !abnormal && allBelowThreshold(producing, thresholds.LowLightPeerSkipW, true) {
		per = clearPowerFindings(per)
		if sys := aggregate(per); sys.OK {
			return sys
		}
	}

	// Same condition on the known-power subset skips peer comparison
	// even when there was nothing to clear.
	if len(producing) > 0 && !abnormal && allBelowThreshold(producing, thresholds.LowLightPeerSkipW, false) {
		return aggregate(per)
	}

	per = e.peerCompare(per, thresholds)

	if env.LowLightGrace {
		per = clearPowerFindings(per)
	}

	return aggregate(per)
}

func (e *Evaluator) evaluateInverter(name string, reading *inverter.Snapshot, lowPacW *float64, env EnvFlags) InverterHealth {
	if reading == nil {
		return unhealthy(name, KindOffline, "No Modbus data (offline?)", nil)
	}

	status := reading.Status
	suppressed := e.envSuppressed(env)

	if inverter.IsTransitional(status) {
		if suppressed {
			return healthy(name, reading)
		}
		return unhealthy(name, KindAbnormalStatus,
			fmt.Sprintf("Unexpected inverter status: %s", inverter.StatusString(status)), reading)
	}

	if status == inverter.StatusFault {
		return unhealthy(name, KindFaultStatus,
			fmt.Sprintf("Fault state (%s)", inverter.StatusString(status)), reading)
	}

	if status == inverter.StatusProducing &&
		lowPacW != nil &&
		reading.PacW != nil &&
		*reading.PacW < *lowPacW &&
		!suppressed &&
		!env.PacSuppression[name] {
		return unhealthy(name, KindLowPower,
			fmt.Sprintf("Producing but PAC=%.1f W (<%.1f W threshold)", *reading.PacW, *lowPacW), reading)
	}

	if e.cfg.LowVdcThresholdV > 0 &&
		!env.DarkIrradiance &&
		reading.VdcV != nil &&
		*reading.VdcV < e.cfg.LowVdcThresholdV {
		return unhealthy(name, KindLowVoltage,
			fmt.Sprintf("Low DC voltage Vdc=%.1f V (<%.1f V threshold)", *reading.VdcV, e.cfg.LowVdcThresholdV), reading)
	}

	return healthy(name, reading)
}

// abnormalStatusPresent reports a non-producing status that darkness or
// sun angle does not explain. Such a status blocks the cloudy override.
func (e *Evaluator) abnormalStatusPresent(per map[string]InverterHealth, env EnvFlags) bool {
	suppressed := e.envSuppressed(env)
	for _, inv := range per {
		reading := inv.Reading
		if reading == nil || reading.Status == inverter.StatusProducing {
			continue
		}
		if suppressed && inverter.IsTransitional(reading.Status) {
			continue
		}
		return true
	}
	return false
}

func producingReadings(per map[string]InverterHealth) []*inverter.Snapshot {
	var out []*inverter.Snapshot
	for _, name := range SortedNames(per) {
		if r := per[name].Reading; r != nil && r.Status == inverter.StatusProducing {
			out = append(out, r)
		}
	}
	return out
}

// allBelowThreshold checks the producing set against a per-inverter
// threshold map. With requireKnown, an unknown power value fails the
// check; otherwise unknown values are ignored.
func allBelowThreshold(producing []*inverter.Snapshot, thresholds map[string]*float64, requireKnown bool) bool {
	checked := 0
	for _, r := range producing {
		if r.PacW == nil {
			if requireKnown {
				return false
			}
			continue
		}
		thr := thresholds[r.Name]
		if thr == nil || *r.PacW >= *thr {
			return false
		}
		checked++
	}
	return checked > 0
}

type peerCandidate struct {
	name string
	pacW float64
}

// peerCompare flags the lowest producer(s) when the fleet's min/max power
// ratio falls below the configured threshold. Requires at least two
// producing inverters with known power.
func (e *Evaluator) peerCompare(per map[string]InverterHealth, thresholds Thresholds) map[string]InverterHealth {
	var candidates []peerCandidate
	for _, name := range SortedNames(per) {
		inv := per[name]
		if inv.OK && inv.Reading != nil &&
			inv.Reading.Status == inverter.StatusProducing &&
			inv.Reading.PacW != nil {
			candidates = append(candidates, peerCandidate{name: name, pacW: *inv.Reading.PacW})
		}
	}

	if len(candidates) < 2 {
		return per
	}

	minPac, maxPac := candidates[0].pacW, candidates[0].pacW
	for _, c := range candidates[1:] {
		if c.pacW < minPac {
			minPac = c.pacW
		}
		if c.pacW > maxPac {
			maxPac = c.pacW
		}
	}

	if allCandidatesBelow(candidates, thresholds.LowLightPeerSkipW) {
		return per
	}
	if allCandidatesBelow(candidates, thresholds.MinProductionForPeerW) {
		return per
	}

	ratio := 1.0
	if maxPac > 0 {
		ratio = minPac / maxPac
	}
	if ratio >= e.cfg.PeerRatioThreshold {
		return per
	}

	out := clonePer(per)
	for _, c := range candidates {
		if c.pacW == minPac {
			out[c.name] = unhealthy(c.name, KindPeerRatio,
				fmt.Sprintf("Low output vs peer (PAC=%.1f W, peer=%.1f W, ratio=%.2f < %v)",
					c.pacW, maxPac, ratio, e.cfg.PeerRatioThreshold),
				per[c.name].Reading)
			e.log.Debug().Str("inverter", c.name).Float64("ratio", ratio).Msg("peer comparison flagged low producer")
		}
	}
	return out
}

func allCandidatesBelow(candidates []peerCandidate, thresholds map[string]*float64) bool {
	for _, c := range candidates {
		thr := thresholds[c.name]
		if thr == nil || c.pacW >= *thr {
			return false
		}
	}
	return true
}
