package health

import (
	"sort"
	"strings"

	"solarwatch/internal/inverter"
)

// Kind tags a finding with its rule category so override passes can
// clear findings by category instead of matching reason text.
type Kind int

const (
	KindNone Kind = iota
	KindOffline
	KindFaultStatus
	KindAbnormalStatus
	KindLowPower
	KindLowVoltage
	KindPeerRatio
	KindOptimizerMismatch
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindOffline:
		return "offline"
	case KindFaultStatus:
		return "fault_status"
	case KindAbnormalStatus:
		return "abnormal_status"
	case KindLowPower:
		return "low_power"
	case KindLowVoltage:
		return "low_voltage"
	case KindPeerRatio:
		return "peer_ratio"
	case KindOptimizerMismatch:
		return "optimizer_mismatch"
	default:
		return "unknown"
	}
}

// powerRelated reports whether darkness, cloudy-override and grace passes
// may clear this finding. Offline, fault and voltage findings never clear.
func (k Kind) powerRelated() bool {
	return k == KindLowPower || k == KindPeerRatio
}

// InverterHealth is the verdict for one inverter in one cycle.
// Reason is empty exactly when OK is true.
type InverterHealth struct {
	Name    string             `json:"name"`
	OK      bool               `json:"ok"`
	Kind    Kind               `json:"kind"`
	Reason  string             `json:"reason,omitempty"`
	Reading *inverter.Snapshot `json:"reading"`
}

// SystemHealth aggregates per-inverter verdicts. The PerInverter key set
// always equals the evaluated reading key set.
type SystemHealth struct {
	OK          bool                      `json:"ok"`
	PerInverter map[string]InverterHealth `json:"per_inverter"`
	Reason      string                    `json:"reason,omitempty"`
}

func healthy(name string, reading *inverter.Snapshot) InverterHealth {
	return InverterHealth{Name: name, OK: true, Reading: reading}
}

func unhealthy(name string, kind Kind, reason string, reading *inverter.Snapshot) InverterHealth {
	return InverterHealth{Name: name, OK: false, Kind: kind, Reason: reason, Reading: reading}
}

// aggregate derives the system verdict. The reason joins per-inverter
// reasons in name order so identical inputs render identical output.
func aggregate(per map[string]InverterHealth) SystemHealth {
	names := SortedNames(per)

	var parts []string
	for _, name := range names {
		if inv := per[name]; !inv.OK {
			parts = append(parts, inv.Name+": "+inv.Reason)
		}
	}

	return SystemHealth{
		OK:          len(parts) == 0,
		PerInverter: per,
		Reason:      strings.Join(parts, "; "),
	}
}

func SortedNames(per map[string]InverterHealth) []string {
	names := make([]string, 0, len(per))
	for name := range per {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clonePer(per map[string]InverterHealth) map[string]InverterHealth {
	out := make(map[string]InverterHealth, len(per))
	for name, inv := range per {
		out[name] = inv
	}
	return out
}

// clearPowerFindings returns a copy with power- and peer-related findings
// reopened as healthy; everything else passes through untouched.
func clearPowerFindings(per map[string]InverterHealth) map[string]InverterHealth {
	out := clonePer(per)
	for name, inv := range out {
		if !inv.OK && inv.Kind.powerRelated() {
			out[name] = healthy(inv.Name, inv.Reading)
		}
	}
	return out
}
