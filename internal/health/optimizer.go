package health

import (
	"fmt"
	"sort"
	"strings"

	"solarwatch/config"
)

// OptimizerMismatch records a discrepancy between the configured optimizer
// count for an inverter and what the cloud reports. A nil Actual means the
// cloud had no count for it, which also counts as a mismatch.
type OptimizerMismatch struct {
	Name     string
	Expected int
	Actual   *int
}

func (m OptimizerMismatch) Message() string {
	actual := "unknown"
	if m.Actual != nil {
		actual = fmt.Sprintf("%d", *m.Actual)
	}
	return fmt.Sprintf("Optimizer count mismatch (expected %d, cloud=%s)", m.Expected, actual)
}

// ComputeOptimizerMismatches compares expected counts to cloud-reported
// ones. Results are ordered by inverter name.
func ComputeOptimizerMismatches(expected map[string]int, actual map[string]*int) []OptimizerMismatch {
	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	sort.Strings(names)

	var mismatches []OptimizerMismatch
	for _, name := range names {
		want := expected[name]
		got := actual[name]
		if got == nil || *got != want {
			mismatches = append(mismatches, OptimizerMismatch{Name: name, Expected: want, Actual: got})
		}
	}
	return mismatches
}

// MismatchesFromCounts resolves configured expectations against cloud
// optimizer counts keyed by serial, bridging through the name→serial map
// learned from Modbus identity reads.
func MismatchesFromCounts(inverters []config.InverterConfig, serialByName map[string]string, countsBySerial map[string]*int) []OptimizerMismatch {
	expected := make(map[string]int)
	actual := make(map[string]*int)

	for _, inv := range inverters {
		if inv.ExpectedOptimizers <= 0 {
			continue
		}
		expected[inv.Name] = inv.ExpectedOptimizers
		if serial, ok := serialByName[inv.Name]; ok {
			actual[inv.Name] = countsBySerial[strings.ToUpper(serial)]
		}
	}

	if len(expected) == 0 {
		return nil
	}
	return ComputeOptimizerMismatches(expected, actual)
}

// ApplyOptimizerMismatches folds mismatch findings into an existing
// verdict, appending to any reason already present, and recomputes the
// aggregate. The input health is not mutated.
func ApplyOptimizerMismatches(sys SystemHealth, mismatches []OptimizerMismatch) SystemHealth {
	if len(mismatches) == 0 {
		return sys
	}

	per := clonePer(sys.PerInverter)
	for _, m := range mismatches {
		inv, ok := per[m.Name]
		if !ok {
			continue
		}
		reason := m.Message()
		if inv.Reason != "" {
			reason = inv.Reason + "; " + reason
		}
		kind := inv.Kind
		if inv.OK {
			kind = KindOptimizerMismatch
		}
		per[m.Name] = unhealthy(inv.Name, kind, reason, inv.Reading)
	}
	return aggregate(per)
}
