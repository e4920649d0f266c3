package alert

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarwatch/internal/health"
)

type memStore struct {
	counters map[string]int
	saves    int
	loadErr  error
	saveErr  error
}

func (s *memStore) LoadCounters() (map[string]int, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make(map[string]int, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) SaveCounters(counters map[string]int) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.counters = make(map[string]int, len(counters))
	for k, v := range counters {
		s.counters[k] = v
	}
	s.saves++
	return nil
}

func verdict(perInverterOK map[string]bool) *health.SystemHealth {
	per := make(map[string]health.InverterHealth, len(perInverterOK))
	ok := true
	reason := ""
	for name, invOK := range perInverterOK {
		inv := health.InverterHealth{Name: name, OK: invOK}
		if !invOK {
			inv.Kind = health.KindLowPower
			inv.Reason = "Producing but PAC=10.0 W (<50.0 W threshold)"
			ok = false
			reason = name + ": " + inv.Reason
		}
		per[name] = inv
	}
	return &health.SystemHealth{OK: ok, PerInverter: per, Reason: reason}
}

func TestGateRequiresConsecutiveFailures(t *testing.T) {
	store := &memStore{}
	gate := NewGate(store, 2, zerolog.Nop())
	now := time.Now()

	// First failing cycle: counter reaches 1, alert suppressed.
	alerts, err := gate.Build(verdict(map[string]bool{"A": true, "B": false}), nil, nil, now)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Equal(t, 1, store.counters["B"])

	// Second failing cycle: counter reaches 2, alert passes.
	alerts, err = gate.Build(verdict(map[string]bool{"A": true, "B": false}), nil, nil, now)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "B", alerts[0].InverterName)
	assert.Equal(t, 2, store.counters["B"])

	// Recovery resets the counter.
	alerts, err = gate.Build(verdict(map[string]bool{"A": true, "B": true}), nil, nil, now)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Equal(t, 0, store.counters["B"])
}

func TestGateSavesOnlyOnChange(t *testing.T) {
	store := &memStore{}
	gate := NewGate(store, 2, zerolog.Nop())
	now := time.Now()

	// All healthy with no prior counters: nothing to write.
	_, err := gate.Build(verdict(map[string]bool{"A": true}), nil, nil, now)
	require.NoError(t, err)
	assert.Equal(t, 0, store.saves)

	_, err = gate.Build(verdict(map[string]bool{"A": false}), nil, nil, now)
	require.NoError(t, err)
	assert.Equal(t, 1, store.saves)
}

func TestGatePassesSystemScopedAlerts(t *testing.T) {
	store := &memStore{}
	gate := NewGate(store, 3, zerolog.Nop())
	now := time.Now()

	// A nil verdict with mismatches yields cloud-scoped alerts that
	// bypass the counter gate entirely.
	actual := 7
	mismatches := []health.OptimizerMismatch{{Name: "A", Expected: 8, Actual: &actual}}
	alerts, err := gate.Build(nil, mismatches, nil, now)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, ScopeCloud, alerts[0].InverterName)
	assert.False(t, alerts[0].DeviceScoped())
	assert.Equal(t, 0, store.saves)
}

func TestGateAppendsExtraMessages(t *testing.T) {
	store := &memStore{}
	gate := NewGate(store, 2, zerolog.Nop())
	now := time.Now()

	alerts, err := gate.Build(verdict(map[string]bool{"A": true}), nil, []string{"weather fetch failed"}, now)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, ScopeSystem, alerts[0].InverterName)
	assert.Equal(t, "weather fetch failed", alerts[0].Message)
}

func TestGateRequiredOneAlertsImmediately(t *testing.T) {
	store := &memStore{}
	gate := NewGate(store, 1, zerolog.Nop())

	alerts, err := gate.Build(verdict(map[string]bool{"B": false}), nil, nil, time.Now())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "B", alerts[0].InverterName)
}

func TestGateStoreErrors(t *testing.T) {
	boom := errors.New("boom")

	gate := NewGate(&memStore{loadErr: boom}, 2, zerolog.Nop())
	_, err := gate.Build(verdict(map[string]bool{"A": false}), nil, nil, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load alert counters")

	gate = NewGate(&memStore{saveErr: boom}, 2, zerolog.Nop())
	_, err = gate.Build(verdict(map[string]bool{"A": false}), nil, nil, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save alert counters")
}
