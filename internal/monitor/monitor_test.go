package monitor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarwatch/config"
	"solarwatch/internal/alert"
	"solarwatch/internal/cloud"
	"solarwatch/internal/daylight"
	"solarwatch/internal/health"
	"solarwatch/internal/inverter"
	"solarwatch/internal/simulate"
	"solarwatch/internal/storage"
)

type stubReader struct {
	readings map[string]*inverter.Snapshot
	called   bool
}

func (s *stubReader) ReadAll() map[string]*inverter.Snapshot {
	s.called = true
	return s.readings
}

type stubInventory struct {
	inverters []cloud.Inverter
	err       error
}

func (s *stubInventory) Enabled() bool { return true }

func (s *stubInventory) FetchInverters(ctx context.Context) ([]cloud.Inverter, error) {
	return s.inverters, s.err
}

type stubNotifier struct {
	handled    [][]alert.Alert
	summaries  []string
	summaryErr error
}

func (n *stubNotifier) HandleAlerts(alerts []alert.Alert) {
	n.handled = append(n.handled, alerts)
}

func (n *stubNotifier) SendSummary(title, body string) error {
	n.summaries = append(n.summaries, title)
	return n.summaryErr
}

type stubStore struct {
	counters map[string]int
}

func (s *stubStore) LoadCounters() (map[string]int, error) {
	return s.counters, nil
}

func (s *stubStore) SaveCounters(counters map[string]int) error {
	s.counters = counters
	return nil
}

func testMonitorConfig() *config.Config {
	return &config.Config{
		Fleet: config.FleetConfig{
			Inverters: []config.InverterConfig{
				{Name: "A", Host: "10.0.0.1", CapacityKW: 5.0},
				{Name: "B", Host: "10.0.0.2", CapacityKW: 5.0},
			},
		},
		Monitor: config.MonitorConfig{Enabled: true, Interval: time.Minute},
		Health: config.HealthConfig{
			PeerRatioThreshold:      0.20,
			MinProductionForPeerPct: 5.0,
			LowLightPeerSkipPct:     2.0,
			LowPacPct:               1.0,
			ConsecutiveRequired:     1,
			HealthRunRetentionDays:  90,
			SnapshotRetentionDays:   30,
		},
		Daylight: config.DaylightConfig{
			Timezone:            "UTC",
			StaticSunrise:       "06:00",
			StaticSunset:        "18:00",
			SummaryDelayMinutes: 90,
			SkipModbusAtNight:   true,
		},
		Alerts: config.AlertsConfig{Enabled: true},
	}
}

func newTestMonitor(cfg *config.Config, reader DeviceReader, inventory InventoryClient, notifier Notifier, db *storage.Database) *Monitor {
	return New(Deps{
		Config:    cfg,
		Reader:    reader,
		Policy:    daylight.NewPolicy(cfg.Daylight, zerolog.Nop()),
		Evaluator: health.NewEvaluator(cfg.Health, zerolog.Nop()),
		Gate:      alert.NewGate(&stubStore{}, cfg.Health.ConsecutiveRequired, zerolog.Nop()),
		Cloud:     inventory,
		Database:  db,
		Notifier:  notifier,
		Log:       zerolog.Nop(),
	})
}

func snapshotFor(name string, status int, pacW float64) *inverter.Snapshot {
	serial := "SN-" + name
	return &inverter.Snapshot{
		Name:   name,
		Serial: serial,
		Status: status,
		PacW:   &pacW,
	}
}

func noon() time.Time {
	return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
}

func TestRunCycleHealthyFleet(t *testing.T) {
	reader := &stubReader{readings: map[string]*inverter.Snapshot{
		"A": snapshotFor("A", inverter.StatusProducing, 1500),
		"B": snapshotFor("B", inverter.StatusProducing, 1400),
	}}
	notifier := &stubNotifier{}
	mon := newTestMonitor(testMonitorConfig(), reader, nil, notifier, nil)

	result, err := mon.RunCycle(context.Background(), noon())
	require.NoError(t, err)

	require.NotNil(t, result.Health)
	assert.True(t, result.Health.OK)
	assert.Empty(t, result.Alerts)
	assert.Equal(t, result, mon.Last())
	require.Len(t, notifier.handled, 1)
	assert.Empty(t, notifier.handled[0])
}

func TestRunCycleGatesConsecutiveFailures(t *testing.T) {
	cfg := testMonitorConfig()
	cfg.Health.ConsecutiveRequired = 2

	reader := &stubReader{readings: map[string]*inverter.Snapshot{
		"A": snapshotFor("A", inverter.StatusProducing, 1500),
		"B": snapshotFor("B", inverter.StatusFault, 0),
	}}
	notifier := &stubNotifier{}
	mon := newTestMonitor(cfg, reader, nil, notifier, nil)

	result, err := mon.RunCycle(context.Background(), noon())
	require.NoError(t, err)
	assert.Empty(t, result.Alerts)

	result, err = mon.RunCycle(context.Background(), noon().Add(5*time.Minute))
	require.NoError(t, err)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, "B", result.Alerts[0].InverterName)
}

func TestRunCycleSkipsModbusAtNight(t *testing.T) {
	reader := &stubReader{}
	mon := newTestMonitor(testMonitorConfig(), reader, nil, &stubNotifier{}, nil)

	night := time.Date(2026, 6, 15, 2, 0, 0, 0, time.UTC)
	result, err := mon.RunCycle(context.Background(), night)
	require.NoError(t, err)

	assert.False(t, reader.called)
	assert.Nil(t, result.Readings)
	assert.Nil(t, result.Health)
}

func TestRunCycleWithSimulatedCollaborators(t *testing.T) {
	cfg := testMonitorConfig()
	cfg.Simulation = config.SimulationConfig{
		Enabled: true,
		Base: config.SimulationScenario{
			Status: map[string]int{"A": 4, "B": 7},
			PacW:   map[string]float64{"A": 1500, "B": 0},
		},
	}

	reader := simulate.NewReader(cfg.Simulation, cfg.Fleet.Names(), zerolog.Nop())
	inventory := simulate.NewInventory(cfg.Simulation, cfg.Fleet.Names(), zerolog.Nop())
	notifier := &stubNotifier{}
	mon := newTestMonitor(cfg, reader, inventory, notifier, nil)

	result, err := mon.RunCycle(context.Background(), noon())
	require.NoError(t, err)

	require.NotNil(t, result.Health)
	assert.False(t, result.Health.OK)
	assert.Equal(t, health.KindFaultStatus, result.Health.PerInverter["B"].Kind)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, "B", result.Alerts[0].InverterName)
}

func TestRunCycleDailySummaryFailureSurfacesAlert(t *testing.T) {
	notifier := &stubNotifier{summaryErr: errors.New("push rejected")}
	mon := newTestMonitor(testMonitorConfig(), &stubReader{}, nil, notifier, nil)

	evening := time.Date(2026, 6, 15, 20, 0, 0, 0, time.UTC)
	result, err := mon.RunCycle(context.Background(), evening)
	require.NoError(t, err)

	require.Len(t, notifier.summaries, 1)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, alert.ScopeSystem, result.Alerts[0].InverterName)
	assert.Contains(t, result.Alerts[0].Message, "Daily summary failed")

	// The summary goes out once per day.
	result, err = mon.RunCycle(context.Background(), evening.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, notifier.summaries, 1)
	assert.Empty(t, result.Alerts)
}

func TestRunCyclePersistsLearnedSerials(t *testing.T) {
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	defer db.Close()

	cfg := testMonitorConfig()
	cfg.Fleet.Inverters[0].ExpectedOptimizers = 12
	cfg.Alerts.Enabled = false

	reader := &stubReader{readings: map[string]*inverter.Snapshot{
		"A": snapshotFor("A", inverter.StatusProducing, 1500),
		"B": snapshotFor("B", inverter.StatusProducing, 1400),
	}}
	mon := newTestMonitor(cfg, reader, nil, nil, db)

	_, err = mon.RunCycle(context.Background(), noon())
	require.NoError(t, err)

	serials, err := db.LoadSerials()
	require.NoError(t, err)
	assert.Equal(t, "SN-A", serials["A"])
	assert.Equal(t, "SN-B", serials["B"])

	// The cloud inventory lists the inverter under another display name,
	// so resolving the optimizer count depends on the stored mapping.
	count := 12
	inventory := &stubInventory{inverters: []cloud.Inverter{
		{Name: "site inverter 1", Serial: "SN-A", ConnectedOptimizers: &count},
	}}

	// A fresh monitor against the same database starts with the mapping
	// and resolves the count before any Modbus read.
	restarted := newTestMonitor(cfg, &stubReader{}, inventory, nil, db)
	night := time.Date(2026, 6, 16, 2, 0, 0, 0, time.UTC)
	result, err := restarted.RunCycle(context.Background(), night)
	require.NoError(t, err)
	assert.Empty(t, result.Mismatches)

	// Without the stored mapping the same cycle reports the count as
	// unresolved.
	cold := newTestMonitor(cfg, &stubReader{}, inventory, nil, nil)
	result, err = cold.RunCycle(context.Background(), night)
	require.NoError(t, err)
	require.Len(t, result.Mismatches, 1)
	assert.Nil(t, result.Mismatches[0].Actual)
}
