package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solarwatch/config"
	"solarwatch/internal/alert"
	"solarwatch/internal/cloud"
	"solarwatch/internal/daylight"
	"solarwatch/internal/health"
	"solarwatch/internal/inverter"
	"solarwatch/internal/mqtt"
	"solarwatch/internal/storage"
	"solarwatch/internal/weather"
)

// DeviceReader produces one snapshot per fleet inverter, nil for
// unreachable ones. Implemented by the Modbus fleet reader and the
// simulation reader.
type DeviceReader interface {
	ReadAll() map[string]*inverter.Snapshot
}

// InventoryClient serves the cloud-side inverter inventory. Implemented
// by the monitoring-API client and the simulation inventory.
type InventoryClient interface {
	Enabled() bool
	FetchInverters(ctx context.Context) ([]cloud.Inverter, error)
}

// Notifier handles the cycle's outbound messages.
type Notifier interface {
	HandleAlerts(alerts []alert.Alert)
	SendSummary(title, body string) error
}

// CycleResult is everything one evaluation cycle produced.
type CycleResult struct {
	At         time.Time                     `json:"at"`
	Daylight   daylight.Info                 `json:"daylight"`
	Readings   map[string]*inverter.Snapshot `json:"readings"`
	Health     *health.SystemHealth          `json:"health"`
	Mismatches []health.OptimizerMismatch    `json:"mismatches,omitempty"`
	Alerts     []alert.Alert                 `json:"alerts"`
}

// Monitor orchestrates one evaluation cycle: daylight classification,
// fleet read, environmental context, health evaluation, optimizer
// validation, alert gating, then notification, persistence and
// publishing. Serve runs cycles on a ticker; cycles never overlap.
type Monitor struct {
	cfg       *config.Config
	reader    DeviceReader
	policy    *daylight.Policy
	evaluator *health.Evaluator
	gate      *alert.Gate
	estimator *weather.Estimator
	cloud     InventoryClient
	db        *storage.Database
	notifier  Notifier
	publisher *mqtt.Publisher
	log       zerolog.Logger
	metrics   *metrics

	mu             sync.RWMutex
	serialByName   map[string]string
	last           *CycleResult
	lastPruneDay   string
	lastSummaryDay string
}

type Deps struct {
	Config    *config.Config
	Reader    DeviceReader
	Policy    *daylight.Policy
	Evaluator *health.Evaluator
	Gate      *alert.Gate
	Estimator *weather.Estimator
	Cloud     InventoryClient
	Database  *storage.Database
	Notifier  Notifier
	Publisher *mqtt.Publisher
	Log       zerolog.Logger
}

func New(deps Deps) *Monitor {
	m := &Monitor{
		cfg:          deps.Config,
		reader:       deps.Reader,
		policy:       deps.Policy,
		evaluator:    deps.Evaluator,
		gate:         deps.Gate,
		estimator:    deps.Estimator,
		cloud:        deps.Cloud,
		db:           deps.Database,
		notifier:     deps.Notifier,
		publisher:    deps.Publisher,
		log:          deps.Log.With().Str("component", "monitor").Logger(),
		metrics:      newMetrics(),
		serialByName: make(map[string]string),
	}

	if m.db != nil {
		serials, err := m.db.LoadSerials()
		if err != nil {
			m.log.Warn().Err(err).Msg("failed to load stored serial mappings")
		} else {
			for name, serial := range serials {
				m.serialByName[name] = serial
			}
		}
	}

	return m
}

// RunCycle executes one full evaluation cycle at the given instant.
func (m *Monitor) RunCycle(ctx context.Context, now time.Time) (*CycleResult, error) {
	info := m.policy.Info(now)

	var readings map[string]*inverter.Snapshot
	if info.SkipModbus {
		m.log.Info().
			Str("phase", string(info.Phase)).
			Time("sunrise", info.Sunrise).
			Msg("nighttime phase; skipping modbus polling until sunrise")
	} else {
		readings = m.reader.ReadAll()
		m.rememberSerials(readings)
	}

	env := health.EnvFlags{LowLightGrace: info.InGraceWindow}
	if m.estimator != nil && m.estimator.Enabled() && !info.SkipModbus {
		if est, err := m.estimator.Estimate(ctx, now); err != nil {
			m.log.Warn().Err(err).Msg("weather estimate failed; evaluating without environmental context")
		} else {
			env.DarkIrradiance = est.DarkIrradiance
			env.SunElevationDeg = est.SunElevationDeg
			env.PacSuppression = est.Suppression(readings, m.cfg.Weather.SuppressTolerance)
		}
	}

	var sys *health.SystemHealth
	if len(readings) > 0 {
		thresholds := health.DeriveThresholds(m.cfg.Fleet.Names(), m.cfg.Fleet.CapacityByName(), m.cfg.Health)
		evaluated := m.evaluator.Evaluate(readings, thresholds, env)
		sys = &evaluated
	}

	mismatches := m.validateOptimizers(ctx, info)
	if sys != nil && len(mismatches) > 0 {
		updated := health.ApplyOptimizerMismatches(*sys, mismatches)
		sys = &updated
	}

	extras := m.maybeDailySummary(info, readings, now)

	alerts, err := m.gate.Build(sys, mismatches, extras, now)
	if err != nil {
		return nil, err
	}

	if m.notifier != nil && m.cfg.Alerts.Enabled {
		m.notifier.HandleAlerts(alerts)
	}

	m.persist(sys, alerts, now)
	m.publish(sys, alerts)
	m.observe(sys, alerts)
	m.maybePrune(info, now)

	result := &CycleResult{
		At:         now,
		Daylight:   info,
		Readings:   readings,
		Health:     sys,
		Mismatches: mismatches,
		Alerts:     alerts,
	}

	m.mu.Lock()
	m.last = result
	m.mu.Unlock()

	return result, nil
}

func (m *Monitor) rememberSerials(readings map[string]*inverter.Snapshot) {
	m.mu.Lock()
	changed := false
	for name, snap := range readings {
		if snap != nil && snap.Serial != "" && snap.Serial != "unknown" {
			serial := strings.ToUpper(snap.Serial)
			if m.serialByName[name] != serial {
				m.serialByName[name] = serial
				changed = true
			}
		}
	}
	m.mu.Unlock()

	if changed {
		m.persistSerials()
	}
}

// persistSerials writes the learned mapping through so a restart does
// not forget which serial belongs to which inverter.
func (m *Monitor) persistSerials() {
	if m.db == nil {
		return
	}

	m.mu.RLock()
	serials := make(map[string]string, len(m.serialByName))
	for name, serial := range m.serialByName {
		serials[name] = serial
	}
	m.mu.RUnlock()

	if err := m.db.SaveSerials(serials); err != nil {
		m.log.Warn().Err(err).Msg("failed to persist serial mappings")
	}
}

func (m *Monitor) validateOptimizers(ctx context.Context, info daylight.Info) []health.OptimizerMismatch {
	if m.cloud == nil || !m.cloud.Enabled() {
		return nil
	}
	if info.SkipCloud {
		m.log.Info().Msg("cloud polling skipped at night (configuration)")
		return nil
	}

	inverters, err := m.cloud.FetchInverters(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("cloud inventory fetch failed; skipping optimizer validation")
		return nil
	}

	m.mu.Lock()
	changed := false
	for _, inv := range inverters {
		if inv.Serial == "" {
			continue
		}
		if _, ok := m.serialByName[inv.Name]; !ok {
			m.serialByName[inv.Name] = strings.ToUpper(inv.Serial)
			changed = true
		}
	}
	serialByName := make(map[string]string, len(m.serialByName))
	for name, serial := range m.serialByName {
		serialByName[name] = serial
	}
	m.mu.Unlock()

	if changed {
		m.persistSerials()
	}

	counts := cloud.OptimizerCountsBySerial(inverters)
	return health.MismatchesFromCounts(m.cfg.Fleet.Inverters, serialByName, counts)
}

// maybeDailySummary sends the end-of-day production summary once per
// day after the production day closes. A send failure comes back as an
// extra message so the alert path surfaces it.
func (m *Monitor) maybeDailySummary(info daylight.Info, readings map[string]*inverter.Snapshot, now time.Time) []string {
	if m.notifier == nil || !m.cfg.Alerts.Enabled || !info.ProductionDayOver {
		return nil
	}

	day := now.Format("2006-01-02")
	m.mu.Lock()
	alreadySent := m.lastSummaryDay == day
	if !alreadySent {
		m.lastSummaryDay = day
		if readings == nil && m.last != nil {
			readings = m.last.Readings
		}
	}
	m.mu.Unlock()
	if alreadySent {
		return nil
	}

	body := summaryBody(readings)
	if err := m.notifier.SendSummary("Solar production summary "+day, body); err != nil {
		m.log.Warn().Err(err).Msg("daily summary failed")
		return []string{fmt.Sprintf("Daily summary failed: %v", err)}
	}

	m.log.Info().Str("day", day).Msg("daily summary sent")
	return nil
}

func summaryBody(readings map[string]*inverter.Snapshot) string {
	if len(readings) == 0 {
		return "No readings recorded today"
	}

	names := make([]string, 0, len(readings))
	for name := range readings {
		names = append(names, name)
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		snap := readings[name]
		if snap == nil || snap.TotalWh == nil {
			lines = append(lines, name+": no data")
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %.1f kWh total", name, *snap.TotalWh/1000.0))
	}
	return strings.Join(lines, "\n")
}

func (m *Monitor) persist(sys *health.SystemHealth, alerts []alert.Alert, now time.Time) {
	if m.db == nil {
		return
	}
	if sys != nil {
		if err := m.db.SaveHealthRun(*sys, len(alerts), now); err != nil {
			m.log.Warn().Err(err).Msg("failed to persist health run")
		}
	}
	if len(alerts) > 0 {
		if err := m.db.SaveAlerts(alerts); err != nil {
			m.log.Warn().Err(err).Msg("failed to persist alerts")
		}
	}
}

func (m *Monitor) publish(sys *health.SystemHealth, alerts []alert.Alert) {
	if m.publisher == nil {
		return
	}
	if sys != nil {
		if err := m.publisher.PublishHealth(*sys); err != nil {
			m.log.Warn().Err(err).Msg("mqtt health publish failed")
		}
	}
	if len(alerts) > 0 {
		if err := m.publisher.PublishAlerts(alerts); err != nil {
			m.log.Warn().Err(err).Msg("mqtt alert publish failed")
		}
	}
}

func (m *Monitor) observe(sys *health.SystemHealth, alerts []alert.Alert) {
	m.metrics.cyclesTotal.Inc()
	m.metrics.alertsTotal.Add(float64(len(alerts)))

	if sys == nil {
		return
	}
	if sys.OK {
		m.metrics.systemOK.Set(1)
	} else {
		m.metrics.systemOK.Set(0)
	}
	for name, inv := range sys.PerInverter {
		ok := 0.0
		if inv.OK {
			ok = 1.0
		}
		m.metrics.inverterOK.WithLabelValues(name).Set(ok)
		if inv.Reading != nil && inv.Reading.PacW != nil {
			m.metrics.inverterPower.WithLabelValues(name).Set(*inv.Reading.PacW)
		}
	}
}

// maybePrune trims history once per day, after the production day ends.
func (m *Monitor) maybePrune(info daylight.Info, now time.Time) {
	if m.db == nil || !info.ProductionDayOver {
		return
	}

	day := now.Format("2006-01-02")
	m.mu.Lock()
	alreadyPruned := m.lastPruneDay == day
	if !alreadyPruned {
		m.lastPruneDay = day
	}
	m.mu.Unlock()
	if alreadyPruned {
		return
	}

	if err := m.db.Prune(m.cfg.Health.HealthRunRetentionDays, m.cfg.Health.SnapshotRetentionDays); err != nil {
		m.log.Warn().Err(err).Msg("history prune failed")
	}
}

// Last returns the most recent cycle result, nil before the first cycle.
func (m *Monitor) Last() *CycleResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Start runs cycles on the configured interval until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	if !m.cfg.Monitor.Enabled {
		m.log.Info().Msg("monitor is disabled")
		return nil
	}

	m.log.Info().Dur("interval", m.cfg.Monitor.Interval).Msg("starting monitor")

	if _, err := m.RunCycle(ctx, time.Now()); err != nil {
		m.log.Error().Err(err).Msg("evaluation cycle failed")
	}

	ticker := time.NewTicker(m.cfg.Monitor.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("monitor stopped")
			return nil
		case <-ticker.C:
			if _, err := m.RunCycle(ctx, time.Now()); err != nil {
				m.log.Error().Err(err).Msg("evaluation cycle failed")
			}
		}
	}
}
