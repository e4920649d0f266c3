package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	cyclesTotal   prometheus.Counter
	alertsTotal   prometheus.Counter
	systemOK      prometheus.Gauge
	inverterPower *prometheus.GaugeVec
	inverterOK    *prometheus.GaugeVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *metrics
)

// newMetrics registers once; collectors live in the default registry
// and are shared by every Monitor in the process.
func newMetrics() *metrics {
	metricsOnce.Do(func() {
		sharedMetrics = registerMetrics()
	})
	return sharedMetrics
}

func registerMetrics() *metrics {
	return &metrics{
		cyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solarwatch_cycles_total",
			Help: "Number of evaluation cycles run.",
		}),
		alertsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solarwatch_alerts_total",
			Help: "Number of alerts dispatched after gating.",
		}),
		systemOK: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "solarwatch_system_ok",
			Help: "1 when the last evaluation found the fleet healthy.",
		}),
		inverterPower: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "solarwatch_inverter_power_watts",
			Help: "Last read AC power per inverter.",
		}, []string{"inverter"}),
		inverterOK: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "solarwatch_inverter_ok",
			Help: "1 when the inverter passed the last evaluation.",
		}, []string{"inverter"}),
	}
}
