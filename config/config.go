package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Fleet        FleetConfig        `mapstructure:"fleet"`
	Monitor      MonitorConfig      `mapstructure:"monitor"`
	Health       HealthConfig       `mapstructure:"health"`
	Daylight     DaylightConfig     `mapstructure:"daylight"`
	Weather      WeatherConfig      `mapstructure:"weather"`
	Cloud        CloudConfig        `mapstructure:"cloud"`
	Alerts       AlertsConfig       `mapstructure:"alerts"`
	Pushover     PushoverConfig     `mapstructure:"pushover"`
	Healthchecks HealthchecksConfig `mapstructure:"healthchecks"`
	Database     DatabaseConfig     `mapstructure:"database"`
	MQTT         MQTTConfig         `mapstructure:"mqtt"`
	API          APIConfig          `mapstructure:"api"`
	Simulation   SimulationConfig   `mapstructure:"simulation"`
	LogLevel     string             `mapstructure:"log_level"`
}

// InverterConfig describes one Modbus TCP inverter in the fleet.
// CapacityKW feeds the percentage thresholds; zero means unknown and
// disables capacity-derived checks for that inverter.
type InverterConfig struct {
	Name               string  `mapstructure:"name"`
	Host               string  `mapstructure:"host"`
	Port               int     `mapstructure:"port"`
	Unit               uint8   `mapstructure:"unit"`
	CapacityKW         float64 `mapstructure:"capacity_kw"`
	ExpectedOptimizers int     `mapstructure:"expected_optimizers"`
	TiltDeg            float64 `mapstructure:"tilt_deg"`
	AzimuthDeg         float64 `mapstructure:"azimuth_deg"`
}

type FleetConfig struct {
	Inverters []InverterConfig `mapstructure:"inverters"`
	Timeout   time.Duration    `mapstructure:"timeout"`
	Retries   int              `mapstructure:"retries"`
}

type MonitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Enabled  bool          `mapstructure:"enabled"`
}

// HealthConfig holds the rule thresholds. The *_pct values are percent of
// each inverter's rated capacity; zero disables the corresponding check.
type HealthConfig struct {
	PeerRatioThreshold      float64 `mapstructure:"peer_ratio_threshold"`
	MinProductionForPeerPct float64 `mapstructure:"min_production_for_peer_check_pct"`
	LowLightPeerSkipPct     float64 `mapstructure:"low_light_peer_skip_pct"`
	LowPacPct               float64 `mapstructure:"low_pac_pct"`
	LowVdcThresholdV        float64 `mapstructure:"low_vdc_threshold_v"`
	MinAlertSunElevationDeg float64 `mapstructure:"min_alert_sun_elevation_deg"`
	UseMinAlertSunElevation bool    `mapstructure:"use_min_alert_sun_elevation"`
	ConsecutiveRequired     int     `mapstructure:"consecutive_required"`
	HealthRunRetentionDays  int     `mapstructure:"health_run_retention_days"`
	SnapshotRetentionDays   int     `mapstructure:"snapshot_retention_days"`
}

type DaylightConfig struct {
	Timezone            string  `mapstructure:"timezone"`
	Latitude            float64 `mapstructure:"latitude"`
	Longitude           float64 `mapstructure:"longitude"`
	HasCoordinates      bool    `mapstructure:"has_coordinates"`
	SunriseGraceMinutes int     `mapstructure:"sunrise_grace_minutes"`
	SunsetGraceMinutes  int     `mapstructure:"sunset_grace_minutes"`
	SummaryDelayMinutes int     `mapstructure:"summary_delay_minutes"`
	SkipModbusAtNight   bool    `mapstructure:"skip_modbus_at_night"`
	SkipCloudAtNight    bool    `mapstructure:"skip_cloud_at_night"`
	StaticSunrise       string  `mapstructure:"static_sunrise"`
	StaticSunset        string  `mapstructure:"static_sunset"`
}

type WeatherConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	DarkGHIFloorWM2   float64 `mapstructure:"dark_ghi_floor_wm2"`
	TiltDeg           float64 `mapstructure:"tilt_deg"`
	AzimuthDeg        float64 `mapstructure:"azimuth_deg"`
	Albedo            float64 `mapstructure:"albedo"`
	NOCTC             float64 `mapstructure:"noct_c"`
	TempCoeffPerC     float64 `mapstructure:"temp_coeff_per_c"`
	DCACDerate        float64 `mapstructure:"dc_ac_derate"`
	SuppressTolerance float64 `mapstructure:"suppress_tolerance"`
}

type CloudConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	SiteID  string `mapstructure:"site_id"`
}

type AlertsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type PushoverConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	User    string `mapstructure:"user"`
}

type HealthchecksConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	PingURL string `mapstructure:"ping_url"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

type APIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// SimulationScenario holds per-inverter synthetic telemetry, keyed by
// inverter name. A named scenario overrides the base values key by key.
type SimulationScenario struct {
	Status     map[string]int     `mapstructure:"status"`
	PacW       map[string]float64 `mapstructure:"pac_w"`
	VdcV       map[string]float64 `mapstructure:"vdc_v"`
	IdcA       map[string]float64 `mapstructure:"idc_a"`
	TotalWh    map[string]float64 `mapstructure:"total_wh"`
	Serial     map[string]string  `mapstructure:"serial"`
	Model      map[string]string  `mapstructure:"model"`
	Optimizers map[string]int     `mapstructure:"optimizers"`
}

// SimulationConfig replaces the Modbus and cloud collaborators with
// config-driven fakes, so the whole pipeline runs without hardware.
type SimulationConfig struct {
	Enabled   bool                          `mapstructure:"enabled"`
	Scenario  string                        `mapstructure:"scenario"`
	Base      SimulationScenario            `mapstructure:"base"`
	Scenarios map[string]SimulationScenario `mapstructure:"scenarios"`
}

func Load(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/solarwatch")
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("log_level", "info")

	viper.SetDefault("fleet.timeout", "3s")
	viper.SetDefault("fleet.retries", 3)

	viper.SetDefault("monitor.interval", "5m")
	viper.SetDefault("monitor.enabled", true)

	viper.SetDefault("health.peer_ratio_threshold", 0.20)
	viper.SetDefault("health.min_production_for_peer_check_pct", 5.0)
	viper.SetDefault("health.low_light_peer_skip_pct", 2.0)
	viper.SetDefault("health.low_pac_pct", 1.0)
	viper.SetDefault("health.low_vdc_threshold_v", 0.0)
	viper.SetDefault("health.min_alert_sun_elevation_deg", 5.0)
	viper.SetDefault("health.use_min_alert_sun_elevation", false)
	viper.SetDefault("health.consecutive_required", 2)
	viper.SetDefault("health.health_run_retention_days", 90)
	viper.SetDefault("health.snapshot_retention_days", 30)

	viper.SetDefault("daylight.timezone", "UTC")
	viper.SetDefault("daylight.has_coordinates", false)
	viper.SetDefault("daylight.sunrise_grace_minutes", 30)
	viper.SetDefault("daylight.sunset_grace_minutes", 45)
	viper.SetDefault("daylight.summary_delay_minutes", 90)
	viper.SetDefault("daylight.skip_modbus_at_night", true)
	viper.SetDefault("daylight.skip_cloud_at_night", false)
	viper.SetDefault("daylight.static_sunrise", "06:30")
	viper.SetDefault("daylight.static_sunset", "20:30")

	viper.SetDefault("weather.enabled", false)
	viper.SetDefault("weather.dark_ghi_floor_wm2", 15.0)
	viper.SetDefault("weather.tilt_deg", 30.0)
	viper.SetDefault("weather.azimuth_deg", 180.0)
	viper.SetDefault("weather.albedo", 0.2)
	viper.SetDefault("weather.noct_c", 45.0)
	viper.SetDefault("weather.temp_coeff_per_c", -0.0035)
	viper.SetDefault("weather.dc_ac_derate", 0.96)
	viper.SetDefault("weather.suppress_tolerance", 0.5)

	viper.SetDefault("cloud.enabled", false)
	viper.SetDefault("cloud.base_url", "https://monitoringapi.solaredge.com")

	viper.SetDefault("alerts.enabled", true)

	viper.SetDefault("pushover.enabled", false)
	viper.SetDefault("healthchecks.enabled", false)

	viper.SetDefault("database.path", "./solarwatch.db")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic_prefix", "solarwatch")
	viper.SetDefault("mqtt.client_id", "solarwatch")

	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.port", 8046)

	viper.SetDefault("simulation.enabled", false)
}

// Validate runs once at load time; rules are never re-checked per cycle.
func (c *Config) Validate() error {
	if len(c.Fleet.Inverters) == 0 {
		return fmt.Errorf("config: fleet.inverters must list at least one inverter")
	}
	seen := make(map[string]bool, len(c.Fleet.Inverters))
	for i, inv := range c.Fleet.Inverters {
		if inv.Name == "" {
			return fmt.Errorf("config: fleet.inverters[%d] has no name", i)
		}
		if seen[inv.Name] {
			return fmt.Errorf("config: duplicate inverter name %q", inv.Name)
		}
		seen[inv.Name] = true
		if inv.Host == "" {
			return fmt.Errorf("config: inverter %q has no host", inv.Name)
		}
		if inv.Port == 0 {
			c.Fleet.Inverters[i].Port = 1502
		}
		if inv.Unit == 0 {
			c.Fleet.Inverters[i].Unit = 1
		}
	}
	if c.Health.PeerRatioThreshold < 0 || c.Health.PeerRatioThreshold > 1 {
		return fmt.Errorf("config: health.peer_ratio_threshold must be within [0,1], got %v", c.Health.PeerRatioThreshold)
	}
	if c.Health.ConsecutiveRequired < 1 {
		c.Health.ConsecutiveRequired = 1
	}
	if _, err := time.LoadLocation(c.Daylight.Timezone); err != nil {
		return fmt.Errorf("config: daylight.timezone: %w", err)
	}
	if c.Cloud.Enabled && c.Cloud.APIKey == "" {
		return fmt.Errorf("config: cloud.api_key is required when cloud.enabled")
	}
	if c.Pushover.Enabled && (c.Pushover.Token == "" || c.Pushover.User == "") {
		return fmt.Errorf("config: pushover.token and pushover.user are required when pushover.enabled")
	}
	if c.Simulation.Enabled && c.Simulation.Scenario != "" {
		if _, ok := c.Simulation.Scenarios[c.Simulation.Scenario]; !ok {
			return fmt.Errorf("config: simulation.scenario %q is not defined under simulation.scenarios", c.Simulation.Scenario)
		}
	}
	return nil
}

// Location resolves the configured timezone. Validate guarantees it parses.
func (c *DaylightConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CapacityByName maps inverter name to rated capacity in kW. Inverters
// without a configured capacity are present with a nil value.
func (f *FleetConfig) CapacityByName() map[string]*float64 {
	out := make(map[string]*float64, len(f.Inverters))
	for _, inv := range f.Inverters {
		if inv.CapacityKW > 0 {
			kw := inv.CapacityKW
			out[inv.Name] = &kw
		} else {
			out[inv.Name] = nil
		}
	}
	return out
}

func (f *FleetConfig) Names() []string {
	names := make([]string, 0, len(f.Inverters))
	for _, inv := range f.Inverters {
		names = append(names, inv.Name)
	}
	return names
}
