package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Fleet: FleetConfig{
			Inverters: []InverterConfig{
				{Name: "east", Host: "192.168.1.10", CapacityKW: 5.0},
				{Name: "west", Host: "192.168.1.11"},
			},
		},
		Health: HealthConfig{
			PeerRatioThreshold:  0.2,
			ConsecutiveRequired: 2,
		},
		Daylight: DaylightConfig{Timezone: "UTC"},
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := validConfig()

	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1502, cfg.Fleet.Inverters[0].Port)
	assert.Equal(t, uint8(1), cfg.Fleet.Inverters[0].Unit)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cfg := validConfig()
	cfg.Fleet.Inverters = nil
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Fleet.Inverters[1].Name = "east"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Fleet.Inverters[0].Host = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Health.PeerRatioThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Daylight.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Cloud.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Pushover.Enabled = true
	assert.Error(t, cfg.Validate())
}

func TestValidateClampsConsecutiveRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Health.ConsecutiveRequired = 0

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Health.ConsecutiveRequired)
}

func TestCapacityByName(t *testing.T) {
	cfg := validConfig()

	capacities := cfg.Fleet.CapacityByName()

	require.NotNil(t, capacities["east"])
	assert.Equal(t, 5.0, *capacities["east"])
	assert.Contains(t, capacities, "west")
	assert.Nil(t, capacities["west"])
}

func TestNames(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, []string{"east", "west"}, cfg.Fleet.Names())
}
