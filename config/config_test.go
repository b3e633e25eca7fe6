package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
mqtt:
  broker: tcp://localhost:1883
  topics:
    command: ha/charger/set
    charging_state: ha/charger/state
    remaining: ha/charger/time_left
    presence: ha/tracker/car
    prices:
      today: ha/prices/today
      tomorrow: ha/prices/tomorrow
schedule:
  latest_finish: "07:30"
  price_sources:
    - id: today
      required: true
    - id: tomorrow
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", validYAML))
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	earliest, latest := cfg.Schedule.Window()
	assert.Equal(t, time.Duration(0), earliest)
	assert.Equal(t, 7*time.Hour+30*time.Minute, latest)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.PollInterval())
	assert.Equal(t, 5*time.Minute, cfg.Schedule.RemainingTolerance())
	assert.Equal(t, "smartcharge", cfg.MQTT.ClientID)
	require.Len(t, cfg.Schedule.Sources, 2)
	assert.True(t, cfg.Schedule.Sources[0].Required)
	assert.False(t, cfg.Schedule.Sources[1].Required)
}

func TestLoadInvertedWindowFails(t *testing.T) {
	bad := strings.Replace(validYAML, `latest_finish: "07:30"`,
		"latest_finish: \"07:30\"\n  earliest_start: \"09:00\"", 1)
	_, err := Load(writeConfig(t, "config.yaml", bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "earliest_start")
}

func TestLoadSourceWithoutTopicFails(t *testing.T) {
	bad := strings.Replace(validYAML, "      tomorrow: ha/prices/tomorrow\n", "", 1)
	_, err := Load(writeConfig(t, "config.yaml", bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no mqtt topic")
}

func TestLoadMissingBrokerFails(t *testing.T) {
	bad := strings.Replace(validYAML, "  broker: tcp://localhost:1883\n", "", 1)
	_, err := Load(writeConfig(t, "config.yaml", bad))
	require.Error(t, err)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", validYAML))
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SC_MQTT__CLIENT_ID", "override-id")
	cfg, err := Load(writeConfig(t, "config.yaml", validYAML))
	require.NoError(t, err)
	assert.Equal(t, "override-id", cfg.MQTT.ClientID)
}
