package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/magsand/smartcharge/core/metrics"
	"github.com/magsand/smartcharge/infra/mqtt"
	"github.com/magsand/smartcharge/infra/notify"
)

type Config struct {
	MQTT     mqtt.Config    `json:"mqtt"`
	Schedule ScheduleConfig `json:"schedule"`
	Metrics  metrics.Config `json:"metrics"`
	Pushover notify.Config  `json:"pushover"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("SC_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "sc_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.MQTT.SetDefaults()
	cfg.Schedule.SetDefaults()
	cfg.Metrics.SetDefaults()
	if err := cfg.MQTT.Validate(); err != nil {
		return nil, fmt.Errorf("mqtt: %w", err)
	}
	if err := cfg.Schedule.Validate(); err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	if err := cfg.Pushover.Validate(); err != nil {
		return nil, fmt.Errorf("pushover: %w", err)
	}
	// Every configured source must map to a topic on the bridge.
	for _, src := range cfg.Schedule.Sources {
		if _, ok := cfg.MQTT.Topics.Prices[src.ID]; !ok {
			return nil, fmt.Errorf("price source %s has no mqtt topic", src.ID)
		}
	}
	return &cfg, nil
}
