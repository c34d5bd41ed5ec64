package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/caltechlibrary/commonpy/network"
)

// EnvPrefix is the prefix of environment variables read by Load.
// COMMONPY_NETWORK_TIMEOUT_CONNECT sets network.timeout.connect.
const EnvPrefix = "COMMONPY_"

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. The YAML file at path, if path is not empty
// 3. Default values (lowest priority)
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(envprovider.Provider(".", envprovider.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return strings.ReplaceAll(key, "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return unmarshal(k)
}

// LoadBytes loads YAML configuration from memory on top of the defaults.
// The environment is not consulted.
func LoadBytes(data []byte) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return unmarshal(k)
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	def := network.DefaultConfig()
	defaults := map[string]any{
		"network.timeout.connect":           def.ConnectTimeout.String(),
		"network.timeout.read":              def.ReadTimeout.String(),
		"network.timeout.write":             def.WriteTimeout.String(),
		"network.http2":                     def.HTTP2,
		"network.insecureskipverify":        def.InsecureSkipVerify,
		"network.maxredirects":              def.MaxRedirects,
		"network.retry.maxconsecutivefails": def.MaxConsecutiveFails,
		"network.retry.maxescalations":      def.MaxEscalations,
		"network.retry.maxrecursivecalls":   def.MaxRecursiveCalls,
		"network.pause.brief":               def.BriefPause.String(),
		"network.pause.escalation":          def.EscalationPause.String(),
		"network.pause.ratelimit":           def.RateLimitPause.String(),
		"network.pause.poll":                def.PollPause.String(),
		"network.ratelimit.rps":             0,
		"network.ratelimit.burst":           0,
		"network.requestidheader":           def.RequestIDHeader,

		"probe.address": network.DefaultProbeAddress,
		"probe.port":    network.DefaultProbePort,
		"probe.timeout": network.DefaultProbeTimeout.String(),

		"log.level":  "info",
		"log.pretty": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
