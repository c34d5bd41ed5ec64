package config

import (
	"time"

	"github.com/caltechlibrary/commonpy/network"
)

// Config represents the configuration of the network tools: the request
// executor, the connectivity probe and logging.
type Config struct {
	Network NetworkConfig `koanf:"network" json:"network" yaml:"network"`
	Probe   ProbeConfig   `koanf:"probe" json:"probe" yaml:"probe"`
	Log     LogConfig     `koanf:"log" json:"log" yaml:"log"`
}

// NetworkConfig holds the request executor settings.
type NetworkConfig struct {
	Timeout            TimeoutConfig   `koanf:"timeout" json:"timeout" yaml:"timeout"`
	HTTP2              bool            `koanf:"http2" json:"http2" yaml:"http2"`
	InsecureSkipVerify bool            `koanf:"insecureskipverify" json:"insecureskipverify" yaml:"insecureskipverify"`
	MaxRedirects       int             `koanf:"maxredirects" json:"maxredirects" yaml:"maxredirects" validate:"gte=1"`
	Retry              RetryConfig     `koanf:"retry" json:"retry" yaml:"retry"`
	Pause              PauseConfig     `koanf:"pause" json:"pause" yaml:"pause"`
	RateLimit          RateLimitConfig `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit"`
	RequestIDHeader    string          `koanf:"requestidheader" json:"requestidheader" yaml:"requestidheader" validate:"required"`
}

// TimeoutConfig holds per-operation socket timeouts.
type TimeoutConfig struct {
	Connect time.Duration `koanf:"connect" json:"connect" yaml:"connect" validate:"gt=0"`
	Read    time.Duration `koanf:"read" json:"read" yaml:"read" validate:"gt=0"`
	Write   time.Duration `koanf:"write" json:"write" yaml:"write" validate:"gt=0"`
}

// RetryConfig bounds the retry loops.
type RetryConfig struct {
	MaxConsecutiveFails int `koanf:"maxconsecutivefails" json:"maxconsecutivefails" yaml:"maxconsecutivefails" validate:"gte=1"`
	MaxEscalations      int `koanf:"maxescalations" json:"maxescalations" yaml:"maxescalations" validate:"gte=0"`
	MaxRecursiveCalls   int `koanf:"maxrecursivecalls" json:"maxrecursivecalls" yaml:"maxrecursivecalls" validate:"gte=0"`
}

// PauseConfig holds the waits between attempts.
type PauseConfig struct {
	Brief      time.Duration `koanf:"brief" json:"brief" yaml:"brief" validate:"gte=0"`
	Escalation time.Duration `koanf:"escalation" json:"escalation" yaml:"escalation" validate:"gte=0"`
	RateLimit  time.Duration `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit" validate:"gte=0"`
	Poll       time.Duration `koanf:"poll" json:"poll" yaml:"poll" validate:"gte=0"`
}

// RateLimitConfig enables client-side throttling when RPS is positive.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps" json:"rps" yaml:"rps" validate:"gte=0"`
	Burst int     `koanf:"burst" json:"burst" yaml:"burst" validate:"gte=0"`
}

// ProbeConfig holds the connectivity probe target.
type ProbeConfig struct {
	Address string        `koanf:"address" json:"address" yaml:"address" validate:"required,ip|hostname"`
	Port    int           `koanf:"port" json:"port" yaml:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// ToNetwork converts the settings into a network.Config.
func (c NetworkConfig) ToNetwork() network.Config {
	return network.Config{
		ConnectTimeout:      c.Timeout.Connect,
		ReadTimeout:         c.Timeout.Read,
		WriteTimeout:        c.Timeout.Write,
		HTTP2:               c.HTTP2,
		InsecureSkipVerify:  c.InsecureSkipVerify,
		MaxRedirects:        c.MaxRedirects,
		MaxConsecutiveFails: c.Retry.MaxConsecutiveFails,
		MaxEscalations:      c.Retry.MaxEscalations,
		MaxRecursiveCalls:   c.Retry.MaxRecursiveCalls,
		BriefPause:          c.Pause.Brief,
		EscalationPause:     c.Pause.Escalation,
		RateLimitPause:      c.Pause.RateLimit,
		PollPause:           c.Pause.Poll,
		RequestsPerSecond:   c.RateLimit.RPS,
		Burst:               c.RateLimit.Burst,
		RequestIDHeader:     c.RequestIDHeader,
	}
}

// Prober returns a TCP prober for the configured target.
func (c ProbeConfig) Prober() network.TCPProber {
	return network.TCPProber{Address: c.Address, Port: c.Port, Timeout: c.Timeout}
}
