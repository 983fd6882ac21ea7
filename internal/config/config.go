package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Wyydra/callcore/internal/core/domain"
	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog"
)

// Config is read from an optional YAML file, then CALLCORE_* environment
// variables override individual keys.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	Call    CallConfig    `yaml:"call"`
	Backend BackendConfig `yaml:"backend"`
	Audio   AudioConfig   `yaml:"audio"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// DebugRoutes mounts /backend for driving the in-memory backend.
	DebugRoutes bool `yaml:"debug_routes"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// File enables a rotated log file next to console output.
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// ParseLevel maps Level to a zerolog level. An empty level means info.
func (c LogConfig) ParseLevel() (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", c.Level)
	}
}

type CallConfig struct {
	IncomingDelay         time.Duration `yaml:"incoming_delay"`
	OutgoingActivateDelay time.Duration `yaml:"outgoing_activate_delay"`
}

type BackendConfig struct {
	Endpoints []EndpointConfig `yaml:"endpoints"`
	// InitialEndpoint indexes Endpoints, -1 for no starting route.
	InitialEndpoint int           `yaml:"initial_endpoint"`
	Latency         time.Duration `yaml:"latency"`
}

type EndpointConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type AudioConfig struct {
	Enabled    bool    `yaml:"enabled"`
	MicGranted bool    `yaml:"mic_granted"`
	SampleRate int     `yaml:"sample_rate"`
	FrameSize  int     `yaml:"frame_size"`
	ToneHz     float64 `yaml:"tone_hz"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
			DebugRoutes:     true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 1,
		},
		Call: CallConfig{
			IncomingDelay:         2 * time.Second,
			OutgoingActivateDelay: 2 * time.Second,
		},
		Backend: BackendConfig{
			Endpoints: []EndpointConfig{
				{Name: "Earpiece", Type: "earpiece"},
				{Name: "Speaker", Type: "speaker"},
			},
			InitialEndpoint: 0,
		},
		Audio: AudioConfig{
			Enabled:    true,
			MicGranted: true,
			SampleRate: 48000,
			FrameSize:  960,
			ToneHz:     440,
		},
	}
}

// Load starts from Default, applies the file at path if path is not empty,
// then the environment.
func Load(path string) (Config, error) {
	c := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	envString("CALLCORE_HTTP_ADDR", &c.HTTP.Addr)
	envString("CALLCORE_LOG_LEVEL", &c.Log.Level)
	envString("CALLCORE_LOG_FILE", &c.Log.File)

	errs = appendErr(errs, envDuration("CALLCORE_INCOMING_DELAY", &c.Call.IncomingDelay))
	errs = appendErr(errs, envDuration("CALLCORE_OUTGOING_ACTIVATE_DELAY", &c.Call.OutgoingActivateDelay))
	errs = appendErr(errs, envDuration("CALLCORE_BACKEND_LATENCY", &c.Backend.Latency))
	errs = appendErr(errs, envBool("CALLCORE_DEBUG_ROUTES", &c.HTTP.DebugRoutes))
	errs = appendErr(errs, envBool("CALLCORE_AUDIO_ENABLED", &c.Audio.Enabled))
	errs = appendErr(errs, envBool("CALLCORE_MIC_GRANTED", &c.Audio.MicGranted))

	return joinErrors(errs)
}

func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.shutdown_timeout must be positive, got %s", c.HTTP.ShutdownTimeout))
	}

	if _, err := c.Log.ParseLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.File != "" && c.Log.MaxSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("log.max_size_mb must be positive, got %d", c.Log.MaxSizeMB))
	}

	if c.Call.IncomingDelay < 0 {
		errs = append(errs, fmt.Errorf("call.incoming_delay must not be negative, got %s", c.Call.IncomingDelay))
	}
	if c.Call.OutgoingActivateDelay < 0 {
		errs = append(errs, fmt.Errorf("call.outgoing_activate_delay must not be negative, got %s", c.Call.OutgoingActivateDelay))
	}

	for i, e := range c.Backend.Endpoints {
		if strings.TrimSpace(e.Name) == "" {
			errs = append(errs, fmt.Errorf("backend.endpoints[%d].name is required", i))
		}
		if domain.ParseEndpointType(e.Type) == domain.EndpointUnknown && !strings.EqualFold(e.Type, "unknown") {
			errs = append(errs, fmt.Errorf("backend.endpoints[%d].type %q is not a known endpoint type", i, e.Type))
		}
	}
	if i, n := c.Backend.InitialEndpoint, len(c.Backend.Endpoints); i < -1 || (n > 0 && i >= n) {
		errs = append(errs, fmt.Errorf("backend.initial_endpoint %d is out of range", i))
	}
	if c.Backend.Latency < 0 {
		errs = append(errs, fmt.Errorf("backend.latency must not be negative, got %s", c.Backend.Latency))
	}

	if c.Audio.Enabled {
		if c.Audio.SampleRate <= 0 {
			errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
		}
		if c.Audio.FrameSize <= 0 {
			errs = append(errs, fmt.Errorf("audio.frame_size must be positive, got %d", c.Audio.FrameSize))
		}
	}

	return joinErrors(errs)
}

// DomainEndpoints gives every configured endpoint a fresh id.
func (c BackendConfig) DomainEndpoints() []domain.Endpoint {
	out := make([]domain.Endpoint, 0, len(c.Endpoints))
	for _, e := range c.Endpoints {
		out = append(out, domain.Endpoint{
			ID:   domain.NewEndpointID(),
			Name: e.Name,
			Type: domain.ParseEndpointType(e.Type),
		})
	}
	return out
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envDuration(key string, dst *time.Duration) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s must be a duration, got %q", key, v)
	}
	*dst = d
	return nil
}

func envBool(key string, dst *bool) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	*dst = b
	return nil
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		errs = append(errs, err)
	}
	return errs
}

func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:")
	for _, e := range errs {
		b.WriteString("\n- ")
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}
