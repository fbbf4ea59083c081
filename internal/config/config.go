// Package config provides the configuration structure for the voice service.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Environment fallback for the provider credential, so the key can stay out
// of the TOML file.
const envAPIKey = "ELEVENLABS_API_KEY"

// Defaults applied to missing values.
const (
	defaultPort              = 8080
	defaultRequestsPerSecond = 10.0
	defaultBurst             = 20
	defaultTimeoutSeconds    = 30
	defaultMaxConcurrent     = 2
	defaultDispatchDelayMS   = 100
	defaultDatabasePath      = "data/agents.db"
	defaultAudioDir          = "data/audio"
	defaultAudioBucket       = "voice-audio"
)

// Audio storage backends.
const (
	AudioBackendDisk = "disk"
	AudioBackendNATS = "nats"
)

const maxPort = 65535

// Static errors.
var (
	// ErrAPIKeyRequired indicates no provider credential was configured.
	ErrAPIKeyRequired = errors.New("elevenlabs api key is required")
	// ErrInvalidPort indicates a port outside the valid range.
	ErrInvalidPort = errors.New("server port must be between 1 and 65535")
	// ErrInvalidAudioBackend indicates an unknown audio storage backend.
	ErrInvalidAudioBackend = errors.New("audio backend must be disk or nats")
	// ErrNATSRequired indicates a setting that needs NATS while NATS is disabled.
	ErrNATSRequired = errors.New("nats must be enabled for this setting")
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host              string  `toml:"host"`
	Port              int     `toml:"port"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// ElevenLabsConfig holds the external provider settings.
type ElevenLabsConfig struct {
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	MaxConcurrent   int    `toml:"max_concurrent"`
	DispatchDelayMS int    `toml:"dispatch_delay_ms"`
}

// Timeout returns the per-call provider timeout.
func (c ElevenLabsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DispatchDelay returns the dispatcher re-dispatch delay.
func (c ElevenLabsConfig) DispatchDelay() time.Duration {
	return time.Duration(c.DispatchDelayMS) * time.Millisecond
}

// StorageConfig holds the record store and audio file locations. The audio
// backend is "disk" by default; "nats" stores audio in a JetStream object
// store bucket instead.
type StorageConfig struct {
	DatabasePath string `toml:"database_path"`
	AudioDir     string `toml:"audio_dir"`
	AudioBackend string `toml:"audio_backend"`
	AudioBucket  string `toml:"audio_bucket"`
}

// NATSConfig holds the optional event publishing and worker settings.
type NATSConfig struct {
	Enabled                   bool   `toml:"enabled"`
	URL                       string `toml:"url"`
	WorkerEnabled             bool   `toml:"worker_enabled"`
	SynthesisRequestedSubject string `toml:"synthesis_requested_subject"`
	SynthesisCompletedSubject string `toml:"synthesis_completed_subject"`
	VoiceClonedSubject        string `toml:"voice_cloned_subject"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	ElevenLabs ElevenLabsConfig `toml:"elevenlabs"`
	Storage    StorageConfig    `toml:"storage"`
	NATS       NATSConfig       `toml:"nats"`
	Paths      PathsConfig      `toml:"paths"`
}

// Load loads the configuration, fills defaults, and validates it.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills zero values with package defaults. The API key also
// falls back to the environment.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}

	if c.Server.RequestsPerSecond <= 0 {
		c.Server.RequestsPerSecond = defaultRequestsPerSecond
	}

	if c.Server.Burst <= 0 {
		c.Server.Burst = defaultBurst
	}

	if c.ElevenLabs.APIKey == "" {
		c.ElevenLabs.APIKey = os.Getenv(envAPIKey)
	}

	if c.ElevenLabs.TimeoutSeconds <= 0 {
		c.ElevenLabs.TimeoutSeconds = defaultTimeoutSeconds
	}

	if c.ElevenLabs.MaxConcurrent <= 0 {
		c.ElevenLabs.MaxConcurrent = defaultMaxConcurrent
	}

	if c.ElevenLabs.DispatchDelayMS <= 0 {
		c.ElevenLabs.DispatchDelayMS = defaultDispatchDelayMS
	}

	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = defaultDatabasePath
	}

	if c.Storage.AudioDir == "" {
		c.Storage.AudioDir = defaultAudioDir
	}

	if c.Storage.AudioBackend == "" {
		c.Storage.AudioBackend = AudioBackendDisk
	}

	if c.Storage.AudioBucket == "" {
		c.Storage.AudioBucket = defaultAudioBucket
	}
}

// Validate checks the loaded configuration for values the service cannot
// run without.
func (c *Config) Validate() error {
	if c.ElevenLabs.APIKey == "" {
		return ErrAPIKeyRequired
	}

	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return ErrInvalidPort
	}

	switch c.Storage.AudioBackend {
	case AudioBackendDisk:
	case AudioBackendNATS:
		if !c.NATS.Enabled {
			return fmt.Errorf("%w: audio_backend=nats", ErrNATSRequired)
		}
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidAudioBackend, c.Storage.AudioBackend)
	}

	if c.NATS.WorkerEnabled && !c.NATS.Enabled {
		return fmt.Errorf("%w: worker_enabled=true", ErrNATSRequired)
	}

	return nil
}
