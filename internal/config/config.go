package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Defaults and bounds for audio settings.
const (
	DefaultSampleRate  = 16000
	DefaultChannels    = 1
	DefaultChunkSize   = 1024
	DefaultMaxDuration = 300 // seconds

	MinChunkSize = 512
	MaxChunkSize = 8192

	// Rates outside this range are rejected rather than clamped.
	minSampleRate = 8000
	maxSampleRate = 192000
)

// AudioConfig holds the capture parameters for one recording session.
// Treated as immutable once a session has started.
type AudioConfig struct {
	SampleRate  int `mapstructure:"sample_rate"`
	Channels    int `mapstructure:"channels"`
	ChunkSize   int `mapstructure:"chunk_size"`   // frames per read
	MaxDuration int `mapstructure:"max_duration"` // seconds, hard ceiling
}

type Config struct {
	Audio     AudioConfig `mapstructure:"audio"`
	OutputDir string      `mapstructure:"output_dir"`
	LogLevel  string      `mapstructure:"log_level"`
}

// Load reads configuration from VOXCAP_* environment variables, picking up
// an optional .env file first. An invalid sample rate, channel count or max
// duration fails fast; an out-of-range chunk size falls back to the default.
func Load() (*Config, error) {
	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("VOXCAP")
	v.AutomaticEnv()

	v.SetDefault("sample_rate", DefaultSampleRate)
	v.SetDefault("channels", DefaultChannels)
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("max_duration", DefaultMaxDuration)
	v.SetDefault("output_dir", "recordings")
	v.SetDefault("log_level", "info")

	cfg := &Config{
		Audio: AudioConfig{
			SampleRate:  v.GetInt("sample_rate"),
			Channels:    v.GetInt("channels"),
			ChunkSize:   v.GetInt("chunk_size"),
			MaxDuration: v.GetInt("max_duration"),
		},
		OutputDir: v.GetString("output_dir"),
		LogLevel:  v.GetString("log_level"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration, normalizing the chunk size when it is
// outside the supported range.
func (c *Config) Validate() error {
	a := &c.Audio
	if a.SampleRate < minSampleRate || a.SampleRate > maxSampleRate {
		return fmt.Errorf("sample rate %d Hz out of range [%d, %d]", a.SampleRate, minSampleRate, maxSampleRate)
	}
	if a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", a.Channels)
	}
	if a.ChunkSize < MinChunkSize || a.ChunkSize > MaxChunkSize {
		a.ChunkSize = DefaultChunkSize
	}
	if a.MaxDuration <= 0 {
		return fmt.Errorf("max duration must be positive, got %d", a.MaxDuration)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	return nil
}
