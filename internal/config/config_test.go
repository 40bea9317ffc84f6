package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("expected sample rate %d, got %d", DefaultSampleRate, cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != DefaultChannels {
		t.Errorf("expected %d channel(s), got %d", DefaultChannels, cfg.Audio.Channels)
	}
	if cfg.Audio.ChunkSize != DefaultChunkSize {
		t.Errorf("expected chunk size %d, got %d", DefaultChunkSize, cfg.Audio.ChunkSize)
	}
	if cfg.Audio.MaxDuration != DefaultMaxDuration {
		t.Errorf("expected max duration %d, got %d", DefaultMaxDuration, cfg.Audio.MaxDuration)
	}
	if cfg.OutputDir == "" {
		t.Error("expected non-empty default output directory")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("VOXCAP_SAMPLE_RATE", "44100")
	t.Setenv("VOXCAP_CHANNELS", "2")
	t.Setenv("VOXCAP_CHUNK_SIZE", "2048")
	t.Setenv("VOXCAP_MAX_DURATION", "60")
	t.Setenv("VOXCAP_OUTPUT_DIR", "/tmp/captures")
	t.Setenv("VOXCAP_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("expected sample rate 44100, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 2 {
		t.Errorf("expected 2 channels, got %d", cfg.Audio.Channels)
	}
	if cfg.Audio.ChunkSize != 2048 {
		t.Errorf("expected chunk size 2048, got %d", cfg.Audio.ChunkSize)
	}
	if cfg.Audio.MaxDuration != 60 {
		t.Errorf("expected max duration 60, got %d", cfg.Audio.MaxDuration)
	}
	if cfg.OutputDir != "/tmp/captures" {
		t.Errorf("expected output dir /tmp/captures, got %s", cfg.OutputDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.LogLevel)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero sample rate",
			mutate:  func(c *Config) { c.Audio.SampleRate = 0 },
			wantErr: "sample rate",
		},
		{
			name:    "absurd sample rate",
			mutate:  func(c *Config) { c.Audio.SampleRate = 10_000_000 },
			wantErr: "sample rate",
		},
		{
			name:    "three channels",
			mutate:  func(c *Config) { c.Audio.Channels = 3 },
			wantErr: "channels",
		},
		{
			name:    "zero max duration",
			mutate:  func(c *Config) { c.Audio.MaxDuration = 0 },
			wantErr: "max duration",
		},
		{
			name:    "empty output dir",
			mutate:  func(c *Config) { c.OutputDir = "" },
			wantErr: "output directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %q", tt.wantErr, err)
			}
		})
	}
}

func TestValidateChunkSizeFallsBack(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"too small", 16},
		{"too large", 1 << 20},
		{"negative", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Audio.ChunkSize = tt.size
			if err := cfg.Validate(); err != nil {
				t.Fatalf("expected fallback, got error: %v", err)
			}
			if cfg.Audio.ChunkSize != DefaultChunkSize {
				t.Errorf("expected chunk size to fall back to %d, got %d", DefaultChunkSize, cfg.Audio.ChunkSize)
			}
		})
	}
}

func TestValidateKeepsInRangeChunkSize(t *testing.T) {
	cfg := validConfig()
	cfg.Audio.ChunkSize = 4096
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audio.ChunkSize != 4096 {
		t.Errorf("expected chunk size 4096 to be preserved, got %d", cfg.Audio.ChunkSize)
	}
}

func validConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:  DefaultSampleRate,
			Channels:    DefaultChannels,
			ChunkSize:   DefaultChunkSize,
			MaxDuration: DefaultMaxDuration,
		},
		OutputDir: "recordings",
		LogLevel:  "info",
	}
}
