// Package config loads the daemon's TOML configuration document and
// persists the whole document back to disk atomically.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full recognized configuration surface. All fields have
// defaults; absent fields take them.
type Config struct {
	Hotkey        HotkeyConfig        `toml:"hotkey"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Audio         AudioConfig         `toml:"audio"`
	Output        OutputConfig        `toml:"output"`
	Queue         QueueConfig         `toml:"queue"`
	Vocabulary    VocabularyConfig    `toml:"vocabulary"`
	Correction    CorrectionConfig    `toml:"correction"`
}

type HotkeyConfig struct {
	Key  string `toml:"key"`
	Mode string `toml:"mode"` // "push_to_talk" | "toggle"
}

type TranscriptionConfig struct {
	Model     string `toml:"model"`
	Language  string `toml:"language"` // "auto" or ISO code
	Device    string `toml:"device"`   // "cuda" | "cpu"
	Translate bool   `toml:"translate"`
}

type AudioConfig struct {
	PrebufferDurationSecs float64                `toml:"prebuffer_duration_secs"`
	ResamplingQuality     string                 `toml:"resampling_quality"` // "low" | "high"
	Preprocessing         bool                   `toml:"preprocessing"`
	Normalization         NormalizationConfig    `toml:"normalization"`
	Compression           CompressionConfig      `toml:"compression"`
	Limiter               LimiterConfig          `toml:"limiter"`
	NoiseReduction        NoiseReductionConfig   `toml:"noise_reduction"`
}

type NormalizationConfig struct {
	Enabled  bool    `toml:"enabled"`
	TargetDB float64 `toml:"target_db"`
}

type CompressionConfig struct {
	Enabled      bool    `toml:"enabled"`
	ThresholdDB  float64 `toml:"threshold_db"`
	Ratio        float64 `toml:"ratio"`
	AttackMs     float64 `toml:"attack_ms"`
	ReleaseMs    float64 `toml:"release_ms"`
	MakeupGainDB float64 `toml:"makeup_gain_db"`
}

type LimiterConfig struct {
	Enabled   bool    `toml:"enabled"`
	CeilingDB float64 `toml:"ceiling_db"`
	ReleaseMs float64 `toml:"release_ms"`
}

type NoiseReductionConfig struct {
	Enabled  bool    `toml:"enabled"`
	Strength float64 `toml:"strength"`
}

type OutputConfig struct {
	Clipboard bool `toml:"clipboard"`
	Paste     bool `toml:"paste"`
}

type QueueConfig struct {
	ChunkIntervalSecs float64 `toml:"chunk_interval_secs"`
	Separator         string  `toml:"separator"`
}

type VocabularyConfig struct {
	Path string `toml:"path"`
}

type CorrectionConfig struct {
	Enabled     bool    `toml:"enabled"`
	EndpointURL string  `toml:"endpoint_url"`
	Model       string  `toml:"model"`
	TimeoutSecs float64 `toml:"timeout_secs"`
}

// Default returns factory defaults for every field.
func Default() Config {
	return Config{
		Hotkey: HotkeyConfig{Key: "ctrl+space", Mode: "push_to_talk"},
		Transcription: TranscriptionConfig{
			Model: "base.en", Language: "auto", Device: "cpu",
		},
		Audio: AudioConfig{
			PrebufferDurationSecs: 10,
			ResamplingQuality:     "low",
			Preprocessing:         true,
			Normalization:         NormalizationConfig{Enabled: true, TargetDB: -20},
			Compression:           CompressionConfig{Enabled: true, ThresholdDB: -18, Ratio: 3, AttackMs: 10, ReleaseMs: 100, MakeupGainDB: 3},
			Limiter:               LimiterConfig{Enabled: true, CeilingDB: -1, ReleaseMs: 50},
			NoiseReduction:        NoiseReductionConfig{Enabled: false, Strength: 0.5},
		},
		Output: OutputConfig{Clipboard: true, Paste: true},
		Queue:  QueueConfig{ChunkIntervalSecs: 2, Separator: " "},
		Vocabulary: VocabularyConfig{
			Path: "vocabulary.toml",
		},
		Correction: CorrectionConfig{
			Enabled: false, EndpointURL: "http://127.0.0.1:11434", Model: "gemma3:1b", TimeoutSecs: 1,
		},
	}
}

// Service loads and persists Config at a fixed path, exposing a minimal
// dotted-key accessor surface for the IPC config_get/config_set commands.
type Service struct {
	path string
}

// New creates a Service pointing at the standard per-user config
// location. It does not touch the disk; Save creates the directory.
func New() (*Service, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("config: resolve home dir: %w", err)
	}
	return NewAt(filepath.Join(home, ".config", "voxd", "config.toml")), nil
}

// NewAt creates a Service at an explicit path (tests, or an overridden
// --config flag).
func NewAt(path string) *Service {
	return &Service{path: path}
}

// Path returns the configured file path.
func (s *Service) Path() string { return s.path }

// Load reads config from disk, returning defaults if the file is
// absent. A parse error is fatal at startup — the caller is expected
// to treat a non-nil error as fatal and exit before any component
// starts.
func (s *Service) Load() (Config, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %q: %w", s.path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", s.path, err)
	}
	return cfg, nil
}

// Save writes cfg atomically (write to a temp file, then rename).
func (s *Service) Save(cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("config: rename temp file: %w", err)
	}
	return nil
}
