// Package prefs loads, clamps and hot-reloads the user preference file.
// Preferences arrive from a hand-edited YAML file, so every numeric field is
// clamped into its sane range instead of rejected: a typo in one knob must
// never take listening down.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"attacca/detect"
	"attacca/log"
)

// Activation mirrors detect.Config in YAML form.
type Activation struct {
	StartThreshold float64 `yaml:"start_threshold"`
	StopThreshold  float64 `yaml:"stop_threshold"`
	EMAAlpha       float64 `yaml:"ema_alpha"`
	HoldMs         int     `yaml:"hold_ms"`
	CooldownMs     int     `yaml:"cooldown_ms"`
	SpeechMax      float64 `yaml:"speech_max"`
	RejectSpeech   *bool   `yaml:"reject_speech"`
	WindowMs       int     `yaml:"window_ms"`
	HopMs          int     `yaml:"hop_ms"`
}

// Classifier points at the model assets.
type Classifier struct {
	ModelPath    string `yaml:"model_path"`
	ClassMapPath string `yaml:"class_map_path"`
}

// Preferences is the full preference file.
type Preferences struct {
	Mode       string     `yaml:"mode"`
	Device     string     `yaml:"device"`
	Activation Activation `yaml:"activation"`
	Classifier Classifier `yaml:"classifier"`
	Debug      bool       `yaml:"debug"`
}

// DefaultPath returns the per-user preference file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "attacca.yaml"
	}
	return filepath.Join(dir, "attacca", "prefs.yaml")
}

// Load reads and parses the preference file. A missing file yields defaults
// without error; a malformed file is an error (the caller keeps what it had).
func Load(path string) (Preferences, error) {
	p := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, fmt.Errorf("reading preferences: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return defaults(), fmt.Errorf("parsing preferences: %w", err)
	}
	return p, nil
}

func defaults() Preferences {
	cfg := detect.DefaultConfig()
	return Preferences{
		Mode: string(detect.ModeSinging),
		Activation: Activation{
			StartThreshold: cfg.StartThreshold,
			StopThreshold:  cfg.StopThreshold,
			EMAAlpha:       cfg.EMAAlpha,
			HoldMs:         cfg.HoldMs,
			CooldownMs:     cfg.CooldownMs,
			SpeechMax:      cfg.SpeechMax,
			WindowMs:       cfg.WindowMs,
			HopMs:          cfg.HopMs,
		},
	}
}

// Mode returns the detector mode, falling back to the classifier mode on an
// unrecognized value.
func (p Preferences) DetectMode() detect.Mode {
	switch detect.Mode(p.Mode) {
	case detect.ModeEnergyVAD:
		return detect.ModeEnergyVAD
	default:
		return detect.ModeSinging
	}
}

// Config converts the activation block to a detect.Config, clamping every
// field into range. Clamps are logged so a user can see why their value was
// not honored.
func (p Preferences) Config() detect.Config {
	def := detect.DefaultConfig()
	a := p.Activation
	cfg := detect.Config{
		StartThreshold: clampF("start_threshold", a.StartThreshold, 0.05, 0.99, def.StartThreshold),
		EMAAlpha:       clampF("ema_alpha", a.EMAAlpha, 0.01, 1.0, def.EMAAlpha),
		HoldMs:         clampI("hold_ms", a.HoldMs, 0, 5000, def.HoldMs),
		CooldownMs:     clampI("cooldown_ms", a.CooldownMs, 0, 60000, def.CooldownMs),
		SpeechMax:      clampF("speech_max", a.SpeechMax, 0.05, 1.0, def.SpeechMax),
		RejectSpeech:   def.RejectSpeech,
		WindowMs:       clampI("window_ms", a.WindowMs, 100, 5000, def.WindowMs),
		HopMs:          clampI("hop_ms", a.HopMs, 50, 2000, def.HopMs),
		Debug:          p.Debug,
	}
	// StopThreshold must not exceed StartThreshold (hysteresis invariant).
	cfg.StopThreshold = clampF("stop_threshold", a.StopThreshold, 0.01, cfg.StartThreshold, min(def.StopThreshold, cfg.StartThreshold))
	if a.RejectSpeech != nil {
		cfg.RejectSpeech = *a.RejectSpeech
	}
	if cfg.HopMs > cfg.WindowMs {
		log.Warnf("prefs: hop_ms %d > window_ms %d, clamping hop to window", cfg.HopMs, cfg.WindowMs)
		cfg.HopMs = cfg.WindowMs
	}
	return cfg
}

func clampF(name string, v, lo, hi, def float64) float64 {
	if v < lo || v > hi {
		log.Warnf("prefs: %s=%v out of range [%v, %v], using %v", name, v, lo, hi, def)
		return def
	}
	return v
}

func clampI(name string, v, lo, hi, def int) int {
	if v < lo || v > hi {
		log.Warnf("prefs: %s=%d out of range [%d, %d], using %d", name, v, lo, hi, def)
		return def
	}
	return v
}

// Save writes the preferences, creating the parent directory as needed.
func Save(path string, p Preferences) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating preferences dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}
	return nil
}
