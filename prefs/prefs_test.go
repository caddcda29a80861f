package prefs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"attacca/detect"
)

func writePrefs(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "prefs.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing prefs: %v", err)
	}
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	cfg := p.Config()
	def := detect.DefaultConfig()
	if cfg != def {
		t.Fatalf("config = %+v, want defaults %+v", cfg, def)
	}
	if p.DetectMode() != detect.ModeSinging {
		t.Fatalf("mode = %v, want singing", p.DetectMode())
	}
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := writePrefs(t, t.TempDir(), "mode: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("malformed YAML must error")
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writePrefs(t, t.TempDir(), "activation:\n  start_threshold: 0.75\n")
	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := p.Config()
	if cfg.StartThreshold != 0.75 {
		t.Fatalf("start threshold = %v, want 0.75", cfg.StartThreshold)
	}
	if cfg.HoldMs != detect.DefaultConfig().HoldMs {
		t.Fatalf("hold ms = %v, absent fields must keep defaults", cfg.HoldMs)
	}
}

func TestConfigClampsOutOfRange(t *testing.T) {
	path := writePrefs(t, t.TempDir(), `
activation:
  start_threshold: 3.5
  ema_alpha: -1
  hold_ms: 999999
  hop_ms: 5
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := p.Config()
	def := detect.DefaultConfig()
	if cfg.StartThreshold != def.StartThreshold {
		t.Fatalf("start threshold = %v, want clamped to default", cfg.StartThreshold)
	}
	if cfg.EMAAlpha != def.EMAAlpha || cfg.HoldMs != def.HoldMs || cfg.HopMs != def.HopMs {
		t.Fatalf("clamped config = %+v", cfg)
	}
}

func TestConfigHysteresisInvariant(t *testing.T) {
	path := writePrefs(t, t.TempDir(), `
activation:
  start_threshold: 0.5
  stop_threshold: 0.9
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := p.Config()
	if cfg.StopThreshold > cfg.StartThreshold {
		t.Fatalf("stop %v > start %v, invariant broken", cfg.StopThreshold, cfg.StartThreshold)
	}
}

func TestConfigHopClampedToWindow(t *testing.T) {
	path := writePrefs(t, t.TempDir(), `
activation:
  window_ms: 200
  hop_ms: 900
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := p.Config()
	if cfg.HopMs != cfg.WindowMs {
		t.Fatalf("hop %v window %v, hop must be clamped to window", cfg.HopMs, cfg.WindowMs)
	}
}

func TestRejectSpeechExplicitFalse(t *testing.T) {
	path := writePrefs(t, t.TempDir(), "activation:\n  reject_speech: false\n")
	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Config().RejectSpeech {
		t.Fatal("explicit false must stick")
	}
	// Absent field keeps the default (true).
	path2 := writePrefs(t, t.TempDir(), "mode: singing\n")
	p2, _ := Load(path2)
	if !p2.Config().RejectSpeech {
		t.Fatal("absent reject_speech must default to true")
	}
}

func TestDetectModeFallback(t *testing.T) {
	for in, want := range map[string]detect.Mode{
		"energy_vad": detect.ModeEnergyVAD,
		"singing":    detect.ModeSinging,
		"bogus":      detect.ModeSinging,
		"":           detect.ModeSinging,
	} {
		p := Preferences{Mode: in}
		if got := p.DetectMode(); got != want {
			t.Fatalf("mode %q = %v, want %v", in, got, want)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "prefs.yaml")
	p := defaults()
	p.Mode = string(detect.ModeEnergyVAD)
	p.Activation.StartThreshold = 0.7
	if err := Save(path, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.DetectMode() != detect.ModeEnergyVAD || got.Activation.StartThreshold != 0.7 {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writePrefs(t, dir, "activation:\n  start_threshold: 0.6\n")

	done := make(chan struct{})
	defer close(done)
	reloaded := make(chan Preferences, 4)
	go func() {
		if err := Watch(path, done, func(p Preferences) {
			reloaded <- p
		}); err != nil {
			t.Errorf("watch: %v", err)
		}
	}()

	time.Sleep(100 * time.Millisecond) // let the watcher attach
	writePrefs(t, dir, "activation:\n  start_threshold: 0.85\n")

	select {
	case p := <-reloaded:
		if p.Config().StartThreshold != 0.85 {
			t.Fatalf("reloaded start threshold = %v, want 0.85", p.Config().StartThreshold)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatchKeepsPreviousOnParseError(t *testing.T) {
	dir := t.TempDir()
	path := writePrefs(t, dir, "activation:\n  start_threshold: 0.6\n")

	done := make(chan struct{})
	defer close(done)
	reloaded := make(chan Preferences, 4)
	go func() {
		_ = Watch(path, done, func(p Preferences) { reloaded <- p })
	}()

	time.Sleep(100 * time.Millisecond)
	writePrefs(t, dir, "activation: [broken")

	select {
	case <-reloaded:
		t.Fatal("broken file must not produce a reload")
	case <-time.After(500 * time.Millisecond):
	}
}
