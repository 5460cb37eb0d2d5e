package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.Reveal.HighThreshold != 0.8 || c.Reveal.MediumThreshold != 0.6 {
		t.Errorf("default reveal thresholds wrong: %+v", c.Reveal)
	}
	if c.Reveal.MediumDelayMs != 50 || c.Reveal.LowDelayMs != 100 {
		t.Errorf("default reveal delays wrong: %+v", c.Reveal)
	}
	if c.Suggest.TimeoutMs != 3000 {
		t.Errorf("default suggest timeout %d, want 3000", c.Suggest.TimeoutMs)
	}
	if c.Labeling.TimeoutMs != 5000 {
		t.Errorf("default labeling timeout %d, want 5000", c.Labeling.TimeoutMs)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	c := DefaultConfig()
	c.Reveal.HighThreshold = 0.9
	c.Labeling.Policy = map[string]string{"strict": "yes"}

	if err := SaveConfig(c, path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Reveal.HighThreshold != 0.9 {
		t.Errorf("round trip lost threshold: %+v", loaded.Reveal)
	}
	if loaded.Labeling.Policy["strict"] != "yes" {
		t.Errorf("round trip lost policy: %+v", loaded.Labeling)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	partial := "[reveal]\nhigh_threshold = 0.75\n"
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Reveal.HighThreshold != 0.75 {
		t.Errorf("explicit key not applied: %+v", loaded.Reveal)
	}
	if loaded.Reveal.MediumDelayMs != 50 {
		t.Errorf("missing keys should keep defaults: %+v", loaded.Reveal)
	}
}

func TestInitConfigCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	c, err := InitConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c == nil {
		t.Fatal("nil config")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}

func TestUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	c := DefaultConfig()
	high := 0.95
	lowDelay := 200
	if err := c.Update(path, &high, nil, nil, &lowDelay); err != nil {
		t.Fatal(err)
	}
	if c.Reveal.HighThreshold != 0.95 || c.Reveal.LowDelayMs != 200 {
		t.Errorf("update missed: %+v", c.Reveal)
	}
	if c.Reveal.MediumThreshold != 0.6 {
		t.Errorf("nil pointer should keep value: %+v", c.Reveal)
	}
}

func TestUpdateSaveFailureKeepsValues(t *testing.T) {
	// A path under a missing directory makes the save fail; the
	// in-memory config must stay on its old values, never half-applied.
	path := filepath.Join(t.TempDir(), "missing", "config.toml")
	c := DefaultConfig()
	high := 0.95
	if err := c.Update(path, &high, nil, nil, nil); err == nil {
		t.Fatal("expected save failure")
	}
	if c.Reveal.HighThreshold != 0.8 {
		t.Errorf("failed update must not change thresholds: %+v", c.Reveal)
	}
}
