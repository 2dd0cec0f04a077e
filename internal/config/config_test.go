package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "mcud.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfigFillsBandDefaults(t *testing.T) {
	path := writeConfig(t, `
instance_id: mcu-1
canvas:
  width: 640
  height: 360
max_input: 8
mqtt:
  broker: tcp://localhost:1883
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HighBand.MaxFps != 60 || cfg.HighBand.MinFps != 15 {
		t.Fatalf("expected high band defaults 60/15, got %d/%d", cfg.HighBand.MaxFps, cfg.HighBand.MinFps)
	}
	if cfg.LowBand.MaxFps != 48 || cfg.LowBand.MinFps != 6 {
		t.Fatalf("expected low band defaults 48/6, got %d/%d", cfg.LowBand.MaxFps, cfg.LowBand.MinFps)
	}
	if cfg.MQTT.ControlTopic != "mcu/control/mcu-1" {
		t.Fatalf("expected derived control topic, got %q", cfg.MQTT.ControlTopic)
	}
}

func TestLoadRejectsOddCanvasSize(t *testing.T) {
	path := writeConfig(t, `
instance_id: mcu-1
canvas:
  width: 641
  height: 360
max_input: 8
mqtt:
  broker: tcp://localhost:1883
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected odd canvas width to be rejected")
	}
}

func TestLoadRequiresBroker(t *testing.T) {
	path := writeConfig(t, `
instance_id: mcu-1
canvas:
  width: 640
  height: 360
max_input: 8
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected missing mqtt.broker to be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/mcud.yaml"); err == nil {
		t.Fatal("expected missing file to error")
	}
}
