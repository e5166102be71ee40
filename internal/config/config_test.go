package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if got := cfg.Engine.Period.Duration(); got != 100*time.Millisecond {
		t.Errorf("engine.period = %v, want 100ms", got)
	}
	if cfg.Engine.Capacity != 4 {
		t.Errorf("engine.capacity = %d, want 4", cfg.Engine.Capacity)
	}
	if cfg.Engine.Curve != "lut" {
		t.Errorf("engine.curve = %q, want lut", cfg.Engine.Curve)
	}
	if cfg.Log.GetLevel() != "info" {
		t.Errorf("log.level = %q, want info", cfg.Log.GetLevel())
	}
	if cfg.Database.Path != "./ledd.sqlite" {
		t.Errorf("database.path = %q, want ./ledd.sqlite", cfg.Database.Path)
	}
	if cfg.Script != "main.lua" {
		t.Errorf("script = %q, want main.lua", cfg.Script)
	}
	if cfg.EventBus.GetWorkers() != 4 || cfg.EventBus.GetQueueSize() != 100 {
		t.Errorf("eventbus defaults = %d/%d, want 4/100", cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())
	}
	if cfg.GetShutdownTimeout() != 5*time.Second {
		t.Errorf("shutdown_timeout = %v, want 5s", cfg.GetShutdownTimeout())
	}
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
engine:
  period: 50ms
  capacity: 8
  curve: cosine
leds:
  - id: 0
    name: green
    backend: console
  - id: 1
    name: blue
    backend: gpio
    pin: GPIO17
log:
  level: debug
script: effects.lua
`))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if got := cfg.Engine.Period.Duration(); got != 50*time.Millisecond {
		t.Errorf("engine.period = %v, want 50ms", got)
	}
	if cfg.Engine.Curve != "cosine" {
		t.Errorf("engine.curve = %q, want cosine", cfg.Engine.Curve)
	}
	if len(cfg.Leds) != 2 {
		t.Fatalf("leds = %d entries, want 2", len(cfg.Leds))
	}
	if cfg.Leds[1].Backend != "gpio" || cfg.Leds[1].Pin != "GPIO17" {
		t.Errorf("leds[1] = %+v, want gpio/GPIO17", cfg.Leds[1])
	}
	if cfg.Script != "effects.lua" {
		t.Errorf("script = %q, want effects.lua", cfg.Script)
	}
}

func TestLoadRejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "led_id_beyond_capacity",
			content: `
engine:
  capacity: 2
leds:
  - id: 2
    name: red
`,
		},
		{
			name: "duplicate_led_id",
			content: `
leds:
  - id: 0
    name: red
  - id: 0
    name: green
`,
		},
		{
			name: "unknown_backend",
			content: `
leds:
  - id: 0
    name: red
    backend: i2c
`,
		},
		{
			name: "gpio_without_pin",
			content: `
leds:
  - id: 0
    name: red
    backend: gpio
`,
		},
		{
			name: "unknown_curve",
			content: `
engine:
  curve: linear
`,
		},
		{
			name:    "bad_duration",
			content: "shutdown_timeout: soon\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Load() succeeded, want error")
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LEDD_TEST_SCRIPT", "from_env.lua")

	cfg, err := Load(writeConfig(t, `
script: ${LEDD_TEST_SCRIPT}
database:
  path: ${LEDD_TEST_DB:./fallback.sqlite}
`))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Script != "from_env.lua" {
		t.Errorf("script = %q, want value from environment", cfg.Script)
	}
	if cfg.Database.Path != "./fallback.sqlite" {
		t.Errorf("database.path = %q, want default fallback", cfg.Database.Path)
	}
}
