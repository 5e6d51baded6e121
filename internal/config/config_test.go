package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func init() {
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))
}

func TestApplyDefaults(t *testing.T) {
	t.Run("Config struct defaults", func(t *testing.T) {
		config := Default()

		if config.Server.Port != "12600" {
			t.Errorf("Expected port '12600', got %q", config.Server.Port)
		}
		if config.Storage.Backend != "sqlite" {
			t.Errorf("Expected sqlite backend, got %q", config.Storage.Backend)
		}
		if config.Storage.PollInterval != 5*time.Second {
			t.Errorf("Expected 5s poll interval, got %v", config.Storage.PollInterval)
		}
		if config.Editor.AutosaveDelay != 800*time.Millisecond {
			t.Errorf("Expected 800ms autosave delay, got %v", config.Editor.AutosaveDelay)
		}
		if config.Editor.RequestTimeout != 10*time.Second {
			t.Errorf("Expected 10s request timeout, got %v", config.Editor.RequestTimeout)
		}
		if config.Editor.ConfirmSave {
			t.Error("Expected save confirmation to be disabled by default")
		}
		if !config.Editor.ConfirmReset {
			t.Error("Expected reset confirmation to be enabled by default")
		}
		if !reflect.DeepEqual(config.Editor.AutosaveCollections, []string{"services"}) {
			t.Errorf("Expected services to autosave, got %v", config.Editor.AutosaveCollections)
		}
		if config.Storage.S3.Region != "auto" {
			t.Errorf("Expected region auto, got %q", config.Storage.S3.Region)
		}
	})

	t.Run("Custom struct with various field types", func(t *testing.T) {
		type custom struct {
			Name    string        `default:"x"`
			Count   int           `default:"3"`
			Ratio   float64       `default:"0.5"`
			On      bool          `default:"true"`
			Wait    time.Duration `default:"250ms"`
			Tags    []string      `default:"a, b ,c"`
			Nothing string
		}
		var c custom
		ApplyDefaults(&c)

		want := custom{Name: "x", Count: 3, Ratio: 0.5, On: true, Wait: 250 * time.Millisecond, Tags: []string{"a", "b", "c"}}
		if !reflect.DeepEqual(c, want) {
			t.Errorf("Expected %+v, got %+v", want, c)
		}
	})

	t.Run("Invalid default values are ignored", func(t *testing.T) {
		type invalid struct {
			Count int           `default:"many"`
			Wait  time.Duration `default:"soon"`
			On    bool          `default:"maybe"`
		}
		var c invalid
		applyDefaults(&c)
		if c.Count != 0 || c.Wait != 0 || c.On {
			t.Errorf("Expected zero values, got %+v", c)
		}
	})

	t.Run("Non-empty slice should not be overwritten", func(t *testing.T) {
		type s struct {
			Tags []string `default:"a,b"`
		}
		c := s{Tags: []string{"keep"}}
		applyDefaults(&c)
		if len(c.Tags) != 1 || c.Tags[0] != "keep" {
			t.Errorf("Expected existing slice to be kept, got %v", c.Tags)
		}
	})

	t.Run("Non-struct input", func(t *testing.T) {
		n := 5
		applyDefaults(&n)
		applyDefaults("string")
		if n != 5 {
			t.Error("Expected non-struct input to be left alone")
		}
	})
}

func TestConfigDefaultsGoldenFile(t *testing.T) {
	goldenData, err := os.ReadFile("testdata/defaults.yaml")
	if err != nil {
		t.Fatalf("Failed to read golden defaults file: %v", err)
	}

	var golden Config
	if err := yaml.Unmarshal(goldenData, &golden); err != nil {
		t.Fatalf("Failed to parse golden config: %v", err)
	}

	if got := Default(); !reflect.DeepEqual(*got, golden) {
		t.Errorf("Defaults drifted from testdata/defaults.yaml:\n got %+v\nwant %+v", *got, golden)
	}
}

func TestLoadConfig(t *testing.T) {
	for _, env := range []string{"PORT", "LOG_LEVEL", "STORAGE_BACKEND", "REDIS_URL", "DATABASE_URL"} {
		t.Setenv(env, "")
	}

	t.Run("Load non-existent config file", func(t *testing.T) {
		if err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if AppConfig == nil || AppConfig.Server.Port != "12600" {
			t.Errorf("Expected defaults, got %+v", AppConfig)
		}
	})

	t.Run("Partial YAML keeps defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "storage:\n  backend: fs\n  fs_path: /srv/collections\neditor:\n  request_timeout: 3s\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}

		if err := LoadConfig(path); err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}
		if AppConfig.Storage.Backend != "fs" || AppConfig.Storage.FSPath != "/srv/collections" {
			t.Errorf("Unexpected storage config %+v", AppConfig.Storage)
		}
		if AppConfig.Editor.RequestTimeout != 3*time.Second {
			t.Errorf("Expected 3s timeout, got %v", AppConfig.Editor.RequestTimeout)
		}
		if AppConfig.Editor.AutosaveDelay != 800*time.Millisecond {
			t.Errorf("Expected default autosave delay, got %v", AppConfig.Editor.AutosaveDelay)
		}
	})

	t.Run("Load TOML config", func(t *testing.T) {
		if err := LoadConfig("testdata/redis.toml"); err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}
		if AppConfig.Server.Port != "8080" {
			t.Errorf("Expected port 8080, got %q", AppConfig.Server.Port)
		}
		if AppConfig.Storage.Backend != "redis" || AppConfig.Storage.RedisURL != "redis://cache:6379/2" {
			t.Errorf("Unexpected storage config %+v", AppConfig.Storage)
		}
		if AppConfig.Storage.PollInterval != 2*time.Second {
			t.Errorf("Expected 2s poll interval, got %v", AppConfig.Storage.PollInterval)
		}
		if AppConfig.Editor.AutosaveDelay != 1500*time.Millisecond {
			t.Errorf("Expected 1.5s autosave delay, got %v", AppConfig.Editor.AutosaveDelay)
		}
		if !AppConfig.Editor.ConfirmSave {
			t.Error("Expected confirm_save to be set")
		}
		if !AppConfig.Editor.Autosaves("rates") || AppConfig.Editor.Autosaves("team") {
			t.Errorf("Unexpected autosave collections %v", AppConfig.Editor.AutosaveCollections)
		}
	})

	t.Run("Load invalid YAML file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("server: [unclosed"), 0o644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}
		if err := LoadConfig(path); err == nil {
			t.Error("Expected error for invalid YAML")
		}
	})

	t.Run("Environment overrides", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "postgres")
		t.Setenv("DATABASE_URL", "postgres://admin@db/lending")
		t.Setenv("LOG_LEVEL", "debug")

		if err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}
		if AppConfig.Storage.Backend != "postgres" {
			t.Errorf("Expected postgres backend, got %q", AppConfig.Storage.Backend)
		}
		if AppConfig.Storage.PostgresURL != "postgres://admin@db/lending" {
			t.Errorf("Unexpected postgres url %q", AppConfig.Storage.PostgresURL)
		}
		if AppConfig.Logging.Level != "debug" {
			t.Errorf("Expected debug level, got %q", AppConfig.Logging.Level)
		}
	})
}
