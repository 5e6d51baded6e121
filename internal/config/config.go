// Package config loads the admin service configuration from YAML or TOML,
// filling unset fields from `default` struct tags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Editor  EditorConfig  `yaml:"editor" toml:"editor"`
	Render  RenderConfig  `yaml:"render" toml:"render"`
}

type ServerConfig struct {
	Host string `yaml:"host" toml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" toml:"port" default:"12600"`
}

type LoggingConfig struct {
	Level string `yaml:"level" toml:"level" default:"info"`
}

type StorageConfig struct {
	// Backend is one of memory, sqlite, fs, s3, redis, postgres.
	Backend      string        `yaml:"backend" toml:"backend" default:"sqlite"`
	SQLitePath   string        `yaml:"sqlite_path" toml:"sqlite_path" default:"./lending-admin.db"`
	FSPath       string        `yaml:"fs_path" toml:"fs_path" default:"./collections"`
	Compression  string        `yaml:"compression" toml:"compression" default:"zstd"`
	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval" default:"5s"`
	RedisURL     string        `yaml:"redis_url" toml:"redis_url" default:"redis://localhost:6379/0"`
	PostgresURL  string        `yaml:"postgres_url" toml:"postgres_url" default:""`
	S3           S3Config      `yaml:"s3" toml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket" toml:"bucket" default:"lending-admin"`
	Endpoint        string `yaml:"endpoint" toml:"endpoint" default:""`
	Region          string `yaml:"region" toml:"region" default:"auto"`
	Prefix          string `yaml:"prefix" toml:"prefix" default:"collections/"`
	AccessKeyID     string `yaml:"access_key_id" toml:"access_key_id" default:""`
	SecretAccessKey string `yaml:"secret_access_key" toml:"secret_access_key" default:""`
}

type EditorConfig struct {
	AutosaveDelay       time.Duration `yaml:"autosave_delay" toml:"autosave_delay" default:"800ms"`
	RequestTimeout      time.Duration `yaml:"request_timeout" toml:"request_timeout" default:"10s"`
	ConfirmSave         bool          `yaml:"confirm_save" toml:"confirm_save" default:"false"`
	ConfirmReset        bool          `yaml:"confirm_reset" toml:"confirm_reset" default:"true"`
	AutosaveCollections []string      `yaml:"autosave_collections" toml:"autosave_collections" default:"services"`
}

// Autosaves reports whether the collection is configured for eager persistence.
func (e EditorConfig) Autosaves(key string) bool {
	for _, k := range e.AutosaveCollections {
		if k == key {
			return true
		}
	}
	return false
}

type RenderConfig struct {
	Renderer    string `yaml:"renderer" toml:"renderer" default:"mmark"`
	SyntaxTheme string `yaml:"syntax_theme" toml:"syntax_theme" default:"github"`
}

var AppConfig *Config

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads path (TOML when it ends in .toml, YAML otherwise) on top of
// the defaults, applies environment overrides and stores the result in AppConfig.
func LoadConfig(path string) error {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, just use defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
	} else if err := decode(path, data, config); err != nil {
		return err
	}

	applyEnv(config)
	AppConfig = config
	return nil
}

func decode(path string, data []byte, config *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), config); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		return nil
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(config *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"LOG_LEVEL", &config.Logging.Level},
		{"STORAGE_BACKEND", &config.Storage.Backend},
		{"REDIS_URL", &config.Storage.RedisURL},
		{"DATABASE_URL", &config.Storage.PostgresURL},
		{"S3_ACCESS_KEY_ID", &config.Storage.S3.AccessKeyID},
		{"S3_SECRET_ACCESS_KEY", &config.Storage.S3.SecretAccessKey},
		{"PORT", &config.Server.Port},
	}

	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			*o.target = v
		}
	}
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

var durationType = reflect.TypeOf(time.Duration(0))

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		if field.Type() == durationType {
			if val, err := time.ParseDuration(defaultValue); err == nil {
				field.SetInt(int64(val))
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int, reflect.Int64:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
