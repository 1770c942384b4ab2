package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

const (
	StorageMemory    = "memory"
	StorageFile      = "file"
	StorageSQLite    = "sqlite"
	StorageFirestore = "firestore"
)

type Config struct {
	Mode Mode `mapstructure:"mode"`

	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	GCPProjectID string `mapstructure:"gcp_project"`
	GCPLocation  string `mapstructure:"gcp_location"`

	ModelName   string `mapstructure:"model_name"`
	ImageModel  string `mapstructure:"image_model"`
	VideoModel  string `mapstructure:"video_model"`
	SpeechModel string `mapstructure:"speech_model"`
	Voice       string `mapstructure:"voice"`

	// APIKey is the process-wide fallback when a user has not stored a key.
	APIKey string `mapstructure:"api_key"`

	StorageBackend string `mapstructure:"storage_backend"` // memory, file, sqlite or firestore
	StoragePath    string `mapstructure:"storage_path"`
	UseMockLLM     bool   `mapstructure:"use_mock_llm"` // true = use mock even on GCP

	VideoPollInterval time.Duration `mapstructure:"video_poll_interval"`
}

// New returns a viper instance with defaults and FARUM_* env bindings.
// Callers may bind cobra flags on it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("mode", string(ModeLocal))
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("gcp_project", "")
	v.SetDefault("gcp_location", "us-central1")
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("image_model", "gemini-2.5-flash-image")
	v.SetDefault("video_model", "veo-3.1-generate-preview")
	v.SetDefault("speech_model", "gemini-2.5-flash-preview-tts")
	v.SetDefault("voice", "Kore")
	v.SetDefault("api_key", "")
	v.SetDefault("storage_backend", StorageMemory)
	v.SetDefault("storage_path", ".farum")
	v.SetDefault("video_poll_interval", 10*time.Second)

	v.SetEnvPrefix("FARUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// No default, so Load can tell an explicit choice apart.
	_ = v.BindEnv("use_mock_llm")

	return v
}

// Load builds the config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The mock is the default in local mode unless set explicitly.
	if !v.IsSet("use_mock_llm") {
		cfg.UseMockLLM = cfg.Mode == ModeLocal && cfg.APIKey == ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.Mode {
	case ModeLocal, ModeGCP:
	default:
		result = multierror.Append(result, fmt.Errorf("invalid mode %q, must be 'local' or 'gcp'", c.Mode))
	}

	if c.Port == "" {
		result = multierror.Append(result, fmt.Errorf("port is required"))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		result = multierror.Append(result, fmt.Errorf("invalid log level: %s", c.LogLevel))
	}

	switch c.StorageBackend {
	case StorageMemory:
	case StorageFile, StorageSQLite:
		if c.StoragePath == "" {
			result = multierror.Append(result, fmt.Errorf("storage_path is required for the %s backend", c.StorageBackend))
		}
	case StorageFirestore:
		if c.GCPProjectID == "" {
			result = multierror.Append(result, fmt.Errorf("gcp_project is required for the firestore backend"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown storage backend %q", c.StorageBackend))
	}

	if c.Mode == ModeGCP && c.GCPProjectID == "" {
		result = multierror.Append(result, fmt.Errorf("FARUM_GCP_PROJECT must be set in gcp mode"))
	}

	if c.ModelName == "" {
		result = multierror.Append(result, fmt.Errorf("model_name is required"))
	}

	if c.VideoPollInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("video_poll_interval must be positive"))
	}

	return result.ErrorOrNil()
}

func (c *Config) Addr() string {
	return ":" + c.Port
}
