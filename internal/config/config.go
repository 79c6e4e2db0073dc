package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Assistant transport modes.
const (
	ModeHTTP   = "http"
	ModeMock   = "mock"
	ModeOpenAI = "openai"
)

// Session store drivers.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
	DriverMemory = "memory"
)

// Config holds the application configuration
type Config struct {
	Assistant AssistantConfig
	OpenAI    OpenAIConfig `mapstructure:"openai"`
	Store     StoreConfig
	Scenario  ScenarioConfig
	Export    ExportConfig
	Log       LogConfig
	// Scenarios are extra scripted sequences keyed by name; they override
	// built-in scenarios with the same name.
	Scenarios map[string][]string `mapstructure:"scenarios"`
}

// AssistantConfig describes how to reach the remote assistant.
type AssistantConfig struct {
	Mode        string        `mapstructure:"mode"`
	BaseURL     string        `mapstructure:"base_url"`
	AssistantID string        `mapstructure:"assistant_id"`
	TestKey     string        `mapstructure:"test_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MockDelay   time.Duration `mapstructure:"mock_delay"`
}

// OpenAIConfig is used when the assistant is reached through the Assistants API directly.
type OpenAIConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// ScenarioConfig tunes scripted runs.
type ScenarioConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

// ExportConfig controls the exported test document.
type ExportConfig struct {
	Dir         string `mapstructure:"dir"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("assistant.mode", ModeHTTP)
	v.SetDefault("assistant.base_url", "https://asistentes-5e8m.onrender.com")
	v.SetDefault("assistant.assistant_id", "asst_kGfLr7tpbJp5oNpsFWJ9HyfO")
	v.SetDefault("assistant.test_key", "")
	v.SetDefault("assistant.timeout", time.Duration(0))
	v.SetDefault("assistant.mock_delay", time.Second)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.poll_interval", 500*time.Millisecond)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.path", "mrlift-session.db")
	v.SetDefault("scenario.delay", 1500*time.Millisecond)
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.environment", "Mr. Lift Functional Validation Panel")
	v.SetDefault("export.version", "2.0")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from path, CONFIG_PATH, or ./config.yaml, in that
// order. A missing ./config.yaml is fine; an explicit path that cannot be read
// is not. MRLIFT_* environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MRLIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("openai.api_key", "MRLIFT_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read config.yaml: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the combinations Load cannot express through defaults.
func (c *Config) Validate() error {
	switch c.Assistant.Mode {
	case ModeHTTP:
		if strings.TrimSpace(c.Assistant.BaseURL) == "" {
			return errors.New("config: assistant.base_url must not be empty in http mode")
		}
	case ModeMock:
	case ModeOpenAI:
		if strings.TrimSpace(c.OpenAI.APIKey) == "" {
			return errors.New("config: openai.api_key is required in openai mode")
		}
		if c.OpenAI.PollInterval <= 0 {
			return errors.New("config: openai.poll_interval must be positive")
		}
	default:
		return fmt.Errorf("config: unknown assistant.mode %q", c.Assistant.Mode)
	}
	if strings.TrimSpace(c.Assistant.AssistantID) == "" {
		return errors.New("config: assistant.assistant_id must not be empty")
	}
	switch c.Store.Driver {
	case DriverSQLite, DriverBolt:
		if strings.TrimSpace(c.Store.Path) == "" {
			return fmt.Errorf("config: store.path is required for the %s driver", c.Store.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Scenario.Delay < 0 || c.Assistant.Timeout < 0 || c.Assistant.MockDelay < 0 {
		return errors.New("config: durations must not be negative")
	}
	return nil
}
