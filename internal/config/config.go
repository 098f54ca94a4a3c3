package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port      int
		PublicURL string `mapstructure:"public_url"`
	}
	Log struct {
		Level string
	}
	Database struct {
		Path string
	}
	Platform struct {
		MetaURL   string `mapstructure:"meta_url"`
		TikTokURL string `mapstructure:"tiktok_url"`
		Token     string
		Timeout   time.Duration
	}
	LLM struct {
		BaseURL         string `mapstructure:"base_url"`
		Model           string
		APIKey          string `mapstructure:"api_key"`
		Temperature     float64
		MaxOutputTokens int `mapstructure:"max_output_tokens"`
		Timeout         time.Duration
	}
	Email struct {
		Provider string
		From     string
		Resend   struct {
			APIKey  string `mapstructure:"api_key"`
			BaseURL string `mapstructure:"base_url"`
		}
		SMTP struct {
			Host     string
			Port     int
			Username string
			Password string
		}
	}
	PDF struct {
		Enabled bool
		BaseURL string `mapstructure:"base_url"`
		Token   string
	}
	Slack struct {
		Token   string
		Channel string
	}
	Scheduler struct {
		Cron   string
		Secret string
	}
}

const envPrefix = "ADINSIGHTS"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.path", "data/adinsights.db")

	v.SetDefault("platform.meta_url", "https://bizdev.newform.ai/sample-data/meta")
	v.SetDefault("platform.tiktok_url", "https://bizdev.newform.ai/sample-data/tiktok")
	v.SetDefault("platform.token", "")
	v.SetDefault("platform.timeout", 60*time.Second)

	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_output_tokens", 1000)
	v.SetDefault("llm.timeout", 90*time.Second)

	v.SetDefault("email.provider", "resend")
	v.SetDefault("email.from", "Reports <onboarding@resend.dev>")
	v.SetDefault("email.resend.api_key", "")
	v.SetDefault("email.resend.base_url", "https://api.resend.com")
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")

	v.SetDefault("pdf.enabled", false)
	v.SetDefault("pdf.base_url", "https://chrome.browserless.io")
	v.SetDefault("pdf.token", "")

	v.SetDefault("slack.token", "")
	v.SetDefault("slack.channel", "")

	v.SetDefault("scheduler.cron", "")
	v.SetDefault("scheduler.secret", "")
}

// LoadConfig loads the configuration from path, or from config.yaml in the
// working directory when path is empty. A missing file is not an error:
// defaults and ADINSIGHTS_* environment variables still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Email.Provider {
	case "resend", "smtp":
	default:
		return fmt.Errorf("invalid email.provider %q (want resend or smtp)", c.Email.Provider)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}
