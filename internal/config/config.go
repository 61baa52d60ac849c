package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port      int    `koanf:"port"`
		JWTSecret string `koanf:"jwt_secret"`
	} `koanf:"server"`

	Google struct {
		ClientID     string `koanf:"client_id"`
		ClientSecret string `koanf:"client_secret"`
		TopicName    string `koanf:"topic_name"`
		TokenURL     string `koanf:"token_url"`
		APIBaseURL   string `koanf:"api_base_url"`
		TimeoutSecs  int    `koanf:"timeout_secs"`
		QPS          int    `koanf:"qps"`
	} `koanf:"google"`

	Watch struct {
		RenewalLeadHours int `koanf:"renewal_lead_hours"`
		Workers          int `koanf:"workers"`
	} `koanf:"watch"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"server.port":              8745,
		"google.timeout_secs":      15,
		"google.qps":               8,
		"watch.renewal_lead_hours": 48,
		"watch.workers":            4,
		"log.level":                "info",
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try to load from default locations - prioritize msdata directory for containerized environments
		defaultPaths := []string{"./msdata/mailsync.toml", "./mailsync.toml", "$HOME/.mailsync.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix MAILSYNC_
	k.Load(env.Provider("MAILSYNC_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "MAILSYNC_")), "_", ".", 1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	// Create sample configuration
	sampleConfig := `# MailSync Configuration

[server]
port = 8745
jwt_secret = "change-me"

[google]
client_id = "your-google-client-id"
client_secret = "your-google-client-secret"
topic_name = "projects/your-project/topics/gmail-push"

[watch]
renewal_lead_hours = 48
workers = 4

[log]
level = "info"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Server.JWTSecret == "" {
		return fmt.Errorf("server jwt_secret is required")
	}

	if config.Google.ClientID == "" {
		return fmt.Errorf("google client_id is required")
	}
	if config.Google.ClientSecret == "" {
		return fmt.Errorf("google client_secret is required")
	}
	if config.Google.TopicName == "" {
		return fmt.Errorf("google topic_name is required")
	}

	if config.Watch.RenewalLeadHours <= 0 {
		return fmt.Errorf("watch renewal_lead_hours must be positive")
	}
	if config.Watch.Workers <= 0 {
		return fmt.Errorf("watch workers must be positive")
	}

	return nil
}
