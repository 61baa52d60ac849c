package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mailsync.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
jwt_secret = "secret"

[google]
client_id = "id"
client_secret = "sec"
topic_name = "projects/p/topics/t"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8745, cfg.Server.Port)
	assert.Equal(t, 15, cfg.Google.TimeoutSecs)
	assert.Equal(t, 8, cfg.Google.QPS)
	assert.Equal(t, 48, cfg.Watch.RenewalLeadHours)
	assert.Equal(t, 4, cfg.Watch.Workers)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000
jwt_secret = "secret"

[google]
client_id = "id"
client_secret = "sec"
topic_name = "projects/p/topics/t"
qps = 2

[watch]
renewal_lead_hours = 24
workers = 8

[log]
level = "debug"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Google.QPS)
	assert.Equal(t, 24, cfg.Watch.RenewalLeadHours)
	assert.Equal(t, 8, cfg.Watch.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, `
[server]
jwt_secret = "from-file"

[google]
client_id = "id"
client_secret = "sec"
topic_name = "projects/p/topics/t"
`)

	t.Setenv("MAILSYNC_SERVER_JWT_SECRET", "from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Server.JWTSecret)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Server.JWTSecret = "secret"
		cfg.Google.ClientID = "id"
		cfg.Google.ClientSecret = "sec"
		cfg.Google.TopicName = "projects/p/topics/t"
		cfg.Watch.RenewalLeadHours = 48
		cfg.Watch.Workers = 4
		return cfg
	}

	require.NoError(t, Validate(valid()))

	missingSecret := valid()
	missingSecret.Server.JWTSecret = ""
	assert.Error(t, Validate(missingSecret))

	missingClient := valid()
	missingClient.Google.ClientID = ""
	assert.Error(t, Validate(missingClient))

	missingTopic := valid()
	missingTopic.Google.TopicName = ""
	assert.Error(t, Validate(missingTopic))

	badLead := valid()
	badLead.Watch.RenewalLeadHours = 0
	assert.Error(t, Validate(badLead))

	badWorkers := valid()
	badWorkers.Watch.Workers = -1
	assert.Error(t, Validate(badWorkers))
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailsync.toml")

	require.NoError(t, InitConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8745, cfg.Server.Port)
	assert.Equal(t, "change-me", cfg.Server.JWTSecret)

	// Refuses to clobber an existing file.
	assert.Error(t, InitConfig(path))
}
