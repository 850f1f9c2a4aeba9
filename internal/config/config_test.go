package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const validConfig = `{
	"server": {"port": 8080},
	"database": {"dsn": "postgres://localhost:5432/mp3"},
	"redis": {"nodes": [{"host": "localhost", "port": 6379}]},
	"s3": {"bucket_name": "videos", "endpoint": "http://localhost:9000"},
	"convert_worker": {"stream": "convert", "group": "converters", "workers": 2, "max_attempts": 3, "bitrate": "128k"},
	"notify_worker": {"stream": "notify", "group": "notifiers", "workers": 1, "max_attempts": 3},
	"smtp": {"host": "smtp.example.com", "port": 587, "from": "noreply@example.com"},
	"auth": {"jwt_secret": "secret", "token_ttl_hours": 24}
}`

func TestReadAndValidate(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Read(writeConfig(t, validConfig)))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "convert", cfg.Convert.Stream)
	assert.Equal(t, "128k", cfg.Convert.Bitrate)
	assert.Equal(t, "localhost:6379", cfg.Redis.Nodes[0].Addr())
	assert.Equal(t, 24, cfg.Auth.TokenTTLHours)
}

func TestReadMissingFile(t *testing.T) {
	cfg := NewConfig()
	assert.Error(t, cfg.Read(filepath.Join(t.TempDir(), "nope.json")))
}

func TestValidateRejectsMissingSecret(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Read(writeConfig(t, `{
		"server": {"port": 8080},
		"database": {"dsn": "postgres://localhost:5432/mp3"},
		"redis": {"nodes": [{"host": "localhost", "port": 6379}]},
		"s3": {"bucket_name": "videos"},
		"smtp": {"host": "smtp.example.com", "from": "noreply@example.com"},
		"auth": {}
	}`)))
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyRedisNodes(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Read(writeConfig(t, `{
		"server": {"port": 8080},
		"database": {"dsn": "postgres://localhost:5432/mp3"},
		"redis": {"nodes": []},
		"s3": {"bucket_name": "videos"},
		"smtp": {"host": "smtp.example.com", "from": "noreply@example.com"},
		"auth": {"jwt_secret": "secret"}
	}`)))
	assert.Error(t, cfg.Validate())
}
