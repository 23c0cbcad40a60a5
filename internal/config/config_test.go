package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, []string{".pdf", ".txt", ".doc", ".docx"}, cfg.Documents.AllowedFileTypes)
	assert.Equal(t, int64(10<<20), cfg.Documents.MaxFileSize)
	assert.Equal(t, "New Chat", cfg.Chat.NewChatTitle)
	assert.Equal(t, 50, cfg.Chat.TitleMaxRunes)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
port = 9090

[documents]
allowed_file_types = [".md"]
max_file_size = 2048

[chat]
reply_delay_ms = 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "7070")
	t.Setenv("DOCUMENTS_ALLOWED_FILE_TYPES", ".pdf, .txt,,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.App.Port)
	assert.Equal(t, int64(2048), cfg.Documents.MaxFileSize)
	assert.Equal(t, []string{".pdf", ".txt"}, cfg.Documents.AllowedFileTypes)
	assert.Equal(t, 10, cfg.Chat.ReplyDelayMS)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Database.Driver = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Storage.Driver = "s3"
	assert.Error(t, cfg.Validate())
	cfg.Storage.S3Bucket = "docs"
	assert.NoError(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Password = "secret"
	assert.Equal(t, "host=127.0.0.1 port=5432 user=postgres password=secret dbname=aria_chat sslmode=disable", cfg.PostgresDSN())

	cfg.Database.Port = 3306
	cfg.Database.User = "root"
	cfg.Database.Params = "parseTime=true"
	assert.Equal(t, "root:secret@tcp(127.0.0.1:3306)/aria_chat?parseTime=true", cfg.MySQLDSN())
}
