package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/watchpost/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromBytesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`version: "1.0"`), "/srv/station")
	require.NoError(t, err)

	assert.Equal(t, "/srv/station/python_backend", cfg.Backend.ScriptDir)
	assert.Equal(t, "main_recognition.py", cfg.Backend.StreamingScript)
	assert.Equal(t, "authenticator.py", cfg.Backend.Scripts[CommandAuthenticate])
	assert.Equal(t, "incident_manager.py", cfg.Backend.Scripts[CommandIncidents])
	assert.Equal(t, DefaultCommandTimeout, cfg.Backend.CommandTimeout)
	assert.Equal(t, DefaultStopGrace, cfg.Backend.StopGrace)
	assert.Equal(t, "/srv/station/settings.json", cfg.Settings.Path)
	assert.Equal(t, "/srv/station/form_config.json", cfg.Forms.Path)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.False(t, cfg.Alerts.Enabled())
	assert.False(t, cfg.Media.Enabled())
}

func TestInterpreterResolution(t *testing.T) {
	tests := []struct {
		name        string
		interpreter string
		want        string
	}{
		{"bare command stays on PATH", "python3", "python3"},
		{"relative venv path", "venv/bin/python", "/opt/wp/venv/bin/python"},
		{"absolute path", "/usr/bin/python3", "/usr/bin/python3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromBytes([]byte("backend:\n  interpreter: "+tt.interpreter+"\n"), "/opt/wp")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Backend.Interpreter)
		})
	}
}

func TestExtensions(t *testing.T) {
	yamlContent := []byte(`
backend:
  command_timeout: 30s
logging:
  level: debug
  report_caller: true
`)

	cfg, err := LoadFromBytes(yamlContent, "")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Backend.CommandTimeout)

	_, ok := cfg.Extensions["logging"]
	require.True(t, ok, "expected logging extension to be captured")

	type loggingSection struct {
		Level        string `yaml:"level"`
		ReportCaller bool   `yaml:"report_caller"`
	}
	var section loggingSection
	require.NoError(t, cfg.UnmarshalExtension("logging", &section))
	assert.Equal(t, "debug", section.Level)
	assert.True(t, section.ReportCaller)

	var missing loggingSection
	require.NoError(t, cfg.UnmarshalExtension("nope", &missing))
	assert.Empty(t, missing.Level)
}

func TestLoadTOMLAndEnvExpansion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WATCHPOST_TEST_BROKER", "broker.local")

	path := filepath.Join(dir, "watchpost.toml")
	content := `
[backend]
interpreter = "python3"
command_timeout = "45s"

[alerts]
host = "${WATCHPOST_TEST_BROKER}"
base_topic = "${WATCHPOST_TEST_TOPIC:-site-a}"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, 45*time.Second, cfg.Backend.CommandTimeout)
	assert.Equal(t, "broker.local", cfg.Alerts.Host)
	assert.Equal(t, "site-a", cfg.Alerts.BaseTopic)
	assert.True(t, cfg.Alerts.Enabled())
	assert.Equal(t, filepath.Join(dir, "settings.json"), cfg.Settings.Path)
}

func TestDotEnvLoadedNextToConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WATCHPOST_TEST_MINIO_KEY", "")
	os.Unsetenv("WATCHPOST_TEST_MINIO_KEY")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WATCHPOST_TEST_MINIO_KEY=from-dotenv\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "watchpost.yml"), []byte(`
media:
  endpoint: minio:9000
  access_key: ${WATCHPOST_TEST_MINIO_KEY}
  secret_key: secret
`), 0644))

	cfg, err := Load(filepath.Join(dir, "watchpost.yml"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Media.AccessKey)
	assert.True(t, cfg.Media.Enabled())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestFindConfigFileWalksUp(t *testing.T) {
	root := t.TempDir()
	t.Setenv("WATCHPOST_HOME", t.TempDir())
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "watchpost.yml"), []byte("version: \"1.0\"\n"), 0644))

	found, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "watchpost.yml"), found)
}

func TestValidateRejectsBadPort(t *testing.T) {
	_, err := LoadFromBytes([]byte("alerts:\n  host: broker\n  port: 70000\n"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
}
