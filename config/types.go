package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	// DefaultCommandTimeout bounds every one-shot backend call.
	DefaultCommandTimeout = 2 * time.Minute

	// DefaultStopGrace is how long a streaming worker may take to exit after
	// an interrupt before it is killed.
	DefaultStopGrace = 2 * time.Second

	// DefaultServerAddr is where views connect.
	DefaultServerAddr = "127.0.0.1:7765"
)

// Backend command names, as referenced by BackendConfig.Scripts.
const (
	CommandAuthenticate  = "authenticate"
	CommandRegister      = "register"
	CommandUploadProfile = "upload_profile"
	CommandIncidents     = "incidents"
)

// Config is the watchpost.yml document.
type Config struct {
	Version  string         `yaml:"version"`
	Backend  BackendConfig  `yaml:"backend"`
	Settings SettingsConfig `yaml:"settings"`
	Forms    FormsConfig    `yaml:"forms"`
	Server   ServerConfig   `yaml:"server"`
	UI       UIConfig       `yaml:"ui"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Media    MediaConfig    `yaml:"media"`

	// Extensions holds every top-level section not modelled above
	// (for example "logging").
	Extensions map[string]interface{} `yaml:",inline"`

	// path is the file the config was loaded from, if any.
	path string
}

// BackendConfig describes how backend scripts are invoked.
type BackendConfig struct {
	// Interpreter runs every script. Empty means scripts are executed directly.
	Interpreter string `yaml:"interpreter"`
	// ScriptDir is the directory holding the backend scripts.
	ScriptDir string `yaml:"script_dir"`
	// StreamingScript is the long-lived recognition worker.
	StreamingScript string `yaml:"streaming_script"`
	// Scripts maps one-shot command names to script file names.
	Scripts map[string]string `yaml:"scripts"`
	// CommandTimeout bounds each one-shot call.
	CommandTimeout time.Duration `yaml:"command_timeout"`
	// StopGrace is the interrupt-to-kill delay for the streaming worker.
	StopGrace time.Duration `yaml:"stop_grace"`
}

// SettingsConfig locates the persisted station settings.
type SettingsConfig struct {
	Path string `yaml:"path"`
	// Watch re-applies external edits of the settings file to a running worker.
	Watch bool `yaml:"watch"`
}

// FormsConfig locates the read-only profile form configuration.
type FormsConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the view transport.
type ServerConfig struct {
	// Addr is host:port, or unix:///path/to.sock.
	Addr string `yaml:"addr"`
}

// UIConfig configures how windows and dialogs are realized.
type UIConfig struct {
	// Launcher opens a window. "{url}" and "{view}" are substituted.
	Launcher []string `yaml:"launcher"`
	// ConfirmCommand asks a yes/no question; exit status 0 means yes.
	// "{message}" is substituted.
	ConfirmCommand []string `yaml:"confirm_command"`
}

// AlertsConfig configures the MQTT mirror of threat and session events.
type AlertsConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	ClientID  string `yaml:"client_id"`
	BaseTopic string `yaml:"base_topic"`
}

// Enabled reports whether an MQTT broker is configured.
func (a AlertsConfig) Enabled() bool {
	return a.Host != ""
}

// MediaConfig configures presigned incident video links.
type MediaConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
	Bucket    string        `yaml:"bucket"`
	Region    string        `yaml:"region"`
	UseSSL    bool          `yaml:"use_ssl"`
	LinkTTL   time.Duration `yaml:"link_ttl"`
}

// Enabled reports whether an object store is configured.
func (m MediaConfig) Enabled() bool {
	return m.Endpoint != "" && m.AccessKey != "" && m.SecretKey != ""
}

// Path returns the file this configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults(baseDir string) {
	if c.Version == "" {
		c.Version = "1.0"
	}

	b := &c.Backend
	if b.ScriptDir == "" {
		b.ScriptDir = "python_backend"
	}
	if b.StreamingScript == "" {
		b.StreamingScript = "main_recognition.py"
	}
	defaults := map[string]string{
		CommandAuthenticate:  "authenticator.py",
		CommandRegister:      "register.py",
		CommandUploadProfile: "admin_uploader.py",
		CommandIncidents:     "incident_manager.py",
	}
	if b.Scripts == nil {
		b.Scripts = make(map[string]string, len(defaults))
	}
	for name, script := range defaults {
		if b.Scripts[name] == "" {
			b.Scripts[name] = script
		}
	}
	if b.CommandTimeout <= 0 {
		b.CommandTimeout = DefaultCommandTimeout
	}
	if b.StopGrace <= 0 {
		b.StopGrace = DefaultStopGrace
	}
	b.ScriptDir = resolve(baseDir, b.ScriptDir)
	if b.Interpreter != "" && (filepath.IsAbs(b.Interpreter) || filepath.Base(b.Interpreter) != b.Interpreter) {
		b.Interpreter = resolve(baseDir, b.Interpreter)
	}

	if c.Settings.Path == "" {
		c.Settings.Path = "settings.json"
	}
	c.Settings.Path = resolve(baseDir, c.Settings.Path)
	if c.Forms.Path == "" {
		c.Forms.Path = "form_config.json"
	}
	c.Forms.Path = resolve(baseDir, c.Forms.Path)

	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}

	if c.Alerts.Port == 0 {
		c.Alerts.Port = 1883
	}
	if c.Alerts.ClientID == "" {
		c.Alerts.ClientID = "watchpost"
	}
	if c.Alerts.BaseTopic == "" {
		c.Alerts.BaseTopic = "watchpost"
	}

	if c.Media.Bucket == "" {
		c.Media.Bucket = "incidents"
	}
	if c.Media.Region == "" {
		c.Media.Region = "us-east-1"
	}
	if c.Media.LinkTTL <= 0 {
		c.Media.LinkTTL = time.Hour
	}
}

func resolve(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

// Validate checks the configuration for values the station cannot run with.
func (c *Config) Validate() error {
	if c.Backend.StreamingScript == "" {
		return fmt.Errorf("backend.streaming_script is required")
	}
	for _, name := range []string{CommandAuthenticate, CommandRegister, CommandUploadProfile, CommandIncidents} {
		if c.Backend.Scripts[name] == "" {
			return fmt.Errorf("backend.scripts.%s is required", name)
		}
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Alerts.Enabled() && (c.Alerts.Port <= 0 || c.Alerts.Port > 65535) {
		return fmt.Errorf("alerts.port %d is out of range", c.Alerts.Port)
	}
	return nil
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded watchpost.yml into the provided target struct. The target must be a
// pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
