package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/watchpost/errors"
	"github.com/grovetools/watchpost/pkg/paths"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

var configNames = []string{
	"watchpost.yml",
	"watchpost.yaml",
	"watchpost.toml",
	".watchpost.yml",
	".watchpost.yaml",
}

// Load reads and parses a watchpost configuration file. Relative paths in
// the file are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	dir := filepath.Dir(path)
	loadDotEnv(dir, logrus.StandardLogger())

	cfg, err := parse(data, formatOf(path))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config file").
			WithDetail("path", path)
	}
	cfg.path = path
	cfg.SetDefaults(dir)

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigInvalid(err.Error()).WithDetail("path", path)
	}
	return cfg, nil
}

// LoadDefault finds the nearest configuration file starting from the current
// directory. When no file exists the built-in defaults are returned, rooted
// at the working directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}

	path, err := FindConfigFile(cwd)
	if err != nil {
		if errors.Is(err, errors.ErrCodeConfigNotFound) {
			loadDotEnv(cwd, logrus.StandardLogger())
			cfg := &Config{}
			cfg.SetDefaults(cwd)
			return cfg, nil
		}
		return nil, err
	}
	return Load(path)
}

// LoadFromBytes parses YAML configuration content. Relative paths are
// resolved against baseDir.
func LoadFromBytes(data []byte, baseDir string) (*Config, error) {
	cfg, err := parse(data, "yaml")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config")
	}
	cfg.SetDefaults(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}
	return cfg, nil
}

func parse(data []byte, format string) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	// TOML documents are normalised through a generic map so the inline
	// Extensions field behaves the same for both formats.
	if format == "toml" {
		var raw map[string]interface{}
		if err := toml.Unmarshal(expanded, &raw); err != nil {
			return nil, err
		}
		converted, err := yaml.Marshal(raw)
		if err != nil {
			return nil, err
		}
		expanded = converted
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

// FindConfigFile searches for a configuration file from startDir upwards,
// then in the XDG config directory.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if configDir := paths.ConfigDir(); configDir != "" {
		for _, name := range configNames {
			path := filepath.Join(configDir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// loadDotEnv loads a .env file next to the configuration, if present.
// Variables already set in the environment win.
func loadDotEnv(dir string, logger *logrus.Logger) {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		logger.WithError(err).WithField("path", path).Warn("Failed to load .env file")
		return
	}
	logger.WithField("path", path).Debug("Loaded .env file")
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}
