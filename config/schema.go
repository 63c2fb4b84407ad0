package config

import (
	"github.com/grovetools/watchpost/schema"
)

// GenerateSchema generates the JSON Schema for watchpost.yml. It reflects
// the sections modelled in types.go; extension sections such as "logging"
// are allowed but not described.
func GenerateSchema() ([]byte, error) {
	// Mirrors Config without the inline Extensions field.
	type BaseConfig struct {
		Version  string         `yaml:"version" jsonschema:"description=Configuration version (e.g. '1.0')"`
		Backend  BackendConfig  `yaml:"backend,omitempty" jsonschema:"description=How backend scripts are invoked"`
		Settings SettingsConfig `yaml:"settings,omitempty" jsonschema:"description=Location of the persisted station settings"`
		Forms    FormsConfig    `yaml:"forms,omitempty" jsonschema:"description=Location of the read-only form configuration"`
		Server   ServerConfig   `yaml:"server,omitempty" jsonschema:"description=Address views connect to"`
		UI       UIConfig       `yaml:"ui,omitempty" jsonschema:"description=Commands that realize windows and dialogs"`
		Alerts   AlertsConfig   `yaml:"alerts,omitempty" jsonschema:"description=MQTT broker threat and session events are published to"`
		Media    MediaConfig    `yaml:"media,omitempty" jsonschema:"description=Object store incident videos are linked from"`
	}

	return schema.Generate(&BaseConfig{}, schema.Options{
		Title:        "Watchpost Configuration",
		Description:  "Schema for watchpost.yml.",
		FieldNameTag: "yaml",
	})
}
