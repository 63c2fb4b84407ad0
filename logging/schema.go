package logging

import "github.com/grovetools/watchpost/schema"

// Schema returns the JSON Schema of the "logging" section of watchpost.yml.
func Schema() ([]byte, error) {
	return schema.Generate(Config{}, schema.Options{
		Title:        "Watchpost Logging Configuration",
		FieldNameTag: "yaml",
		Strict:       true,
	})
}
