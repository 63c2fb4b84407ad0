// Command schema-generator writes the JSON Schemas of every watchpost
// document to schema/definitions.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/watchpost/cmd"
)

func main() {
	outputDir := "schema/definitions"
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}

	for name, generate := range cmd.Schemas {
		data, err := generate()
		if err != nil {
			log.Fatalf("Error generating %s schema: %v", name, err)
		}
		outputPath := filepath.Join(outputDir, name+".schema.json")
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			log.Fatalf("Error writing schema file: %v", err)
		}
		log.Printf("Generated %s", outputPath)
	}
}
