package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/relictools/relic/config"
)

func main() {
	schemaBytes, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}

	outputDir := "schema"
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}

	outputPath := filepath.Join(outputDir, "relic.embedded.schema.json")
	if err := os.WriteFile(outputPath, schemaBytes, 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}

	log.Printf("Successfully generated schema at %s", outputPath)
}
