package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/lending-admin/internal/config"
)

func main() {
	outputFile := "config.example.yaml"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	asTOML := strings.EqualFold(filepath.Ext(outputFile), ".toml") ||
		(outputFile == "-" && len(os.Args) > 2 && os.Args[2] == "toml")

	data, err := encode(config.Default(), asTOML)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating config: %v\n", err)
		os.Exit(1)
	}

	header := "# Lending admin configuration example\n# Copy this file to config.yaml (or config.toml) and customize as needed\n\n"
	output := header + string(data)

	if outputFile == "-" {
		fmt.Print(output)
		return
	}
	if err := os.WriteFile(outputFile, []byte(output), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated example config: %s\n", outputFile)
}

func encode(cfg *config.Config, asTOML bool) ([]byte, error) {
	if !asTOML {
		return yaml.Marshal(cfg)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
