package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `json:"server" yaml:"server"`
	Registry    RegistryConfig    `json:"registry" yaml:"registry"`
	Source      SourceConfig      `json:"source" yaml:"source"`
	Destination DestinationConfig `json:"destination" yaml:"destination"`
	Importer    ImporterConfig    `json:"importer" yaml:"importer"`
	Detector    DetectorConfig    `json:"detector" yaml:"detector"`
}

type ServerConfig struct {
	Port int `json:"port" yaml:"port"`
}

// RegistryConfig selects where field mappings persist.
type RegistryConfig struct {
	Type string `json:"type" yaml:"type"` // sqlite, postgres, mysql
	Conn string `json:"conn" yaml:"conn"`
}

// SourceConfig describes the external system's query transport.
type SourceConfig struct {
	Driver string `json:"driver" yaml:"driver"` // mysql, sqlserver, oracle, pgx
	Conn   string `json:"conn" yaml:"conn"`
	// StandardFields is the static fallback table of well-known field
	// names per record type, merged over the built-in defaults.
	StandardFields map[string][]string `json:"standard_fields" yaml:"standard_fields"`
}

type DestinationConfig struct {
	Conn string `json:"conn" yaml:"conn"`
}

type ImporterConfig struct {
	Workers       int     `json:"workers" yaml:"workers"`
	RowsPerSecond float64 `json:"rows_per_second" yaml:"rows_per_second"`
}

// DetectorConfig extends the built-in naming heuristics.
type DetectorConfig struct {
	CustomPrefixes map[string]string `json:"custom_prefixes" yaml:"custom_prefixes"`
	Renames        map[string]string `json:"renames" yaml:"renames"`
	BooleanHints   []string          `json:"boolean_hints" yaml:"boolean_hints"`
	AmountHints    []string          `json:"amount_hints" yaml:"amount_hints"`
	DetectedBy     string            `json:"detected_by" yaml:"detected_by"`
}

func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 4000},
		Registry: RegistryConfig{Type: "sqlite", Conn: "fieldbridge.db"},
		Source:   SourceConfig{StandardFields: StandardFields()},
		Importer: ImporterConfig{Workers: 1},
	}
}

// LoadConfig reads a YAML (or JSON) config file and merges it over the
// defaults.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		// Try JSON if YAML fails
		if _, serr := file.Seek(0, 0); serr != nil {
			return nil, serr
		}
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file (tried YAML and JSON): %w", err)
		}
	}

	// User-supplied field lists extend the built-in table instead of
	// replacing it wholesale.
	merged := StandardFields()
	for k, v := range cfg.Source.StandardFields {
		merged[k] = v
	}
	cfg.Source.StandardFields = merged

	return cfg, nil
}
