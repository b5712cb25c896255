// Package config loads and validates the YAML job file that drives a
// conversion or compaction run.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendGeoPackage = "gpkg"
	BackendPostgres   = "postgres"
)

// Tie policies for the compactor's degree tie-break.
const (
	TieDeleteStart = "delete_start"
	TieDeleteEnd   = "delete_end"
)

// DefaultEPSG is the Dutch national grid (Amersfoort / RD New), the
// projection D-Flow FM schematisations in this tool's domain use.
const DefaultEPSG = 28992

// SourceConfig points at the D-Flow FM input.
type SourceConfig struct {
	// MDU is the path to the model definition file. All other input
	// files are resolved from its [geometry] section.
	MDU string `yaml:"mdu" validate:"required"`
}

// TargetConfig describes the schematisation store written to.
type TargetConfig struct {
	Backend string `yaml:"backend" validate:"required,oneof=gpkg postgres"`

	// Path is the GeoPackage file, for the gpkg backend.
	Path string `yaml:"path"`

	// DSN is the connection string, for the postgres backend.
	DSN string `yaml:"dsn"`

	EPSG int `yaml:"epsg"`
}

// ConvertConfig steers the conversion pipeline.
type ConvertConfig struct {
	ClearFirst   bool `yaml:"clear_first"`
	SkipNetwork  bool `yaml:"skip_network"`
	ReplacePumps bool `yaml:"replace_pumps"`
}

// CompactConfig steers the short-channel removal.
type CompactConfig struct {
	// Threshold is the channel length in map units below which a
	// channel is merged away.
	Threshold float64 `yaml:"threshold" validate:"gt=0"`

	TiePolicy string `yaml:"tie_policy" validate:"omitempty,oneof=delete_start delete_end"`

	// JournalDir, when set, receives an audit journal of every
	// structural edit.
	JournalDir string `yaml:"journal_dir"`

	// EdgeIDs restricts the run to the named channels.
	EdgeIDs []int64 `yaml:"edge_ids"`
}

// Config is the complete job file.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Target  TargetConfig  `yaml:"target"`
	Convert ConvertConfig `yaml:"convert"`
	Compact CompactConfig `yaml:"compact"`
}

var validate = validator.New()

// Load reads and validates a job file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a config with the defaults a job file may omit.
func Default() *Config {
	return &Config{
		Target: TargetConfig{
			Backend: BackendGeoPackage,
			EPSG:    DefaultEPSG,
		},
		Compact: CompactConfig{
			Threshold: 5.0,
			TiePolicy: TieDeleteStart,
		},
	}
}

// Validate checks the struct tags plus the cross-field rules tags
// cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	switch c.Target.Backend {
	case BackendGeoPackage:
		if c.Target.Path == "" {
			return fmt.Errorf("target.path: required for the %s backend", BackendGeoPackage)
		}
	case BackendPostgres:
		if c.Target.DSN == "" {
			return fmt.Errorf("target.dsn: required for the %s backend", BackendPostgres)
		}
	}
	if c.Target.EPSG <= 0 {
		return fmt.Errorf("target.epsg: must be a positive EPSG code, got %d", c.Target.EPSG)
	}
	return nil
}

// formatValidationError flattens a validator error to its first finding
// in field: message form.
func formatValidationError(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	for _, e := range errs {
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", e.Field())
		case "oneof":
			return fmt.Errorf("%s: must be one of %s", e.Field(), e.Param())
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", e.Field(), e.Param())
		default:
			return fmt.Errorf("%s: validation failed (%s)", e.Field(), e.Tag())
		}
	}
	return err
}
