package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/keyframe.defaults.json"

// Built-in defaults used when a field is absent from the loaded JSON.
const (
	DefaultTimeThresholdSecs   = 0.1
	DefaultLoopThresholdMeters = 0.1
	DefaultPlotWidthInches     = 8.0
	DefaultPlotHeightInches    = 6.0
)

// DefaultKeepLabels is the detection label filter applied when none is configured.
var DefaultKeepLabels = []string{"person"}

// AnalysisConfig is the JSON configuration for one analysis run. Every field
// is optional; Get* accessors fall back to the built-in defaults.
type AnalysisConfig struct {
	// Association and loop closure
	TimeThresholdSecs   *float64 `json:"time_threshold_secs,omitempty"`
	LoopThresholdMeters *float64 `json:"loop_threshold_meters,omitempty"`
	KeepLabels          []string `json:"keep_labels,omitempty"`

	// Outputs
	ExportCSV        *bool    `json:"export_csv,omitempty"`
	ExportJSON       *bool    `json:"export_json,omitempty"`
	Plots            *bool    `json:"plots,omitempty"`
	HTML             *bool    `json:"html,omitempty"`
	PlotWidthInches  *float64 `json:"plot_width_inches,omitempty"`
	PlotHeightInches *float64 `json:"plot_height_inches,omitempty"`

	// Optional result archive
	DBPath *string `json:"db_path,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }

// EmptyAnalysisConfig returns an AnalysisConfig with every field unset.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// DefaultAnalysisConfig returns a config with every field populated from the
// built-in defaults. It does not touch the filesystem.
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		TimeThresholdSecs:   ptrFloat64(DefaultTimeThresholdSecs),
		LoopThresholdMeters: ptrFloat64(DefaultLoopThresholdMeters),
		KeepLabels:          append([]string(nil), DefaultKeepLabels...),
		ExportCSV:           ptrBool(true),
		ExportJSON:          ptrBool(true),
		Plots:               ptrBool(true),
		HTML:                ptrBool(false),
		PlotWidthInches:     ptrFloat64(DefaultPlotWidthInches),
		PlotHeightInches:    ptrFloat64(DefaultPlotHeightInches),
	}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the JSON keep their defaults, so partial configs are safe.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *AnalysisConfig) Validate() error {
	if c.TimeThresholdSecs != nil {
		if v := *c.TimeThresholdSecs; v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("time_threshold_secs must be a finite non-negative number, got %v", v)
		}
	}
	if c.LoopThresholdMeters != nil {
		if v := *c.LoopThresholdMeters; v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("loop_threshold_meters must be a finite non-negative number, got %v", v)
		}
	}
	for i, label := range c.KeepLabels {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("keep_labels[%d] is empty", i)
		}
	}
	if c.PlotWidthInches != nil && *c.PlotWidthInches <= 0 {
		return fmt.Errorf("plot_width_inches must be positive, got %v", *c.PlotWidthInches)
	}
	if c.PlotHeightInches != nil && *c.PlotHeightInches <= 0 {
		return fmt.Errorf("plot_height_inches must be positive, got %v", *c.PlotHeightInches)
	}
	return nil
}

// GetTimeThresholdSecs returns the association tolerance or the default.
func (c *AnalysisConfig) GetTimeThresholdSecs() float64 {
	if c.TimeThresholdSecs == nil {
		return DefaultTimeThresholdSecs
	}
	return *c.TimeThresholdSecs
}

// GetLoopThresholdMeters returns the loop-closure distance or the default.
func (c *AnalysisConfig) GetLoopThresholdMeters() float64 {
	if c.LoopThresholdMeters == nil {
		return DefaultLoopThresholdMeters
	}
	return *c.LoopThresholdMeters
}

// GetKeepLabels returns a copy of the detection label filter or the default.
func (c *AnalysisConfig) GetKeepLabels() []string {
	if len(c.KeepLabels) == 0 {
		return append([]string(nil), DefaultKeepLabels...)
	}
	out := make([]string, 0, len(c.KeepLabels))
	for _, l := range c.KeepLabels {
		out = append(out, strings.TrimSpace(l))
	}
	return out
}

// GetExportCSV returns the export_csv value or the default.
func (c *AnalysisConfig) GetExportCSV() bool {
	if c.ExportCSV == nil {
		return true
	}
	return *c.ExportCSV
}

// GetExportJSON returns the export_json value or the default.
func (c *AnalysisConfig) GetExportJSON() bool {
	if c.ExportJSON == nil {
		return true
	}
	return *c.ExportJSON
}

// GetPlots returns the plots value or the default.
func (c *AnalysisConfig) GetPlots() bool {
	if c.Plots == nil {
		return true
	}
	return *c.Plots
}

// GetHTML returns the html value or the default.
func (c *AnalysisConfig) GetHTML() bool {
	if c.HTML == nil {
		return false
	}
	return *c.HTML
}

// GetPlotWidthInches returns the plot width or the default.
func (c *AnalysisConfig) GetPlotWidthInches() float64 {
	if c.PlotWidthInches == nil {
		return DefaultPlotWidthInches
	}
	return *c.PlotWidthInches
}

// GetPlotHeightInches returns the plot height or the default.
func (c *AnalysisConfig) GetPlotHeightInches() float64 {
	if c.PlotHeightInches == nil {
		return DefaultPlotHeightInches
	}
	return *c.PlotHeightInches
}

// GetDBPath returns the result archive path, or "" when archiving is disabled.
func (c *AnalysisConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// SetTimeThresholdSecs overrides the association tolerance.
func (c *AnalysisConfig) SetTimeThresholdSecs(v float64) { c.TimeThresholdSecs = ptrFloat64(v) }

// SetLoopThresholdMeters overrides the loop-closure distance.
func (c *AnalysisConfig) SetLoopThresholdMeters(v float64) { c.LoopThresholdMeters = ptrFloat64(v) }

// SetDBPath overrides the result archive path.
func (c *AnalysisConfig) SetDBPath(path string) { c.DBPath = &path }
