package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/multimeter/internal/transport"
	"github.com/banshee-data/multimeter/internal/units"
)

// ExampleConfigPath is the checked-in example acquisition config, relative to
// the repository root.
const ExampleConfigPath = "config/multimeter.example.json"

// AcquisitionConfig holds the tunable settings of one acquisition run. Every
// field is optional; the Get* accessors supply defaults for unset fields, and
// command-line flags override whatever the file sets.
type AcquisitionConfig struct {
	// Transport
	Port        *string `json:"port,omitempty"`
	BaudRate    *int    `json:"baud_rate,omitempty"`
	DataBits    *int    `json:"data_bits,omitempty"`
	StopBits    *int    `json:"stop_bits,omitempty"`
	Parity      *string `json:"parity,omitempty"`
	ReadTimeout *string `json:"read_timeout,omitempty"` // duration string like "10ms"

	// Protocol
	Query        *bool   `json:"query,omitempty"`
	QueryCommand *string `json:"query_command,omitempty"`

	// Loop
	BufferSize *int     `json:"buffer_size,omitempty"`
	FrameRate  *float64 `json:"frame_rate,omitempty"`
	Channel    *int     `json:"channel,omitempty"`
	Unit       *string  `json:"unit,omitempty"`

	// Aggregates
	HistogramMin   *float64 `json:"histogram_min,omitempty"`
	HistogramMax   *float64 `json:"histogram_max,omitempty"`
	HistogramBins  *int     `json:"histogram_bins,omitempty"`
	SeriesCapacity *int     `json:"series_capacity,omitempty"`

	// Persistence
	LogDir *string `json:"log_dir,omitempty"`
	DBPath *string `json:"db_path,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyAcquisitionConfig returns an AcquisitionConfig with all fields nil.
func EmptyAcquisitionConfig() *AcquisitionConfig {
	return &AcquisitionConfig{}
}

// DefaultAcquisitionConfig returns a config with every field set to its
// default value.
func DefaultAcquisitionConfig() *AcquisitionConfig {
	return &AcquisitionConfig{
		BaudRate:       ptrInt(9600),
		DataBits:       ptrInt(8),
		StopBits:       ptrInt(1),
		Parity:         ptrString("N"),
		ReadTimeout:    ptrString("10ms"),
		Query:          ptrBool(false),
		QueryCommand:   ptrString("READ?"),
		BufferSize:     ptrInt(1000),
		FrameRate:      ptrFloat64(60),
		Channel:        ptrInt(1),
		Unit:           ptrString(units.Volt),
		HistogramMin:   ptrFloat64(0),
		HistogramMax:   ptrFloat64(10),
		HistogramBins:  ptrInt(50),
		SeriesCapacity: ptrInt(36000),
		LogDir:         ptrString(""),
		DBPath:         ptrString(""),
	}
}

// LoadAcquisitionConfig loads an AcquisitionConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file stay nil, so partial configs are safe.
func LoadAcquisitionConfig(path string) (*AcquisitionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
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

	cfg := EmptyAcquisitionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the set values are usable.
func (c *AcquisitionConfig) Validate() error {
	if _, err := c.PortOptions().Normalize(); err != nil {
		return err
	}

	if c.ReadTimeout != nil && *c.ReadTimeout != "" {
		if _, err := time.ParseDuration(*c.ReadTimeout); err != nil {
			return fmt.Errorf("invalid read_timeout '%s': %w", *c.ReadTimeout, err)
		}
	}

	if c.QueryCommand != nil && strings.TrimSpace(*c.QueryCommand) == "" {
		return fmt.Errorf("query_command must not be empty")
	}

	if c.BufferSize != nil && *c.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive, got %d", *c.BufferSize)
	}

	if c.FrameRate != nil && *c.FrameRate < 0 {
		return fmt.Errorf("frame_rate must be non-negative, got %f", *c.FrameRate)
	}

	if c.Channel != nil && *c.Channel < 0 {
		return fmt.Errorf("channel must be non-negative, got %d", *c.Channel)
	}

	if c.Unit != nil {
		if _, ok := units.Canonical(*c.Unit); !ok {
			return fmt.Errorf("invalid unit '%s': must be one of %s", *c.Unit, units.GetValidUnitsString())
		}
	}

	if c.HistogramBins != nil && *c.HistogramBins <= 0 {
		return fmt.Errorf("histogram_bins must be positive, got %d", *c.HistogramBins)
	}
	if min, max := c.GetHistogramRange(); !(max > min) {
		return fmt.Errorf("histogram_max (%g) must be greater than histogram_min (%g)", max, min)
	}

	if c.SeriesCapacity != nil && *c.SeriesCapacity < 0 {
		return fmt.Errorf("series_capacity must be non-negative, got %d", *c.SeriesCapacity)
	}

	return nil
}

// PortOptions builds transport options from the transport fields. Unset
// fields are left zero so PortOptions.Normalize applies its defaults.
func (c *AcquisitionConfig) PortOptions() transport.PortOptions {
	var opts transport.PortOptions
	if c.BaudRate != nil {
		opts.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		opts.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		opts.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		opts.Parity = *c.Parity
	}
	opts.ReadTimeout = c.GetReadTimeout()
	return opts
}

// GetPort returns the serial device path, or "" when unset.
func (c *AcquisitionConfig) GetPort() string {
	if c.Port == nil {
		return ""
	}
	return *c.Port
}

// GetReadTimeout parses and returns the ReadTimeout as a time.Duration.
func (c *AcquisitionConfig) GetReadTimeout() time.Duration {
	if c.ReadTimeout == nil || *c.ReadTimeout == "" {
		return transport.DefaultReadTimeout
	}
	d, err := time.ParseDuration(*c.ReadTimeout)
	if err != nil {
		return transport.DefaultReadTimeout // default on parse error
	}
	return d
}

// GetQuery returns whether protocol-query mode is enabled.
func (c *AcquisitionConfig) GetQuery() bool {
	if c.Query == nil {
		return false
	}
	return *c.Query
}

// GetQueryCommand returns the query command or the default "READ?".
func (c *AcquisitionConfig) GetQueryCommand() string {
	if c.QueryCommand == nil || *c.QueryCommand == "" {
		return "READ?"
	}
	return *c.QueryCommand
}

// GetBufferSize returns the read buffer size or the default.
func (c *AcquisitionConfig) GetBufferSize() int {
	if c.BufferSize == nil {
		return 1000
	}
	return *c.BufferSize
}

// GetFrameRate returns the loop rate in iterations per second.
func (c *AcquisitionConfig) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return 60
	}
	return *c.FrameRate
}

// GetChannel returns the channel number or the default.
func (c *AcquisitionConfig) GetChannel() int {
	if c.Channel == nil {
		return 1
	}
	return *c.Channel
}

// GetUnit returns the canonical measurement unit.
func (c *AcquisitionConfig) GetUnit() string {
	if c.Unit == nil {
		return units.Volt
	}
	if u, ok := units.Canonical(*c.Unit); ok {
		return u
	}
	return *c.Unit
}

// GetHistogramRange returns the histogram's [min, max].
func (c *AcquisitionConfig) GetHistogramRange() (float64, float64) {
	min, max := 0.0, 10.0
	if c.HistogramMin != nil {
		min = *c.HistogramMin
	}
	if c.HistogramMax != nil {
		max = *c.HistogramMax
	}
	return min, max
}

// GetHistogramBins returns the histogram bin count or the default.
func (c *AcquisitionConfig) GetHistogramBins() int {
	if c.HistogramBins == nil {
		return 50
	}
	return *c.HistogramBins
}

// GetSeriesCapacity returns the series ring capacity; 0 means unbounded.
func (c *AcquisitionConfig) GetSeriesCapacity() int {
	if c.SeriesCapacity == nil {
		return 36000
	}
	return *c.SeriesCapacity
}

// GetLogDir returns the CSV log directory, or "" when logging is disabled.
func (c *AcquisitionConfig) GetLogDir() string {
	if c.LogDir == nil {
		return ""
	}
	return *c.LogDir
}

// GetDBPath returns the reading store path, or "" when disabled.
func (c *AcquisitionConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}
