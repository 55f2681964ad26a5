// Package config defines the data structures related to configuration and
// includes functions for loading and validating the config.
package config

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/iwvelando/price-allocation/pkg/constants"
	"github.com/iwvelando/price-allocation/pkg/validation"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for price-allocation.
type Configuration struct {
	Logging   LoggingConfig   `yaml:"logging,omitempty" mapstructure:"logging"`
	Output    OutputConfig    `yaml:"output,omitempty" mapstructure:"output"`
	Database  DatabaseConfig  `yaml:"database,omitempty" mapstructure:"database"`
	Source    SourceConfig    `yaml:"source,omitempty" mapstructure:"source"`
	Optimizer OptimizerConfig `yaml:"optimizer,omitempty" mapstructure:"optimizer"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format    string `yaml:"format,omitempty" mapstructure:"format"`       // pretty, csv
	Directory string `yaml:"directory,omitempty" mapstructure:"directory"` // artifact directory
}

// DatabaseConfig selects and addresses the price store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver,omitempty" mapstructure:"driver"` // postgres, sqlite
	Host     string `yaml:"host,omitempty" mapstructure:"host"`
	Port     int    `yaml:"port,omitempty" mapstructure:"port"`
	User     string `yaml:"user,omitempty" mapstructure:"user"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	Name     string `yaml:"name,omitempty" mapstructure:"name"`
	SSLMode  string `yaml:"sslMode,omitempty" mapstructure:"sslMode"`
	Path     string `yaml:"path,omitempty" mapstructure:"path"` // sqlite file or :memory:
}

// SourceConfig describes where raw price data is downloaded from and cached.
type SourceConfig struct {
	URL             string `yaml:"url,omitempty" mapstructure:"url"`
	CacheFile       string `yaml:"cacheFile,omitempty" mapstructure:"cacheFile"`
	PriceColumn     string `yaml:"priceColumn,omitempty" mapstructure:"priceColumn"`
	TimestampColumn string `yaml:"timestampColumn,omitempty" mapstructure:"timestampColumn"`
	Timeout         string `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// envBindings maps config keys to the environment variables of the original
// deployment.
var envBindings = map[string]string{
	"database.user":     "POSTGRES_USER",
	"database.password": "POSTGRES_PASSWORD",
	"database.name":     "POSTGRES_DB",
	"database.host":     "POSTGRES_HOST",
	"database.port":     "POSTGRES_PORT",
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	return decode(v)
}

// LoadConfigurationFromReader loads YAML-formatted configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.AutomaticEnv()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	configuration.Normalize()
	return &configuration, nil
}

// Normalize applies defaults to every section.
func (c *Configuration) Normalize() {
	if c.Output.Format == "" {
		c.Output.Format = constants.OutputFormatPretty
	}
	if c.Output.Directory == "" {
		c.Output.Directory = constants.DefaultOutputDir
	}
	c.Database.Normalize()
	c.Source.Normalize()
	c.Optimizer.Normalize()
}

// Normalize applies database defaults.
func (d *DatabaseConfig) Normalize() {
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
	if d.Driver == "" {
		d.Driver = constants.DriverSQLite
	}
	switch d.Driver {
	case constants.DriverPostgres:
		if d.Port == 0 {
			d.Port = constants.DefaultDatabasePort
		}
		if d.SSLMode == "" {
			d.SSLMode = "disable"
		}
	case constants.DriverSQLite:
		if d.Path == "" {
			d.Path = constants.DefaultSQLitePath
		}
	}
}

// Validate returns an error when the database configuration is unusable.
func (d *DatabaseConfig) Validate() error {
	switch d.Driver {
	case constants.DriverPostgres:
		if d.Host == "" {
			return fmt.Errorf("database host is required for driver %s", d.Driver)
		}
		if d.Name == "" {
			return fmt.Errorf("database name is required for driver %s", d.Driver)
		}
	case constants.DriverSQLite:
		if d.Path == "" {
			return fmt.Errorf("database path is required for driver %s", d.Driver)
		}
	default:
		return fmt.Errorf("database driver %q is not supported", d.Driver)
	}
	return nil
}

// DSN returns the data source name for sql.Open.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == constants.DriverSQLite {
		return d.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Normalize applies source defaults.
func (s *SourceConfig) Normalize() {
	if s.URL == "" {
		s.URL = constants.DefaultSourceURL
	}
	if s.CacheFile == "" {
		s.CacheFile = constants.DefaultCacheFile
	}
	if s.PriceColumn == "" {
		s.PriceColumn = constants.DefaultPriceColumn
	}
	if s.TimestampColumn == "" {
		s.TimestampColumn = constants.DefaultTimestampColumn
	}
}

// TimeoutDuration parses the download timeout. Empty means no timeout.
func (s *SourceConfig) TimeoutDuration() (time.Duration, error) {
	return parseOptionalDuration("source timeout", s.Timeout)
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	o := c.Optimizer
	if o.TargetTotal > 0 && o.Tolerance > 1e-2*o.TargetTotal {
		warnings = append(warnings, fmt.Sprintf("Optimizer tolerance %g is loose relative to target total %g", o.Tolerance, o.TargetTotal))
	}
	if o.SmoothnessWeight != nil && *o.SmoothnessWeight == 0 {
		warnings = append(warnings, "Optimizer smoothness weight is 0; allocation will concentrate on the cheapest slots")
	}
	if o.RecordLimit > constants.MaxRecommendedRecordLimit {
		warnings = append(warnings, fmt.Sprintf("Optimizer record limit %d exceeds the recommended maximum of %d", o.RecordLimit, constants.MaxRecommendedRecordLimit))
	}
	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		warnings = append(warnings, "Output format: "+err.Error())
	}
	if c.Database.Driver == constants.DriverPostgres && c.Database.Password == "" {
		warnings = append(warnings, "Database password is empty; set POSTGRES_PASSWORD or database.password")
	}

	return warnings
}

func parseOptionalDuration(name, value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s %q must not be negative", name, value)
	}
	return d, nil
}
