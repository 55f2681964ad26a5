// Package constants provides shared constants for the price-allocation application.
package constants

// TimestampLayout is the format used for slot timestamps in artifacts and API
// payloads.
const TimestampLayout = "2006-01-02T15:04:05Z07:00"

// Optimization defaults, taken from the original DK1 deployment.
const (
	// DefaultTargetTotal is the quantity distributed across all slots
	DefaultTargetTotal = 100.0

	// DefaultSmoothnessWeight balances total cost against smoothness
	DefaultSmoothnessWeight = 50.0

	// DefaultTolerance is the primal/dual residual tolerance
	DefaultTolerance = 1e-6

	// DefaultMaxIterations caps the solver loop
	DefaultMaxIterations = 10000

	// DefaultPenalty is the ADMM penalty parameter rho
	DefaultPenalty = 10.0

	// DefaultRecordLimit is the number of oldest observations optimized per run
	DefaultRecordLimit = 1000

	// MaxRecommendedRecordLimit is the size above which a warning is issued
	MaxRecommendedRecordLimit = 10000

	// DefaultSweepWorkers bounds concurrent runs in a smoothness sweep
	DefaultSweepWorkers = 4
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Artifact constants
const (
	// DefaultOutputDir is where the optimized artifact is written
	DefaultOutputDir = "data"

	// ArtifactFile is the columnar allocation table
	ArtifactFile = "optimized.csv"

	// ArtifactMetadataFile holds the run metadata next to the table
	ArtifactMetadataFile = "optimized.meta.yaml"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"
)

// Price source defaults
const (
	// DefaultSourceURL is the OPSD hourly time series
	DefaultSourceURL = "https://data.open-power-system-data.org/time_series/2020-10-06/time_series_60min_singleindex.csv"

	// DefaultCacheFile is the local copy of the downloaded CSV
	DefaultCacheFile = "data/time_series_60min.csv"

	// DefaultPriceColumn is the DK1 day-ahead price column
	DefaultPriceColumn = "DK_1_price_day_ahead"

	// DefaultTimestampColumn is the UTC timestamp column
	DefaultTimestampColumn = "utc_timestamp"
)

// Database defaults
const (
	// DriverPostgres selects github.com/lib/pq
	DriverPostgres = "postgres"

	// DriverSQLite selects modernc.org/sqlite
	DriverSQLite = "sqlite"

	// DefaultDatabasePort is the PostgreSQL port
	DefaultDatabasePort = 5432

	// DefaultSQLitePath is used when the sqlite driver has no path configured
	DefaultSQLitePath = "data/prices.db"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum request body size (1 MB)
	DefaultMaxUploadSizeBytes int64 = 1024 * 1024
)
