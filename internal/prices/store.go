package prices

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iwvelando/price-allocation/internal/allocation"
	"github.com/iwvelando/price-allocation/internal/config"
	"github.com/iwvelando/price-allocation/pkg/constants"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store persists price observations keyed by timestamp.
type Store interface {
	// InsertPrices stores observations, skipping timestamps already present,
	// and reports how many rows were added.
	InsertPrices(ctx context.Context, observations []allocation.PriceObservation) (int64, error)
	// OldestPrices returns up to limit observations in ascending time order.
	OldestPrices(ctx context.Context, limit int) ([]allocation.PriceObservation, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// sqliteTimeLayout has a fixed width so that text ordering is chronological.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

type dialect struct {
	schema       string
	insert       string
	selectOldest string
	count        string
	encodeTime   func(time.Time) interface{}
	decodeTime   func(interface{}) (time.Time, error)
}

var dialects = map[string]dialect{
	constants.DriverPostgres: {
		schema: `CREATE TABLE IF NOT EXISTS price_observations (
	ts TIMESTAMPTZ PRIMARY KEY,
	price NUMERIC NOT NULL
)`,
		insert:       `INSERT INTO price_observations (ts, price) VALUES ($1, $2) ON CONFLICT (ts) DO NOTHING`,
		selectOldest: `SELECT ts, price FROM price_observations ORDER BY ts ASC LIMIT $1`,
		count:        `SELECT COUNT(*) FROM price_observations`,
		encodeTime: func(t time.Time) interface{} {
			return t.UTC()
		},
		decodeTime: func(v interface{}) (time.Time, error) {
			t, ok := v.(time.Time)
			if !ok {
				return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
			}
			return t.UTC(), nil
		},
	},
	constants.DriverSQLite: {
		schema: `CREATE TABLE IF NOT EXISTS price_observations (
	ts TEXT PRIMARY KEY,
	price TEXT NOT NULL
)`,
		insert:       `INSERT INTO price_observations (ts, price) VALUES (?, ?) ON CONFLICT (ts) DO NOTHING`,
		selectOldest: `SELECT ts, price FROM price_observations ORDER BY ts ASC LIMIT ?`,
		count:        `SELECT COUNT(*) FROM price_observations`,
		encodeTime: func(t time.Time) interface{} {
			return t.UTC().Format(sqliteTimeLayout)
		},
		decodeTime: func(v interface{}) (time.Time, error) {
			var s string
			switch raw := v.(type) {
			case string:
				s = raw
			case []byte:
				s = string(raw)
			default:
				return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
			}
			return time.Parse(sqliteTimeLayout, s)
		},
	},
}

// SQLStore is a Store backed by database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
}

// Open connects to the configured database and ensures the schema exists.
func Open(ctx context.Context, logger *zap.Logger, cfg config.DatabaseConfig) (*SQLStore, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	store, err := NewSQLStore(ctx, logger, db, cfg.Driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an open database handle and ensures the schema exists.
func NewSQLStore(ctx context.Context, logger *zap.Logger, db *sql.DB, driver string) (*SQLStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("database driver %q is not supported", driver)
	}
	if driver == constants.DriverSQLite {
		// A single connection keeps :memory: databases shared and serializes
		// writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	logger.Debug("price store ready",
		zap.String("op", "prices.NewSQLStore"),
		zap.String("driver", driver),
	)
	return &SQLStore{db: db, dialect: d, logger: logger}, nil
}

// InsertPrices inserts all observations in one transaction.
func (s *SQLStore) InsertPrices(ctx context.Context, observations []allocation.PriceObservation) (int64, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, s.dialect.insert)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	var inserted int64
	for _, o := range observations {
		res, err := stmt.ExecContext(ctx, s.dialect.encodeTime(o.Timestamp), decimal.NewFromFloat(o.Price).String())
		if err != nil {
			return 0, fmt.Errorf("failed to insert price at %s: %w", o.Timestamp.Format(time.RFC3339), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prices: %w", err)
	}

	s.logger.Info("stored price observations",
		zap.String("op", "prices.InsertPrices"),
		zap.Int("received", len(observations)),
		zap.Int64("inserted", inserted),
	)
	return inserted, nil
}

// OldestPrices returns the earliest limit observations.
func (s *SQLStore) OldestPrices(ctx context.Context, limit int) ([]allocation.PriceObservation, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit %d must be at least 1", limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.selectOldest, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	observations := make([]allocation.PriceObservation, 0, limit)
	for rows.Next() {
		var (
			rawTS    interface{}
			rawPrice string
		)
		if err := rows.Scan(&rawTS, &rawPrice); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		ts, err := s.dialect.decodeTime(rawTS)
		if err != nil {
			return nil, fmt.Errorf("failed to decode timestamp: %w", err)
		}
		price, err := decimal.NewFromString(rawPrice)
		if err != nil {
			return nil, fmt.Errorf("failed to decode price %q: %w", rawPrice, err)
		}
		observations = append(observations, allocation.PriceObservation{
			Timestamp: ts,
			Price:     price.InexactFloat64(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prices: %w", err)
	}
	return observations, nil
}

// Count returns the number of stored observations.
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, s.dialect.count).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count prices: %w", err)
	}
	return n, nil
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
