// Package store persists normalized quotes in an embedded SQLite database
// and serves the history queries behind the HTTP API.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/palontologist/price-oracles/pkg/logging"
	"github.com/palontologist/price-oracles/pkg/metrics"
	"github.com/palontologist/price-oracles/pkg/server/sources"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// Store is a quote history backed by a single SQLite file.
type Store struct {
	sql    *sql.DB
	logger *logging.Logger
}

// Open opens the quote database at path, creating the file and parent
// directory if needed, and runs migrations.
func Open(path string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{sql: db, logger: logger}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quotes (
			id TEXT PRIMARY KEY,
			commodity TEXT NOT NULL,
			price TEXT NOT NULL,
			currency TEXT NOT NULL,
			unit TEXT NOT NULL,
			source TEXT NOT NULL,
			market TEXT NOT NULL DEFAULT '',
			product_type TEXT NOT NULL,
			per_kg_price TEXT,
			per_kg_currency TEXT,
			degraded INTEGER NOT NULL DEFAULT 0,
			observed_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_quotes_commodity_observed ON quotes(commodity, observed_at DESC);`,
	}
	for _, q := range stmts {
		if _, err := s.sql.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// SaveQuotes appends a batch of quotes to the history. The batch is written
// in one transaction; any failure rolls the whole batch back.
func (s *Store) SaveQuotes(ctx context.Context, quotes []sources.NormalizedQuote) error {
	if len(quotes) == 0 {
		return nil
	}
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordStoreWrite("error")
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO quotes
		(id,commodity,price,currency,unit,source,market,product_type,per_kg_price,per_kg_currency,degraded,observed_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		metrics.RecordStoreWrite("error")
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, q := range quotes {
		degraded := 0
		if q.Degraded {
			degraded = 1
		}
		var perKgPrice, perKgCurrency interface{}
		if q.PerKg != nil {
			perKgPrice = q.PerKg.Value.String()
			perKgCurrency = string(q.PerKg.Currency)
		}
		_, err := stmt.ExecContext(ctx,
			uuid.New().String(), string(q.Commodity), q.Price.String(), string(q.Currency),
			q.Unit, q.Source, q.Market, string(q.ProductType),
			perKgPrice, perKgCurrency, degraded, q.Timestamp.UTC().Unix())
		if err != nil {
			metrics.RecordStoreWrite("error")
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		metrics.RecordStoreWrite("error")
		return err
	}
	metrics.RecordStoreWrite("success")
	s.logger.Debug("Saved quote batch", "quotes", len(quotes))
	return nil
}

const quoteColumns = `commodity,price,currency,unit,source,market,product_type,per_kg_price,per_kg_currency,degraded,observed_at`

// History returns stored quotes for a commodity, newest first. A limit
// outside (0, maxHistoryLimit] falls back to the default page size.
func (s *Store) History(ctx context.Context, commodity sources.Commodity, limit int) ([]sources.NormalizedQuote, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	rows, err := s.sql.QueryContext(ctx, `SELECT `+quoteColumns+`
		FROM quotes WHERE commodity=? ORDER BY observed_at DESC, rowid DESC LIMIT ?`,
		string(commodity), limit)
	if err != nil {
		return nil, err
	}
	return scanQuotes(rows)
}

// Latest returns the most recently stored quote for each commodity.
func (s *Store) Latest(ctx context.Context) ([]sources.NormalizedQuote, error) {
	rows, err := s.sql.QueryContext(ctx, `SELECT `+quoteColumns+`
		FROM quotes WHERE rowid IN (SELECT MAX(rowid) FROM quotes GROUP BY commodity)
		ORDER BY commodity`)
	if err != nil {
		return nil, err
	}
	return scanQuotes(rows)
}

func scanQuotes(rows *sql.Rows) ([]sources.NormalizedQuote, error) {
	defer func() { _ = rows.Close() }()

	var out []sources.NormalizedQuote
	for rows.Next() {
		var q sources.NormalizedQuote
		var commodity, price, currency, ptype string
		var perKgPrice, perKgCurrency sql.NullString
		var degraded int
		var observed int64
		if err := rows.Scan(&commodity, &price, &currency, &q.Unit, &q.Source, &q.Market,
			&ptype, &perKgPrice, &perKgCurrency, &degraded, &observed); err != nil {
			return nil, err
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("corrupt stored price %q: %w", price, err)
		}
		q.Commodity = sources.Commodity(commodity)
		q.Price = p
		q.Currency = sources.Currency(currency)
		q.ProductType = sources.ProductType(ptype)
		q.Degraded = degraded == 1
		q.Timestamp = time.Unix(observed, 0).UTC()
		if perKgPrice.Valid && perKgCurrency.Valid {
			v, err := decimal.NewFromString(perKgPrice.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt stored per-kg price %q: %w", perKgPrice.String, err)
			}
			q.PerKg = &sources.PerKgPrice{Value: v, Currency: sources.Currency(perKgCurrency.String)}
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
