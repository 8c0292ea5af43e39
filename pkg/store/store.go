// Package store persists blasts, their holes, drill plans and map layers in
// SQLite or PostgreSQL through database/sql.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/kass/go-blast-survey/pkg/config"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("store: not found")

// Store is a database-backed repository for survey records
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the configured database and checks the connection
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	var driverName string
	switch cfg.Driver {
	case "sqlite":
		driverName = "sqlite"
	case "postgres":
		driverName = "postgres"
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, eris.Wrap(err, "store: open database")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "store: ping database")
	}

	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 10
	}
	if cfg.Driver == "sqlite" {
		// SQLite allows a single writer
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	zap.L().Debug("store: connected", zap.String("driver", cfg.Driver))
	return &Store{db: db, driver: cfg.Driver}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables if they do not exist yet
func (s *Store) Migrate(ctx context.Context) error {
	idType, floatType := "INTEGER PRIMARY KEY AUTOINCREMENT", "REAL"
	if s.driver == "postgres" {
		idType, floatType = "BIGSERIAL PRIMARY KEY", "DOUBLE PRECISION"
	}

	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS blasts (
			id %s,
			name VARCHAR(255) NOT NULL,
			description VARCHAR(1024),
			bench VARCHAR(255),
			created_at TIMESTAMP NOT NULL
		)`, idType),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS holes (
			id %[1]s,
			blast_id BIGINT NOT NULL REFERENCES blasts(id) ON DELETE CASCADE,
			hole_id VARCHAR(64) NOT NULL,
			burden %[2]s,
			spacing %[2]s,
			diameter_mm %[2]s,
			hole_depth_m %[2]s,
			stemming_m %[2]s,
			explosive_density_kg_m3 %[2]s,
			explosive_column_m %[2]s
		)`, idType, floatType),

		`CREATE INDEX IF NOT EXISTS idx_holes_blast_id ON holes (blast_id)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS drill_plans (
			id %[1]s,
			name VARCHAR(255) NOT NULL,
			description VARCHAR(1024),
			bench VARCHAR(255),
			burden %[2]s NOT NULL,
			spacing %[2]s NOT NULL,
			rows INTEGER NOT NULL,
			cols INTEGER NOT NULL,
			origin_x %[2]s NOT NULL DEFAULT 0,
			origin_y %[2]s NOT NULL DEFAULT 0,
			grid_geojson TEXT,
			created_at TIMESTAMP NOT NULL
		)`, idType, floatType),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS map_layers (
			id %s,
			name VARCHAR(255) NOT NULL,
			layer_type VARCHAR(64) NOT NULL DEFAULT 'feature',
			geojson TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`, idType),
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return eris.Wrapf(err, "store: migrate")
		}
	}

	zap.L().Info("store: schema ready", zap.String("driver", s.driver))
	return nil
}

// rebind rewrites ? placeholders into the driver's bind syntax
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertReturningID runs an INSERT ... RETURNING id statement
func (s *Store) insertReturningID(ctx context.Context, q queryer, query string, args ...any) (int64, error) {
	var id int64
	if err := q.QueryRowContext(ctx, s.rebind(query), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
