package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sartorproj/salesforecast/timeseries"
)

// Querier is the subset of a pgx pool used by PostgresSource.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource loads observations with a query returning
// (timestamp, value, dimension...) columns, one per configured dimension.
type PostgresSource struct {
	db         Querier
	query      string
	dimensions []string
}

// NewPostgresSource creates a source. NULL dimension values become empty tags.
func NewPostgresSource(db Querier, query string, dimensions []string) *PostgresSource {
	return &PostgresSource{
		db:         db,
		query:      query,
		dimensions: append([]string(nil), dimensions...),
	}
}

// Connect opens a connection pool for databaseURL.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Load runs the query and returns its rows as observations. Rows with a NULL
// timestamp or value are skipped, as are NaN and infinite values.
func (s *PostgresSource) Load(ctx context.Context, args ...any) ([]timeseries.Observation, error) {
	if s.query == "" {
		return nil, errors.New("query must not be empty")
	}

	rows, err := s.db.Query(ctx, s.query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var obs []timeseries.Observation
	for rows.Next() {
		var ts pgtype.Timestamptz
		var value pgtype.Float8
		dims := make([]pgtype.Text, len(s.dimensions))

		dest := make([]any, 0, 2+len(dims))
		dest = append(dest, &ts, &value)
		for i := range dims {
			dest = append(dest, &dims[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		if !ts.Valid || !value.Valid {
			continue
		}
		if math.IsNaN(value.Float64) || math.IsInf(value.Float64, 0) {
			continue
		}

		o := timeseries.Observation{Timestamp: ts.Time.In(time.UTC), Value: value.Float64}
		if len(dims) > 0 {
			o.Tags = make(map[string]string, len(dims))
			for i, d := range s.dimensions {
				o.Tags[d] = dims[i].String
			}
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read observations: %w", err)
	}

	return obs, nil
}
