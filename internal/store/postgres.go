package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/rish742/telematics-Dashboard/internal/telematics"
)

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresStore reads the telematics table over a direct PostgreSQL
// connection. Deployments that own the database can skip the REST layer.
type PostgresStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewPostgresStore creates a new PostgreSQL store and verifies the
// connection.
func NewPostgresStore(logger zerolog.Logger, cfg *PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, connectionError("failed to open PostgreSQL connection", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, classifyPostgres("failed to ping PostgreSQL", err)
	}

	// Connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{
		db:     db,
		logger: logger.With().Str("component", "postgres_store").Logger(),
	}, nil
}

// QueryRows implements RowStore.QueryRows
func (s *PostgresStore) QueryRows(ctx context.Context, q telematics.Query) ([]telematics.Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s", pq.QuoteIdentifier(q.Table))
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", pq.QuoteIdentifier(q.OrderBy), dir)
	}
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classifyPostgres("failed to query telematics rows", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, schemaError("failed to read result columns", err)
	}

	var result []telematics.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, schemaError("failed to scan row", err)
		}

		row := make(telematics.Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeSQLValue(values[i])
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, classifyPostgres("error iterating rows", err)
	}

	s.logger.Debug().Int("rows", len(result)).Str("table", q.Table).Msg("Fetched rows from store")
	return result, nil
}

// Close implements RowStore.Close
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// normalizeSQLValue maps driver values onto the plain types the coercion
// layer understands. lib/pq hands text columns back as []byte.
func normalizeSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// classifyPostgres maps a lib/pq failure onto the store error taxonomy.
func classifyPostgres(msg string, err error) *Error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "28":
			// invalid_authorization_specification, invalid_password
			return authError(msg, err)
		case pqErr.Code == "42P01" || pqErr.Code == "42703":
			// undefined_table, undefined_column
			return schemaError(msg, err)
		}
	}
	return connectionError(msg, err)
}

// Ensure PostgresStore implements RowStore
var _ telematics.RowStore = (*PostgresStore)(nil)
