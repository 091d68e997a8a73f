package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/penguintechinc/waddlebot-sub014/pkg/persistence"
)

// MaxQueryRows caps the rows a data query node can read.
const MaxQueryRows = 1000

// QueryRunner runs data-node queries inside read-only transactions.
type QueryRunner struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewQueryRunner creates a read-only query runner.
func NewQueryRunner(db *sql.DB, logger *slog.Logger) *QueryRunner {
	return &QueryRunner{db: db, logger: logger}
}

// Query runs query with positional args and returns the rows as column maps.
func (q *QueryRunner) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	tx, err := q.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		var pqErr *pq.Error
		// 25006: read_only_sql_transaction
		if errors.As(err, &pqErr) && pqErr.Code == "25006" {
			return nil, fmt.Errorf("%w: %s", persistence.ErrQueryNotReadOnly, pqErr.Message)
		}

		return nil, fmt.Errorf("query failed: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			q.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := make([]map[string]any, 0)

	for rows.Next() {
		if len(result) >= MaxQueryRows {
			q.logger.WarnContext(ctx, "query result truncated", "limit", MaxQueryRows)

			break
		}

		values := make([]any, len(columns))
		pointers := make([]any, len(columns))

		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, column := range columns {
			row[strings.ToLower(column)] = normalize(values[i])
		}

		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

func normalize(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}

	return value
}
