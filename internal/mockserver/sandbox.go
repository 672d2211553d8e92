package mockserver

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/felixgeelhaar/chatsql/internal/domain"
)

//go:embed seed.sql
var seedSQL string

const (
	// maxRows caps the rows returned for one query
	maxRows      = 500
	queryTimeout = 5 * time.Second
)

// sandbox is the read-only demo database student queries run against
type sandbox struct {
	db *sql.DB
}

// newSandbox opens an in-memory SQLite database, loads the seed data and
// locks it against writes
func newSandbox() (*sandbox, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// An in-memory database lives as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(seedSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed sandbox: %w", err)
	}
	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("lock sandbox: %w", err)
	}
	return &sandbox{db: db}, nil
}

func (s *sandbox) Close() error {
	return s.db.Close()
}

// run executes query and returns its result. SQL errors are embedded in the
// result.
func (s *sandbox) run(ctx context.Context, query string) domain.QueryResult {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.query(ctx, query)
	if err != nil {
		return domain.QueryResult{
			Columns: []string{},
			Rows:    [][]any{},
			Error:   err.Error(),
		}
	}
	res.Success = true
	res.RowCount = len(res.Rows)
	res.ExecutionTime = float64(time.Since(start).Microseconds()) / 1000
	return res
}

func (s *sandbox) query(ctx context.Context, query string) (domain.QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return domain.QueryResult{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return domain.QueryResult{}, err
	}

	out := domain.QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() && len(out.Rows) < maxRows {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return domain.QueryResult{}, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, vals)
	}
	return out, rows.Err()
}

// sameResult compares two successful results. Row order only counts when
// the reference query sorts.
func sameResult(want, got domain.QueryResult, ordered bool) bool {
	if len(want.Columns) != len(got.Columns) || len(want.Rows) != len(got.Rows) {
		return false
	}
	w, g := rowKeys(want.Rows), rowKeys(got.Rows)
	if !ordered {
		slices.Sort(w)
		slices.Sort(g)
	}
	return slices.Equal(w, g)
}

func rowKeys(rows [][]any) []string {
	keys := make([]string, len(rows))
	for i, row := range rows {
		parts := make([]string, len(row))
		for j, v := range row {
			parts[j] = fmt.Sprint(v)
		}
		keys[i] = strings.Join(parts, "\x1f")
	}
	return keys
}
