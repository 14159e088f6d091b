package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mockDB scripts the pgx surface the stores use. Query returns the scripted
// rows, QueryRow the scripted row, Exec records its sql and args.
type mockDB struct {
	rows     *mockRows
	queryErr error
	row      *mockRow
	execTag  pgconn.CommandTag
	execErr  error
	execSQL  []string
	execArgs [][]any
	tx       *mockTx
}

func (m *mockDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if m.rows == nil {
		return &mockRows{}, nil
	}
	return m.rows, nil
}

func (m *mockDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	if m.row == nil {
		return &mockRow{err: pgx.ErrNoRows}
	}
	m.row.args = args
	return m.row
}

func (m *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execSQL = append(m.execSQL, sql)
	m.execArgs = append(m.execArgs, args)
	return m.execTag, m.execErr
}

func (m *mockDB) Begin(_ context.Context) (pgx.Tx, error) {
	if m.tx == nil {
		return nil, fmt.Errorf("no transaction scripted")
	}
	return m.tx, nil
}

// mockRows walks scripted value rows through the pgx.Rows interface.
type mockRows struct {
	data [][]any
	idx  int
	err  error
}

func (m *mockRows) Close()                                       {}
func (m *mockRows) Err() error                                   { return m.err }
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

func (m *mockRows) Next() bool {
	return m.idx < len(m.data)
}

func (m *mockRows) Scan(dest ...any) error {
	row := m.data[m.idx]
	m.idx++
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(row))
	}
	for i, d := range dest {
		if err := assign(d, row[i]); err != nil {
			return err
		}
	}
	return nil
}

type mockRow struct {
	values []any
	err    error
	args   []any
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	for i, d := range dest {
		if err := assign(d, m.values[i]); err != nil {
			return err
		}
	}
	return nil
}

func assign(dest, val any) error {
	switch d := dest.(type) {
	case *string:
		*d = val.(string)
	case *int32:
		*d = val.(int32)
	case *int64:
		*d = val.(int64)
	case *float64:
		*d = val.(float64)
	case *bool:
		*d = val.(bool)
	case *[]byte:
		*d = val.([]byte)
	case *time.Time:
		*d = val.(time.Time)
	default:
		return fmt.Errorf("assign: unsupported destination %T", dest)
	}
	return nil
}

// mockTx covers the transactional path in MarkRetry. The embedded interface
// panics on anything the store is not expected to call.
type mockTx struct {
	pgx.Tx
	row        *mockRow
	execSQL    []string
	execArgs   [][]any
	committed  bool
	rolledBack bool
}

func (m *mockTx) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	m.row.args = args
	return m.row
}

func (m *mockTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execSQL = append(m.execSQL, sql)
	m.execArgs = append(m.execArgs, args)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (m *mockTx) Commit(_ context.Context) error {
	m.committed = true
	return nil
}

func (m *mockTx) Rollback(_ context.Context) error {
	m.rolledBack = true
	return nil
}
