// Package sqldb is a thin layer over an SQLite database: table creation,
// batched upserts and plain queries.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var ErrEmptyColumns = errors.New("table has no columns")

type DBer interface {
	CreateTable(t TableData) error
	Insert(t TableData) error
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	Close() error
}

type Field struct {
	Title string
	Type  string
}

type TableData struct {
	TableName   string
	ColumnNames []Field
	// Args holds DataCount rows of values, row after row.
	Args      []any
	DataCount int
	AutoKey   bool
}

type Sqldb struct {
	options
	db *sql.DB
}

func New(opts ...Option) (*Sqldb, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.sqlURL == "" {
		return nil, errors.New("sqldb: empty connection url")
	}
	d := &Sqldb{options: options}
	if err := d.OpenDB(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Sqldb) OpenDB() error {
	db, err := sql.Open("sqlite", d.sqlURL)
	if err != nil {
		return fmt.Errorf("sqldb: open: %w", err)
	}
	// a ":memory:" database exists only within its connection
	db.SetMaxOpenConns(1)
	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return fmt.Errorf("sqldb: %s: %w", p, err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("sqldb: ping: %w", err)
	}
	d.db = db
	return nil
}

func (d *Sqldb) CreateTable(t TableData) error {
	if len(t.ColumnNames) == 0 {
		return ErrEmptyColumns
	}
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS " + t.TableName + " (")
	if t.AutoKey {
		b.WriteString("id INTEGER PRIMARY KEY AUTOINCREMENT,")
	}
	for _, c := range t.ColumnNames {
		b.WriteString(c.Title + " " + c.Type + ",")
	}
	q := strings.TrimSuffix(b.String(), ",") + ");"
	d.logger.Debug("create table", zap.String("sql", q))
	_, err := d.db.Exec(q)
	return err
}

// Insert writes t.DataCount rows. A row whose unique columns collide with a
// stored row replaces it.
func (d *Sqldb) Insert(t TableData) error {
	if len(t.ColumnNames) == 0 {
		return ErrEmptyColumns
	}
	if t.DataCount == 0 {
		return nil
	}
	if len(t.Args) != t.DataCount*len(t.ColumnNames) {
		return fmt.Errorf("sqldb: %d values for %d rows of %d columns", len(t.Args), t.DataCount, len(t.ColumnNames))
	}
	titles := make([]string, len(t.ColumnNames))
	for i, c := range t.ColumnNames {
		titles[i] = c.Title
	}
	row := "(" + strings.TrimSuffix(strings.Repeat("?,", len(titles)), ",") + ")"
	q := "INSERT OR REPLACE INTO " + t.TableName + " (" + strings.Join(titles, ",") + ") VALUES " +
		strings.TrimSuffix(strings.Repeat(row+",", t.DataCount), ",") + ";"
	d.logger.Debug("insert table", zap.String("table", t.TableName), zap.Int("rows", t.DataCount))
	_, err := d.db.Exec(q, t.Args...)
	return err
}

func (d *Sqldb) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}

func (d *Sqldb) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

func (d *Sqldb) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

func (d *Sqldb) Close() error {
	return d.db.Close()
}
