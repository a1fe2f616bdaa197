// Package sqlstorage keeps book sources in SQLite. Each source is stored as
// its JSON export next to the columns used to list and look it up.
package sqlstorage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wenzapen/bookrule/model"
	"github.com/wenzapen/bookrule/sqldb"
	"go.uber.org/zap"
)

const tableName = "book_sources"

var ErrNotFound = errors.New("book source not found")

var columns = []sqldb.Field{
	{Title: "url", Type: "TEXT NOT NULL UNIQUE"},
	{Title: "name", Type: "TEXT NOT NULL"},
	{Title: "source_group", Type: "TEXT"},
	{Title: "enabled", Type: "INTEGER NOT NULL"},
	{Title: "custom_order", Type: "INTEGER NOT NULL"},
	{Title: "body", Type: "TEXT NOT NULL"},
	{Title: "updated", Type: "TEXT NOT NULL"},
}

type SQLStorage struct {
	dataDocker []*model.BookSource
	db         sqldb.DBer
	options
}

func New(opts ...Option) (*SQLStorage, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}

	s := &SQLStorage{options: options}
	db, err := sqldb.New(
		sqldb.WithConnURL(s.sqlURL),
		sqldb.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	err = db.CreateTable(sqldb.TableData{
		TableName:   tableName,
		ColumnNames: columns,
		AutoKey:     true,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}
	s.db = db
	return s, nil
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// Save stores sources, replacing stored sources with the same URL.
func (s *SQLStorage) Save(sources ...*model.BookSource) error {
	for _, src := range sources {
		if src.BookSourceURL == "" {
			s.logger.Warn("skip book source without url", zap.String("name", src.BookSourceName))
			continue
		}
		if len(s.dataDocker) >= s.BatchCount {
			if err := s.Flush(); err != nil {
				return err
			}
		}
		s.dataDocker = append(s.dataDocker, src)
	}
	return s.Flush()
}

func (s *SQLStorage) Flush() error {
	if len(s.dataDocker) == 0 {
		return nil
	}
	defer func() {
		s.dataDocker = nil
	}()

	now := time.Now().Format(time.RFC3339)
	args := make([]any, 0, len(s.dataDocker)*len(columns))
	for _, src := range s.dataDocker {
		body, err := json.Marshal(src)
		if err != nil {
			return fmt.Errorf("encode %s: %w", src.BookSourceURL, err)
		}
		args = append(args,
			src.BookSourceURL,
			src.BookSourceName,
			src.BookSourceGroup,
			src.Enabled,
			src.CustomOrder,
			string(body),
			now)
	}
	return s.db.Insert(sqldb.TableData{
		TableName:   tableName,
		ColumnNames: columns,
		Args:        args,
		DataCount:   len(s.dataDocker),
	})
}

// Import stores every source of an exported source file (one object or an
// array) and returns how many were read.
func (s *SQLStorage) Import(data []byte) (int, error) {
	sources, err := model.ParseBookSources(data)
	if err != nil {
		return 0, fmt.Errorf("parse book sources: %w", err)
	}
	if err := s.Save(sources...); err != nil {
		return 0, err
	}
	return len(sources), nil
}

func (s *SQLStorage) LoadBookSource(ctx context.Context, url string) (*model.BookSource, error) {
	var body string
	err := s.db.QueryRow(ctx, "SELECT body FROM "+tableName+" WHERE url = ?", url).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if err != nil {
		return nil, err
	}
	return decode(body)
}

// List returns the stored sources ordered by their custom order and name.
func (s *SQLStorage) List(ctx context.Context, enabledOnly bool) ([]*model.BookSource, error) {
	q := "SELECT body FROM " + tableName
	if enabledOnly {
		q += " WHERE enabled = 1"
	}
	rows, err := s.db.Query(ctx, q+" ORDER BY custom_order, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*model.BookSource
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		src, err := decode(body)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (s *SQLStorage) Delete(ctx context.Context, url string) error {
	res, err := s.db.Exec(ctx, "DELETE FROM "+tableName+" WHERE url = ?", url)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	return nil
}

func decode(body string) (*model.BookSource, error) {
	var src model.BookSource
	if err := json.Unmarshal([]byte(body), &src); err != nil {
		return nil, fmt.Errorf("decode book source: %w", err)
	}
	return &src, nil
}
