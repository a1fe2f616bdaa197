package sqldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndInsert(t *testing.T) {
	d, err := New(WithConnURL(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	defer d.Close()

	table := TableData{
		TableName: "items",
		ColumnNames: []Field{
			{Title: "name", Type: "TEXT NOT NULL UNIQUE"},
			{Title: "val", Type: "TEXT"},
		},
		AutoKey: true,
	}
	require.NoError(t, d.CreateTable(table))
	require.NoError(t, d.CreateTable(table))

	table.Args = []any{"a", "1", "b", "2"}
	table.DataCount = 2
	require.NoError(t, d.Insert(table))

	table.Args = []any{"a", "3"}
	table.DataCount = 1
	require.NoError(t, d.Insert(table))

	ctx := context.Background()
	var count int
	require.NoError(t, d.QueryRow(ctx, "SELECT COUNT(*) FROM items").Scan(&count))
	assert.Equal(t, 2, count)

	var value string
	require.NoError(t, d.QueryRow(ctx, "SELECT val FROM items WHERE name = ?", "a").Scan(&value))
	assert.Equal(t, "3", value)
}

func TestInsertChecksArgs(t *testing.T) {
	d, err := New(WithConnURL(":memory:"))
	require.NoError(t, err)
	defer d.Close()

	err = d.Insert(TableData{TableName: "x"})
	assert.ErrorIs(t, err, ErrEmptyColumns)

	err = d.Insert(TableData{
		TableName:   "x",
		ColumnNames: []Field{{Title: "a", Type: "TEXT"}},
		Args:        []any{"1", "2"},
		DataCount:   1,
	})
	assert.Error(t, err)
}

func TestNewWithoutURL(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
}
