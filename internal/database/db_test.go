package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRows serves string rows from memory.
type memRows struct {
	data   []string
	pos    int
	closed bool
	err    error
}

func (r *memRows) Close()                                       { r.closed = true }
func (r *memRows) Err() error                                   { return r.err }
func (r *memRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *memRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *memRows) RawValues() [][]byte                          { return nil }
func (r *memRows) Conn() *pgx.Conn                              { return nil }

func (r *memRows) Next() bool {
	if r.closed || r.pos >= len(r.data) {
		r.closed = true
		return false
	}
	r.pos++
	return true
}

func (r *memRows) Scan(dest ...any) error {
	p, ok := dest[0].(*string)
	if !ok {
		return fmt.Errorf("unsupported destination %T", dest[0])
	}
	*p = r.data[r.pos-1]
	return nil
}

func (r *memRows) Values() ([]any, error) { return []any{r.data[r.pos-1]}, nil }

func scanName(row scanner) (string, error) {
	var s string
	err := row.Scan(&s)
	return s, err
}

func TestCollect(t *testing.T) {
	rows := &memRows{data: []string{"milk", "beans"}}

	got, err := collect(rows, nil, scanName)
	require.NoError(t, err)
	assert.Equal(t, []string{"milk", "beans"}, got)
	assert.True(t, rows.closed)
}

func TestCollect_EmptyIsNonNil(t *testing.T) {
	got, err := collect(&memRows{}, nil, scanName)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCollect_Errors(t *testing.T) {
	queryErr := errors.New("query failed")
	_, err := collect[string](nil, queryErr, scanName)
	assert.ErrorIs(t, err, queryErr)

	scanErr := errors.New("bad row")
	rows := &memRows{data: []string{"milk"}}
	_, err = collect(rows, nil, func(scanner) (string, error) { return "", scanErr })
	assert.ErrorIs(t, err, scanErr)
	assert.True(t, rows.closed)

	iterErr := errors.New("connection lost")
	_, err = collect(&memRows{err: iterErr}, nil, scanName)
	assert.ErrorIs(t, err, iterErr)
}
