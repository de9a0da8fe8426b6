package datastore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRows struct {
	data [][]interface{}
	i    int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Values() ([]interface{}, error)               { return r.data[r.i-1], nil }

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	row := r.data[r.i-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *time.Time:
			*p = row[i].(time.Time)
		case *float64:
			*p = row[i].(float64)
		default:
			return fmt.Errorf("unsupported dest %T", d)
		}
	}
	return nil
}

type fakeQuerier struct {
	rows     [][]interface{}
	lastSQL  string
	lastArgs []interface{}
	copied   [][]interface{}
	table    pgx.Identifier
	columns  []string
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	q.lastSQL, q.lastArgs = sql, args
	return &fakeRows{data: q.rows}, nil
}

func (q *fakeQuerier) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	q.lastSQL, q.lastArgs = sql, args
	return pgconn.NewCommandTag("DELETE 3"), nil
}

func (q *fakeQuerier) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	q.table, q.columns = table, columns
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		q.copied = append(q.copied, vals)
	}
	return int64(len(q.copied)), src.Err()
}

func TestPostgresRepository_FetchBarsReversesNewestFirst(t *testing.T) {
	q := &fakeQuerier{rows: [][]interface{}{
		{t0.Add(2 * time.Hour), 3.0, 3.5, 2.5, 3.2, 30.0},
		{t0.Add(time.Hour), 2.0, 2.5, 1.5, 2.2, 20.0},
		{t0, 1.0, 1.5, 0.5, 1.2, 10.0},
	}}
	repo := NewPostgresRepository(q)

	bars, err := repo.FetchBars(context.Background(), "BTCUSDT", "1h", 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, t0, bars[0].Time)
	assert.InDelta(t, 3.2, bars[2].Close, 1e-9)
	assert.Equal(t, []interface{}{"BTCUSDT", "1h", 3}, q.lastArgs)
	assert.NoError(t, bars.Validate())
}

func TestPostgresRepository_FetchBarsEmpty(t *testing.T) {
	repo := NewPostgresRepository(&fakeQuerier{})
	_, err := repo.FetchBars(context.Background(), "BTCUSDT", "1h", 3)
	assert.ErrorIs(t, err, ErrNoBars)
}

func TestPostgresRepository_SaveAndDelete(t *testing.T) {
	q := &fakeQuerier{}
	repo := NewPostgresRepository(q)
	ctx := context.Background()

	require.NoError(t, repo.SaveBars(ctx, "BTCUSDT", "1h", makeBars(2)))
	assert.Equal(t, pgx.Identifier{"bars"}, q.table)
	assert.Equal(t, barColumns, q.columns)
	require.Len(t, q.copied, 2)
	assert.Equal(t, "BTCUSDT", q.copied[0][0])
	assert.Equal(t, t0.Add(time.Hour), q.copied[1][2])

	n, err := repo.DeleteBefore(ctx, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
