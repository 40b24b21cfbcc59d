package load

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/LilVoxy/taxi_etl/ETL/config"
	"github.com/LilVoxy/taxi_etl/ETL/frame"
	"github.com/LilVoxy/taxi_etl/ETL/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vendorFrame(rows int) *frame.Frame {
	ids := make([]any, rows)
	names := make([]any, rows)
	for i := range ids {
		ids[i] = int32(i + 1)
		names[i] = "vendor"
	}
	names[0] = nil

	f := frame.New("vendor_dim")
	f.MustAddColumn("vendor_id", frame.Int32, ids)
	f.MustAddColumn("vendor_name", frame.String, names)
	return f
}

type recordingExecer struct {
	queries []string
	args    [][]any
	failAt  int
}

func (r *recordingExecer) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	r.queries = append(r.queries, query)
	r.args = append(r.args, args)
	if r.failAt > 0 && len(r.queries) == r.failAt {
		return nil, errors.New("insert failed")
	}
	return nil, nil
}

func TestLoadTable_PostgresStatements(t *testing.T) {
	t.Parallel()

	exec := &recordingExecer{}
	loader := NewBulkLoader(config.DriverPostgres, "public", 2, utils.NewNopLogger())
	n, err := loader.LoadTable(context.Background(), exec, vendorFrame(5))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.Len(t, exec.queries, 3)

	assert.Equal(t, "INSERT INTO public.vendor_dim (vendor_id,vendor_name) VALUES ($1,$2),($3,$4)", exec.queries[0])
	assert.Equal(t, []any{int32(1), nil, int32(2), "vendor"}, exec.args[0])
	assert.Equal(t, "INSERT INTO public.vendor_dim (vendor_id,vendor_name) VALUES ($1,$2)", exec.queries[2])
	assert.Equal(t, []any{int32(5), "vendor"}, exec.args[2])
}

func TestLoadTable_MySQLStatements(t *testing.T) {
	t.Parallel()

	exec := &recordingExecer{}
	loader := NewBulkLoader(config.DriverMySQL, "", 10, utils.NewNopLogger())
	_, err := loader.LoadTable(context.Background(), exec, vendorFrame(3))
	require.NoError(t, err)
	require.Len(t, exec.queries, 1)
	assert.Equal(t, "INSERT INTO vendor_dim (vendor_id,vendor_name) VALUES (?,?),(?,?),(?,?)", exec.queries[0])
}

func TestLoadTable_NoColumns(t *testing.T) {
	t.Parallel()

	exec := &recordingExecer{}
	_, err := NewBulkLoader(config.DriverMySQL, "", 2, utils.NewNopLogger()).
		LoadTable(context.Background(), exec, frame.New("vendor_dim"))
	assert.Error(t, err)
	assert.Empty(t, exec.queries)
}

func TestLoadTable_ExecutesEachBatchBeforeBuildingNext(t *testing.T) {
	t.Parallel()

	// после ошибки в первой пачке следующие не формируются и не выполняются
	exec := &recordingExecer{failAt: 1}
	loader := NewBulkLoader(config.DriverMySQL, "", 1, utils.NewNopLogger())
	n, err := loader.LoadTable(context.Background(), exec, vendorFrame(4))
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Len(t, exec.queries, 1)
	assert.Contains(t, err.Error(), "строки 0-0")
}

func TestRowsPerStatement_RespectsParameterLimit(t *testing.T) {
	t.Parallel()

	loader := NewBulkLoader(config.DriverPostgres, "", 100000, utils.NewNopLogger())
	assert.Equal(t, maxStatementParams/18, loader.rowsPerStatement(18))
	assert.Equal(t, 1, NewBulkLoader(config.DriverPostgres, "", 0, utils.NewNopLogger()).rowsPerStatement(2))
}

func TestLoadTable(t *testing.T) {
	t.Parallel()

	exec := &recordingExecer{}
	loader := NewBulkLoader(config.DriverMySQL, "", 2, utils.NewNopLogger())

	n, err := loader.LoadTable(context.Background(), exec, vendorFrame(3))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, exec.queries, 2)
}

func TestLoadTable_Empty(t *testing.T) {
	t.Parallel()

	exec := &recordingExecer{}
	f := frame.New("vendor_dim")
	f.MustAddColumn("vendor_id", frame.Int32, []any{})

	n, err := NewBulkLoader(config.DriverMySQL, "", 2, utils.NewNopLogger()).LoadTable(context.Background(), exec, f)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, exec.queries)
}

func TestLoadTable_StopsOnError(t *testing.T) {
	t.Parallel()

	exec := &recordingExecer{failAt: 2}
	loader := NewBulkLoader(config.DriverMySQL, "", 2, utils.NewNopLogger())

	n, err := loader.LoadTable(context.Background(), exec, vendorFrame(5))
	require.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, err.Error(), "строки 2-3")
	assert.Len(t, exec.queries, 2)
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	statements := SplitStatements(`
-- комментарий
CREATE TABLE a (id INT); -- хвост
;
CREATE TABLE b (
    id INT
);
`)
	assert.Equal(t, []string{
		"CREATE TABLE a (id INT)",
		"CREATE TABLE b (\n    id INT\n)",
	}, statements)
}

func TestSplitStatements_SchemaFile(t *testing.T) {
	t.Parallel()

	script, err := os.ReadFile(filepath.Join("..", "..", "sql", "schema.sql"))
	require.NoError(t, err)

	statements := SplitStatements(string(script))
	require.Len(t, statements, 12)
	assert.Equal(t, "DROP TABLE IF EXISTS trips_fact", statements[0])
	assert.Contains(t, statements[len(statements)-1], "CREATE TABLE trips_fact")
}
