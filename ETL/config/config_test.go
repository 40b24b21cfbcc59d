package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "etl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultETLConfig, cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
sources:
  trip_data_url: s3://nyc-tlc/trip data/yellow_tripdata_2023-03.parquet
  http_timeout: 30s
warehouse:
  driver: mysql
  port: 3306
load:
  batch_size: 250
  atomic: true
load_timezone: UTC
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3://nyc-tlc/trip data/yellow_tripdata_2023-03.parquet", cfg.Sources.TripDataURL)
	assert.Equal(t, DefaultETLConfig.Sources.ZoneLookupURL, cfg.Sources.ZoneLookupURL)
	assert.Equal(t, 30*time.Second, cfg.Sources.HTTPTimeout)
	assert.Equal(t, DriverMySQL, cfg.Warehouse.Driver)
	assert.Equal(t, 3306, cfg.Warehouse.Port)
	assert.Equal(t, "localhost", cfg.Warehouse.Host)
	assert.Equal(t, LoadConfig{BatchSize: 250, Atomic: true}, cfg.Load)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "warehouse:\n  password: from-file\n")
	t.Setenv("TAXI_ETL_WAREHOUSE_PASSWORD", "from-env")
	t.Setenv("TAXI_ETL_LOAD_BATCH_SIZE", "10")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Warehouse.Password)
	assert.Equal(t, 10, cfg.Load.BatchSize)
}

func TestLoad_Validation(t *testing.T) {
	tests := map[string]string{
		"batch size": "load:\n  batch_size: 0\n",
		"driver":     "warehouse:\n  driver: sqlite\n",
		"timezone":   "load_timezone: Mars/Olympus_Mons\n",
		"source":     "sources:\n  trip_data_url: \"\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "sources: [unterminated\n"))
	assert.Error(t, err)
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(ConfigPathEnv, "")
	assert.Equal(t, DefaultConfigPath, GetConfigPath())

	t.Setenv(ConfigPathEnv, "/etc/taxi/etl.yaml")
	assert.Equal(t, "/etc/taxi/etl.yaml", GetConfigPath())
}

func TestPostgresDSN(t *testing.T) {
	t.Parallel()

	dsn := PostgresDSN(DatabaseConfig{
		Host: "db", Port: 5432, User: "etl", Password: "p@ss", DBName: "nyc_taxi", SSLMode: "disable",
	})
	assert.Equal(t, "postgres://etl:p%40ss@db:5432/nyc_taxi?sslmode=disable", dsn)
}

func TestMySQLConfig(t *testing.T) {
	t.Parallel()

	mc := MySQLConfig(DatabaseConfig{Host: "db", Port: 3306, User: "etl", Password: "secret", DBName: "nyc_taxi"})
	assert.Equal(t, "db:3306", mc.Addr)
	assert.Equal(t, "tcp", mc.Net)
	assert.True(t, mc.ParseTime)
}

func TestBuilderPlaceholders(t *testing.T) {
	t.Parallel()

	query, _, err := Builder(DriverPostgres).Select("*").From(QualifiedTable("public", "vendor_dim")).
		Where("vendor_id = ?", 1).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM public.vendor_dim WHERE vendor_id = $1", query)

	query, _, err = Builder(DriverMySQL).Select("*").From(QualifiedTable("", "vendor_dim")).
		Where("vendor_id = ?", 1).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM vendor_dim WHERE vendor_id = ?", query)
}
