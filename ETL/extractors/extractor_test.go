package extractors

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LilVoxy/taxi_etl/ETL/config"
	"github.com/LilVoxy/taxi_etl/ETL/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(dir string) *Extractor {
	return NewExtractor(dir, config.SourcesConfig{HTTPTimeout: 5 * time.Second}, utils.NewNopLogger())
}

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtract_DownloadsAndSkipsExisting(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/trip-data/yellow_tripdata_2024-01.parquet":
			w.Write([]byte("PAR1"))
		case "/misc/taxi_zone_lookup.csv":
			w.Write([]byte("LocationID,Borough,Zone,service_zone\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "raw")
	e := newTestExtractor(dir)
	tripURL := srv.URL + "/trip-data/yellow_tripdata_2024-01.parquet"
	zoneURL := srv.URL + "/misc/taxi_zone_lookup.csv"

	files, err := e.Extract(context.Background(), tripURL, zoneURL)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, TripDataFile), files.TripData)
	assert.Equal(t, filepath.Join(dir, ZoneLookupFile), files.ZoneLookup)

	content, err := os.ReadFile(files.TripData)
	require.NoError(t, err)
	assert.Equal(t, "PAR1", string(content))
	assert.Equal(t, int32(2), hits.Load())

	// Повторный запуск не обращается к источнику
	_, err = e.Extract(context.Background(), tripURL, zoneURL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestDownloadFile_HTTPErrorLeavesNoFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	output := filepath.Join(dir, TripDataFile)

	_, err := newTestExtractor(dir).DownloadFile(context.Background(), srv.URL+"/missing.parquet", output)
	require.Error(t, err)
	assert.NoFileExists(t, output)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "временный файл должен быть удален")
}

func TestDownloadFile_ExtractsZip(t *testing.T) {
	t.Parallel()

	archive := zipArchive(t, map[string]string{
		ZoneLookupFile: "LocationID,Borough,Zone,service_zone\n1,EWR,Newark Airport,EWR\n",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	dir := t.TempDir()
	output := filepath.Join(dir, ZoneLookupFile)

	fetched, err := newTestExtractor(dir).DownloadFile(context.Background(), srv.URL+"/zones.zip", output)
	require.NoError(t, err)
	assert.True(t, fetched)

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Newark Airport")
}

func TestDownloadFile_ExtractsZipIntoWorkingDir(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		ZoneLookupFile: "LocationID,Borough,Zone,service_zone\n1,EWR,Newark Airport,EWR\n",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	// относительный путь без каталога: архив распаковывается в "."
	chdir(t, t.TempDir())

	fetched, err := newTestExtractor(".").DownloadFile(context.Background(), srv.URL+"/zones.zip", ZoneLookupFile)
	require.NoError(t, err)
	assert.True(t, fetched)

	content, err := os.ReadFile(ZoneLookupFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Newark Airport")
}

func TestExtractZip_RejectsPathsOutsideDir(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	archivePath := filepath.Join(base, "evil.zip")
	require.NoError(t, os.WriteFile(archivePath, zipArchive(t, map[string]string{"../escaped.csv": "x"}), 0o644))

	dir := filepath.Join(base, "raw")
	err := extractZip(archivePath, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "недопустимый путь")

	_, err = os.Stat(filepath.Join(base, "escaped.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractZip_Subdirectories(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	archivePath := filepath.Join(base, "nested.zip")
	require.NoError(t, os.WriteFile(archivePath, zipArchive(t, map[string]string{"zones/lookup.csv": "x"}), 0o644))

	require.NoError(t, extractZip(archivePath, filepath.Join(base, "raw")))
	content, err := os.ReadFile(filepath.Join(base, "raw", "zones", "lookup.csv"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(content))
}

func TestDownloadFile_ZipWithoutTarget(t *testing.T) {
	t.Parallel()

	archive := zipArchive(t, map[string]string{"other.csv": "x"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := newTestExtractor(dir).DownloadFile(context.Background(), srv.URL+"/zones.zip", filepath.Join(dir, ZoneLookupFile))
	require.Error(t, err)
}

func TestDownloadFile_UnsupportedScheme(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := newTestExtractor(dir).DownloadFile(context.Background(), "ftp://example.com/file.csv", filepath.Join(dir, "file.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp")
}

type stubSource struct {
	content string
	got     *url.URL
}

func (s *stubSource) Fetch(_ context.Context, u *url.URL, dst Destination) (int64, error) {
	s.got = u
	n, err := dst.Write([]byte(s.content))
	return int64(n), err
}

func TestDownloadFile_RegisteredSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	e := newTestExtractor(dir)
	stub := &stubSource{content: "data"}
	e.RegisterSource("s3", stub)

	output := filepath.Join(dir, TripDataFile)
	fetched, err := e.DownloadFile(context.Background(), "s3://nyc-tlc/trip-data/yellow_tripdata_2024-01.parquet", output)
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, "nyc-tlc", stub.got.Host)
	assert.FileExists(t, output)
}

func TestParseS3URL(t *testing.T) {
	t.Parallel()

	u, err := url.Parse("s3://nyc-tlc/trip-data/yellow_tripdata_2024-01.parquet")
	require.NoError(t, err)
	bucket, key, err := ParseS3URL(u)
	require.NoError(t, err)
	assert.Equal(t, "nyc-tlc", bucket)
	assert.Equal(t, "trip-data/yellow_tripdata_2024-01.parquet", key)

	u, err = url.Parse("s3://bucket-only")
	require.NoError(t, err)
	_, _, err = ParseS3URL(u)
	require.Error(t, err)
}

// chdir — аналог t.Chdir (Go 1.24) для более старых тулчейнов.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
