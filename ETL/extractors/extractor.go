package extractors

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LilVoxy/taxi_etl/ETL/config"
	"github.com/LilVoxy/taxi_etl/ETL/models"
	"github.com/LilVoxy/taxi_etl/ETL/utils"
)

// Имена исходных файлов в каталоге raw
const (
	TripDataFile   = "yellow_tripdata.parquet"
	ZoneLookupFile = "taxi_zone_lookup.csv"
)

// Extractor координирует загрузку исходных файлов в каталог raw.
// Уже существующий файл повторно не загружается.
type Extractor struct {
	rawDir  string
	logger  *utils.ETLLogger
	sources map[string]Source
}

// NewExtractor создает новый экземпляр Extractor
func NewExtractor(rawDir string, cfg config.SourcesConfig, logger *utils.ETLLogger) *Extractor {
	httpSource := NewHTTPSource(cfg.HTTPTimeout)
	return &Extractor{
		rawDir: rawDir,
		logger: logger,
		sources: map[string]Source{
			"http":  httpSource,
			"https": httpSource,
			"s3":    NewS3Source(cfg.S3Region),
		},
	}
}

// RegisterSource подключает источник для схемы URL
func (e *Extractor) RegisterSource(scheme string, source Source) {
	e.sources[scheme] = source
}

// Extract загружает файл поездок и справочник зон
func (e *Extractor) Extract(ctx context.Context, tripDataURL, zoneLookupURL string) (*models.RawFiles, error) {
	startTime := time.Now()
	e.logger.LogExtractStart()

	if err := os.MkdirAll(e.rawDir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка при создании каталога %s: %w", e.rawDir, err)
	}

	files := &models.RawFiles{
		TripData:   filepath.Join(e.rawDir, TripDataFile),
		ZoneLookup: filepath.Join(e.rawDir, ZoneLookupFile),
	}

	downloaded, skipped := 0, 0
	for _, item := range []struct {
		name, url, path string
	}{
		{"поездок", tripDataURL, files.TripData},
		{"справочника зон", zoneLookupURL, files.ZoneLookup},
	} {
		fetched, err := e.DownloadFile(ctx, item.url, item.path)
		if err != nil {
			e.logger.Error("Ошибка при загрузке %s: %v", item.name, err)
			return nil, fmt.Errorf("ошибка загрузки %s: %w", item.name, err)
		}
		if fetched {
			downloaded++
		} else {
			skipped++
		}
	}

	e.logger.LogExtractComplete(downloaded, skipped, time.Since(startTime))
	return files, nil
}

// DownloadFile загружает ресурс в outputPath, если файла еще нет.
// Ресурс .zip распаковывается в каталог файла outputPath и должен содержать
// файл с тем же именем.
// Возвращает false, если файл уже существовал.
func (e *Extractor) DownloadFile(ctx context.Context, rawURL, outputPath string) (bool, error) {
	if _, err := os.Stat(outputPath); err == nil {
		e.logger.Info("Файл уже существует: %s", outputPath)
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("ошибка при проверке %s: %w", outputPath, err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("некорректный URL %q: %w", rawURL, err)
	}
	source, ok := e.sources[strings.ToLower(u.Scheme)]
	if !ok {
		return false, fmt.Errorf("схема %q не поддерживается: %s", u.Scheme, rawURL)
	}

	e.logger.Info("Загрузка %s -> %s", u.Redacted(), outputPath)

	// Загружаем во временный файл, чтобы прерванная загрузка не оставила
	// файл, который будет пропущен при следующем запуске
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".download-*")
	if err != nil {
		return false, fmt.Errorf("ошибка при создании временного файла: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := source.Fetch(ctx, u, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return false, err
	}
	e.logger.Debug("Загружено %d байт из %s", n, u.Redacted())

	if strings.HasSuffix(strings.ToLower(u.Path), ".zip") {
		dir := filepath.Dir(outputPath)
		if err := extractZip(tmpPath, dir); err != nil {
			return false, err
		}
		if _, err := os.Stat(outputPath); err != nil {
			return false, fmt.Errorf("архив %s не содержит %s", u.Redacted(), filepath.Base(outputPath))
		}
		e.logger.Info("Архив распакован в %s", dir)
		return true, nil
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		return false, fmt.Errorf("ошибка при сохранении %s: %w", outputPath, err)
	}
	e.logger.Info("Файл сохранен в %s", outputPath)
	return true, nil
}

// extractZip распаковывает архив в каталог dir
func extractZip(archivePath, dir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("ошибка при открытии архива: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("ошибка при создании каталога %s: %w", dir, err)
	}

	for _, f := range zr.File {
		target := filepath.Join(dir, f.Name)
		// путь считается относительно dir, поэтому "." тоже допустим
		rel, err := filepath.Rel(dir, target)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			return fmt.Errorf("недопустимый путь в архиве: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := extractZipEntry(f, target); err != nil {
			return fmt.Errorf("ошибка при распаковке %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractZipEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
