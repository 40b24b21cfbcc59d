// Package artifact сохраняет и читает колоночные артефакты ETL в формате Parquet
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/LilVoxy/taxi_etl/ETL/frame"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/types"
	"github.com/xitongsys/parquet-go/writer"
)

// Один поток маршалинга: порядок страниц и байтовое содержимое файла
// должны быть одинаковыми от запуска к запуску.
const parallelism = 1

// epochDay - начало отсчета для типа DATE (дни с 1970-01-01)
var epochDay = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Path возвращает путь артефакта таблицы в каталоге dir
func Path(dir, table string) string {
	return filepath.Join(dir, table+".parquet")
}

// Write записывает таблицу в parquet-файл. Файл сначала пишется во временный
// путь и затем переименовывается, чтобы прерванная запись не оставляла артефакт.
func Write(path string, f *frame.Frame) error {
	if len(f.Columns) == 0 {
		return fmt.Errorf("таблица %s не содержит колонок", f.Name)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("ошибка при создании каталога для %s: %w", path, err)
	}

	md := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		physical, err := physicalType(c.Type)
		if err != nil {
			return fmt.Errorf("колонка %s.%s: %w", f.Name, c.Name, err)
		}
		md[i] = fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", c.Name, physical)
	}

	tmpPath := path + ".tmp"
	fw, err := local.NewLocalFileWriter(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка при создании файла %s: %w", tmpPath, err)
	}

	pw, err := writer.NewCSVWriter(md, fw, parallelism)
	if err != nil {
		fw.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка при создании parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := 0; i < f.Len(); i++ {
		rec, err := encodeRow(f, i)
		if err != nil {
			fw.Close()
			os.Remove(tmpPath)
			return err
		}
		if err := pw.Write(rec); err != nil {
			fw.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("ошибка при записи строки %d таблицы %s: %w", i, f.Name, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка в WriteStop: %w", err)
	}
	if err := fw.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка при закрытии файла %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка при переименовании %s: %w", tmpPath, err)
	}
	return nil
}

// Read читает плоский parquet-файл в таблицу name.
// Колонки возвращаются в порядке схемы файла с исходными именами.
func Read(path, name string) (*frame.Frame, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка при открытии %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, parallelism)
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении метаданных %s: %w", path, err)
	}
	defer pr.ReadStop()

	leaves, err := leafElements(pr.Footer.Schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	numRows := pr.GetNumRows()
	f := frame.New(name)

	for i, el := range leaves {
		typ, decode := decoderFor(el)
		// Footer.Schema хранит внутренние имена parquet-go ("Trip_id"),
		// имя колонки в файле берется из SchemaHandler
		column := pr.SchemaHandler.GetExName(i + 1)

		decoded := make([]any, numRows)
		if numRows > 0 {
			values, _, _, err := pr.ReadColumnByIndex(int64(i), numRows)
			if err != nil {
				return nil, fmt.Errorf("ошибка при чтении колонки %s из %s: %w", column, path, err)
			}
			if int64(len(values)) != numRows {
				return nil, fmt.Errorf("колонка %s в %s: прочитано %d значений из %d",
					column, path, len(values), numRows)
			}
			for j, v := range values {
				if v == nil {
					continue
				}
				if decoded[j], err = decode(v); err != nil {
					return nil, fmt.Errorf("колонка %s, строка %d: %w", column, j, err)
				}
			}
		}

		if err := f.AddColumn(column, typ, decoded); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// leafElements возвращает листовые элементы схемы; вложенные схемы не поддерживаются
func leafElements(schema []*parquet.SchemaElement) ([]*parquet.SchemaElement, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("пустая схема parquet")
	}
	leaves := make([]*parquet.SchemaElement, 0, len(schema)-1)
	for _, el := range schema[1:] {
		if el.GetNumChildren() > 0 {
			return nil, fmt.Errorf("вложенная колонка %s не поддерживается", el.GetName())
		}
		leaves = append(leaves, el)
	}
	return leaves, nil
}

func physicalType(t frame.Type) (string, error) {
	switch t {
	case frame.Int32:
		return "type=INT32", nil
	case frame.Int64:
		return "type=INT64", nil
	case frame.Float64:
		return "type=DOUBLE", nil
	case frame.String:
		return "type=BYTE_ARRAY, convertedtype=UTF8", nil
	case frame.Bool:
		return "type=BOOLEAN", nil
	case frame.Date:
		return "type=INT32, convertedtype=DATE", nil
	case frame.Timestamp:
		return "type=INT64, convertedtype=TIMESTAMP_MICROS", nil
	default:
		return "", fmt.Errorf("тип %q не поддерживается", t)
	}
}

func encodeRow(f *frame.Frame, i int) ([]any, error) {
	rec := make([]any, len(f.Columns))
	for j, c := range f.Columns {
		v, err := encodeValue(c.Type, c.Values[i])
		if err != nil {
			return nil, fmt.Errorf("колонка %s.%s, строка %d: %w", f.Name, c.Name, i, err)
		}
		rec[j] = v
	}
	return rec, nil
}

func encodeValue(t frame.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case frame.Int32:
		n, _, err := frame.Int64Value(v)
		return int32(n), err
	case frame.Int64:
		n, _, err := frame.Int64Value(v)
		return n, err
	case frame.Float64:
		x, _, err := frame.Float64Value(v)
		return x, err
	case frame.String:
		s, _, err := frame.StringValue(v)
		return s, err
	case frame.Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("значение %v (%T) не является bool", v, v)
		}
		return b, nil
	case frame.Date:
		ts, _, err := frame.TimeValue(v)
		if err != nil {
			return nil, err
		}
		return int32(wallClock(ts).Sub(epochDay).Hours() / 24), nil
	case frame.Timestamp:
		ts, _, err := frame.TimeValue(v)
		if err != nil {
			return nil, err
		}
		return wallClock(ts).UnixMicro(), nil
	default:
		return nil, fmt.Errorf("тип %q не поддерживается", t)
	}
}

// wallClock переносит показания часов в UTC без пересчета часового пояса:
// время поездок хранится "наивным", как в исходных файлах.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// decoderFor определяет тип колонки и функцию преобразования значений parquet-go
func decoderFor(el *parquet.SchemaElement) (frame.Type, func(any) (any, error)) {
	if el.IsSetLogicalType() {
		lt := el.GetLogicalType()
		switch {
		case lt.IsSetTIMESTAMP():
			unit := lt.GetTIMESTAMP().GetUnit()
			switch {
			case unit.IsSetMILLIS():
				return frame.Timestamp, int64ToTime(time.UnixMilli)
			case unit.IsSetNANOS():
				return frame.Timestamp, int64ToTime(func(n int64) time.Time { return time.Unix(0, n) })
			default:
				return frame.Timestamp, int64ToTime(time.UnixMicro)
			}
		case lt.IsSetDATE():
			return frame.Date, decodeDate
		}
	}

	if el.IsSetConvertedType() {
		switch el.GetConvertedType() {
		case parquet.ConvertedType_TIMESTAMP_MILLIS:
			return frame.Timestamp, int64ToTime(time.UnixMilli)
		case parquet.ConvertedType_TIMESTAMP_MICROS:
			return frame.Timestamp, int64ToTime(time.UnixMicro)
		case parquet.ConvertedType_DATE:
			return frame.Date, decodeDate
		}
	}

	switch el.GetType() {
	case parquet.Type_INT96:
		return frame.Timestamp, func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("INT96: неожиданное значение %T", v)
			}
			return types.INT96ToTime(s).UTC(), nil
		}
	case parquet.Type_INT32:
		return frame.Int32, func(v any) (any, error) {
			n, _, err := frame.Int64Value(v)
			return int32(n), err
		}
	case parquet.Type_INT64:
		return frame.Int64, func(v any) (any, error) {
			n, _, err := frame.Int64Value(v)
			return n, err
		}
	case parquet.Type_FLOAT, parquet.Type_DOUBLE:
		return frame.Float64, func(v any) (any, error) {
			x, _, err := frame.Float64Value(v)
			return x, err
		}
	case parquet.Type_BOOLEAN:
		return frame.Bool, func(v any) (any, error) { return v, nil }
	default:
		return frame.String, func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return fmt.Sprint(v), nil
			}
			return s, nil
		}
	}
}

func int64ToTime(conv func(int64) time.Time) func(any) (any, error) {
	return func(v any) (any, error) {
		n, _, err := frame.Int64Value(v)
		if err != nil {
			return nil, err
		}
		return conv(n).UTC(), nil
	}
}

func decodeDate(v any) (any, error) {
	n, _, err := frame.Int64Value(v)
	if err != nil {
		return nil, err
	}
	return epochDay.AddDate(0, 0, int(n)), nil
}
