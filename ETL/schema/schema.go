// Package schema загружает декларацию типов колонок таблиц хранилища
// и приводит к ней таблицы перед сохранением.
package schema

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/LilVoxy/taxi_etl/ETL/frame"
	"github.com/bytedance/sonic"
)

// LoadTimestampLayout - формат метки загрузки DD/MM/YYYY HH:mm:ss
const LoadTimestampLayout = "02/01/2006 15:04:05"

// ErrUnknownTable возвращается, если таблица не описана в документе схемы
var ErrUnknownTable = errors.New("таблица не описана в схеме")

// Document сопоставляет имя таблицы с типами ее колонок
type Document map[string]map[string]frame.Type

// CastError описывает ошибку приведения колонки к объявленному типу
type CastError struct {
	Table  string
	Column string
	Row    int
	Target frame.Type
	Err    error
}

func (e *CastError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("приведение %s.%s к %s: %v", e.Table, e.Column, e.Target, e.Err)
	}
	return fmt.Sprintf("приведение %s.%s (строка %d) к %s: %v", e.Table, e.Column, e.Row, e.Target, e.Err)
}

func (e *CastError) Unwrap() error {
	return e.Err
}

// Load читает JSON-документ схемы: {"таблица": {"колонка": "тип", ...}, ...}
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения схемы %s: %w", path, err)
	}
	return Parse(data)
}

// Parse разбирает JSON-документ схемы
func Parse(data []byte) (Document, error) {
	var raw map[string]map[string]string
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ошибка разбора схемы: %w", err)
	}

	doc := make(Document, len(raw))
	for table, columns := range raw {
		doc[table] = make(map[string]frame.Type, len(columns))
		for column, typeName := range columns {
			t, err := frame.ParseType(typeName)
			if err != nil {
				return nil, fmt.Errorf("схема %s.%s: %w", table, column, err)
			}
			doc[table][column] = t
		}
	}
	return doc, nil
}

// Cast возвращает новую таблицу, в которой объявленные колонки приведены
// к своим типам. Отсутствующая объявленная колонка - фатальная ошибка.
// Колонки, не описанные в схеме, переносятся без изменений. null сохраняется.
func (d Document) Cast(f *frame.Frame) (*frame.Frame, error) {
	declared, ok := d[f.Name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrUnknownTable)
	}

	// Проверяем наличие всех объявленных колонок до приведения
	missing := make([]string, 0)
	for column := range declared {
		if !f.Has(column) {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &CastError{
			Table:  f.Name,
			Column: strings.Join(missing, ","),
			Row:    -1,
			Target: declared[missing[0]],
			Err:    frame.ErrMissingColumn,
		}
	}

	out := frame.New(f.Name)
	for _, c := range f.Columns {
		target, ok := declared[c.Name]
		if !ok {
			out.MustAddColumn(c.Name, c.Type, c.Values)
			continue
		}

		values := make([]any, len(c.Values))
		for i, v := range c.Values {
			converted, err := castValue(v, target)
			if err != nil {
				return nil, &CastError{Table: f.Name, Column: c.Name, Row: i, Target: target, Err: err}
			}
			values[i] = converted
		}
		out.MustAddColumn(c.Name, target, values)
	}
	return out, nil
}

func castValue(v any, target frame.Type) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch target {
	case frame.Int32:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("значение %d выходит за пределы int32", n)
		}
		return int32(n), nil
	case frame.Int64:
		return toInt64(v)
	case frame.Float64:
		switch x := v.(type) {
		case string:
			return strconv.ParseFloat(strings.TrimSpace(x), 64)
		case bool:
			if x {
				return 1.0, nil
			}
			return 0.0, nil
		default:
			f, _, err := frame.Float64Value(v)
			return f, err
		}
	case frame.String:
		switch x := v.(type) {
		case string:
			return x, nil
		case time.Time:
			return x.Format("2006-01-02 15:04:05"), nil
		default:
			return fmt.Sprint(v), nil
		}
	case frame.Bool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(x))
		default:
			n, _, err := frame.Int64Value(v)
			if err != nil {
				return nil, err
			}
			return n != 0, nil
		}
	case frame.Date:
		ts, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
	case frame.Timestamp:
		return toTime(v)
	default:
		return nil, fmt.Errorf("тип %q не поддерживается", target)
	}
}

func toInt64(v any) (int64, error) {
	if s, ok := v.(string); ok {
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	}
	if _, ok := v.(time.Time); ok {
		return 0, fmt.Errorf("время не приводится к целому")
	}
	n, _, err := frame.Int64Value(v)
	return n, err
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	LoadTimestampLayout,
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("строка %q не распознана как дата/время", x)
	default:
		return time.Time{}, fmt.Errorf("значение %v (%T) не приводится к дате/времени", v, v)
	}
}
