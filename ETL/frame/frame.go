// Package frame содержит минимальное колоночное представление таблиц,
// которыми обмениваются этапы ETL (staging, измерения, факты, загрузка).
package frame

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type описывает примитивный тип колонки
type Type string

const (
	Int32     Type = "int32"
	Int64     Type = "int64"
	Float64   Type = "float64"
	String    Type = "string"
	Bool      Type = "bool"
	Date      Type = "date"
	Timestamp Type = "datetime"
)

// ErrMissingColumn возвращается, когда запрошенной колонки нет в таблице
var ErrMissingColumn = errors.New("колонка отсутствует")

// typeAliases сопоставляет названия типов (включая pandas-совместимые) с Type
var typeAliases = map[string]Type{
	"int32":          Int32,
	"int":            Int64,
	"int64":          Int64,
	"float":          Float64,
	"float32":        Float64,
	"float64":        Float64,
	"double":         Float64,
	"str":            String,
	"string":         String,
	"object":         String,
	"bool":           Bool,
	"boolean":        Bool,
	"date":           Date,
	"datetime":       Timestamp,
	"datetime64":     Timestamp,
	"datetime64[ns]": Timestamp,
	"timestamp":      Timestamp,
}

// ParseType разбирает название типа без учета регистра ("Int64" == "int64")
func ParseType(name string) (Type, error) {
	t, ok := typeAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("неизвестный тип колонки %q", name)
	}
	return t, nil
}

// Column - именованная типизированная колонка. nil в Values означает null.
type Column struct {
	Name   string
	Type   Type
	Values []any
}

// Frame - упорядоченный набор колонок одинаковой длины
type Frame struct {
	Name    string
	Columns []*Column
	index   map[string]int
}

// New создает пустую таблицу
func New(name string) *Frame {
	return &Frame{
		Name:  name,
		index: make(map[string]int),
	}
}

// AddColumn добавляет колонку; длина должна совпадать с уже добавленными
func (f *Frame) AddColumn(name string, typ Type, values []any) error {
	if _, exists := f.index[name]; exists {
		return fmt.Errorf("колонка %q уже существует в %s", name, f.Name)
	}
	if len(f.Columns) > 0 && len(values) != f.Len() {
		return fmt.Errorf("колонка %q: длина %d не совпадает с длиной таблицы %s (%d)",
			name, len(values), f.Name, f.Len())
	}
	f.index[name] = len(f.Columns)
	f.Columns = append(f.Columns, &Column{Name: name, Type: typ, Values: values})
	return nil
}

// MustAddColumn используется построителями, которые сами гарантируют длину колонок
func (f *Frame) MustAddColumn(name string, typ Type, values []any) {
	if err := f.AddColumn(name, typ, values); err != nil {
		panic(err)
	}
}

// Len возвращает количество строк
func (f *Frame) Len() int {
	if len(f.Columns) == 0 {
		return 0
	}
	return len(f.Columns[0].Values)
}

// Names возвращает имена колонок в порядке следования
func (f *Frame) Names() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// Column возвращает колонку по имени
func (f *Frame) Column(name string) (*Column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", f.Name, name, ErrMissingColumn)
	}
	return f.Columns[i], nil
}

// Has проверяет наличие колонки
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Rename переименовывает колонки функцией fn; коллизия имен - ошибка
func (f *Frame) Rename(fn func(string) string) error {
	index := make(map[string]int, len(f.Columns))
	for i, c := range f.Columns {
		name := fn(c.Name)
		if _, exists := index[name]; exists {
			return fmt.Errorf("переименование %s: колонка %q встречается дважды", f.Name, name)
		}
		index[name] = i
	}
	for name, i := range index {
		f.Columns[i].Name = name
	}
	f.index = index
	return nil
}

// RenameMap переименовывает колонки по словарю; отсутствующие ключи игнорируются
func (f *Frame) RenameMap(mapping map[string]string) error {
	return f.Rename(func(name string) string {
		if renamed, ok := mapping[name]; ok {
			return renamed
		}
		return name
	})
}

// Row возвращает значения i-й строки в порядке колонок
func (f *Frame) Row(i int) []any {
	row := make([]any, len(f.Columns))
	for j, c := range f.Columns {
		row[j] = c.Values[i]
	}
	return row
}

// Value возвращает значение колонки name в строке i
func (f *Frame) Value(name string, i int) (any, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	return c.Values[i], nil
}

// Nullable разворачивает указатель в значение колонки (nil -> null)
func Nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Int64Value приводит целочисленное значение колонки к int64.
// Вещественное значение допускается, только если оно целое (99.0 -> 99).
func Int64Value(v any) (int64, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case int64:
		return x, true, nil
	case int32:
		return int64(x), true, nil
	case int:
		return int64(x), true, nil
	case float64:
		if x != float64(int64(x)) {
			return 0, false, fmt.Errorf("значение %v не является целым", x)
		}
		return int64(x), true, nil
	case float32:
		if x != float32(int64(x)) {
			return 0, false, fmt.Errorf("значение %v не является целым", x)
		}
		return int64(x), true, nil
	case bool:
		if x {
			return 1, true, nil
		}
		return 0, true, nil
	default:
		return 0, false, fmt.Errorf("значение %v (%T) не приводится к целому", v, v)
	}
}

// Float64Value приводит числовое значение колонки к float64
func Float64Value(v any) (float64, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return x, true, nil
	case float32:
		return float64(x), true, nil
	case int64:
		return float64(x), true, nil
	case int32:
		return float64(x), true, nil
	case int:
		return float64(x), true, nil
	default:
		return 0, false, fmt.Errorf("значение %v (%T) не приводится к числу", v, v)
	}
}

// StringValue возвращает строковое значение колонки
func StringValue(v any) (string, bool, error) {
	switch x := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return x, true, nil
	default:
		return "", false, fmt.Errorf("значение %v (%T) не является строкой", v, v)
	}
}

// TimeValue возвращает значение колонки типа datetime/date
func TimeValue(v any) (time.Time, bool, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return x, true, nil
	default:
		return time.Time{}, false, fmt.Errorf("значение %v (%T) не является временем", v, v)
	}
}
