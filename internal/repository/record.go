package repository

import (
	"sort"
	"strings"
)

// Record сущность в виде плоского набора полей
type Record map[string]string

// ID возвращает идентификатор записи
func (r Record) ID() string {
	return r[FieldID]
}

// Clone возвращает копию записи
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsImmutable сообщает, что поле задается только при создании (id и владелец)
func IsImmutable(field string) bool {
	return field == FieldID || field == FieldOwnerID
}

// Merge возвращает копию записи с примененными изменениями; неизменяемые поля не перезаписываются
func (r Record) Merge(changes Record) Record {
	out := r.Clone()
	for k, v := range changes {
		if IsImmutable(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// Criteria фильтр по точному совпадению значений полей
type Criteria map[string]string

// Matches проверяет, удовлетворяет ли запись всем критериям
func (c Criteria) Matches(r Record) bool {
	for field, want := range c {
		got, ok := r[field]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Without возвращает копию критериев без указанных полей
func (c Criteria) Without(fields ...string) Criteria {
	out := make(Criteria, len(c))
	for k, v := range c {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// Direction направление сортировки
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Order сортировка по одному полю
type Order struct {
	Field     string
	Direction Direction
}

// ReadOptions необязательные параметры чтения
type ReadOptions struct {
	Projection []string
	Order      *Order
}

// ReadOption функциональная опция чтения
type ReadOption func(*ReadOptions)

// WithProjection ограничивает набор возвращаемых полей
func WithProjection(fields ...string) ReadOption {
	return func(o *ReadOptions) {
		o.Projection = append(o.Projection, fields...)
	}
}

// WithOrder задает сортировку результата
func WithOrder(field string, dir Direction) ReadOption {
	return func(o *ReadOptions) {
		o.Order = &Order{Field: field, Direction: dir}
	}
}

// ApplyReadOptions собирает опции чтения в структуру
func ApplyReadOptions(opts []ReadOption) ReadOptions {
	var o ReadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Project оставляет в записи только перечисленные поля.
// Пустая проекция возвращает запись целиком.
func Project(r Record, fields []string) Record {
	if len(fields) == 0 {
		return r
	}
	out := make(Record, len(fields))
	for _, f := range fields {
		if v, ok := r[f]; ok {
			out[f] = v
		}
	}
	return out
}

// SortRecords сортирует записи на стороне клиента (для хранилищ без серверной сортировки)
func SortRecords(records []Record, order *Order) {
	if order == nil {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		c := strings.Compare(records[i][order.Field], records[j][order.Field])
		if order.Direction == Desc {
			return c > 0
		}
		return c < 0
	})
}

// Finish применяет сортировку и проекцию к результату чтения
func Finish(records []Record, o ReadOptions) []Record {
	SortRecords(records, o.Order)
	if len(o.Projection) == 0 {
		return records
	}
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = Project(r, o.Projection)
	}
	return out
}
