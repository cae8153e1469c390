package domain

import (
	"fmt"
	"time"
)

// Kind is the type tag of a FieldValue and of a column.
type Kind uint8

// Field value kinds. KindNull only appears as padding for rows that lack a
// field; JSON null itself is KindUnsupported.
const (
	KindUnsupported Kind = iota
	KindInteger
	KindFloat
	KindString
	KindTimestamp
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTimestamp:
		return "timestamp"
	case KindNull:
		return "null"
	default:
		return "unsupported"
	}
}

// FieldValue is a single scalar cell. Only the member matching Kind is set.
type FieldValue struct {
	Kind  Kind
	Int   int64
	Float float64
	Str   string
	Time  time.Time
}

// IntValue returns an integer FieldValue.
func IntValue(v int64) FieldValue { return FieldValue{Kind: KindInteger, Int: v} }

// FloatValue returns a float FieldValue.
func FloatValue(v float64) FieldValue { return FieldValue{Kind: KindFloat, Float: v} }

// StringValue returns a string FieldValue.
func StringValue(v string) FieldValue { return FieldValue{Kind: KindString, Str: v} }

// TimestampValue returns a timestamp FieldValue normalized to UTC.
func TimestampValue(t time.Time) FieldValue { return FieldValue{Kind: KindTimestamp, Time: t.UTC()} }

// NullValue returns the padding value.
func NullValue() FieldValue { return FieldValue{Kind: KindNull} }

// Any returns the Go value of the cell, or nil for null.
func (v FieldValue) Any() any {
	switch v.Kind {
	case KindInteger:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindTimestamp:
		return v.Time
	default:
		return nil
	}
}

func (v FieldValue) String() string {
	if v.Kind == KindNull || v.Kind == KindUnsupported {
		return v.Kind.String()
	}
	return fmt.Sprintf("%v", v.Any())
}

// Column is a named, homogeneously typed sequence of values. Values may
// contain KindNull padding; every other value has the column's Kind.
type Column struct {
	Name   string
	Kind   Kind
	Values []FieldValue
}

// ColumnarBatch is the column-oriented form of one intake payload.
// Every column holds exactly RowCount values.
type ColumnarBatch struct {
	Columns  []*Column
	RowCount int
}

// Column returns the named column, or nil.
func (b *ColumnarBatch) Column(name string) *Column {
	for _, c := range b.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Row returns the cell values of row i in column order, with nil for nulls.
func (b *ColumnarBatch) Row(i int) []any {
	row := make([]any, len(b.Columns))
	for j, c := range b.Columns {
		row[j] = c.Values[i].Any()
	}
	return row
}

// Warning is a non-fatal note produced while building a batch.
type Warning struct {
	Column  string
	Row     int
	Message string
}

func (w Warning) String() string {
	if w.Column == "" {
		return fmt.Sprintf("row %d: %s", w.Row, w.Message)
	}
	return fmt.Sprintf("column %q row %d: %s", w.Column, w.Row, w.Message)
}
