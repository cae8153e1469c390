// Package columnar pivots row-oriented JSON payloads into typed columnar
// batches ready for bulk insertion.
package columnar

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"duck-intake/internal/domain"
)

// DefaultTimestampColumn is the column name treated as epoch seconds when no
// other names are configured.
const DefaultTimestampColumn = "timestamp"

// Options configures a Builder.
type Options struct {
	// TimestampColumns lists the column names whose integer values are epoch
	// seconds. Defaults to ["timestamp"].
	TimestampColumns []string
	// MismatchPolicy decides between failing the batch and dropping the row.
	// Defaults to domain.MismatchReject.
	MismatchPolicy domain.MismatchPolicy
}

// Builder turns raw intake bodies into columnar batches. It holds no
// per-payload state and is safe for concurrent use.
type Builder struct {
	timestampCols map[string]struct{}
	policy        domain.MismatchPolicy
}

// New creates a Builder.
func New(opts Options) *Builder {
	names := opts.TimestampColumns
	if len(names) == 0 {
		names = []string{DefaultTimestampColumn}
	}
	ts := make(map[string]struct{}, len(names))
	for _, n := range names {
		ts[n] = struct{}{}
	}
	policy := opts.MismatchPolicy
	if policy == "" {
		policy = domain.MismatchReject
	}
	return &Builder{timestampCols: ts, policy: policy}
}

type cell struct {
	name  string
	kind  domain.Kind
	value domain.FieldValue
}

// Build parses body and pivots it into a batch. Columns are ordered by first
// appearance, with the fields of a single row taken in name order. Rows
// missing a field get a null in that column. Warnings report excluded
// columns and, under MismatchDropRow, dropped rows.
//
// Errors are *domain.MalformedPayloadError, *domain.MalformedRowError,
// *domain.EmptyPayloadError or *domain.TypeMismatchError.
func (b *Builder) Build(body []byte) (*domain.ColumnarBatch, []domain.Warning, error) {
	rows, err := parseRows(body)
	if err != nil {
		return nil, nil, err
	}

	var (
		warnings []domain.Warning
		order    []*domain.Column
		columns  = make(map[string]*domain.Column)
		excluded = make(map[string]bool)
		rowCount int
	)

	for i, row := range rows {
		names := make([]string, 0, len(row))
		for name := range row {
			names = append(names, name)
		}
		sort.Strings(names)

		cells := make([]cell, 0, len(names))
		var mismatch *domain.TypeMismatchError
		for _, name := range names {
			if excluded[name] {
				continue
			}
			raw := row[name]
			got := classify(raw)
			if got == domain.KindUnsupported {
				excluded[name] = true
				warnings = append(warnings, domain.Warning{
					Column:  name,
					Row:     i,
					Message: fmt.Sprintf("unsupported %s value; column excluded", jsonKind(raw)),
				})
				continue
			}

			want := b.inferKind(name, got)
			if col, ok := columns[name]; ok {
				want = col.Kind
			}
			v, ok := convert(raw, got, want)
			if !ok {
				mismatch = &domain.TypeMismatchError{Column: name, Row: i, Want: want, Got: got}
				break
			}
			cells = append(cells, cell{name: name, kind: want, value: v})
		}

		if mismatch != nil {
			if b.policy == domain.MismatchReject {
				return nil, warnings, mismatch
			}
			warnings = append(warnings, domain.Warning{
				Column:  mismatch.Column,
				Row:     i,
				Message: fmt.Sprintf("row dropped: want %s, got %s", mismatch.Want, mismatch.Got),
			})
			continue
		}
		if len(cells) == 0 {
			continue
		}

		for _, c := range cells {
			col, ok := columns[c.name]
			if !ok {
				col = &domain.Column{Name: c.name, Kind: c.kind, Values: nulls(rowCount)}
				columns[c.name] = col
				order = append(order, col)
			}
			col.Values = append(col.Values, c.value)
		}
		rowCount++
		for _, col := range order {
			if len(col.Values) < rowCount {
				col.Values = append(col.Values, domain.NullValue())
			}
		}
	}

	kept := order[:0]
	for _, col := range order {
		if !excluded[col.Name] {
			kept = append(kept, col)
		}
	}
	if len(kept) == 0 {
		return nil, warnings, &domain.EmptyPayloadError{}
	}

	batch := &domain.ColumnarBatch{Columns: kept, RowCount: rowCount}
	if len(kept) < len(order) {
		compactNullRows(batch)
	}
	return batch, warnings, nil
}

// inferKind returns the column kind implied by the first value of a column.
func (b *Builder) inferKind(name string, first domain.Kind) domain.Kind {
	if first == domain.KindInteger {
		if _, ok := b.timestampCols[name]; ok {
			return domain.KindTimestamp
		}
	}
	return first
}

// convert turns a decoded JSON value of kind got into a cell of kind want.
func convert(raw any, got, want domain.Kind) (domain.FieldValue, bool) {
	switch {
	case want == domain.KindInteger && got == domain.KindInteger:
		n, err := raw.(json.Number).Int64()
		return domain.IntValue(n), err == nil
	case want == domain.KindTimestamp && got == domain.KindInteger:
		n, err := raw.(json.Number).Int64()
		return domain.TimestampValue(time.Unix(n, 0)), err == nil
	case want == domain.KindFloat && got == domain.KindFloat:
		f, err := raw.(json.Number).Float64()
		return domain.FloatValue(f), err == nil
	case want == domain.KindString && got == domain.KindString:
		return domain.StringValue(raw.(string)), true
	default:
		return domain.FieldValue{}, false
	}
}

func nulls(n int) []domain.FieldValue {
	vals := make([]domain.FieldValue, n)
	for i := range vals {
		vals[i] = domain.NullValue()
	}
	return vals
}

// compactNullRows removes rows whose every remaining cell is null. They only
// arise when all the fields a row contributed belong to excluded columns.
func compactNullRows(batch *domain.ColumnarBatch) {
	keep := make([]bool, batch.RowCount)
	n := 0
	for i := 0; i < batch.RowCount; i++ {
		for _, col := range batch.Columns {
			if col.Values[i].Kind != domain.KindNull {
				keep[i] = true
				n++
				break
			}
		}
	}
	if n == batch.RowCount {
		return
	}
	for _, col := range batch.Columns {
		vals := make([]domain.FieldValue, 0, n)
		for i, v := range col.Values {
			if keep[i] {
				vals = append(vals, v)
			}
		}
		col.Values = vals
	}
	batch.RowCount = n
}
