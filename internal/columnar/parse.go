package columnar

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"duck-intake/internal/domain"
)

// parseRows decodes body as one JSON value and normalizes it to a list of
// objects. An array yields one row per element; any other value is the only row.
func parseRows(body []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		return nil, &domain.MalformedPayloadError{Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &domain.MalformedPayloadError{Err: errors.New("unexpected data after top-level value")}
	}

	elems, ok := root.([]any)
	if !ok {
		elems = []any{root}
	}

	rows := make([]map[string]any, 0, len(elems))
	for i, e := range elems {
		obj, ok := e.(map[string]any)
		if !ok {
			return nil, &domain.MalformedRowError{Row: i, Kind: jsonKind(e)}
		}
		rows = append(rows, obj)
	}
	return rows, nil
}

// classify returns the kind of a decoded JSON value. Integers that do not fit
// in int64 are unsupported.
func classify(v any) domain.Kind {
	switch x := v.(type) {
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return domain.KindInteger
		}
		if !strings.ContainsAny(x.String(), ".eE") {
			return domain.KindUnsupported
		}
		if _, err := x.Float64(); err == nil {
			return domain.KindFloat
		}
		return domain.KindUnsupported
	case string:
		return domain.KindString
	default:
		return domain.KindUnsupported
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}
