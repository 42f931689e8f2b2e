package remote

import "fmt"

type filterKind int

const (
	filterEq filterKind = iota
	filterIn
	filterAnyEq
)

// Filter restricts the rows a Query or Update touches.
type Filter struct {
	kind    filterKind
	column  string
	columns []string
	value   any
	values  []string
}

// Eq matches rows where column equals value.
func Eq(column string, value any) Filter {
	return Filter{kind: filterEq, column: column, value: value}
}

// In matches rows where column is one of values. Callers chunk long lists
// with Chunk to stay under backend request-size limits.
func In(column string, values []string) Filter {
	return Filter{kind: filterIn, column: column, values: values}
}

// AnyEq matches rows where at least one of columns equals value.
func AnyEq(value any, columns ...string) Filter {
	return Filter{kind: filterAnyEq, columns: columns, value: value}
}

// String renders the filter for logs and errors.
func (f Filter) String() string {
	switch f.kind {
	case filterEq:
		return fmt.Sprintf("%s = %v", f.column, f.value)
	case filterIn:
		return fmt.Sprintf("%s in (%d values)", f.column, len(f.values))
	case filterAnyEq:
		return fmt.Sprintf("any of %v = %v", f.columns, f.value)
	}
	return "unknown filter"
}

// DefaultChunkSize is the number of ids sent in one in-list lookup.
const DefaultChunkSize = 200

// Chunk splits ids into consecutive slices of at most size elements.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// Match reports whether a decoded row satisfies f. Values are compared by
// their formatted text, so a JSON number 3 matches Eq(col, int64(3)).
func (f Filter) Match(row map[string]any) bool {
	switch f.kind {
	case filterEq:
		v, ok := row[f.column]
		return ok && v != nil && textOf(v) == textOf(f.value)
	case filterIn:
		v, ok := row[f.column]
		if !ok || v == nil {
			return false
		}
		got := textOf(v)
		for _, want := range f.values {
			if got == want {
				return true
			}
		}
	case filterAnyEq:
		want := textOf(f.value)
		for _, col := range f.columns {
			if v, ok := row[col]; ok && v != nil && textOf(v) == want {
				return true
			}
		}
	}
	return false
}

// MatchAll reports whether row satisfies every filter.
func MatchAll(filters []Filter, row map[string]any) bool {
	for _, f := range filters {
		if !f.Match(row) {
			return false
		}
	}
	return true
}

func textOf(v any) string {
	return fmt.Sprint(v)
}
