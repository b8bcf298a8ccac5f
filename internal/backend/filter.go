package backend

import (
	"fmt"
	"time"
)

// FilterOp names a comparison a listing can filter on
type FilterOp string

const (
	OpEqual            FilterOp = "equal"
	OpGreaterThanEqual FilterOp = "greaterThanEqual"
)

// Filter restricts a document listing on a single data field.
type Filter struct {
	Op    FilterOp `json:"op"`
	Field string   `json:"field"`
	Value any      `json:"value"`
}

// Equal matches documents whose field equals value
func Equal(field string, value any) Filter {
	return Filter{Op: OpEqual, Field: field, Value: value}
}

// GreaterThanEqual matches documents whose field is at least value
func GreaterThanEqual(field string, value any) Filter {
	return Filter{Op: OpGreaterThanEqual, Field: field, Value: value}
}

// FormatTime renders t the way timestamps are stored in document data
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Validate rejects unknown operators and empty fields
func (f Filter) Validate() error {
	if f.Field == "" {
		return fmt.Errorf("filter field cannot be empty")
	}
	switch f.Op {
	case OpEqual, OpGreaterThanEqual:
		return nil
	default:
		return fmt.Errorf("unsupported filter operator %q", f.Op)
	}
}

// Match reports whether data satisfies f. Strings that both parse as RFC3339
// timestamps are compared as instants.
func (f Filter) Match(data map[string]any) bool {
	got, ok := data[f.Field]
	if !ok {
		return false
	}
	cmp, ok := compare(got, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEqual:
		return cmp == 0
	case OpGreaterThanEqual:
		return cmp >= 0
	}
	return false
}

// MatchAll reports whether data satisfies every filter
func MatchAll(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !f.Match(data) {
			return false
		}
	}
	return true
}

func compare(a, b any) (int, bool) {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		at, aerr := time.Parse(time.RFC3339Nano, as)
		bt, berr := time.Parse(time.RFC3339Nano, bs)
		if aerr == nil && berr == nil {
			return at.Compare(bt), true
		}
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		}
		return 0, true
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}

	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if ab == bb {
			return 0, true
		}
		return 1, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
