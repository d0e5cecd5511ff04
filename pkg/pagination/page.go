package pagination

import (
	"reflect"
)

// Page is a single result returned by one invocation of a remote query operation.
type Page[T any] struct {
	// Items are the items of the page, in the order the remote operation returned them.
	// Absent entries (see IsAbsent) may be present and are dropped by the sequence.
	Items []T

	// ContinuationToken is the opaque token to pass back to fetch the following page. A nil
	// or empty token means this page is the last one.
	ContinuationToken any
}

// IsAbsent reports whether an item is a placeholder rather than a real item: a nil
// interface, or a nil pointer, map, slice, channel or func.
func IsAbsent[T any](item T) bool {
	v := reflect.ValueOf(any(item))
	if !v.IsValid() {
		return true
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

func isAbsentToken(token any) bool {
	if IsAbsent(token) {
		return true
	}

	v := reflect.ValueOf(token)
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	default:
		return false
	}
}

// validItems returns the items of the page with absent entries removed. The relative
// order of the remaining items is preserved.
func validItems[T any](items []T) []T {
	valid := make([]T, 0, len(items))
	for _, item := range items {
		if !IsAbsent(item) {
			valid = append(valid, item)
		}
	}
	return valid
}
