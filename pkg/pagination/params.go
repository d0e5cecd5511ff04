package pagination

import (
	"maps"
	"math"

	"github.com/ccoveille/go-safecast"
)

const (
	// LimitKey is the parameter holding the cap on the total number of items emitted
	// across all pages of a sequence.
	LimitKey = "Limit"

	// ContinuationKey is the parameter the cursor uses to hand the continuation token of
	// the previous page back to the remote operation. Callers should not set it.
	ContinuationKey = "ExclusiveStartKey"
)

// Params are the caller supplied parameters of a paginated query. Apart from LimitKey and
// ContinuationKey they are passed through to the remote operation untouched.
type Params map[string]any

// Clone returns a shallow copy of the parameters. The copy is never nil.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	return maps.Clone(p)
}

// Limit returns the item cap and whether a usable one is present. Any integer kind is
// accepted, as are integral floats (as produced by JSON and YAML decoding). Negative,
// fractional or otherwise unusable values count as no cap.
func (p Params) Limit() (int, bool) {
	raw, ok := p[LimitKey]
	if !ok || raw == nil {
		return 0, false
	}

	var (
		limit int
		err   error
	)
	switch v := raw.(type) {
	case int:
		limit = v
	case int8:
		limit, err = safecast.ToInt(v)
	case int16:
		limit, err = safecast.ToInt(v)
	case int32:
		limit, err = safecast.ToInt(v)
	case int64:
		limit, err = safecast.ToInt(v)
	case uint:
		limit, err = safecast.ToInt(v)
	case uint8:
		limit, err = safecast.ToInt(v)
	case uint16:
		limit, err = safecast.ToInt(v)
	case uint32:
		limit, err = safecast.ToInt(v)
	case uint64:
		limit, err = safecast.ToInt(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		limit, err = safecast.ToInt(v)
	default:
		return 0, false
	}
	if err != nil || limit < 0 {
		return 0, false
	}
	return limit, true
}

// ContinuationToken returns the continuation token currently set, if any.
func (p Params) ContinuationToken() (any, bool) {
	token, ok := p[ContinuationKey]
	if !ok || isAbsentToken(token) {
		return nil, false
	}
	return token, true
}
