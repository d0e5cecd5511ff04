package pagination

import (
	"github.com/rs/zerolog"
)

// Cursor holds the continuation state of a single sequence: the token for the next page,
// the remaining item budget when a Limit was given, and the number of items counted so far.
type Cursor struct {
	token     any
	limited   bool
	limit     int
	remaining int
	emitted   int
}

// NewCursor creates a cursor for a sequence started with the given parameters.
func NewCursor(params Params) *Cursor {
	limit, limited := params.Limit()
	return &Cursor{
		limited:   limited,
		limit:     limit,
		remaining: limit,
	}
}

// ShouldContinue reports whether another page should be fetched.
func (c *Cursor) ShouldContinue() bool {
	if c.token == nil {
		return false
	}
	if c.limited && c.remaining <= 0 {
		return false
	}
	return true
}

// NextParams returns the parameters for the next fetch: base with the current continuation
// token merged in and, when a cap is active, Limit lowered to the remaining budget.
func (c *Cursor) NextParams(base Params) Params {
	next := base.Clone()
	if c.token != nil {
		next[ContinuationKey] = c.token
	}
	if c.limited {
		next[LimitKey] = c.remaining
	}
	return next
}

// Absorb records a freshly fetched page holding valid items and its continuation token.
// It returns how many of those items fit the remaining budget; the caller must drop the
// rest. Once the budget is exactly used up the token is discarded.
func (c *Cursor) Absorb(valid int, token any) int {
	accepted := valid
	if c.limited && accepted > c.remaining {
		accepted = max(c.remaining, 0)
	}

	c.emitted += accepted
	if c.limited {
		c.remaining -= accepted
	}

	c.token = token
	if isAbsentToken(token) || (c.limited && c.remaining <= 0) {
		c.token = nil
	}
	return accepted
}

// Emitted is the number of items counted toward the sequence so far.
func (c *Cursor) Emitted() int { return c.emitted }

// Remaining returns the remaining item budget, if a Limit was given.
func (c *Cursor) Remaining() (int, bool) { return c.remaining, c.limited }

// Token returns the continuation token for the next page, or nil.
func (c *Cursor) Token() any { return c.token }

// MarshalZerologObject implements zerolog object marshalling.
func (c *Cursor) MarshalZerologObject(e *zerolog.Event) {
	e.Int("emitted", c.emitted).Bool("hasToken", c.token != nil)
	if c.limited {
		e.Int("limit", c.limit).Int("remaining", c.remaining)
	}
}

// absorbPage filters the absent items out of the page, lets the cursor account for it and
// returns the items that may be delivered.
func absorbPage[T any](c *Cursor, page Page[T]) []T {
	valid := validItems(page.Items)
	accepted := c.Absorb(len(valid), page.ContinuationToken)
	return valid[:accepted]
}
