package pagination

// demandBuffer holds items that were fetched but not yet delivered.
type demandBuffer[T any] struct {
	items []T
}

func (b *demandBuffer[T]) Len() int { return len(b.items) }

// take hands out up to demand buffered items and keeps the rest.
func (b *demandBuffer[T]) take(demand int) []T {
	delivered, remainder, head, ok := dispatch(b.items, demand)
	b.items = remainder
	if !ok {
		return delivered
	}
	return append(delivered, head)
}

// fill replaces the buffer content with a fresh page and hands out up to demand items.
func (b *demandBuffer[T]) fill(items []T, demand int) []T {
	b.items = items
	return b.take(demand)
}

// dispatch splits fresh items against the current demand. Absent entries are dropped.
// While more than one item is left and demand allows, items move one at a time into
// delivered; one item is always held back as head, the value answering the pull itself,
// and anything queued behind it is returned as remainder for the next demand cycle.
func dispatch[T any](fresh []T, demand int) (delivered, remainder []T, head T, ok bool) {
	items := validItems(fresh)

	n := demand
	i := 0
	for len(items)-i > 1 && n > 1 {
		i++
		n--
	}

	delivered = items[:i:i]
	if i < len(items) {
		head = items[i]
		ok = true
		remainder = items[i+1:]
	}
	return delivered, remainder, head, ok
}
