package pagination

import (
	"context"
	"iter"
	"runtime"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	log "github.com/authzed/pagestream/internal/logging"
	"github.com/authzed/pagestream/pkg/errorutil"
)

// QueryCapability is a paginated remote query operation.
type QueryCapability[T any] interface {
	// Fetch runs the operation with the given parameters and returns a single page.
	Fetch(ctx context.Context, params Params) (Page[T], error)
}

// QueryFunc adapts a function into a QueryCapability.
type QueryFunc[T any] func(ctx context.Context, params Params) (Page[T], error)

// Fetch implements QueryCapability.
func (f QueryFunc[T]) Fetch(ctx context.Context, params Params) (Page[T], error) {
	return f(ctx, params)
}

// State is the position of a sequence in its lifecycle.
type State int

const (
	// StateIdle is the state of a sequence that has not fetched yet.
	StateIdle State = iota

	// StateFetching is the state while a page fetch is in flight.
	StateFetching

	// StateBuffered is the state between fetches, possibly with undelivered items.
	StateBuffered

	// StateExhausted is the terminal state after the last item was delivered.
	StateExhausted

	// StateErrored is the terminal state after a fetch failed.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateBuffered:
		return "buffered"
	case StateExhausted:
		return "exhausted"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// OutcomeKind is the kind of result of a single Pull.
type OutcomeKind int

const (
	// OutcomePending means another Pull holds the sequence; the caller must pull again later.
	OutcomePending OutcomeKind = iota

	// OutcomeEmitted means Items holds at least one item.
	OutcomeEmitted

	// OutcomeEnd means the sequence is exhausted.
	OutcomeEnd

	// OutcomeError means a fetch failed; Err is an ErrFetchFailed.
	OutcomeError
)

// Outcome is the result of a single Pull.
type Outcome[T any] struct {
	Kind  OutcomeKind
	Items []T
	Err   error
}

// Sequence turns a paginated QueryCapability into a single demand-driven sequence of items.
//
// A Sequence is driven by Pull. Every call yields exactly one outcome: some items, the
// end of the sequence, a fetch error, or Pending when a concurrent Pull is still in
// progress. Callers receiving Pending are responsible for pulling again once the other
// call returned; the sequence never re-issues demand on its own.
type Sequence[T any] struct {
	capability QueryCapability[T]
	params     Params
	opts       *SequenceOptions

	// inFlight guards every other field; only the Pull holding it may touch them.
	inFlight atomic.Bool

	state  State
	cursor *Cursor
	buffer demandBuffer[T]
	pages  int
	err    error
}

// NewSequence creates a sequence over the capability, starting with the given parameters.
// The parameters are used unchanged for the first fetch.
func NewSequence[T any](capability QueryCapability[T], params Params, opts ...SequenceOptionsOption) *Sequence[T] {
	return &Sequence[T]{
		capability: capability,
		params:     params,
		opts:       NewSequenceOptionsWithOptionsAndDefaults(opts...),
		cursor:     NewCursor(params),
	}
}

// State returns the current state of the sequence. It must not be called concurrently
// with Pull.
func (s *Sequence[T]) State() State { return s.state }

// Pull asks for up to demand items. Buffered items are served without fetching; otherwise
// the next page is fetched. A demand below one is replaced by the default demand.
func (s *Sequence[T]) Pull(ctx context.Context, demand int) Outcome[T] {
	if !s.inFlight.CompareAndSwap(false, true) {
		return Outcome[T]{Kind: OutcomePending}
	}
	defer s.inFlight.Store(false)

	if demand < 1 {
		demand = max(s.opts.DefaultDemand, 1)
	}

	switch s.state {
	case StateExhausted:
		return Outcome[T]{Kind: OutcomeEnd}

	case StateErrored:
		return Outcome[T]{Kind: OutcomeError, Err: s.err}

	case StateIdle:
		return s.fetch(ctx, s.params, demand)

	case StateBuffered:
		if s.buffer.Len() > 0 {
			return s.emit(s.buffer.take(demand))
		}
		if !s.cursor.ShouldContinue() {
			s.state = StateExhausted
			return Outcome[T]{Kind: OutcomeEnd}
		}
		return s.fetch(ctx, s.cursor.NextParams(s.params), demand)

	default:
		s.err = errorutil.MustBugf("pull on sequence in state %s", s.state)
		s.state = StateErrored
		return Outcome[T]{Kind: OutcomeError, Err: s.err}
	}
}

// fetch retrieves pages until one carries deliverable items, the sequence ends, or a
// fetch fails.
func (s *Sequence[T]) fetch(ctx context.Context, params Params, demand int) Outcome[T] {
	ctx = log.WithSequence(ctx, s.opts.Name)
	for {
		s.state = StateFetching
		page, err := s.fetchPage(ctx, params)
		if err != nil {
			s.state = StateErrored
			s.err = NewFetchFailedErr(err, params)
			if ctx.Err() != nil {
				log.Ctx(ctx).Debug().Err(err).Msg("page fetch cancelled")
			} else {
				fetchErrors.WithLabelValues(s.opts.Name).Inc()
				log.Ctx(ctx).Warn().Err(err).Interface("queryParameters", params).Msg("page fetch failed")
			}
			return Outcome[T]{Kind: OutcomeError, Err: s.err}
		}

		if len(page.Items) == 0 {
			s.state = StateExhausted
			log.Ctx(ctx).Trace().Int("pages", s.pages).Msg("empty page, ending sequence")
			return Outcome[T]{Kind: OutcomeEnd}
		}

		items := absorbPage(s.cursor, page)
		log.Ctx(ctx).Trace().
			Int("page", s.pages).
			Int("received", len(page.Items)).
			Int("accepted", len(items)).
			Object("cursor", s.cursor).
			Msg("absorbed page")

		if len(items) > 0 {
			s.state = StateBuffered
			return s.emit(s.buffer.fill(items, demand))
		}

		if !s.cursor.ShouldContinue() {
			s.state = StateExhausted
			return Outcome[T]{Kind: OutcomeEnd}
		}
		params = s.cursor.NextParams(s.params)
	}
}

func (s *Sequence[T]) fetchPage(ctx context.Context, params Params) (Page[T], error) {
	s.pages++

	ctx, span := tracer.Start(ctx, "FetchPage", trace.WithAttributes(
		attribute.String("sequence", s.opts.Name),
		attribute.Int("page", s.pages),
	))
	defer span.End()

	start := time.Now()
	page, err := s.capability.Fetch(ctx, params)
	fetchLatency.WithLabelValues(s.opts.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Page[T]{}, err
	}

	pagesFetched.WithLabelValues(s.opts.Name).Inc()
	span.SetAttributes(attribute.Int("items", len(page.Items)))
	return page, nil
}

// emit hands out delivered items and moves the sequence to its terminal state once nothing
// is buffered and no further page will be fetched.
func (s *Sequence[T]) emit(items []T) Outcome[T] {
	errorutil.DebugAssertf(func() bool {
		remaining, limited := s.cursor.Remaining()
		return !limited || remaining >= 0
	}, "sequence %s exceeded its limit", s.opts.Name)

	if s.buffer.Len() == 0 && !s.cursor.ShouldContinue() {
		s.state = StateExhausted
	}

	if len(items) == 0 {
		return Outcome[T]{Kind: OutcomeEnd}
	}

	itemsEmitted.WithLabelValues(s.opts.Name).Add(float64(len(items)))
	return Outcome[T]{Kind: OutcomeEmitted, Items: items}
}

// All returns an iterator over the remaining items, pulling with the default demand.
// Items already pulled but not consumed when iteration stops early are discarded.
func (s *Sequence[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for {
			out := s.Pull(ctx, s.opts.DefaultDemand)
			switch out.Kind {
			case OutcomeEmitted:
				for _, item := range out.Items {
					if !yield(item, nil) {
						return
					}
				}

			case OutcomePending:
				if err := ctx.Err(); err != nil {
					yield(zero, err)
					return
				}
				runtime.Gosched()

			case OutcomeEnd:
				return

			case OutcomeError:
				yield(zero, out.Err)
				return
			}
		}
	}
}

// Collect drains the sequence into a slice.
func (s *Sequence[T]) Collect(ctx context.Context) ([]T, error) {
	var items []T
	for item, err := range s.All(ctx) {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}
