package pagination

import (
	"context"
	"errors"
	"runtime"
)

// Stream delivers the items of a sequence over a channel. A pump goroutine pulls with the
// high watermark as demand and blocks while the channel is full, so at most one pull's
// worth of items is waiting ahead of the consumer.
type Stream[T any] struct {
	items  chan T
	done   chan struct{}
	cancel context.CancelCauseFunc
	err    error
}

// NewStream starts pumping the sequence. The stream owns the sequence from now on; it must
// not be pulled by anyone else. Close must be called unless Items is drained.
func NewStream[T any](ctx context.Context, seq *Sequence[T], opts ...StreamOptionsOption) *Stream[T] {
	o := NewStreamOptionsWithOptionsAndDefaults(opts...)
	watermark := max(o.HighWatermark, 1)

	ctx, cancel := context.WithCancelCause(ctx)
	s := &Stream[T]{
		items:  make(chan T, watermark),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go s.pump(ctx, seq, watermark)
	return s
}

func (s *Stream[T]) pump(ctx context.Context, seq *Sequence[T], demand int) {
	defer close(s.done)
	defer s.cancel(nil)
	defer close(s.items)

	for {
		if ctx.Err() != nil {
			s.err = context.Cause(ctx)
			return
		}

		out := seq.Pull(ctx, demand)
		switch out.Kind {
		case OutcomeEmitted:
			for _, item := range out.Items {
				select {
				case s.items <- item:
				case <-ctx.Done():
					s.err = context.Cause(ctx)
					return
				}
			}

		case OutcomePending:
			runtime.Gosched()

		case OutcomeEnd:
			return

		case OutcomeError:
			// A fetch interrupted by Close fails with the cancelled context.
			if cause := context.Cause(ctx); errors.Is(cause, ErrStreamClosed) {
				s.err = cause
				return
			}
			s.err = out.Err
			return
		}
	}
}

// Items returns the channel of items. It is closed once the sequence ends, fails, or the
// stream is closed.
func (s *Stream[T]) Items() <-chan T { return s.items }

// Err returns the error that stopped the stream, if any. It must only be called after
// Items was closed. Closing the stream is not an error.
func (s *Stream[T]) Err() error {
	if errors.Is(s.err, ErrStreamClosed) {
		return nil
	}
	return s.err
}

// Close stops the pump and waits for it to exit. No further fetch is issued afterwards.
func (s *Stream[T]) Close() {
	s.cancel(ErrStreamClosed)
	<-s.done
}
