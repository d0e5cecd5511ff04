package pagination

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// pagedCapability serves fixed pages linked by their index as continuation token.
func pagedCapability(pages ...[]item) (QueryCapability[item], *int) {
	calls := 0
	return QueryFunc[item](func(ctx context.Context, params Params) (Page[item], error) {
		calls++
		index := 0
		if token, ok := params.ContinuationToken(); ok {
			index = token.(int)
		}
		page := Page[item]{Items: pages[index]}
		if index+1 < len(pages) {
			page.ContinuationToken = index + 1
		}
		return page, nil
	}), &calls
}

func TestStreamDeliversAllItems(t *testing.T) {
	for _, watermark := range []int{1, 2, 16} {
		t.Run(fmt.Sprintf("watermark %d", watermark), func(t *testing.T) {
			require := require.New(t)

			capability, calls := pagedCapability(
				[]item{{"id": 1}, {"id": 2}, {"id": 3}},
				[]item{nil, {"id": 4}},
				[]item{{"id": 5}},
			)

			stream := NewStream(context.Background(), NewSequence(capability, Params{}), WithHighWatermark(watermark))
			defer stream.Close()

			var received []item
			for it := range stream.Items() {
				received = append(received, it)
			}
			require.NoError(stream.Err())
			require.Equal([]item{{"id": 1}, {"id": 2}, {"id": 3}, {"id": 4}, {"id": 5}}, received)
			require.Equal(3, *calls)
		})
	}
}

func TestStreamRespectsLimit(t *testing.T) {
	require := require.New(t)

	capability, calls := pagedCapability(
		[]item{{"id": 1}, {"id": 2}},
		[]item{{"id": 3}},
	)

	stream := NewStream(context.Background(), NewSequence(capability, Params{LimitKey: 2}), WithHighWatermark(1))
	defer stream.Close()

	var received []item
	for it := range stream.Items() {
		received = append(received, it)
	}
	require.NoError(stream.Err())
	require.Equal([]item{{"id": 1}, {"id": 2}}, received)
	require.Equal(1, *calls)
}

func TestStreamSurfacesFetchError(t *testing.T) {
	require := require.New(t)

	expected := errors.New("boom")
	capability := QueryFunc[item](func(ctx context.Context, params Params) (Page[item], error) {
		return Page[item]{}, expected
	})

	stream := NewStream(context.Background(), NewSequence(capability, Params{"foo": "bar"}))
	defer stream.Close()

	for range stream.Items() {
		t.Fatal("no items expected")
	}
	require.ErrorIs(stream.Err(), expected)

	var fetchErr ErrFetchFailed
	require.ErrorAs(stream.Err(), &fetchErr)
	require.Equal(Params{"foo": "bar"}, fetchErr.QueryParameters())
}

func TestStreamCloseStopsFetching(t *testing.T) {
	require := require.New(t)

	// Every page links to another one, so only Close can end the stream.
	calls := 0
	capability := QueryFunc[item](func(ctx context.Context, params Params) (Page[item], error) {
		calls++
		return Page[item]{Items: []item{{"page": calls}}, ContinuationToken: calls}, nil
	})

	stream := NewStream(context.Background(), NewSequence(capability, Params{}), WithHighWatermark(1))
	first := <-stream.Items()
	require.Equal(item{"page": 1}, first)

	stream.Close()
	require.NoError(stream.Err())

	for range stream.Items() {
		// drain anything buffered before the close
	}
	fetched := calls
	require.LessOrEqual(fetched, 3)
}

func TestStreamCloseDuringFetch(t *testing.T) {
	require := require.New(t)

	started := make(chan struct{})
	capability := QueryFunc[item](func(ctx context.Context, params Params) (Page[item], error) {
		close(started)
		<-ctx.Done()
		return Page[item]{}, ctx.Err()
	})

	seq := NewSequence(capability, Params{})
	stream := NewStream(context.Background(), seq, WithHighWatermark(1))
	<-started
	stream.Close()

	for range stream.Items() {
		t.Fatal("no items expected")
	}
	require.NoError(stream.Err())
}

func TestStreamContextCancellation(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	capability := QueryFunc[item](func(ctx context.Context, params Params) (Page[item], error) {
		return Page[item]{Items: []item{{"id": 1}, {"id": 2}}, ContinuationToken: "k"}, nil
	})

	stream := NewStream(ctx, NewSequence(capability, Params{}), WithHighWatermark(1))
	defer stream.Close()

	<-stream.Items()
	cancel()

	for range stream.Items() {
	}
	require.ErrorIs(stream.Err(), context.Canceled)
}
