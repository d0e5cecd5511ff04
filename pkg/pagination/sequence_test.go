package pagination

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type item = map[string]any

type mockedCapability struct {
	mock.Mock
}

func (m *mockedCapability) Fetch(_ context.Context, params Params) (Page[item], error) {
	args := m.Called(params)
	return args.Get(0).(Page[item]), args.Error(1)
}

// drain pulls until the sequence ends or fails and returns everything emitted.
func drain(t *testing.T, seq *Sequence[item], demand int) ([]item, error) {
	t.Helper()

	var emitted []item
	for range 100 {
		out := seq.Pull(context.Background(), demand)
		switch out.Kind {
		case OutcomeEmitted:
			require.NotEmpty(t, out.Items)
			require.LessOrEqual(t, len(out.Items), demand)
			emitted = append(emitted, out.Items...)
		case OutcomeEnd:
			return emitted, nil
		case OutcomeError:
			return emitted, out.Err
		case OutcomePending:
			t.Fatal("unexpected pending outcome")
		}
	}
	t.Fatal("sequence did not terminate")
	return nil, nil
}

func TestFirstFetchUsesParamsUnchanged(t *testing.T) {
	require := require.New(t)

	params := Params{"TableName": "users", "KeyConditionExpression": "pk = :pk"}

	capability := &mockedCapability{}
	capability.On("Fetch", Params{"TableName": "users", "KeyConditionExpression": "pk = :pk"}).
		Return(Page[item]{Items: []item{{"foo": "foo"}}}, nil).
		Once()

	seq := NewSequence[item](capability, params)
	require.Equal(StateIdle, seq.State())

	out := seq.Pull(context.Background(), 1)
	require.Equal(OutcomeEmitted, out.Kind)
	require.Equal([]item{{"foo": "foo"}}, out.Items)
	require.Equal(StateExhausted, seq.State())

	require.Equal(OutcomeEnd, seq.Pull(context.Background(), 1).Kind)
	capability.AssertExpectations(t)
}

func TestSequenceScenarios(t *testing.T) {
	a, b, c, d := item{"foo": "foo"}, item{"bar": "bar"}, item{"baz": "baz"}, item{"ban": "ban"}

	type call struct {
		params Params
		page   Page[item]
	}

	testCases := []struct {
		name     string
		params   Params
		demand   int
		calls    []call
		expected []item
	}{
		{
			"single item then end",
			Params{},
			16,
			[]call{{Params{}, Page[item]{Items: []item{a}}}},
			[]item{a},
		},
		{
			"empty items",
			Params{},
			16,
			[]call{{Params{}, Page[item]{Items: []item{}}}},
			nil,
		},
		{
			"missing items",
			Params{},
			16,
			[]call{{Params{}, Page[item]{}}},
			nil,
		},
		{
			"empty items end even with a token",
			Params{},
			16,
			[]call{{Params{}, Page[item]{Items: []item{}, ContinuationToken: "k"}}},
			nil,
		},
		{
			"continuation across two pages",
			Params{},
			16,
			[]call{
				{Params{}, Page[item]{Items: []item{a, b}, ContinuationToken: "k"}},
				{Params{ContinuationKey: "k"}, Page[item]{Items: []item{c}}},
			},
			[]item{a, b, c},
		},
		{
			"limit reached on first page",
			Params{LimitKey: 2},
			1,
			[]call{
				{Params{LimitKey: 2}, Page[item]{Items: []item{a, b}, ContinuationToken: "k"}},
			},
			[]item{a, b},
		},
		{
			"more items than demand",
			Params{},
			1,
			[]call{{Params{}, Page[item]{Items: []item{a, b, c, d}}}},
			[]item{a, b, c, d},
		},
		{
			"first page emitted before the second fetch",
			Params{},
			1,
			[]call{
				{Params{}, Page[item]{Items: []item{a, b, c}, ContinuationToken: "k"}},
				{Params{ContinuationKey: "k"}, Page[item]{Items: []item{d}}},
			},
			[]item{a, b, c, d},
		},
		{
			"limit lowered for following pages",
			Params{LimitKey: 4},
			1,
			[]call{
				{Params{LimitKey: 4}, Page[item]{Items: []item{a, b, c}, ContinuationToken: "k"}},
				{Params{LimitKey: 1, ContinuationKey: "k"}, Page[item]{Items: []item{d}, ContinuationToken: "k2"}},
			},
			[]item{a, b, c, d},
		},
		{
			"absent entries are skipped",
			Params{},
			16,
			[]call{{Params{}, Page[item]{Items: []item{nil, nil, a, b}}}},
			[]item{a, b},
		},
		{
			"page with only absent entries continues",
			Params{},
			16,
			[]call{
				{Params{}, Page[item]{Items: []item{nil}, ContinuationToken: "k"}},
				{Params{ContinuationKey: "k"}, Page[item]{Items: []item{a}}},
			},
			[]item{a},
		},
		{
			"remote ignoring the limit is truncated",
			Params{LimitKey: 3},
			16,
			[]call{
				{Params{LimitKey: 3}, Page[item]{Items: []item{a, b, c, d}, ContinuationToken: "k"}},
			},
			[]item{a, b, c},
		},
		{
			"zero limit",
			Params{LimitKey: 0},
			16,
			[]call{
				{Params{LimitKey: 0}, Page[item]{Items: []item{a}, ContinuationToken: "k"}},
			},
			nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require := require.New(t)

			capability := &mockedCapability{}
			for _, c := range tc.calls {
				capability.On("Fetch", c.params).Return(c.page, nil).Once()
			}

			seq := NewSequence[item](capability, tc.params)
			emitted, err := drain(t, seq, tc.demand)
			require.NoError(err)
			require.Equal(tc.expected, emitted)
			require.Equal(StateExhausted, seq.State())

			capability.AssertExpectations(t)
			capability.AssertNumberOfCalls(t, "Fetch", len(tc.calls))
		})
	}
}

func TestFetchError(t *testing.T) {
	require := require.New(t)

	expected := errors.New("something went wrong")
	params := Params{"foo": "bar"}

	capability := &mockedCapability{}
	capability.On("Fetch", Params{"foo": "bar"}).Return(Page[item]{}, expected).Once()

	seq := NewSequence[item](capability, params)
	out := seq.Pull(context.Background(), 1)
	require.Equal(OutcomeError, out.Kind)
	require.Empty(out.Items)
	require.ErrorIs(out.Err, expected)

	var fetchErr ErrFetchFailed
	require.ErrorAs(out.Err, &fetchErr)
	require.Equal(params, fetchErr.QueryParameters())
	require.Equal(StateErrored, seq.State())

	// Errors are terminal: no further fetch is attempted.
	again := seq.Pull(context.Background(), 1)
	require.Equal(OutcomeError, again.Kind)
	require.ErrorIs(again.Err, expected)
	capability.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestFetchErrorCarriesContinuationParams(t *testing.T) {
	require := require.New(t)

	expected := errors.New("throttled")

	capability := &mockedCapability{}
	capability.On("Fetch", Params{LimitKey: 5}).
		Return(Page[item]{Items: []item{{"id": 1}, {"id": 2}}, ContinuationToken: "k"}, nil).
		Once()
	capability.On("Fetch", Params{LimitKey: 3, ContinuationKey: "k"}).
		Return(Page[item]{}, expected).
		Once()

	seq := NewSequence[item](capability, Params{LimitKey: 5})
	emitted, err := drain(t, seq, 16)
	require.Equal([]item{{"id": 1}, {"id": 2}}, emitted)
	require.ErrorIs(err, expected)

	var fetchErr ErrFetchFailed
	require.ErrorAs(err, &fetchErr)
	require.Equal(Params{LimitKey: 3, ContinuationKey: "k"}, fetchErr.QueryParameters())
	capability.AssertExpectations(t)
}

func TestPullWhileFetchingIsPending(t *testing.T) {
	require := require.New(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	capability := QueryFunc[item](func(ctx context.Context, params Params) (Page[item], error) {
		calls++
		close(started)
		<-release
		return Page[item]{Items: []item{{"id": 1}}}, nil
	})

	seq := NewSequence[item](capability, Params{})

	var wg sync.WaitGroup
	var first Outcome[item]
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = seq.Pull(context.Background(), 1)
	}()

	<-started
	require.Equal(OutcomePending, seq.Pull(context.Background(), 1).Kind)
	close(release)
	wg.Wait()

	require.Equal(OutcomeEmitted, first.Kind)
	require.Equal(OutcomeEnd, seq.Pull(context.Background(), 1).Kind)
	require.Equal(1, calls)
}

func TestPullWithNonPositiveDemandUsesDefault(t *testing.T) {
	require := require.New(t)

	capability := &mockedCapability{}
	capability.On("Fetch", Params{}).
		Return(Page[item]{Items: []item{{"id": 1}, {"id": 2}, {"id": 3}}}, nil).
		Once()

	seq := NewSequence[item](capability, Params{}, WithDefaultDemand(2))
	out := seq.Pull(context.Background(), 0)
	require.Len(out.Items, 2)

	out = seq.Pull(context.Background(), -4)
	require.Len(out.Items, 1)
	require.Equal(StateExhausted, seq.State())
}

func TestAll(t *testing.T) {
	require := require.New(t)

	capability := &mockedCapability{}
	capability.On("Fetch", Params{}).
		Return(Page[item]{Items: []item{{"id": 1}, {"id": 2}}, ContinuationToken: "k"}, nil).
		Once()
	capability.On("Fetch", Params{ContinuationKey: "k"}).
		Return(Page[item]{Items: []item{{"id": 3}}}, nil).
		Once()

	items, err := NewSequence[item](capability, Params{}).Collect(context.Background())
	require.NoError(err)
	require.Equal([]item{{"id": 1}, {"id": 2}, {"id": 3}}, items)
	capability.AssertExpectations(t)
}

func TestAllStopsEarly(t *testing.T) {
	require := require.New(t)

	capability := &mockedCapability{}
	capability.On("Fetch", Params{}).
		Return(Page[item]{Items: []item{{"id": 1}, {"id": 2}}, ContinuationToken: "k"}, nil).
		Once()

	seq := NewSequence[item](capability, Params{})
	for it, err := range seq.All(context.Background()) {
		require.NoError(err)
		require.Equal(item{"id": 1}, it)
		break
	}
	capability.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestAllSurfacesFetchError(t *testing.T) {
	require := require.New(t)

	expected := errors.New("boom")
	capability := &mockedCapability{}
	capability.On("Fetch", Params{}).Return(Page[item]{}, expected).Once()

	items, err := NewSequence[item](capability, Params{}).Collect(context.Background())
	require.Empty(items)
	require.ErrorIs(err, expected)
}
