package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	log "github.com/authzed/pagestream/internal/logging"
	"github.com/authzed/pagestream/pkg/pagination"
)

// API is the subset of the DynamoDB client used by a Binding.
type API interface {
	Query(ctx context.Context, params *ddb.QueryInput, optFns ...func(*ddb.Options)) (*ddb.QueryOutput, error)
	Scan(ctx context.Context, params *ddb.ScanInput, optFns ...func(*ddb.Options)) (*ddb.ScanOutput, error)
}

// Binding exposes the Query and Scan operations of DynamoDB as a pagination.Client, decoding
// every returned item into T.
type Binding[T any] struct {
	api API
}

var _ pagination.Client[map[string]any] = Binding[map[string]any]{}

// NewBinding creates a binding over the API, usually a *ddb.Client.
func NewBinding[T any](api API) Binding[T] {
	return Binding[T]{api: api}
}

// Invoke implements pagination.Client.
func (b Binding[T]) Invoke(ctx context.Context, operation string, params pagination.Params) (pagination.Page[T], error) {
	switch operation {
	case OperationQuery:
		input, err := decodeQueryInput(params)
		if err != nil {
			return pagination.Page[T]{}, err
		}
		out, err := b.api.Query(ctx, input)
		if err != nil {
			return pagination.Page[T]{}, err
		}
		logConsumed(ctx, out.Count, out.ScannedCount, out.ConsumedCapacity)
		return decodePage[T](out.Items, out.LastEvaluatedKey)

	case OperationScan:
		input, err := decodeScanInput(params)
		if err != nil {
			return pagination.Page[T]{}, err
		}
		out, err := b.api.Scan(ctx, input)
		if err != nil {
			return pagination.Page[T]{}, err
		}
		logConsumed(ctx, out.Count, out.ScannedCount, out.ConsumedCapacity)
		return decodePage[T](out.Items, out.LastEvaluatedKey)

	default:
		return pagination.Page[T]{}, fmt.Errorf("unsupported dynamodb operation %q", operation)
	}
}

// decodePage decodes the returned items into T. A nil item becomes the absent zero value
// when T is a map or pointer type, and is dropped otherwise.
func decodePage[T any](items []map[string]types.AttributeValue, lastKey map[string]types.AttributeValue) (pagination.Page[T], error) {
	var zero T
	keepAbsent := pagination.IsAbsent(zero)

	page := pagination.Page[T]{Items: make([]T, 0, len(items))}
	for i, av := range items {
		if av == nil {
			if keepAbsent {
				page.Items = append(page.Items, zero)
			}
			continue
		}

		var item T
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return pagination.Page[T]{}, fmt.Errorf("unable to decode item %d: %w", i, err)
		}
		page.Items = append(page.Items, item)
	}

	if len(lastKey) > 0 {
		page.ContinuationToken = lastKey
	}
	return page, nil
}

func logConsumed(ctx context.Context, count, scanned int32, consumed *types.ConsumedCapacity) {
	event := log.Ctx(ctx).Trace().Int32("count", count).Int32("scanned", scanned)
	if consumed != nil && consumed.CapacityUnits != nil {
		event = event.Float64("capacityUnits", *consumed.CapacityUnits)
	}
	event.Msg("dynamodb page")
}

// NewQuerySequence creates a sequence over the Query operation.
func NewQuerySequence[T any](api API, params pagination.Params, opts ...pagination.SequenceOptionsOption) *pagination.Sequence[T] {
	return pagination.Query[T](NewBinding[T](api), params, opts...)
}

// NewScanSequence creates a sequence over the Scan operation.
func NewScanSequence[T any](api API, params pagination.Params, opts ...pagination.SequenceOptionsOption) *pagination.Sequence[T] {
	return pagination.CreateSequenceFor[T](OperationScan)(NewBinding[T](api), params, opts...)
}

// NewQueryStream starts a stream over the Query operation.
func NewQueryStream[T any](ctx context.Context, api API, params pagination.Params, opts ...pagination.StreamOptionsOption) *pagination.Stream[T] {
	return pagination.NewStream(ctx, NewQuerySequence[T](api, params), opts...)
}
