package pagination

import "context"

// OperationQuery is the name of the query operation every backend provides.
const OperationQuery = "query"

// Client is a backend exposing one or more paginated operations by name.
type Client[T any] interface {
	// Invoke runs the named operation for a single page.
	Invoke(ctx context.Context, operation string, params Params) (Page[T], error)
}

// Bind returns the named operation of the client as a QueryCapability.
func Bind[T any](client Client[T], operation string) QueryCapability[T] {
	return QueryFunc[T](func(ctx context.Context, params Params) (Page[T], error) {
		return client.Invoke(ctx, operation, params)
	})
}

// SequenceConstructor creates a sequence over a client.
type SequenceConstructor[T any] func(client Client[T], params Params, opts ...SequenceOptionsOption) *Sequence[T]

// CreateSequenceFor returns a constructor of sequences over the named operation of a
// client. Sequences are named after the operation unless WithName is passed.
func CreateSequenceFor[T any](operation string) SequenceConstructor[T] {
	return func(client Client[T], params Params, opts ...SequenceOptionsOption) *Sequence[T] {
		opts = append([]SequenceOptionsOption{WithName(operation)}, opts...)
		return NewSequence(Bind(client, operation), params, opts...)
	}
}

// Query creates a sequence over the query operation of the client.
func Query[T any](client Client[T], params Params, opts ...SequenceOptionsOption) *Sequence[T] {
	return CreateSequenceFor[T](OperationQuery)(client, params, opts...)
}
