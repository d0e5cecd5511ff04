package pagination

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrStreamClosed is the cause recorded when a stream is closed by its consumer.
var ErrStreamClosed = errors.New("stream closed")

// ErrFetchFailed occurs when the remote query operation reports a failure for a page. It
// carries the exact parameters used for that fetch.
type ErrFetchFailed struct {
	error
	cause  error
	params Params
}

// QueryParameters are the parameters of the failing fetch.
func (err ErrFetchFailed) QueryParameters() Params {
	return err.params
}

// Unwrap returns the error reported by the remote operation.
func (err ErrFetchFailed) Unwrap() error {
	return err.cause
}

// MarshalZerologObject implements zerolog object marshalling.
func (err ErrFetchFailed) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.cause).Interface("queryParameters", err.params)
}

// NewFetchFailedErr constructs a new fetch failed error.
func NewFetchFailedErr(cause error, params Params) error {
	return ErrFetchFailed{
		error:  fmt.Errorf("unable to fetch page: %w", cause),
		cause:  cause,
		params: params,
	}
}
