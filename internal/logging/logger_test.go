package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetGlobalLogger(t *testing.T) {
	t.Cleanup(func() { SetGlobalLogger(zerolog.Nop()) })

	var buf bytes.Buffer
	SetGlobalLogger(zerolog.New(&buf))

	Info().Msg("hello")
	require.Contains(t, buf.String(), `"message":"hello"`)

	buf.Reset()
	Ctx(context.Background()).Info().Msg("from context")
	require.Contains(t, buf.String(), `"message":"from context"`)
}

func TestWithSequence(t *testing.T) {
	t.Cleanup(func() { SetGlobalLogger(zerolog.Nop()) })

	var buf bytes.Buffer
	SetGlobalLogger(zerolog.New(&buf))

	ctx := WithSequence(context.Background(), "users")
	Ctx(ctx).Info().Msg("fetched")
	require.Contains(t, buf.String(), `"sequence":"users"`)
	require.Contains(t, buf.String(), `"message":"fetched"`)
}
