package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	log "github.com/authzed/pagestream/internal/logging"
	"github.com/authzed/pagestream/pkg/pagination"
)

// StreamConfig holds the flags shared by every streaming command.
type StreamConfig struct {
	ParamsFile    string
	Limit         int
	Demand        int
	HighWatermark int
	MetricsAddr   string
}

// DebugMap returns the configuration as a loggable map.
func (c StreamConfig) DebugMap() map[string]any {
	return map[string]any{
		"paramsFile":    c.ParamsFile,
		"limit":         c.Limit,
		"demand":        c.Demand,
		"highWatermark": c.HighWatermark,
		"metricsAddr":   c.MetricsAddr,
	}
}

func DefaultStreamConfig() *StreamConfig {
	return &StreamConfig{
		Limit:         -1,
		Demand:        1,
		HighWatermark: 16,
	}
}

// RegisterStreamFlags adds the flags controlling how pages are pulled and printed.
func RegisterStreamFlags(cmd *cobra.Command, config *StreamConfig) {
	defaults := DefaultStreamConfig()
	cmd.Flags().StringVar(&config.ParamsFile, "params-file", "", "yaml file holding the query parameters")
	cmd.Flags().IntVar(&config.Limit, "limit", defaults.Limit, "maximum number of items to stream in total (negative for no limit)")
	cmd.Flags().IntVar(&config.Demand, "demand", defaults.Demand, "number of items requested per pull when not streaming through a buffer")
	cmd.Flags().IntVar(&config.HighWatermark, "high-watermark", defaults.HighWatermark, "number of items buffered ahead of the output (0 pulls synchronously)")
	cmd.Flags().StringVar(&config.MetricsAddr, "metrics-addr", "", `address to serve prometheus metrics on (e.g. ":9090"; empty disables)`)
}

// LoadParams reads the parameters file, if any, and applies the limit flag.
func (c StreamConfig) LoadParams() (pagination.Params, error) {
	params := pagination.Params{}
	if c.ParamsFile != "" {
		contents, err := os.ReadFile(c.ParamsFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read params file: %w", err)
		}
		if err := yaml.Unmarshal(contents, &params); err != nil {
			return nil, fmt.Errorf("unable to parse params file %s: %w", c.ParamsFile, err)
		}
		if params == nil {
			params = pagination.Params{}
		}
	}

	if c.Limit >= 0 {
		params[pagination.LimitKey] = c.Limit
	}
	return params, nil
}

// MetricsHandler serves Prometheus metrics and pprof endpoints.
func MetricsHandler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/pprof/cmdline", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "This profile type has been disabled to avoid leaking private command-line arguments")
	})

	return mux
}

func startMetricsServer(ctx context.Context, addr string) func() {
	if addr == "" {
		return func() {}
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Ctx(ctx).Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	log.Ctx(ctx).Info().Str("addr", addr).Msg("metrics server started listening")

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("error shutting down metrics server")
		}
	}
}

// RunStream writes every item of the sequence to out as a JSON line. A fetch failure is
// logged and returned once the items delivered before it have been written.
func RunStream[T any](ctx context.Context, seq *pagination.Sequence[T], config StreamConfig, out io.Writer) error {
	log.Ctx(ctx).Debug().Interface("config", config.DebugMap()).Msg("streaming")

	stop := startMetricsServer(ctx, config.MetricsAddr)
	defer stop()

	enc := json.NewEncoder(out)
	count := 0

	var err error
	if config.HighWatermark > 0 {
		stream := pagination.NewStream(ctx, seq, pagination.WithHighWatermark(config.HighWatermark))
		defer stream.Close()

		for item := range stream.Items() {
			if encErr := enc.Encode(item); encErr != nil {
				return fmt.Errorf("unable to write item: %w", encErr)
			}
			count++
		}
		err = stream.Err()
	} else {
		for item, itemErr := range seq.All(ctx) {
			if itemErr != nil {
				err = itemErr
				break
			}
			if encErr := enc.Encode(item); encErr != nil {
				return fmt.Errorf("unable to write item: %w", encErr)
			}
			count++
		}
	}

	if err != nil {
		event := log.Ctx(ctx).Error().Err(err).Int("written", count)
		var fetchErr pagination.ErrFetchFailed
		if errors.As(err, &fetchErr) {
			event = event.Object("failure", fetchErr)
		}
		event.Msg("stream failed")
		return err
	}

	log.Ctx(ctx).Info().Int("written", count).Msg("stream complete")
	return nil
}

// sequenceOptions returns the sequence options derived from the flags.
func (c StreamConfig) sequenceOptions(name string) []pagination.SequenceOptionsOption {
	return []pagination.SequenceOptionsOption{
		pagination.WithName(name),
		pagination.WithDefaultDemand(c.Demand),
	}
}
