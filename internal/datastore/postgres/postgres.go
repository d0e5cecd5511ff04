package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	sq "github.com/Masterminds/squirrel"
	"github.com/ccoveille/go-safecast"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jzelinskie/stringz"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	log "github.com/authzed/pagestream/internal/logging"
)

const (
	Engine = "postgres"

	errUnableToInstantiate = "unable to instantiate pool: %w"

	pgQueryCanceled = "57014"

	defaultPageSize = 100

	defaultMetricsName = "pagestream"
)

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	tracer = otel.Tracer("pagestream/internal/datastore/postgres")
)

type postgresOptions struct {
	maxOpenConns    *int
	minOpenConns    *int
	connMaxIdleTime *time.Duration
	connMaxLifetime *time.Duration

	enablePrometheusStats          bool
	includeQueryParametersInTraces bool
	metricsName                    string
}

// Option configures the connection pool.
type Option func(*postgresOptions)

func generateConfig(options []Option) postgresOptions {
	computed := postgresOptions{metricsName: defaultMetricsName}
	for _, option := range options {
		option(&computed)
	}
	return computed
}

// MaxOpenConns is the maximum size of the connection pool.
func MaxOpenConns(conns int) Option {
	return func(po *postgresOptions) {
		po.maxOpenConns = &conns
	}
}

// MinOpenConns is the number of connections the pool keeps open.
func MinOpenConns(conns int) Option {
	return func(po *postgresOptions) {
		po.minOpenConns = &conns
	}
}

func ConnMaxIdleTime(idle time.Duration) Option {
	return func(po *postgresOptions) {
		po.connMaxIdleTime = &idle
	}
}

func ConnMaxLifetime(lifetime time.Duration) Option {
	return func(po *postgresOptions) {
		po.connMaxLifetime = &lifetime
	}
}

// EnablePrometheusStats registers pool statistics with the default prometheus registry,
// labeled with the given database name.
func EnablePrometheusStats(dbName string) Option {
	return func(po *postgresOptions) {
		po.enablePrometheusStats = true
		po.metricsName = stringz.DefaultEmpty(dbName, defaultMetricsName)
	}
}

// IncludeQueryParametersInTraces adds query arguments to the pgx spans.
func IncludeQueryParametersInTraces(include bool) Option {
	return func(po *postgresOptions) {
		po.includeQueryParametersInTraces = include
	}
}

func (opts postgresOptions) configurePgx(pgxConfig *pgxpool.Config) error {
	if opts.maxOpenConns != nil {
		maxConns, err := safecast.ToInt32(*opts.maxOpenConns)
		if err != nil {
			return err
		}
		pgxConfig.MaxConns = maxConns
	}

	if opts.minOpenConns != nil {
		minConns, err := safecast.ToInt32(*opts.minOpenConns)
		if err != nil {
			return err
		}
		pgxConfig.MinConns = minConns
	}

	if pgxConfig.MaxConns > 0 && pgxConfig.MinConns > 0 && pgxConfig.MaxConns < pgxConfig.MinConns {
		log.Warn().Int32("max-connections", pgxConfig.MaxConns).Int32("min-connections", pgxConfig.MinConns).Msg("maximum number of connections configured is less than minimum number of connections; minimum will be used")
		pgxConfig.MaxConns = pgxConfig.MinConns
	}

	if opts.connMaxIdleTime != nil {
		pgxConfig.MaxConnIdleTime = *opts.connMaxIdleTime
	}

	if opts.connMaxLifetime != nil {
		pgxConfig.MaxConnLifetime = *opts.connMaxLifetime
		pgxConfig.MaxConnLifetimeJitter = time.Duration(0.2 * float64(*opts.connMaxLifetime))
	}

	ConfigurePGXLogger(pgxConfig.ConnConfig)
	ConfigureOTELTracer(pgxConfig.ConnConfig, opts.includeQueryParametersInTraces)
	return nil
}

// ParsePoolConfig parses the connection URL and applies the options, including query logging
// and tracing.
func ParsePoolConfig(url string, options ...Option) (*pgxpool.Config, error) {
	config := generateConfig(options)

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf(errUnableToInstantiate, err)
	}

	if err := config.configurePgx(poolConfig); err != nil {
		return nil, fmt.Errorf(errUnableToInstantiate, err)
	}
	return poolConfig, nil
}

// NewPool opens an instrumented connection pool.
func NewPool(ctx context.Context, url string, options ...Option) (*pgxpool.Pool, error) {
	config := generateConfig(options)

	poolConfig, err := ParsePoolConfig(url, options...)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf(errUnableToInstantiate, err)
	}

	if config.enablePrometheusStats {
		collector := pgxpoolprometheus.NewCollector(pool, map[string]string{"db_name": config.metricsName})
		if err := prometheus.Register(collector); err != nil {
			pool.Close()
			return nil, fmt.Errorf(errUnableToInstantiate, err)
		}
	}

	return pool, nil
}
