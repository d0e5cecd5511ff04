package postgres

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/ccoveille/go-safecast"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	log "github.com/authzed/pagestream/internal/logging"
	"github.com/authzed/pagestream/pkg/pagination"
)

// Parameter keys understood by the query operation.
const (
	KeyTable     = "Table"
	KeyColumns   = "Columns"
	KeyKeyColumn = "KeyColumn"
	KeyWhere     = "Where"

	// OperationQuery reads a table in key order, one page per statement.
	OperationQuery = pagination.OperationQuery
)

// Row is a single result row, keyed by column name.
type Row = map[string]any

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Binding exposes keyset-paginated table reads as a pagination.Client.
type Binding struct {
	querier         Querier
	defaultPageSize int
}

var _ pagination.Client[Row] = (*Binding)(nil)

// BindingOption configures a Binding.
type BindingOption func(*Binding)

// WithDefaultPageSize sets the page size used when a request carries no limit.
func WithDefaultPageSize(size int) BindingOption {
	return func(b *Binding) {
		if size > 0 {
			b.defaultPageSize = size
		}
	}
}

// NewBinding creates a binding that runs its statements on the querier.
func NewBinding(querier Querier, opts ...BindingOption) *Binding {
	b := &Binding{querier: querier, defaultPageSize: defaultPageSize}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// pageQuery is a single keyset page statement. One row more than the page size is
// selected to learn whether another page exists.
type pageQuery struct {
	sql       string
	args      []any
	keyColumn string
	pageSize  int
}

func quoteIdentifier(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

func stringParam(params pagination.Params, key string) (string, error) {
	value, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required parameter %s", key)
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %s must be a non-empty string, got %T", key, value)
	}
	return s, nil
}

func columnsParam(params pagination.Params) ([]string, error) {
	switch columns := params[KeyColumns].(type) {
	case nil:
		return []string{"*"}, nil
	case []string:
		quoted := make([]string, 0, len(columns))
		for _, column := range columns {
			quoted = append(quoted, quoteIdentifier(column))
		}
		return quoted, nil
	case []any:
		quoted := make([]string, 0, len(columns))
		for _, column := range columns {
			name, ok := column.(string)
			if !ok {
				return nil, fmt.Errorf("parameter %s must only hold strings, got %T", KeyColumns, column)
			}
			quoted = append(quoted, quoteIdentifier(name))
		}
		return quoted, nil
	default:
		return nil, fmt.Errorf("parameter %s must be a list of column names, got %T", KeyColumns, columns)
	}
}

func buildPageQuery(params pagination.Params, defaultPageSize int) (pageQuery, error) {
	table, err := stringParam(params, KeyTable)
	if err != nil {
		return pageQuery{}, err
	}
	keyColumn, err := stringParam(params, KeyKeyColumn)
	if err != nil {
		return pageQuery{}, err
	}
	columns, err := columnsParam(params)
	if err != nil {
		return pageQuery{}, err
	}

	pageSize := defaultPageSize
	if limit, ok := params.Limit(); ok {
		pageSize = limit
	}
	fetchSize, err := safecast.ToUint64(pageSize + 1)
	if err != nil {
		return pageQuery{}, err
	}

	key := quoteIdentifier(keyColumn)
	builder := psql.Select(columns...).From(quoteIdentifier(table))

	if where, ok := params[KeyWhere]; ok && where != nil {
		conditions, ok := where.(map[string]any)
		if !ok {
			return pageQuery{}, fmt.Errorf("parameter %s must be a map of column values, got %T", KeyWhere, where)
		}
		eq := make(sq.Eq, len(conditions))
		for column, value := range conditions {
			eq[quoteIdentifier(column)] = value
		}
		builder = builder.Where(eq)
	}

	keyParts := strings.Split(keyColumn, ".")
	keyName := keyParts[len(keyParts)-1]

	if token, ok := params.ContinuationToken(); ok {
		start, err := startKey(token, keyName)
		if err != nil {
			return pageQuery{}, err
		}
		builder = builder.Where(sq.Gt{key: start})
	}

	sql, args, err := builder.OrderBy(key).Limit(fetchSize).ToSql()
	if err != nil {
		return pageQuery{}, err
	}

	return pageQuery{
		sql:       sql,
		args:      args,
		keyColumn: keyName,
		pageSize:  pageSize,
	}, nil
}

// startKey returns the key value held by a continuation token. Tokens are maps from the key
// column to its value so that empty key values still resume the scan.
func startKey(token any, keyColumn string) (any, error) {
	var (
		value any
		ok    bool
	)
	switch t := token.(type) {
	case map[string]any:
		value, ok = t[keyColumn]
	case map[string]string:
		value, ok = t[keyColumn]
	}
	if !ok {
		return nil, fmt.Errorf("parameter %s must map key column %s to its last value, got %v", pagination.ContinuationKey, keyColumn, token)
	}
	return value, nil
}

// Invoke implements pagination.Client.
func (b *Binding) Invoke(ctx context.Context, operation string, params pagination.Params) (pagination.Page[Row], error) {
	if operation != OperationQuery {
		return pagination.Page[Row]{}, fmt.Errorf("unsupported postgres operation %q", operation)
	}

	q, err := buildPageQuery(params, b.defaultPageSize)
	if err != nil {
		return pagination.Page[Row]{}, err
	}
	if q.pageSize == 0 {
		return pagination.Page[Row]{}, nil
	}

	ctx, span := tracer.Start(ctx, "QueryPage", trace.WithAttributes(
		attribute.Int("pageSize", q.pageSize),
	))
	defer span.End()

	rows, err := b.querier.Query(ctx, q.sql, q.args...)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return pagination.Page[Row]{}, fmt.Errorf("unable to query page: %w", err)
	}

	results, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return pagination.Page[Row]{}, fmt.Errorf("unable to read page: %w", err)
	}

	page := pagination.Page[Row]{Items: results}
	if len(results) > q.pageSize {
		page.Items = results[:q.pageSize]
		last, ok := page.Items[q.pageSize-1][q.keyColumn]
		if !ok {
			return pagination.Page[Row]{}, fmt.Errorf("key column %s is not part of the selected columns", q.keyColumn)
		}
		if last == nil {
			return pagination.Page[Row]{}, fmt.Errorf("key column %s holds NULL and cannot be used to resume", q.keyColumn)
		}
		page.ContinuationToken = map[string]any{q.keyColumn: last}
	}

	log.Ctx(ctx).Trace().
		Str("sql", q.sql).
		Int("rows", len(page.Items)).
		Bool("more", page.ContinuationToken != nil).
		Msg("postgres page")
	return page, nil
}

// NewQuerySequence creates a sequence reading the table described by params in key order.
func NewQuerySequence(querier Querier, params pagination.Params, opts ...pagination.SequenceOptionsOption) *pagination.Sequence[Row] {
	return pagination.Query[Row](NewBinding(querier), params, opts...)
}
