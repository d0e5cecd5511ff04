package dynamodb

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ccoveille/go-safecast"
	"github.com/rs/zerolog"

	"github.com/authzed/pagestream/pkg/pagination"
)

// Parameter keys, named after the QueryInput and ScanInput fields.
const (
	KeyTableName                 = "TableName"
	KeyIndexName                 = "IndexName"
	KeyConsistentRead            = "ConsistentRead"
	KeyExpressionAttributeNames  = "ExpressionAttributeNames"
	KeyExpressionAttributeValues = "ExpressionAttributeValues"
	KeyFilterExpression          = "FilterExpression"
	KeyProjectionExpression      = "ProjectionExpression"
	KeySelect                    = "Select"
	KeyReturnConsumedCapacity    = "ReturnConsumedCapacity"
	KeyKeyConditionExpression    = "KeyConditionExpression"
	KeyScanIndexForward          = "ScanIndexForward"
	KeySegment                   = "Segment"
	KeyTotalSegments             = "TotalSegments"
)

var (
	commonKeys = []string{
		KeyTableName,
		KeyIndexName,
		KeyConsistentRead,
		KeyExpressionAttributeNames,
		KeyExpressionAttributeValues,
		KeyFilterExpression,
		KeyProjectionExpression,
		KeySelect,
		KeyReturnConsumedCapacity,
		pagination.LimitKey,
		pagination.ContinuationKey,
	}
	queryKeys = append(slices.Clone(commonKeys), KeyKeyConditionExpression, KeyScanIndexForward)
	scanKeys  = append(slices.Clone(commonKeys), KeySegment, KeyTotalSegments)
)

// ErrInvalidParams is returned when a parameter is unknown to the operation or holds a
// value of the wrong type.
type ErrInvalidParams struct {
	error
	key string
}

// Key returns the offending parameter key.
func (err ErrInvalidParams) Key() string { return err.key }

// MarshalZerologObject implements zerolog.LogObjectMarshaler
func (err ErrInvalidParams) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("key", err.key)
}

func newInvalidParamsErr(key string, format string, args ...any) error {
	return ErrInvalidParams{
		error: fmt.Errorf("invalid parameter %s: %s", key, fmt.Sprintf(format, args...)),
		key:   key,
	}
}

func checkKeys(params pagination.Params, allowed []string, operation string) error {
	for _, key := range slices.Sorted(maps.Keys(params)) {
		if !slices.Contains(allowed, key) {
			return newInvalidParamsErr(key, "not supported by %s", operation)
		}
	}
	return nil
}

// paramDecoder reads typed fields out of Params, keeping the first error.
type paramDecoder struct {
	params pagination.Params
	err    error
}

func (d *paramDecoder) fail(key string, value any, expected string) {
	if d.err == nil {
		d.err = newInvalidParamsErr(key, "expected %s, got %T", expected, value)
	}
}

func (d *paramDecoder) str(key string) *string {
	value, ok := d.params[key]
	if !ok || value == nil {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		d.fail(key, value, "string")
		return nil
	}
	return aws.String(s)
}

func (d *paramDecoder) boolean(key string) *bool {
	value, ok := d.params[key]
	if !ok || value == nil {
		return nil
	}
	b, ok := value.(bool)
	if !ok {
		d.fail(key, value, "bool")
		return nil
	}
	return aws.Bool(b)
}

func (d *paramDecoder) int32(key string) *int32 {
	value, ok := d.params[key]
	if !ok || value == nil {
		return nil
	}

	var (
		n   int32
		err error
	)
	switch v := value.(type) {
	case int32:
		n = v
	case int:
		n, err = safecast.ToInt32(v)
	case int64:
		n, err = safecast.ToInt32(v)
	case uint64:
		n, err = safecast.ToInt32(v)
	case float64:
		if v != float64(int64(v)) {
			d.fail(key, value, "integer")
			return nil
		}
		n, err = safecast.ToInt32(int64(v))
	default:
		d.fail(key, value, "integer")
		return nil
	}
	if err != nil {
		if d.err == nil {
			d.err = newInvalidParamsErr(key, "%s", err)
		}
		return nil
	}
	return aws.Int32(n)
}

func (d *paramDecoder) names(key string) map[string]string {
	value, ok := d.params[key]
	if !ok || value == nil {
		return nil
	}

	switch v := value.(type) {
	case map[string]string:
		return v
	case map[string]any:
		names := make(map[string]string, len(v))
		for name, target := range v {
			s, ok := target.(string)
			if !ok {
				d.fail(key, target, "string attribute name")
				return nil
			}
			names[name] = s
		}
		return names
	default:
		d.fail(key, value, "map of attribute names")
		return nil
	}
}

// attributes accepts either typed attribute values or plain Go values, which are converted
// with attributevalue.MarshalMap.
func (d *paramDecoder) attributes(key string) map[string]types.AttributeValue {
	value, ok := d.params[key]
	if !ok || value == nil {
		return nil
	}

	switch v := value.(type) {
	case map[string]types.AttributeValue:
		return v
	case map[string]any:
		av, err := attributevalue.MarshalMap(v)
		if err != nil {
			if d.err == nil {
				d.err = newInvalidParamsErr(key, "%s", err)
			}
			return nil
		}
		return av
	default:
		d.fail(key, value, "map of attribute values")
		return nil
	}
}

// limit returns the page size for the request. DynamoDB rejects a zero limit, so only
// positive limits are forwarded.
func (d *paramDecoder) limit() *int32 {
	limit, ok := d.params.Limit()
	if !ok || limit <= 0 {
		return nil
	}
	n, err := safecast.ToInt32(limit)
	if err != nil {
		return aws.Int32(math.MaxInt32)
	}
	return aws.Int32(n)
}

func decodeQueryInput(params pagination.Params) (*ddb.QueryInput, error) {
	if err := checkKeys(params, queryKeys, OperationQuery); err != nil {
		return nil, err
	}

	d := &paramDecoder{params: params}
	input := &ddb.QueryInput{
		TableName:                 d.str(KeyTableName),
		IndexName:                 d.str(KeyIndexName),
		ConsistentRead:            d.boolean(KeyConsistentRead),
		ExpressionAttributeNames:  d.names(KeyExpressionAttributeNames),
		ExpressionAttributeValues: d.attributes(KeyExpressionAttributeValues),
		FilterExpression:          d.str(KeyFilterExpression),
		ProjectionExpression:      d.str(KeyProjectionExpression),
		KeyConditionExpression:    d.str(KeyKeyConditionExpression),
		ScanIndexForward:          d.boolean(KeyScanIndexForward),
		ExclusiveStartKey:         d.attributes(pagination.ContinuationKey),
		Limit:                     d.limit(),
	}
	if s := d.str(KeySelect); s != nil {
		input.Select = types.Select(*s)
	}
	if s := d.str(KeyReturnConsumedCapacity); s != nil {
		input.ReturnConsumedCapacity = types.ReturnConsumedCapacity(*s)
	}
	return input, d.err
}

func decodeScanInput(params pagination.Params) (*ddb.ScanInput, error) {
	if err := checkKeys(params, scanKeys, OperationScan); err != nil {
		return nil, err
	}

	d := &paramDecoder{params: params}
	input := &ddb.ScanInput{
		TableName:                 d.str(KeyTableName),
		IndexName:                 d.str(KeyIndexName),
		ConsistentRead:            d.boolean(KeyConsistentRead),
		ExpressionAttributeNames:  d.names(KeyExpressionAttributeNames),
		ExpressionAttributeValues: d.attributes(KeyExpressionAttributeValues),
		FilterExpression:          d.str(KeyFilterExpression),
		ProjectionExpression:      d.str(KeyProjectionExpression),
		Segment:                   d.int32(KeySegment),
		TotalSegments:             d.int32(KeyTotalSegments),
		ExclusiveStartKey:         d.attributes(pagination.ContinuationKey),
		Limit:                     d.limit(),
	}
	if s := d.str(KeySelect); s != nil {
		input.Select = types.Select(*s)
	}
	if s := d.str(KeyReturnConsumedCapacity); s != nil {
		input.ReturnConsumedCapacity = types.ReturnConsumedCapacity(*s)
	}
	return input, d.err
}

// ParamsFromExpression returns query parameters for the table built from the expression.
// Parts missing from the expression are left out.
func ParamsFromExpression(tableName string, expr expression.Expression) pagination.Params {
	params := pagination.Params{KeyTableName: tableName}
	if v := expr.KeyCondition(); v != nil {
		params[KeyKeyConditionExpression] = *v
	}
	if v := expr.Filter(); v != nil {
		params[KeyFilterExpression] = *v
	}
	if v := expr.Projection(); v != nil {
		params[KeyProjectionExpression] = *v
	}
	if names := expr.Names(); len(names) > 0 {
		params[KeyExpressionAttributeNames] = names
	}
	if values := expr.Values(); len(values) > 0 {
		params[KeyExpressionAttributeValues] = values
	}
	return params
}
