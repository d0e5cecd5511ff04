package dynamodb

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/authzed/pagestream/pkg/pagination"
)

type mockedAPI struct {
	mock.Mock
}

func (m *mockedAPI) Query(_ context.Context, input *ddb.QueryInput, _ ...func(*ddb.Options)) (*ddb.QueryOutput, error) {
	args := m.Called(input)
	out, _ := args.Get(0).(*ddb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockedAPI) Scan(_ context.Context, input *ddb.ScanInput, _ ...func(*ddb.Options)) (*ddb.ScanOutput, error) {
	args := m.Called(input)
	out, _ := args.Get(0).(*ddb.ScanOutput)
	return out, args.Error(1)
}

func (m *mockedAPI) DescribeTable(_ context.Context, input *ddb.DescribeTableInput, _ ...func(*ddb.Options)) (*ddb.DescribeTableOutput, error) {
	args := m.Called(input)
	out, _ := args.Get(0).(*ddb.DescribeTableOutput)
	return out, args.Error(1)
}

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

type user struct {
	PK   string `dynamodbav:"pk"`
	Name string `dynamodbav:"name"`
}

func TestQuerySequenceFollowsLastEvaluatedKey(t *testing.T) {
	require := require.New(t)

	lastKey := map[string]types.AttributeValue{"pk": str("org#1"), "sk": str("user#2")}

	api := &mockedAPI{}
	api.On("Query", &ddb.QueryInput{
		TableName:                 aws.String("users"),
		KeyConditionExpression:    aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":pk": str("org#1")},
		Limit:                     aws.Int32(3),
	}).Return(&ddb.QueryOutput{
		Items: []map[string]types.AttributeValue{
			{"pk": str("org#1"), "name": str("alice")},
			{"pk": str("org#1"), "name": str("bob")},
		},
		LastEvaluatedKey: lastKey,
	}, nil).Once()
	api.On("Query", &ddb.QueryInput{
		TableName:                 aws.String("users"),
		KeyConditionExpression:    aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":pk": str("org#1")},
		ExclusiveStartKey:         lastKey,
		Limit:                     aws.Int32(1),
	}).Return(&ddb.QueryOutput{
		Items: []map[string]types.AttributeValue{
			{"pk": str("org#1"), "name": str("carol")},
		},
		LastEvaluatedKey: map[string]types.AttributeValue{},
	}, nil).Once()

	seq := NewQuerySequence[user](api, pagination.Params{
		KeyTableName:                 "users",
		KeyKeyConditionExpression:    "pk = :pk",
		KeyExpressionAttributeValues: map[string]any{":pk": "org#1"},
		pagination.LimitKey:          3,
	})

	users, err := seq.Collect(context.Background())
	require.NoError(err)
	require.Equal([]user{
		{PK: "org#1", Name: "alice"},
		{PK: "org#1", Name: "bob"},
		{PK: "org#1", Name: "carol"},
	}, users)
	api.AssertExpectations(t)
}

func TestScanSequenceDecodesMaps(t *testing.T) {
	require := require.New(t)

	api := &mockedAPI{}
	api.On("Scan", &ddb.ScanInput{
		TableName:     aws.String("users"),
		Segment:       aws.Int32(1),
		TotalSegments: aws.Int32(4),
	}).Return(&ddb.ScanOutput{
		Items: []map[string]types.AttributeValue{{"name": str("alice")}},
	}, nil).Once()

	seq := NewScanSequence[map[string]any](api, pagination.Params{
		KeyTableName:     "users",
		KeySegment:       1,
		KeyTotalSegments: float64(4),
	})
	items, err := seq.Collect(context.Background())
	require.NoError(err)
	require.Equal([]map[string]any{{"name": "alice"}}, items)
	api.AssertExpectations(t)
}

func TestNilItemsAreNotEmitted(t *testing.T) {
	output := func() *ddb.QueryOutput {
		return &ddb.QueryOutput{
			Items: []map[string]types.AttributeValue{
				nil,
				{"pk": str("org#1"), "name": str("alice")},
				nil,
			},
		}
	}
	params := pagination.Params{KeyTableName: "users"}

	t.Run("struct items", func(t *testing.T) {
		api := &mockedAPI{}
		api.On("Query", mock.Anything).Return(output(), nil).Once()

		users, err := NewQuerySequence[user](api, params).Collect(context.Background())
		require.NoError(t, err)
		require.Equal(t, []user{{PK: "org#1", Name: "alice"}}, users)
	})

	t.Run("pointer items", func(t *testing.T) {
		api := &mockedAPI{}
		api.On("Query", mock.Anything).Return(output(), nil).Once()

		users, err := NewQuerySequence[*user](api, params).Collect(context.Background())
		require.NoError(t, err)
		require.Equal(t, []*user{{PK: "org#1", Name: "alice"}}, users)
	})
}

func TestZeroLimitIsNotForwarded(t *testing.T) {
	require := require.New(t)

	api := &mockedAPI{}
	api.On("Query", &ddb.QueryInput{TableName: aws.String("users")}).
		Return(&ddb.QueryOutput{
			Items:            []map[string]types.AttributeValue{{"name": str("alice")}},
			LastEvaluatedKey: map[string]types.AttributeValue{"pk": str("a")},
		}, nil).
		Once()

	items, err := NewQuerySequence[map[string]any](api, pagination.Params{
		KeyTableName:        "users",
		pagination.LimitKey: 0,
	}).Collect(context.Background())
	require.NoError(err)
	require.Empty(items)
	api.AssertNumberOfCalls(t, "Query", 1)
}

func TestInvalidParams(t *testing.T) {
	testCases := []struct {
		name      string
		operation string
		params    pagination.Params
		key       string
	}{
		{"unknown key", OperationQuery, pagination.Params{"Bogus": 1}, "Bogus"},
		{"scan only key on query", OperationQuery, pagination.Params{KeySegment: 1}, KeySegment},
		{"query only key on scan", OperationScan, pagination.Params{KeyScanIndexForward: true}, KeyScanIndexForward},
		{"wrong string type", OperationQuery, pagination.Params{KeyTableName: 5}, KeyTableName},
		{"wrong bool type", OperationQuery, pagination.Params{KeyConsistentRead: "yes"}, KeyConsistentRead},
		{"fractional segment", OperationScan, pagination.Params{KeySegment: 1.5}, KeySegment},
		{"wrong names type", OperationScan, pagination.Params{KeyExpressionAttributeNames: []string{"a"}}, KeyExpressionAttributeNames},
		{"wrong values type", OperationQuery, pagination.Params{KeyExpressionAttributeValues: "x"}, KeyExpressionAttributeValues},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			api := &mockedAPI{}
			_, err := NewBinding[map[string]any](api).Invoke(context.Background(), tc.operation, tc.params)

			var invalid ErrInvalidParams
			require.ErrorAs(t, err, &invalid)
			require.Equal(t, tc.key, invalid.Key())
			api.AssertNotCalled(t, "Query", mock.Anything)
			api.AssertNotCalled(t, "Scan", mock.Anything)
		})
	}
}

func TestInvalidParamsFailTheSequence(t *testing.T) {
	api := &mockedAPI{}
	out := NewQuerySequence[map[string]any](api, pagination.Params{"Bogus": true}).Pull(context.Background(), 1)
	require.Equal(t, pagination.OutcomeError, out.Kind)

	var invalid ErrInvalidParams
	require.ErrorAs(t, out.Err, &invalid)

	var fetchErr pagination.ErrFetchFailed
	require.ErrorAs(t, out.Err, &fetchErr)
	require.Equal(t, pagination.Params{"Bogus": true}, fetchErr.QueryParameters())
}

func TestUnsupportedOperation(t *testing.T) {
	_, err := NewBinding[map[string]any](&mockedAPI{}).Invoke(context.Background(), "batchGet", pagination.Params{})
	require.ErrorContains(t, err, "batchGet")
}

func TestServiceErrorPropagates(t *testing.T) {
	expected := errors.New("throttled")
	api := &mockedAPI{}
	api.On("Query", mock.Anything).Return(nil, expected).Once()

	_, err := NewQuerySequence[map[string]any](api, pagination.Params{KeyTableName: "users"}).
		Collect(context.Background())
	require.ErrorIs(t, err, expected)
}

func TestQueryStream(t *testing.T) {
	api := &mockedAPI{}
	api.On("Query", mock.Anything).Return(&ddb.QueryOutput{
		Items: []map[string]types.AttributeValue{{"name": str("alice")}, {"name": str("bob")}},
	}, nil).Once()

	stream := NewQueryStream[map[string]any](context.Background(), api, pagination.Params{KeyTableName: "users"})
	defer stream.Close()

	var names []any
	for item := range stream.Items() {
		names = append(names, item["name"])
	}
	require.NoError(t, stream.Err())
	require.Equal(t, []any{"alice", "bob"}, names)
}

func TestParamsFromExpression(t *testing.T) {
	require := require.New(t)

	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("pk").Equal(expression.Value("org#1"))).
		WithFilter(expression.Name("active").Equal(expression.Value(true))).
		Build()
	require.NoError(err)

	params := ParamsFromExpression("users", expr)
	require.Equal("users", params[KeyTableName])
	require.Equal(*expr.KeyCondition(), params[KeyKeyConditionExpression])
	require.Equal(*expr.Filter(), params[KeyFilterExpression])
	require.NotContains(params, KeyProjectionExpression)
	require.Equal(expr.Names(), params[KeyExpressionAttributeNames])
	require.Equal(expr.Values(), params[KeyExpressionAttributeValues])

	input, err := decodeQueryInput(params)
	require.NoError(err)
	require.Equal(expr.Values(), input.ExpressionAttributeValues)
	require.Equal(expr.Names(), input.ExpressionAttributeNames)
}

func TestCheckTable(t *testing.T) {
	api := &mockedAPI{}
	api.On("DescribeTable", &ddb.DescribeTableInput{TableName: aws.String("users")}).
		Return(&ddb.DescribeTableOutput{Table: &types.TableDescription{TableStatus: types.TableStatusActive}}, nil)
	api.On("DescribeTable", &ddb.DescribeTableInput{TableName: aws.String("missing")}).
		Return(nil, &types.ResourceNotFoundException{Message: aws.String("no such table")})

	require.NoError(t, CheckTable(context.Background(), api, "users"))
	require.ErrorIs(t, CheckTable(context.Background(), api, "missing"), ErrTableNotFound)
}

func TestClientConfigNeverLogsSecrets(t *testing.T) {
	opts := []Option{
		Endpoint("http://localhost:8000"),
		Region("us-west-2"),
		AccessKeyID("AKIA"),
		SecretAccessKey("s3cret"),
	}

	buf := &bytes.Buffer{}
	logger := zerolog.New(buf)
	logger.Info().Object("config", generateConfig(opts)).Send()
	require.Contains(t, buf.String(), "http://localhost:8000")
	require.NotContains(t, buf.String(), "s3cret")
	require.NotContains(t, buf.String(), "AKIA")

	client, err := NewClient(context.Background(), opts...)
	require.NoError(t, err)
	require.NotNil(t, client)
}
