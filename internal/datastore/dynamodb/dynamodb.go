package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	log "github.com/authzed/pagestream/internal/logging"
)

const (
	Engine = "dynamodb"

	// OperationQuery and OperationScan are the operations a Binding can invoke.
	OperationQuery = "query"
	OperationScan  = "scan"
)

// NewClient loads the AWS configuration from the environment and the given options and
// returns a DynamoDB client.
func NewClient(ctx context.Context, options ...Option) (*ddb.Client, error) {
	cfg := generateConfig(options)
	log.Ctx(ctx).Debug().Object("config", cfg).Msg("creating dynamodb client")

	var loadOpts []func(*config.LoadOptions) error
	if cfg.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.region))
	}
	if cfg.sharedProfile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.sharedProfile))
	}
	if cfg.accessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.accessKeyID, cfg.secretAccessKey, ""),
		))
	}
	if cfg.endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(cfg.endpoint))
	}

	awscfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load aws config: %w", err)
	}

	return ddb.NewFromConfig(awscfg), nil
}

// TableAPI is the subset of the DynamoDB client used to inspect tables.
type TableAPI interface {
	DescribeTable(ctx context.Context, params *ddb.DescribeTableInput, optFns ...func(*ddb.Options)) (*ddb.DescribeTableOutput, error)
}

// ErrTableNotFound is returned by CheckTable when the table does not exist.
var ErrTableNotFound = errors.New("table not found")

// CheckTable verifies that the table exists and is active.
func CheckTable(ctx context.Context, api TableAPI, tableName string) error {
	out, err := api.DescribeTable(ctx, &ddb.DescribeTableInput{TableName: aws.String(tableName)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: %s", ErrTableNotFound, tableName)
		}
		return fmt.Errorf("unable to describe table %s: %w", tableName, err)
	}

	if out.Table != nil && out.Table.TableStatus != types.TableStatusActive {
		log.Ctx(ctx).Warn().
			Str("table", tableName).
			Str("status", string(out.Table.TableStatus)).
			Msg("table is not active")
	}
	return nil
}
