package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/authzed/pagestream/internal/datastore/dynamodb"
	log "github.com/authzed/pagestream/internal/logging"
	"github.com/authzed/pagestream/pkg/pagination"
)

// DynamoDBConfig holds the connection flags of the dynamodb commands.
type DynamoDBConfig struct {
	Region          string
	Profile         string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	CheckTable      bool
}

func (c DynamoDBConfig) DebugMap() map[string]any {
	return map[string]any{
		"region":          c.Region,
		"profile":         c.Profile,
		"endpoint":        c.Endpoint,
		"accessKeyID":     c.AccessKeyID != "",
		"secretAccessKey": "(sensitive)",
		"checkTable":      c.CheckTable,
	}
}

func RegisterDynamoDBFlags(cmd *cobra.Command, config *DynamoDBConfig) {
	cmd.PersistentFlags().StringVar(&config.Region, "aws-region", "", "AWS region (defaults to the environment)")
	cmd.PersistentFlags().StringVar(&config.Profile, "aws-profile", "", "shared configuration profile to use")
	cmd.PersistentFlags().StringVar(&config.Endpoint, "aws-endpoint", "", `DynamoDB endpoint override (e.g. "http://localhost:8000" for DynamoDB Local)`)
	cmd.PersistentFlags().StringVar(&config.AccessKeyID, "aws-access-key-id", "", "static access key id")
	cmd.PersistentFlags().StringVar(&config.SecretAccessKey, "aws-secret-access-key", "", "static secret access key")
	cmd.PersistentFlags().BoolVar(&config.CheckTable, "check-table", true, "verify the table exists before streaming")
}

func (c DynamoDBConfig) options() []dynamodb.Option {
	return []dynamodb.Option{
		dynamodb.Region(c.Region),
		dynamodb.SharedProfile(c.Profile),
		dynamodb.Endpoint(c.Endpoint),
		dynamodb.AccessKeyID(c.AccessKeyID),
		dynamodb.SecretAccessKey(c.SecretAccessKey),
	}
}

// NewDynamoDBCommand creates the command streaming DynamoDB Query and Scan results.
func NewDynamoDBCommand(programName string) *cobra.Command {
	ddbConfig := &DynamoDBConfig{}
	ddbCmd := &cobra.Command{
		Use:     "dynamodb",
		Aliases: []string{"ddb"},
		Short:   "Stream the results of a DynamoDB query or scan",
	}
	RegisterDynamoDBFlags(ddbCmd, ddbConfig)

	for _, operation := range []string{dynamodb.OperationQuery, dynamodb.OperationScan} {
		streamConfig := DefaultStreamConfig()
		opCmd := &cobra.Command{
			Use:     operation,
			Short:   fmt.Sprintf("Stream every item returned by a paginated %s", operation),
			PreRunE: DefaultPreRunE(programName),
			RunE: func(cmd *cobra.Command, args []string) error {
				params, err := streamConfig.LoadParams()
				if err != nil {
					return err
				}

				log.Ctx(cmd.Context()).Debug().Interface("dynamodb", ddbConfig.DebugMap()).Msg("connecting")
				client, err := dynamodb.NewClient(cmd.Context(), ddbConfig.options()...)
				if err != nil {
					return err
				}

				if ddbConfig.CheckTable {
					table, _ := params[dynamodb.KeyTableName].(string)
					if err := dynamodb.CheckTable(cmd.Context(), client, table); err != nil {
						return err
					}
				}

				binding := dynamodb.NewBinding[map[string]any](client)
				seq := pagination.CreateSequenceFor[map[string]any](operation)(binding, params, streamConfig.sequenceOptions(operation)...)
				return RunStream(cmd.Context(), seq, *streamConfig, cmd.OutOrStdout())
			},
		}
		RegisterStreamFlags(opCmd, streamConfig)
		ddbCmd.AddCommand(opCmd)
	}

	return ddbCmd
}
