package cmd

import (
	"fmt"
	"os"

	"github.com/jzelinskie/cobrautil/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/authzed/pagestream/internal/datastore/memdb"
	log "github.com/authzed/pagestream/internal/logging"
	"github.com/authzed/pagestream/pkg/pagination"
)

// MemoryConfig configures the in-memory table the memory commands read from.
type MemoryConfig struct {
	SeedFile        string
	DefaultPageSize int
}

func (c MemoryConfig) DebugMap() map[string]any {
	return map[string]any{
		"seedFile":        c.SeedFile,
		"defaultPageSize": c.DefaultPageSize,
	}
}

func RegisterMemoryFlags(cmd *cobra.Command, config *MemoryConfig) {
	cmd.PersistentFlags().StringVar(&config.SeedFile, "seed-file", "", "yaml file holding the list of items to load into the table")
	cmd.PersistentFlags().IntVar(&config.DefaultPageSize, "page-size", 100, "page size used when no limit is given")
}

// Table loads the seed file into a new table.
func (c MemoryConfig) Table() (*memdb.Table, error) {
	table, err := memdb.NewTable(memdb.DefaultPageSize(c.DefaultPageSize))
	if err != nil {
		return nil, err
	}
	if c.SeedFile == "" {
		return table, nil
	}

	contents, err := os.ReadFile(c.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read seed file: %w", err)
	}

	var items []memdb.Item
	if err := yaml.Unmarshal(contents, &items); err != nil {
		return nil, fmt.Errorf("unable to parse seed file %s: %w", c.SeedFile, err)
	}
	if err := table.Put(items...); err != nil {
		return nil, err
	}

	log.Debug().Interface("config", c.DebugMap()).Int("items", table.Len()).Msg("seeded memory table")
	return table, nil
}

// NewMemoryCommand creates the command reading from an in-memory table, mostly useful to
// try out parameters and limits.
func NewMemoryCommand(programName string) *cobra.Command {
	memConfig := &MemoryConfig{}
	memCmd := &cobra.Command{
		Use:     "memory",
		Aliases: []string{"mem"},
		Short:   "Stream items from an in-memory table loaded from a seed file",
	}
	RegisterMemoryFlags(memCmd, memConfig)

	for _, operation := range []string{memdb.OperationScan, memdb.OperationQuery} {
		streamConfig := DefaultStreamConfig()
		var partition string

		opCmd := &cobra.Command{
			Use:     operation,
			Short:   fmt.Sprintf("Stream the items returned by the %s operation", operation),
			PreRunE: DefaultPreRunE(programName),
			RunE: func(cmd *cobra.Command, args []string) error {
				table, err := memConfig.Table()
				if err != nil {
					return err
				}

				params, err := streamConfig.LoadParams()
				if err != nil {
					return err
				}
				if operation == memdb.OperationQuery {
					params["PartitionKey"] = cobrautil.MustGetString(cmd, "partition")
				}

				seq := pagination.CreateSequenceFor[memdb.Item](operation)(table, params, streamConfig.sequenceOptions(operation)...)
				return RunStream(cmd.Context(), seq, *streamConfig, cmd.OutOrStdout())
			},
		}
		RegisterStreamFlags(opCmd, streamConfig)
		if operation == memdb.OperationQuery {
			opCmd.Flags().StringVar(&partition, "partition", "", "partition key to query")
			if err := opCmd.MarkFlagRequired("partition"); err != nil {
				panic("failed to mark flag required: " + err.Error())
			}
		}
		memCmd.AddCommand(opCmd)
	}

	return memCmd
}
