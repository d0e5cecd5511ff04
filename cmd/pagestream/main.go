package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/authzed/pagestream/internal/logging"
	"github.com/authzed/pagestream/pkg/cmd"
)

const programName = "pagestream"

func main() {
	rootCmd := cmd.NewRootCommand(programName)
	cmd.RegisterRootFlags(rootCmd)

	rootCmd.AddCommand(cmd.NewDynamoDBCommand(programName))
	rootCmd.AddCommand(cmd.NewPostgresCommand(programName))
	rootCmd.AddCommand(cmd.NewMemoryCommand(programName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logging.Error().Err(err).Msg("terminated with errors")
		os.Exit(1)
	}
}
