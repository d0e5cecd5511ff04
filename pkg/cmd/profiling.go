package cmd

import (
	"runtime"

	"github.com/jzelinskie/cobrautil/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterProfilingFlags adds the sampling rate flags of the mutex and block profiles served
// under /debug/pprof when --metrics-addr is set.
func RegisterProfilingFlags(flags *pflag.FlagSet) {
	flags.Int("pprof-mutex-profile-rate", 0, "sets the mutex profile sampling rate")
	flags.Int("pprof-block-profile-rate", 0, "sets the block profile sampling rate")
}

// ProfilingRunE applies the profiling flags.
func ProfilingRunE() cobrautil.CobraRunFunc {
	return func(cmd *cobra.Command, args []string) error {
		if cobrautil.IsBuiltinCommand(cmd) {
			return nil
		}

		runtime.SetMutexProfileFraction(cobrautil.MustGetInt(cmd, "pprof-mutex-profile-rate"))
		runtime.SetBlockProfileRate(cobrautil.MustGetInt(cmd, "pprof-block-profile-rate"))
		return nil
	}
}
