package cli

// root.go – the console's cobra root command. Grounded on the teacher's
// per-file command-registration pattern (see the old account_and_balance_
// operations.go): one var per command group, wired together in init.

import (
	"github.com/spf13/cobra"

	core "channel-console/core"
)

var rootCmd = &cobra.Command{
	Use:   "console",
	Short: "Bilateral payment channel network console",
}

// App holds the process-wide runtime the CLI commands operate against. It
// mirrors the teacher's CurrentLedger()-style singleton but is populated
// explicitly by main() rather than lazily, since the runtime requires an
// adapter and crypto to construct.
var App *core.Runtime

// SelfEntity is the EntityId this console instance operates, set by main()
// from config.
var SelfEntity core.EntityId

func init() {
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(settlementCmd)
	rootCmd.AddCommand(jurisdictionCmd)
	rootCmd.AddCommand(runtimeCmd)
}

// Execute runs the root command, the single entry point cmd/console/main.go
// calls.
func Execute() error {
	return rootCmd.Execute()
}
