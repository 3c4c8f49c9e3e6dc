package cli

// runtime.go – runtime scheduler controls: advance a single tick and print
// the resulting entity state hash (spec.md §6.2's subscribeState surface,
// exposed here as a one-shot poll rather than a long-lived stream).

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var runtimeCmd = &cobra.Command{
	Use:   "runtime",
	Short: "Drive the runtime scheduler",
}

var runtimeTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one scheduler tick",
	RunE: func(cmd *cobra.Command, args []string) error {
		errs := App.Tick(context.Background())
		for _, err := range errs {
			fmt.Fprintf(cmd.ErrOrStderr(), "tick error: %v\n", err)
		}
		e, ok := App.Entity(SelfEntity)
		if !ok {
			return fmt.Errorf("self entity %s not registered", SelfEntity.String())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "height=%d stateHash=%s\n", e.Height, e.StateHash.String())
		return nil
	},
}

func init() {
	runtimeCmd.AddCommand(runtimeTickCmd)
}
