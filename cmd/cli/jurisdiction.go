package cli

// jurisdiction.go – Jurisdiction Batch Pipeline commands (spec.md §4.4's
// j_broadcast/j_rebroadcast/j_clear_batch).

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	core "channel-console/core"
)

var jurisdictionCmd = &cobra.Command{
	Use:   "jurisdiction",
	Short: "Manage the jurisdiction batch pipeline",
}

var jurisdictionBroadcastCmd = &cobra.Command{
	Use:   "broadcast [preset]",
	Short: "Sign and submit the draft batch (preset: standard|fast|urgent|custom)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		preset := core.FeePreset(args[0])
		enqueue(core.EntityTx{Kind: core.TxJBroadcast, JBroadcast: &core.JBroadcastTx{Preset: preset}})
		fmt.Fprintln(cmd.OutOrStdout(), "j_broadcast enqueued")
		return nil
	},
}

var jurisdictionRebroadcastCmd = &cobra.Command{
	Use:   "rebroadcast [gasBumpBps]",
	Short: "Rebroadcast the in-flight batch with bumped fees",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bps, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid gasBumpBps %q: %w", args[0], err)
		}
		enqueue(core.EntityTx{Kind: core.TxJRebroadcast, JRebroadcast: &core.JRebroadcastTx{GasBumpBps: bps}})
		fmt.Fprintln(cmd.OutOrStdout(), "j_rebroadcast enqueued")
		return nil
	},
}

var jurisdictionClearCmd = &cobra.Command{
	Use:   "clear [reason]",
	Short: "Discard the draft batch (refused while a batch is in flight)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enqueue(core.EntityTx{Kind: core.TxJClearBatch, JClearBatch: &core.JClearBatchTx{Reason: args[0]}})
		fmt.Fprintln(cmd.OutOrStdout(), "j_clear_batch enqueued")
		return nil
	},
}

func init() {
	jurisdictionCmd.AddCommand(jurisdictionBroadcastCmd, jurisdictionRebroadcastCmd, jurisdictionClearCmd)
}
