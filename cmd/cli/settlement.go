package cli

// settlement.go – Settlement Workspace commands (spec.md §4.2/§4.3's
// settle_propose/update/approve/execute/reject, delegated to the named
// account's SW).

import (
	"fmt"

	"github.com/spf13/cobra"

	core "channel-console/core"
)

var settlementCmd = &cobra.Command{
	Use:   "settlement",
	Short: "Manage settlement workspaces",
}

// enqueueSettlementOps emits settle_propose if the named account has no open
// workspace yet, and settle_update otherwise (spec.md §4.2: only
// settle_propose may create version 1; every later change is settle_update).
func enqueueSettlementOps(cp core.EntityId, ops []core.SettlementOp) (core.EntityTxKind, error) {
	e, ok := App.Entity(SelfEntity)
	if !ok {
		return "", fmt.Errorf("self entity %s not registered", SelfEntity.String())
	}
	a, ok := e.Accounts[cp]
	if !ok {
		return "", fmt.Errorf("no account with %s", cp.String())
	}
	if a.HasWorkspace() {
		enqueue(core.EntityTx{Kind: core.TxSettleUpdate, SettleUpdate: &core.SettleUpdateTx{Counterparty: cp, Ops: ops}})
		return core.TxSettleUpdate, nil
	}
	enqueue(core.EntityTx{Kind: core.TxSettlePropose, SettlePropose: &core.SettleProposeTx{Counterparty: cp, Ops: ops}})
	return core.TxSettlePropose, nil
}

var settlementR2CCmd = &cobra.Command{
	Use:   "propose-r2c [counterparty] [token] [amount]",
	Short: "Draft a reserve-to-collateral settlement op",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cp, err := parseEntityId(args[0])
		if err != nil {
			return err
		}
		token, err := parseTokenId(args[1])
		if err != nil {
			return err
		}
		amt, err := parseAmount(args[2])
		if err != nil {
			return err
		}
		kind, err := enqueueSettlementOps(cp, []core.SettlementOp{{Kind: core.SettleR2C, R2C: &core.R2COp{Token: token, Amount: amt}}})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (r2c) enqueued\n", kind)
		return nil
	},
}

var settlementForgiveCmd = &cobra.Command{
	Use:   "propose-forgive [counterparty] [token]",
	Short: "Draft a forgive settlement op for a token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cp, err := parseEntityId(args[0])
		if err != nil {
			return err
		}
		token, err := parseTokenId(args[1])
		if err != nil {
			return err
		}
		kind, err := enqueueSettlementOps(cp, []core.SettlementOp{{Kind: core.SettleForgive, Forgive: &core.ForgiveOp{Token: token}}})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (forgive) enqueued\n", kind)
		return nil
	},
}

var settlementApproveCmd = &cobra.Command{
	Use:   "approve [counterparty] [signer]",
	Short: "Co-sign the current workspace version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cp, err := parseEntityId(args[0])
		if err != nil {
			return err
		}
		signer, err := parseSignerId(args[1])
		if err != nil {
			return err
		}
		enqueue(core.EntityTx{Kind: core.TxSettleApprove, SettleApprove: &core.SettleApproveTx{Counterparty: cp, Signer: signer}})
		fmt.Fprintln(cmd.OutOrStdout(), "settle_approve enqueued")
		return nil
	},
}

var settlementExecuteCmd = &cobra.Command{
	Use:   "execute [counterparty]",
	Short: "Submit a ready workspace as an account_settle tx",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cp, err := parseEntityId(args[0])
		if err != nil {
			return err
		}
		enqueue(core.EntityTx{Kind: core.TxSettleExecute, SettleExecute: &core.SettleExecuteTx{Counterparty: cp}})
		fmt.Fprintln(cmd.OutOrStdout(), "settle_execute enqueued")
		return nil
	},
}

var settlementRejectCmd = &cobra.Command{
	Use:   "reject [counterparty]",
	Short: "Cancel the pending workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cp, err := parseEntityId(args[0])
		if err != nil {
			return err
		}
		enqueue(core.EntityTx{Kind: core.TxSettleReject, SettleReject: &core.SettleRejectTx{Counterparty: cp}})
		fmt.Fprintln(cmd.OutOrStdout(), "settle_reject enqueued")
		return nil
	},
}

func init() {
	settlementCmd.AddCommand(settlementR2CCmd, settlementForgiveCmd, settlementApproveCmd, settlementExecuteCmd, settlementRejectCmd)
}
