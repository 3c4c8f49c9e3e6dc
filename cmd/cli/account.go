package cli

// account.go – account-lifecycle commands (spec.md §4.3's openAccount,
// direct_payment, set_credit_limit, deposit_collateral) exposed through the
// §6.2 enqueueRuntimeInput ingress surface.

import (
	"fmt"

	"github.com/spf13/cobra"

	core "channel-console/core"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage bilateral accounts",
}

var accountOpenCmd = &cobra.Command{
	Use:   "open [counterparty]",
	Short: "Open an account with a counterparty",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cp, err := parseEntityId(args[0])
		if err != nil {
			return err
		}
		enqueue(core.EntityTx{Kind: core.TxOpenAccount, OpenAccount: &core.OpenAccountTx{TargetEntityId: cp}})
		fmt.Fprintln(cmd.OutOrStdout(), "open_account enqueued")
		return nil
	},
}

var accountPayCmd = &cobra.Command{
	Use:   "pay [counterparty] [token] [amount]",
	Short: "Queue a direct payment on an account",
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
		enqueue(core.EntityTx{Kind: core.TxDirectPaymentE, DirectPayment: &core.DirectPaymentEntityTx{
			Counterparty: cp, Token: token, Amount: amt,
		}})
		fmt.Fprintln(cmd.OutOrStdout(), "direct_payment enqueued")
		return nil
	},
}

var accountCreditCmd = &cobra.Command{
	Use:   "set-credit-limit [counterparty] [token] [side:left|right] [amount]",
	Short: "Set a credit limit on an account",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		cp, err := parseEntityId(args[0])
		if err != nil {
			return err
		}
		token, err := parseTokenId(args[1])
		if err != nil {
			return err
		}
		side := core.CreditSide(args[2])
		amt, err := parseAmount(args[3])
		if err != nil {
			return err
		}
		enqueue(core.EntityTx{Kind: core.TxSetCreditLimitE, SetCreditLimit: &core.SetCreditLimitEntityTx{
			Counterparty: cp, Token: token, Side: side, Amount: amt,
		}})
		fmt.Fprintln(cmd.OutOrStdout(), "set_credit_limit enqueued")
		return nil
	},
}

var accountDepositCmd = &cobra.Command{
	Use:   "deposit-collateral [counterparty] [token] [amount]",
	Short: "Move reserve balance into an account's collateral",
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
		enqueue(core.EntityTx{Kind: core.TxDepositCollateral, DepositCollateral: &core.DepositCollateralTx{
			Counterparty: cp, Token: token, Amount: amt,
		}})
		fmt.Fprintln(cmd.OutOrStdout(), "deposit_collateral enqueued")
		return nil
	},
}

var accountShowCmd = &cobra.Command{
	Use:   "show [counterparty]",
	Short: "Print the current derived delta view for an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cp, err := parseEntityId(args[0])
		if err != nil {
			return err
		}
		e, ok := App.Entity(SelfEntity)
		if !ok {
			return fmt.Errorf("self entity %s not registered", SelfEntity.String())
		}
		a, ok := e.Accounts[cp]
		if !ok {
			return fmt.Errorf("no account with %s", cp.String())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "status=%s height=%d\n", a.Status(), a.CurrentFrame().Height)
		for _, tok := range a.CurrentFrame().TokenIds {
			v := a.DeltaView(tok, SelfEntity)
			fmt.Fprintf(cmd.OutOrStdout(), "token=%d out=%s in=%s\n", tok, v.OutCapacity(), v.InCapacity())
		}
		return nil
	},
}

func enqueue(txs ...core.EntityTx) {
	App.EnqueueRuntimeInput([]core.RuntimeInput{{EntityId: SelfEntity, Txs: txs}})
}

func init() {
	accountCmd.AddCommand(accountOpenCmd, accountPayCmd, accountCreditCmd, accountDepositCmd, accountShowCmd)
}
