package core

// entity_tx.go – the EntityTx sum type consumed by the Entity Replicated
// Machine (spec.md §4.3 "Transactions"). Each variant is applied in strict
// insertion order against the owning EntityState.

type EntityTxKind string

const (
	TxOpenAccount        EntityTxKind = "open_account"
	TxDirectPaymentE     EntityTxKind = "direct_payment"
	TxExtendCredit       EntityTxKind = "extend_credit"
	TxSetCreditLimitE    EntityTxKind = "set_credit_limit"
	TxDepositCollateral  EntityTxKind = "deposit_collateral"
	TxRequestWithdrawal  EntityTxKind = "request_withdrawal"
	TxReserveToReserve   EntityTxKind = "reserve_to_reserve"
	TxSettlePropose      EntityTxKind = "settle_propose"
	TxSettleUpdate       EntityTxKind = "settle_update"
	TxSettleApprove      EntityTxKind = "settle_approve"
	TxSettleExecute      EntityTxKind = "settle_execute"
	TxSettleReject       EntityTxKind = "settle_reject"
	TxDisputeStart       EntityTxKind = "dispute_start"
	TxDisputeFinalize    EntityTxKind = "dispute_finalize"
	TxJBroadcast         EntityTxKind = "j_broadcast"
	TxJRebroadcast       EntityTxKind = "j_rebroadcast"
	TxJClearBatch        EntityTxKind = "j_clear_batch"
	TxProfileUpdate      EntityTxKind = "profile_update"
)

type OpenAccountTx struct {
	TargetEntityId  EntityId
	CreditAmount    *Amount
	TokenId         *TokenId
	RebalancePolicy string
}

type DirectPaymentEntityTx struct {
	Counterparty EntityId
	Token        TokenId
	Amount       Amount
	Description  string
}

type ExtendCreditTx struct {
	Counterparty EntityId
	Token        TokenId
	Side         CreditSide
	Amount       Amount // amount to add to the current limit
}

type SetCreditLimitEntityTx struct {
	Counterparty EntityId
	Token        TokenId
	Side         CreditSide
	Amount       Amount
}

type DepositCollateralTx struct {
	Counterparty EntityId
	Token        TokenId
	Amount       Amount
}

type RequestWithdrawalTx struct {
	Counterparty EntityId
	Token        TokenId
	Amount       Amount
}

type ReserveToReserveTx struct {
	ToEntity EntityId
	Token    TokenId
	Amount   Amount
}

type SettleProposeTx struct {
	Counterparty EntityId
	Ops          []SettlementOp
	Signer       SignerId
}

type SettleUpdateTx struct {
	Counterparty EntityId
	Ops          []SettlementOp
	Signer       SignerId
}

type SettleApproveTx struct {
	Counterparty EntityId
	Signer       SignerId
}

type SettleExecuteTx struct {
	Counterparty EntityId
}

type SettleRejectTx struct {
	Counterparty EntityId
}

type DisputeStartTx struct {
	Counterparty EntityId
}

type DisputeFinalizeTx struct {
	Counterparty EntityId
}

type JBroadcastTx struct {
	Preset    FeePreset
	Overrides *FeeOverrides
}

type JRebroadcastTx struct {
	GasBumpBps int
}

type JClearBatchTx struct {
	Reason string
}

type ProfileUpdateTx struct {
	Profile Profile
}

// EntityTx is a single instruction queued into an entity's inbox.
type EntityTx struct {
	Kind   EntityTxKind
	Signer SignerId

	OpenAccount       *OpenAccountTx          `json:",omitempty"`
	DirectPayment     *DirectPaymentEntityTx  `json:",omitempty"`
	ExtendCredit      *ExtendCreditTx         `json:",omitempty"`
	SetCreditLimit    *SetCreditLimitEntityTx `json:",omitempty"`
	DepositCollateral *DepositCollateralTx    `json:",omitempty"`
	RequestWithdrawal *RequestWithdrawalTx    `json:",omitempty"`
	ReserveToReserve  *ReserveToReserveTx     `json:",omitempty"`
	SettlePropose     *SettleProposeTx        `json:",omitempty"`
	SettleUpdate      *SettleUpdateTx         `json:",omitempty"`
	SettleApprove     *SettleApproveTx        `json:",omitempty"`
	SettleExecute     *SettleExecuteTx        `json:",omitempty"`
	SettleReject      *SettleRejectTx         `json:",omitempty"`
	DisputeStart      *DisputeStartTx         `json:",omitempty"`
	DisputeFinalize   *DisputeFinalizeTx      `json:",omitempty"`
	JBroadcast        *JBroadcastTx           `json:",omitempty"`
	JRebroadcast      *JRebroadcastTx         `json:",omitempty"`
	JClearBatch       *JClearBatchTx          `json:",omitempty"`
	ProfileUpdate     *ProfileUpdateTx        `json:",omitempty"`
}
