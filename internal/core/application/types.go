package application

import (
	"context"

	"github.com/tenorledger/tenord/internal/core/domain"
	"github.com/tenorledger/tenord/internal/core/ports"
)

// Service is the ledger engine: every public operation takes an explicit
// transaction context and returns a result envelope carrying the txid.
type Service interface {
	Start() error
	Stop()

	// Banknote (UTXO model) operations.
	Mint(
		ctx context.Context, tx ports.TxContext,
		userID string, amount uint64, enforcementDate, expirationDate int64,
	) (*Envelope, error)
	Burn(ctx context.Context, tx ports.TxContext, ownersAndKeys map[string][]string) (*Envelope, error)
	Spend(ctx context.Context, tx ports.TxContext, amount uint64) (*Envelope, error)
	AdminSpend(ctx context.Context, tx ports.TxContext, senderID string, amount uint64) (*Envelope, error)
	Send(ctx context.Context, tx ports.TxContext, amount uint64, recipientID string) (*Envelope, error)
	AdminSend(
		ctx context.Context, tx ports.TxContext, senderID string, amount uint64, recipientID string,
	) (*Envelope, error)
	TransferBanknotes(
		ctx context.Context, tx ports.TxContext, inputKeys []string, outputs []OutputDescriptor,
	) (*Envelope, error)
	Change(ctx context.Context, tx ports.TxContext, amount uint64) (*Envelope, error)

	// Standalone-value operations.
	MintValue(
		ctx context.Context, tx ports.TxContext,
		userID string, amount uint64, currency string, enforcementDate, expirationDate int64,
	) (*Envelope, error)
	MintUtility(
		ctx context.Context, tx ports.TxContext,
		userID string, utilities map[string]string, usageLimit uint64,
		enforcementDate, expirationDate int64,
	) (*Envelope, error)
	SpendValue(ctx context.Context, tx ports.TxContext, amount uint64, assetID string) (*Envelope, error)
	AdminSpendValue(
		ctx context.Context, tx ports.TxContext, senderID string, amount uint64, assetID string,
	) (*Envelope, error)
	Transfer(ctx context.Context, tx ports.TxContext, assetID, recipientID string) (*Envelope, error)
	AdminTransfer(
		ctx context.Context, tx ports.TxContext, senderID, assetID, recipientID string,
	) (*Envelope, error)
	Recharge(
		ctx context.Context, tx ports.TxContext, amount uint64, extendPeriodDays int64, assetID string,
	) (*Envelope, error)
	AdminRecharge(
		ctx context.Context, tx ports.TxContext, amount uint64, extendPeriodDays int64, assetID string,
	) (*Envelope, error)
	Use(ctx context.Context, tx ports.TxContext, utility, assetID string) (*Envelope, error)
	AdminUse(ctx context.Context, tx ports.TxContext, senderID, utility, assetID string) (*Envelope, error)

	// Cross-channel settlement.
	SendCrossChannelTransfer(
		ctx context.Context, tx ports.TxContext,
		amount uint64, recipientID, recipientLedger, traceLedger string,
	) (*Envelope, error)
	ReceiveCrossChannelTransfer(
		ctx context.Context, tx ports.TxContext,
		userID string, amount uint64, enforcementDate, expirationDate int64,
	) (*Envelope, error)
	CreateEntry(
		ctx context.Context, tx ports.TxContext, entry domain.CrossChannelEntry,
	) (*Envelope, error)
	AdminUnfreeze(ctx context.Context, tx ports.TxContext, assetKeys []string) (*Envelope, error)
	ResolveEntry(ctx context.Context, tx ports.TxContext, entryID string) (*Envelope, error)
	GetEntry(ctx context.Context, tx ports.TxContext, entryID string) (*Envelope, error)
	ReclaimExpiredEntry(ctx context.Context, tx ports.TxContext, entryID string) (*Envelope, error)
}

// Envelope is the uniform JSON response of every public operation.
type Envelope struct {
	Result any    `json:"result"`
	Txid   string `json:"txid"`
}

// OutputDescriptor describes one output of a raw banknote transfer.
type OutputDescriptor struct {
	Recipient       string `json:"recipient"`
	Amount          uint64 `json:"amount"`
	EnforcementDate int64  `json:"enforcementDate"`
	ExpirationDate  int64  `json:"expirationDate"`
}

// TransferResult lists the burned inputs and minted outputs of a banknote
// transfer.
type TransferResult struct {
	Inputs  []domain.Asset `json:"inputs"`
	Outputs []domain.Asset `json:"outputs"`
}

// BurnResult lists the assets destroyed by a Burn.
type BurnResult struct {
	BurntInputs []domain.Asset `json:"burntInputs"`
}

// SettlementResult is the outcome of the settlement freeze phase.
type SettlementResult struct {
	FrozenAssets []domain.Asset           `json:"frozenAssets"`
	Entry        domain.CrossChannelEntry `json:"entry"`
}
