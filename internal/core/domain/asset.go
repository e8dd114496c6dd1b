package domain

import (
	"encoding/json"
	"fmt"
)

type AssetKind string

const (
	// Banknote assets follow the UTXO model: consumed in full on spend and
	// replaced by new output records.
	KindBanknote AssetKind = "BANKNOTE"
	// Value assets are standalone records whose balance is mutated in place.
	KindValue AssetKind = "VALUE"
	// Utility assets are standalone records carrying a utility set and a
	// remaining-uses counter.
	KindUtility AssetKind = "UTILITY"
)

type AssetState string

const (
	StateLiquid AssetState = "LIQUID"
	StateFrozen AssetState = "FROZEN"
	StateSpent  AssetState = "SPENT"
)

const (
	ActionMint     = "mint"
	ActionTransfer = "transfer"
	ActionSpend    = "spend"
	ActionUse      = "use"
	ActionRecharge = "recharge"
	ActionFreeze   = "freeze"
	ActionUnfreeze = "unfreeze"
)

// Tenor is the validity window of an asset: spendable in
// [EnforcementDate, ExpirationDate), both unix seconds.
type Tenor struct {
	EnforcementDate int64
	ExpirationDate  int64
}

func (t Tenor) Valid() bool {
	return t.EnforcementDate < t.ExpirationDate
}

func (t Tenor) Contains(now int64) bool {
	return now >= t.EnforcementDate && now < t.ExpirationDate
}

// String is used as a deterministic grouping key when building per-tenor
// transfer outputs.
func (t Tenor) String() string {
	return fmt.Sprintf("%d+%d", t.ExpirationDate, t.EnforcementDate)
}

// AssetKey returns the storage key of the i-th output of a transaction.
func AssetKey(txid string, index int) string {
	return fmt.Sprintf("%s.%d", txid, index)
}

type Asset struct {
	Key             string
	Owner           string
	Kind            AssetKind
	Amount          uint64
	Currency        string
	Utilities       map[string]string
	RemainingUses   uint64
	EnforcementDate int64
	ExpirationDate  int64
	State           AssetState
	Metadata        map[string]string
}

func (a Asset) String() string {
	// nolint
	b, _ := json.MarshalIndent(a, "", "  ")
	return string(b)
}

func (a Asset) Tenor() Tenor {
	return Tenor{EnforcementDate: a.EnforcementDate, ExpirationDate: a.ExpirationDate}
}

func (a Asset) IsLiquid() bool {
	return a.State == StateLiquid
}

func (a Asset) IsStandalone() bool {
	return a.Kind == KindValue || a.Kind == KindUtility
}

func (a Asset) ProvidesUtility(utility string) bool {
	_, ok := a.Utilities[utility]
	return ok
}

// WithAction returns a copy of the asset with the audit action tag set,
// cloning the metadata map so the stored record is never aliased.
func (a Asset) WithAction(action string) Asset {
	md := make(map[string]string, len(a.Metadata)+1)
	for k, v := range a.Metadata {
		md[k] = v
	}
	md["action"] = action
	a.Metadata = md
	return a
}
