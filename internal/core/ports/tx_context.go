package ports

import "github.com/tenorledger/tenord/internal/core/domain"

// TxContext carries the per-transaction facts every operation needs: a unique
// transaction id, the transaction timestamp (unix seconds) and the invoking
// identity. It is an explicit parameter, never ambient state, so the guard
// predicates stay pure and testable.
type TxContext struct {
	TxID     string
	TxTime   int64
	Identity domain.Identity
}

// TxContextProvider mints fresh transaction contexts for incoming requests.
type TxContextProvider interface {
	NewContext(identity domain.Identity) TxContext
}
