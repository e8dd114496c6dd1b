package ports

import (
	"context"

	"github.com/tenorledger/tenord/internal/core/domain"
)

// RemoteLedger is the invocation channel towards another ledger (channel).
// The two sides never share state: each call is an independent transaction
// committed on the remote side.
type RemoteLedger interface {
	// RecordEntry registers a cross-channel entry on the named trace ledger
	// for mutual-agreement auditing. Advisory: failures are logged, not fatal.
	RecordEntry(ctx context.Context, ledger string, entry domain.CrossChannelEntry) error
	// FetchEntry reads an entry recorded on the named ledger.
	FetchEntry(ctx context.Context, ledger, entryID string) (*domain.CrossChannelEntry, error)
}
