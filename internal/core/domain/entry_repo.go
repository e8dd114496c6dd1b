package domain

import "context"

type EntryRepository interface {
	// AddEntry fails with AssetAlreadyExists if the entry id is taken.
	AddEntry(ctx context.Context, entry CrossChannelEntry) error
	// GetEntry fails with NotFound if the id is absent.
	GetEntry(ctx context.Context, entryID string) (*CrossChannelEntry, error)
	// MarkResolved transitions PENDING -> RESOLVED atomically, recording the
	// resolving txid. Fails with AlreadyResolved if the entry is RESOLVED and
	// with EntryExpired if it is EXPIRED.
	MarkResolved(ctx context.Context, entryID, resolvedBy string) (*CrossChannelEntry, error)
	// MarkExpired transitions PENDING -> EXPIRED atomically. Fails with
	// AlreadyResolved if the entry is RESOLVED. Marking an EXPIRED entry
	// again is a no-op.
	MarkExpired(ctx context.Context, entryID string) (*CrossChannelEntry, error)
	// GetPendingBefore returns PENDING entries whose timeout is at or before
	// cutoff, in ascending entry id order.
	GetPendingBefore(ctx context.Context, cutoff int64) ([]CrossChannelEntry, error)
	Close()
}
