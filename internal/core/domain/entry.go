package domain

import "encoding/json"

type EntryStatus string

const (
	EntryStatusPending  EntryStatus = "PENDING"
	EntryStatusResolved EntryStatus = "RESOLVED"
	EntryStatusExpired  EntryStatus = "EXPIRED"
)

// EntryGracePeriod is the number of seconds a cross-channel entry stays
// resolvable after the source transaction time.
const EntryGracePeriod int64 = 60

// CrossChannelEntry records value frozen on a source ledger pending
// resolution on a recipient ledger. The entry owns the frozen asset set
// while PENDING; ownership moves to the destination mint on RESOLVED and
// reverts to the client via the reclaim path on EXPIRED.
type CrossChannelEntry struct {
	EntryID         string
	ClientID        string
	SourceLedger    string
	RecipientID     string
	RecipientLedger string
	Amount          uint64
	FrozenKeys      []string
	Tenor           Tenor
	TimeoutEpoch    int64
	Status          EntryStatus
	ResolvedBy      string
}

func (e CrossChannelEntry) String() string {
	// nolint
	b, _ := json.MarshalIndent(e, "", "  ")
	return string(b)
}

func (e CrossChannelEntry) TimedOut(now int64) bool {
	return now > e.TimeoutEpoch
}
