package ports

import "context"

const (
	MintEvent       EventType = "MintEvent"
	BurnEvent       EventType = "BurnEvent"
	SpendEvent      EventType = "SpendEvent"
	SendEvent       EventType = "SendEvent"
	UseEvent        EventType = "UseEvent"
	MintFrozenEvent EventType = "MintFrozenEvent"
)

type EventType string

type Event struct {
	Type    EventType
	Txid    string
	Payload any
}

// EventPublisher is the sink for per-transaction events. Publication is
// best-effort bookkeeping: a failing sink never aborts the transaction.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
