package inmemory

import (
	"context"
	"sync"

	"github.com/tenorledger/tenord/internal/core/ports"
)

// publisher fans events out to subscriber channels. A slow subscriber drops
// events instead of blocking the publishing transaction.
type publisher struct {
	lock        *sync.RWMutex
	subscribers []chan ports.Event
	closed      bool
}

func NewPublisher() *publisher {
	return &publisher{lock: &sync.RWMutex{}}
}

func (p *publisher) Publish(ctx context.Context, event ports.Event) error {
	p.lock.RLock()
	defer p.lock.RUnlock()

	if p.closed {
		return nil
	}
	for _, sub := range p.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
	return nil
}

// Subscribe returns a buffered channel receiving every event published from
// now on.
func (p *publisher) Subscribe() <-chan ports.Event {
	p.lock.Lock()
	defer p.lock.Unlock()

	ch := make(chan ports.Event, 128)
	p.subscribers = append(p.subscribers, ch)
	return ch
}

func (p *publisher) Close() {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for _, sub := range p.subscribers {
		close(sub)
	}
	p.subscribers = nil
}
