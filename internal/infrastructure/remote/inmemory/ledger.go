package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tenorledger/tenord/internal/core/domain"
	"github.com/tenorledger/tenord/internal/core/ports"
)

// registry connects co-hosted ledgers in process. Each named ledger exposes
// its entry store; recording and fetching go straight to the peer's store,
// each call its own transaction on the peer side.
type registry struct {
	lock  *sync.RWMutex
	peers map[string]ports.RepoManager
}

func NewRegistry() *registry {
	return &registry{
		lock:  &sync.RWMutex{},
		peers: make(map[string]ports.RepoManager),
	}
}

func (r *registry) Register(ledger string, repoManager ports.RepoManager) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.peers[ledger] = repoManager
}

func (r *registry) RecordEntry(
	ctx context.Context, ledger string, entry domain.CrossChannelEntry,
) error {
	peer, err := r.peer(ledger)
	if err != nil {
		return err
	}
	return peer.Entries().AddEntry(ctx, entry)
}

func (r *registry) FetchEntry(
	ctx context.Context, ledger, entryID string,
) (*domain.CrossChannelEntry, error) {
	peer, err := r.peer(ledger)
	if err != nil {
		return nil, err
	}
	return peer.Entries().GetEntry(ctx, entryID)
}

func (r *registry) peer(ledger string) (ports.RepoManager, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	peer, ok := r.peers[ledger]
	if !ok {
		return nil, fmt.Errorf("unknown ledger %s", ledger)
	}
	return peer, nil
}
