package txcontext

import (
	"time"

	"github.com/google/uuid"
	"github.com/tenorledger/tenord/internal/core/domain"
	"github.com/tenorledger/tenord/internal/core/ports"
)

type provider struct {
	now func() time.Time
}

// NewProvider returns a TxContextProvider backed by the wall clock and
// random uuids.
func NewProvider() ports.TxContextProvider {
	return &provider{now: time.Now}
}

// NewProviderWithClock fixes the clock, used by tests to pin transaction
// times.
func NewProviderWithClock(now func() time.Time) ports.TxContextProvider {
	return &provider{now: now}
}

func (p *provider) NewContext(identity domain.Identity) ports.TxContext {
	return ports.TxContext{
		TxID:     uuid.NewString(),
		TxTime:   p.now().Unix(),
		Identity: identity,
	}
}
