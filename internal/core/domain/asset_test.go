package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenorledger/tenord/internal/core/domain"
)

func TestTenor(t *testing.T) {
	t.Parallel()

	tenor := domain.Tenor{EnforcementDate: 100, ExpirationDate: 200}
	assert.True(t, tenor.Valid())
	assert.False(t, domain.Tenor{EnforcementDate: 200, ExpirationDate: 100}.Valid())
	assert.False(t, domain.Tenor{EnforcementDate: 100, ExpirationDate: 100}.Valid())

	// half-open window: enforcement second in, expiration second out
	assert.False(t, tenor.Contains(99))
	assert.True(t, tenor.Contains(100))
	assert.True(t, tenor.Contains(199))
	assert.False(t, tenor.Contains(200))

	assert.Equal(t, "200+100", tenor.String())
}

func TestAssetKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "tx-abc.0", domain.AssetKey("tx-abc", 0))
	assert.Equal(t, "tx-abc.12", domain.AssetKey("tx-abc", 12))
}

func TestAssetPredicates(t *testing.T) {
	t.Parallel()

	asset := domain.Asset{
		Key:       "tx-a.0",
		Kind:      domain.KindBanknote,
		State:     domain.StateLiquid,
		Utilities: map[string]string{"parking": "zone-1"},
	}
	assert.True(t, asset.IsLiquid())
	assert.False(t, asset.IsStandalone())
	assert.True(t, asset.ProvidesUtility("parking"))
	assert.False(t, asset.ProvidesUtility("charging"))

	asset.State = domain.StateFrozen
	assert.False(t, asset.IsLiquid())

	asset.Kind = domain.KindValue
	assert.True(t, asset.IsStandalone())
	asset.Kind = domain.KindUtility
	assert.True(t, asset.IsStandalone())
}

func TestAssetWithAction(t *testing.T) {
	t.Parallel()

	asset := domain.Asset{
		Key:      "tx-a.0",
		Metadata: map[string]string{"origin": "mint-batch-1"},
	}
	tagged := asset.WithAction(domain.ActionFreeze)

	require.Equal(t, "freeze", tagged.Metadata["action"])
	assert.Equal(t, "mint-batch-1", tagged.Metadata["origin"])

	// the original metadata map is never aliased
	tagged.Metadata["origin"] = "changed"
	assert.Equal(t, "mint-batch-1", asset.Metadata["origin"])
	_, ok := asset.Metadata["action"]
	assert.False(t, ok)
}

func TestCrossChannelEntryTimedOut(t *testing.T) {
	t.Parallel()

	entry := domain.CrossChannelEntry{TimeoutEpoch: 1000}
	assert.False(t, entry.TimedOut(999))
	// the timeout second itself is still resolvable
	assert.False(t, entry.TimedOut(1000))
	assert.True(t, entry.TimedOut(1001))
}
