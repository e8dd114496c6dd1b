package application_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenorledger/tenord/internal/core/domain"
	"github.com/tenorledger/tenord/internal/core/ports"
)

func TestSpendValue(t *testing.T) {
	t.Parallel()

	f := newTestService(t)
	ctx := context.Background()

	_, err := f.svc.MintValue(
		ctx, f.tx("tx-card", adminIdentity), alice.ID, 100, "USD", f.now-100, f.now+1000,
	)
	require.NoError(t, err)
	f.drainEvents()

	t.Run("zero amount is rejected", func(t *testing.T) {
		_, err := f.svc.SpendValue(ctx, f.tx("tx-s0", alice), 0, "tx-card.0")
		require.True(t, domain.Is(err, domain.NonPositiveAmount))
	})

	t.Run("non owner cannot spend", func(t *testing.T) {
		_, err := f.svc.SpendValue(ctx, f.tx("tx-s1", bob), 10, "tx-card.0")
		require.True(t, domain.Is(err, domain.NotOwner))
	})

	t.Run("overdraft is rejected", func(t *testing.T) {
		_, err := f.svc.SpendValue(ctx, f.tx("tx-s2", alice), 200, "tx-card.0")
		require.True(t, domain.Is(err, domain.InsufficientFunds))
	})

	t.Run("balance is decremented in place", func(t *testing.T) {
		_, err := f.svc.SpendValue(ctx, f.tx("tx-s3", alice), 40, "tx-card.0")
		require.NoError(t, err)

		asset, err := f.repo.Assets().GetAsset(ctx, "tx-card.0")
		require.NoError(t, err)
		assert.Equal(t, uint64(60), asset.Amount)
		assert.Equal(t, domain.StateLiquid, asset.State)

		events := f.drainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, ports.SpendEvent, events[0].Type)
	})

	t.Run("zero balance flips state to spent", func(t *testing.T) {
		_, err := f.svc.SpendValue(ctx, f.tx("tx-s4", alice), 60, "tx-card.0")
		require.NoError(t, err)

		asset, err := f.repo.Assets().GetAsset(ctx, "tx-card.0")
		require.NoError(t, err)
		assert.Equal(t, uint64(0), asset.Amount)
		assert.Equal(t, domain.StateSpent, asset.State)

		// a spent asset is no longer spendable
		_, err = f.svc.SpendValue(ctx, f.tx("tx-s5", alice), 1, "tx-card.0")
		require.True(t, domain.Is(err, domain.NotLiquid))
	})
}

func TestTransferStandalone(t *testing.T) {
	t.Parallel()

	f := newTestService(t)
	ctx := context.Background()

	_, err := f.svc.MintValue(
		ctx, f.tx("tx-card", adminIdentity), alice.ID, 100, "USD", f.now-100, f.now+1000,
	)
	require.NoError(t, err)

	t.Run("non owner cannot transfer", func(t *testing.T) {
		_, err := f.svc.Transfer(ctx, f.tx("tx-t0", bob), "tx-card.0", bob.ID)
		require.True(t, domain.Is(err, domain.NotOwner))
	})

	t.Run("ownership moves, key stays", func(t *testing.T) {
		_, err := f.svc.Transfer(ctx, f.tx("tx-t1", alice), "tx-card.0", bob.ID)
		require.NoError(t, err)

		asset, err := f.repo.Assets().GetAsset(ctx, "tx-card.0")
		require.NoError(t, err)
		assert.Equal(t, bob.ID, asset.Owner)
		assert.Equal(t, uint64(100), asset.Amount)
	})

	t.Run("admin transfers on behalf of the owner", func(t *testing.T) {
		_, err := f.svc.AdminTransfer(ctx, f.tx("tx-t2", adminIdentity), bob.ID, "tx-card.0", alice.ID)
		require.NoError(t, err)

		asset, err := f.repo.Assets().GetAsset(ctx, "tx-card.0")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, asset.Owner)
	})
}

func TestRecharge(t *testing.T) {
	t.Parallel()

	f := newTestService(t)
	ctx := context.Background()

	exp := f.now + 1000
	_, err := f.svc.MintValue(
		ctx, f.tx("tx-card", adminIdentity), alice.ID, 100, "USD", f.now-100, exp,
	)
	require.NoError(t, err)

	t.Run("zero recharge is rejected", func(t *testing.T) {
		_, err := f.svc.Recharge(ctx, f.tx("tx-r0", alice), 0, 30, "tx-card.0")
		require.True(t, domain.Is(err, domain.NonPositiveAmount))
	})

	t.Run("amount and expiration are extended", func(t *testing.T) {
		_, err := f.svc.Recharge(ctx, f.tx("tx-r1", alice), 50, 30, "tx-card.0")
		require.NoError(t, err)

		asset, err := f.repo.Assets().GetAsset(ctx, "tx-card.0")
		require.NoError(t, err)
		assert.Equal(t, uint64(150), asset.Amount)
		assert.Equal(t, exp+30*24*60*60, asset.ExpirationDate)
	})

	t.Run("frozen asset is not rechargeable", func(t *testing.T) {
		err := f.repo.Assets().UpdateAssetsState(
			ctx, []string{"tx-card.0"}, domain.StateFrozen, domain.ActionFreeze,
		)
		require.NoError(t, err)

		_, err = f.svc.Recharge(ctx, f.tx("tx-r2", alice), 10, 0, "tx-card.0")
		require.True(t, domain.Is(err, domain.NotRechargeable))
	})
}

func TestUse(t *testing.T) {
	t.Parallel()

	f := newTestService(t)
	ctx := context.Background()

	utilities := map[string]string{"car-wash": "basic", "vacuum": "5min"}
	_, err := f.svc.MintUtility(
		ctx, f.tx("tx-tok", adminIdentity), alice.ID, utilities, 2, f.now-100, f.now+1000,
	)
	require.NoError(t, err)
	f.drainEvents()

	t.Run("unknown utility is rejected", func(t *testing.T) {
		_, err := f.svc.Use(ctx, f.tx("tx-u0", alice), "dry-clean", "tx-tok.0")
		require.True(t, domain.Is(err, domain.UtilityNotProvided))
	})

	t.Run("use decrements the counter", func(t *testing.T) {
		_, err := f.svc.Use(ctx, f.tx("tx-u1", alice), "car-wash", "tx-tok.0")
		require.NoError(t, err)

		asset, err := f.repo.Assets().GetAsset(ctx, "tx-tok.0")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), asset.RemainingUses)
		assert.Equal(t, "car-wash", asset.Metadata["utility"])
		assert.Equal(t, domain.StateLiquid, asset.State)

		events := f.drainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, ports.UseEvent, events[0].Type)
	})

	t.Run("last use flips state to spent", func(t *testing.T) {
		_, err := f.svc.Use(ctx, f.tx("tx-u2", alice), "vacuum", "tx-tok.0")
		require.NoError(t, err)

		asset, err := f.repo.Assets().GetAsset(ctx, "tx-tok.0")
		require.NoError(t, err)
		assert.Equal(t, uint64(0), asset.RemainingUses)
		assert.Equal(t, domain.StateSpent, asset.State)

		_, err = f.svc.Use(ctx, f.tx("tx-u3", alice), "vacuum", "tx-tok.0")
		require.True(t, domain.Is(err, domain.NotLiquid))
	})

	t.Run("zero usage limit cannot be minted", func(t *testing.T) {
		_, err := f.svc.MintUtility(
			ctx, f.tx("tx-tok2", adminIdentity), alice.ID, utilities, 0, f.now-100, f.now+1000,
		)
		require.True(t, domain.Is(err, domain.NonPositiveAmount))
	})
}

func TestStandaloneOperationsAreKindScoped(t *testing.T) {
	t.Parallel()

	f := newTestService(t)
	ctx := context.Background()

	mustMint(t, f, "tx-note", alice.ID, 1000, f.now-100, f.now+1000)
	_, err := f.svc.MintValue(
		ctx, f.tx("tx-card", adminIdentity), alice.ID, 100, "USD", f.now-100, f.now+1000,
	)
	require.NoError(t, err)

	t.Run("a banknote cannot be recharged", func(t *testing.T) {
		_, err := f.svc.Recharge(ctx, f.tx("tx-k0", bob), 5000, 0, "tx-note.0")
		require.True(t, domain.Is(err, domain.NotFound))

		note, err := f.repo.Assets().GetAsset(ctx, "tx-note.0")
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), note.Amount)
	})

	t.Run("a banknote cannot be spent in place", func(t *testing.T) {
		_, err := f.svc.SpendValue(ctx, f.tx("tx-k1", alice), 10, "tx-note.0")
		require.True(t, domain.Is(err, domain.NotFound))
	})

	t.Run("a banknote cannot be moved by standalone transfer", func(t *testing.T) {
		_, err := f.svc.Transfer(ctx, f.tx("tx-k2", alice), "tx-note.0", bob.ID)
		require.True(t, domain.Is(err, domain.NotFound))

		note, err := f.repo.Assets().GetAsset(ctx, "tx-note.0")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, note.Owner)
	})

	t.Run("a value asset cannot be used", func(t *testing.T) {
		_, err := f.svc.Use(ctx, f.tx("tx-k3", alice), "car-wash", "tx-card.0")
		require.True(t, domain.Is(err, domain.NotFound))
	})
}

func TestConcurrentSpendValue(t *testing.T) {
	t.Parallel()

	f := newTestService(t)
	ctx := context.Background()

	const balance = 50
	_, err := f.svc.MintValue(
		ctx, f.tx("tx-card", adminIdentity), alice.ID, balance, "USD", f.now-100, f.now+1000,
	)
	require.NoError(t, err)

	errs := make([]error, balance)
	var wg sync.WaitGroup
	for i := range balance {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.SpendValue(ctx, f.txAt("tx-race", f.now, alice), 1, "tx-card.0")
		}()
	}
	wg.Wait()

	// every decrement that committed is reflected in the balance, every
	// other attempt was rejected on commit
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, domain.Is(err, domain.Conflict), "unexpected error: %v", err)
	}
	require.Positive(t, succeeded)

	asset, err := f.repo.Assets().GetAsset(ctx, "tx-card.0")
	require.NoError(t, err)
	assert.Equal(t, uint64(balance-succeeded), asset.Amount)
}
