package db_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenorledger/tenord/internal/core/domain"
	"github.com/tenorledger/tenord/internal/core/ports"
	"github.com/tenorledger/tenord/internal/infrastructure/db"
)

func TestRepoManager(t *testing.T) {
	stores := map[string]func(t *testing.T) ports.RepoManager{
		"badger": func(t *testing.T) ports.RepoManager {
			svc, err := db.NewService(db.ServiceConfig{
				DataStoreType:   "badger",
				DataStoreConfig: []interface{}{"", nil},
			})
			require.NoError(t, err)
			return svc
		},
		"sqlite": func(t *testing.T) ports.RepoManager {
			svc, err := db.NewService(db.ServiceConfig{
				DataStoreType:   "sqlite",
				DataStoreConfig: []interface{}{t.TempDir()},
			})
			require.NoError(t, err)
			return svc
		},
	}

	for name, factory := range stores {
		t.Run(name, func(t *testing.T) {
			svc := factory(t)
			t.Cleanup(svc.Close)

			testAssetRepository(t, svc)
			testMutateAsset(t, svc)
			testTransferAtomicity(t, svc)
			testEntryRepository(t, svc)
		})
	}
}

func testAssetRepository(t *testing.T, svc ports.RepoManager) {
	ctx := context.Background()
	repo := svc.Assets()

	assets := []domain.Asset{
		{
			Key: "tx-b.0", Owner: "alice", Kind: domain.KindBanknote,
			Amount: 200, Currency: "EUR",
			EnforcementDate: 100, ExpirationDate: 1000,
			State:    domain.StateLiquid,
			Metadata: map[string]string{"action": domain.ActionMint},
		},
		{
			Key: "tx-a.0", Owner: "alice", Kind: domain.KindUtility,
			Utilities:       map[string]string{"parking": "zone-1"},
			RemainingUses:   3,
			EnforcementDate: 100, ExpirationDate: 1000,
			State: domain.StateLiquid,
		},
		{
			Key: "tx-c.0", Owner: "bob", Kind: domain.KindValue,
			Amount: 500, Currency: "EUR",
			EnforcementDate: 100, ExpirationDate: 1000,
			State: domain.StateLiquid,
		},
	}
	require.NoError(t, repo.AddAssets(ctx, assets))

	t.Run("duplicate key is rejected", func(t *testing.T) {
		err := repo.AddAssets(ctx, []domain.Asset{assets[0]})
		require.True(t, domain.Is(err, domain.AssetAlreadyExists))
	})

	t.Run("get asset", func(t *testing.T) {
		got, err := repo.GetAsset(ctx, "tx-a.0")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Owner)
		assert.Equal(t, domain.KindUtility, got.Kind)
		assert.Equal(t, uint64(3), got.RemainingUses)
		assert.Equal(t, "zone-1", got.Utilities["parking"])

		_, err = repo.GetAsset(ctx, "missing")
		require.True(t, domain.Is(err, domain.NotFound))
	})

	t.Run("assets by owner come back in key order", func(t *testing.T) {
		got, err := repo.GetAssetsByOwner(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "tx-a.0", got[0].Key)
		assert.Equal(t, "tx-b.0", got[1].Key)

		got, err = repo.GetAssetsByOwner(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("update in place", func(t *testing.T) {
		asset, err := repo.GetAsset(ctx, "tx-c.0")
		require.NoError(t, err)
		asset.Amount = 300
		require.NoError(t, repo.UpdateAsset(ctx, *asset))

		got, err := repo.GetAsset(ctx, "tx-c.0")
		require.NoError(t, err)
		assert.Equal(t, uint64(300), got.Amount)

		missing := *asset
		missing.Key = "missing"
		err = repo.UpdateAsset(ctx, missing)
		require.True(t, domain.Is(err, domain.NotFound))
	})

	t.Run("state flips carry the action tag", func(t *testing.T) {
		err := repo.UpdateAssetsState(
			ctx, []string{"tx-a.0", "tx-b.0"}, domain.StateFrozen, domain.ActionFreeze,
		)
		require.NoError(t, err)

		for _, key := range []string{"tx-a.0", "tx-b.0"} {
			got, err := repo.GetAsset(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, domain.StateFrozen, got.State)
			assert.Equal(t, "freeze", got.Metadata["action"])
		}

		err = repo.UpdateAssetsState(
			ctx, []string{"tx-a.0", "missing"}, domain.StateLiquid, domain.ActionUnfreeze,
		)
		require.True(t, domain.Is(err, domain.NotFound))
	})

	t.Run("delete assets", func(t *testing.T) {
		require.NoError(t, repo.DeleteAssets(ctx, []string{"tx-c.0"}))
		_, err := repo.GetAsset(ctx, "tx-c.0")
		require.True(t, domain.Is(err, domain.NotFound))

		err = repo.DeleteAssets(ctx, []string{"tx-c.0"})
		require.True(t, domain.Is(err, domain.NotFound))
	})
}

func testMutateAsset(t *testing.T, svc ports.RepoManager) {
	ctx := context.Background()
	repo := svc.Assets()

	card := domain.Asset{
		Key: "tx-m.0", Owner: "alice", Kind: domain.KindValue,
		Amount: 100, Currency: "EUR",
		EnforcementDate: 100, ExpirationDate: 1000,
		State: domain.StateLiquid,
	}
	require.NoError(t, repo.AddAssets(ctx, []domain.Asset{card}))

	t.Run("mutation is applied and returned", func(t *testing.T) {
		updated, err := repo.MutateAsset(ctx, "tx-m.0", func(asset *domain.Asset) error {
			asset.Amount -= 30
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(70), updated.Amount)

		got, err := repo.GetAsset(ctx, "tx-m.0")
		require.NoError(t, err)
		assert.Equal(t, uint64(70), got.Amount)
	})

	t.Run("mutate error aborts without writing", func(t *testing.T) {
		wantErr := domain.InsufficientFunds.New("not enough")
		_, err := repo.MutateAsset(ctx, "tx-m.0", func(asset *domain.Asset) error {
			asset.Amount = 0
			return wantErr
		})
		require.True(t, domain.Is(err, domain.InsufficientFunds))

		got, err := repo.GetAsset(ctx, "tx-m.0")
		require.NoError(t, err)
		assert.Equal(t, uint64(70), got.Amount)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := repo.MutateAsset(ctx, "missing", func(asset *domain.Asset) error {
			return nil
		})
		require.True(t, domain.Is(err, domain.NotFound))
	})

	t.Run("concurrent decrements never lose updates", func(t *testing.T) {
		const workers = 20
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = repo.MutateAsset(ctx, "tx-m.0", func(asset *domain.Asset) error {
					asset.Amount--
					return nil
				})
			}()
		}
		wg.Wait()

		succeeded := uint64(0)
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			require.True(t, domain.Is(err, domain.Conflict), "unexpected error: %v", err)
		}

		got, err := repo.GetAsset(ctx, "tx-m.0")
		require.NoError(t, err)
		assert.Equal(t, uint64(70)-succeeded, got.Amount)
	})

	require.NoError(t, repo.DeleteAssets(ctx, []string{"tx-m.0"}))
}

func testTransferAtomicity(t *testing.T, svc ports.RepoManager) {
	ctx := context.Background()
	repo := svc.Assets()

	input := domain.Asset{
		Key: "tx-in.0", Owner: "alice", Kind: domain.KindBanknote,
		Amount:          100,
		EnforcementDate: 100, ExpirationDate: 1000,
		State: domain.StateLiquid,
	}
	require.NoError(t, repo.AddAssets(ctx, []domain.Asset{input}))

	mint := domain.Asset{
		Key: "tx-out.0", Owner: "bob", Kind: domain.KindBanknote,
		Amount:          100,
		EnforcementDate: 100, ExpirationDate: 1000,
		State: domain.StateLiquid,
	}

	t.Run("burn of a missing key mints nothing", func(t *testing.T) {
		err := repo.Transfer(ctx, []string{"tx-in.0", "missing"}, []domain.Asset{mint})
		require.True(t, domain.Is(err, domain.NotFound))

		// the valid burn key must still exist
		got, err := repo.GetAsset(ctx, "tx-in.0")
		require.NoError(t, err)
		assert.Equal(t, domain.StateLiquid, got.State)

		_, err = repo.GetAsset(ctx, "tx-out.0")
		require.True(t, domain.Is(err, domain.NotFound))
	})

	t.Run("burn and mint commit together", func(t *testing.T) {
		require.NoError(t, repo.Transfer(ctx, []string{"tx-in.0"}, []domain.Asset{mint}))

		_, err := repo.GetAsset(ctx, "tx-in.0")
		require.True(t, domain.Is(err, domain.NotFound))

		got, err := repo.GetAsset(ctx, "tx-out.0")
		require.NoError(t, err)
		assert.Equal(t, "bob", got.Owner)
	})
}

func testEntryRepository(t *testing.T, svc ports.RepoManager) {
	ctx := context.Background()
	repo := svc.Entries()

	newEntry := func(id string, timeout int64) domain.CrossChannelEntry {
		return domain.CrossChannelEntry{
			EntryID:         id,
			ClientID:        "alice",
			SourceLedger:    "channel0",
			RecipientID:     "bob",
			RecipientLedger: "channel1",
			Amount:          100,
			FrozenKeys:      []string{id + ".0"},
			Tenor:           domain.Tenor{EnforcementDate: 100, ExpirationDate: 1000},
			TimeoutEpoch:    timeout,
			Status:          domain.EntryStatusPending,
		}
	}

	require.NoError(t, repo.AddEntry(ctx, newEntry("entry-b", 500)))
	require.NoError(t, repo.AddEntry(ctx, newEntry("entry-a", 400)))
	require.NoError(t, repo.AddEntry(ctx, newEntry("entry-c", 900)))

	t.Run("duplicate entry id is rejected", func(t *testing.T) {
		err := repo.AddEntry(ctx, newEntry("entry-a", 400))
		require.True(t, domain.Is(err, domain.AssetAlreadyExists))
	})

	t.Run("get entry round trips", func(t *testing.T) {
		got, err := repo.GetEntry(ctx, "entry-a")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.ClientID)
		assert.Equal(t, []string{"entry-a.0"}, got.FrozenKeys)
		assert.Equal(t, domain.EntryStatusPending, got.Status)

		_, err = repo.GetEntry(ctx, "missing")
		require.True(t, domain.Is(err, domain.NotFound))
	})

	t.Run("pending entries before cutoff in id order", func(t *testing.T) {
		got, err := repo.GetPendingBefore(ctx, 500)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "entry-a", got[0].EntryID)
		assert.Equal(t, "entry-b", got[1].EntryID)
	})

	t.Run("resolution is a one-shot transition", func(t *testing.T) {
		resolved, err := repo.MarkResolved(ctx, "entry-a", "tx-resolve")
		require.NoError(t, err)
		assert.Equal(t, domain.EntryStatusResolved, resolved.Status)
		assert.Equal(t, "tx-resolve", resolved.ResolvedBy)

		_, err = repo.MarkResolved(ctx, "entry-a", "tx-resolve-2")
		require.True(t, domain.Is(err, domain.AlreadyResolved))

		_, err = repo.MarkExpired(ctx, "entry-a")
		require.True(t, domain.Is(err, domain.AlreadyResolved))
	})

	t.Run("expiry is idempotent", func(t *testing.T) {
		expired, err := repo.MarkExpired(ctx, "entry-b")
		require.NoError(t, err)
		assert.Equal(t, domain.EntryStatusExpired, expired.Status)

		again, err := repo.MarkExpired(ctx, "entry-b")
		require.NoError(t, err)
		assert.Equal(t, domain.EntryStatusExpired, again.Status)

		_, err = repo.MarkResolved(ctx, "entry-b", "tx-late")
		require.True(t, domain.Is(err, domain.EntryExpired))
	})

	t.Run("settled entries leave the pending set", func(t *testing.T) {
		got, err := repo.GetPendingBefore(ctx, 1000)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "entry-c", got[0].EntryID)
	})
}
