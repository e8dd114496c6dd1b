package domain

import "context"

type AssetRepository interface {
	// AddAssets writes new assets all-or-nothing. Fails with
	// AssetAlreadyExists if any key is already present.
	AddAssets(ctx context.Context, assets []Asset) error
	// GetAsset fails with NotFound if the key is absent.
	GetAsset(ctx context.Context, key string) (*Asset, error)
	// GetAssetsByOwner returns all assets owned by owner in ascending
	// lexicographic key order. Selection determinism depends on this
	// ordering, never on insertion or iteration order.
	GetAssetsByOwner(ctx context.Context, owner string) ([]Asset, error)
	// UpdateAsset rewrites a standalone asset in place as a single write.
	UpdateAsset(ctx context.Context, asset Asset) error
	// MutateAsset loads the asset, applies mutate and writes the result back
	// in one store transaction. A concurrent commit on the same key fails
	// with Conflict; a mutate error aborts without writing.
	MutateAsset(ctx context.Context, key string, mutate func(*Asset) error) (*Asset, error)
	// UpdateAssetsState flips the state of the given assets and tags their
	// metadata with action, atomically.
	UpdateAssetsState(ctx context.Context, keys []string, state AssetState, action string) error
	// DeleteAssets removes the given assets all-or-nothing. Fails with
	// NotFound if any key is absent.
	DeleteAssets(ctx context.Context, keys []string) error
	// Transfer deletes burnKeys and writes mints in one atomic store
	// transaction, so no partial burn/mint is ever visible.
	Transfer(ctx context.Context, burnKeys []string, mints []Asset) error
	Close()
}
