package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/tenorledger/tenord/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const assetStoreDir = "assets"

type assetRepository struct {
	store *badgerhold.Store
}

func NewAssetRepository(config ...interface{}) (domain.AssetRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, assetStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset store: %s", err)
	}

	return &assetRepository{store}, nil
}

func (r *assetRepository) Close() {
	// nolint:all
	r.store.Close()
}

func (r *assetRepository) AddAssets(ctx context.Context, assets []domain.Asset) error {
	tx := r.store.Badger().NewTransaction(true)
	defer tx.Discard()

	for _, asset := range assets {
		if err := r.store.TxInsert(tx, asset.Key, asset); err != nil {
			if errors.Is(err, badgerhold.ErrKeyExists) {
				return domain.AssetAlreadyExists.New("asset %s already exists", asset.Key)
			}
			return err
		}
	}
	return mapConflict(tx.Commit())
}

func (r *assetRepository) GetAsset(ctx context.Context, key string) (*domain.Asset, error) {
	var asset domain.Asset
	if err := r.store.Get(key, &asset); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.NotFound.New("asset %s does not exist", key)
		}
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) GetAssetsByOwner(
	ctx context.Context, owner string,
) ([]domain.Asset, error) {
	var assets []domain.Asset
	query := badgerhold.Where("Owner").Eq(owner)
	if err := r.store.Find(&assets, query); err != nil {
		return nil, err
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Key < assets[j].Key
	})
	return assets, nil
}

func (r *assetRepository) UpdateAsset(ctx context.Context, asset domain.Asset) error {
	if err := r.store.Update(asset.Key, asset); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return domain.NotFound.New("asset %s does not exist", asset.Key)
		}
		return mapConflict(err)
	}
	return nil
}

// MutateAsset spans the read and the write with one badger transaction so a
// concurrent commit on the same key is rejected instead of overwritten.
func (r *assetRepository) MutateAsset(
	ctx context.Context, key string, mutate func(*domain.Asset) error,
) (*domain.Asset, error) {
	tx := r.store.Badger().NewTransaction(true)
	defer tx.Discard()

	var asset domain.Asset
	if err := r.store.TxGet(tx, key, &asset); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.NotFound.New("asset %s does not exist", key)
		}
		return nil, err
	}
	if err := mutate(&asset); err != nil {
		return nil, err
	}
	if err := r.store.TxUpdate(tx, key, asset); err != nil {
		return nil, err
	}
	if err := mapConflict(tx.Commit()); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) UpdateAssetsState(
	ctx context.Context, keys []string, state domain.AssetState, action string,
) error {
	tx := r.store.Badger().NewTransaction(true)
	defer tx.Discard()

	for _, key := range keys {
		var asset domain.Asset
		if err := r.store.TxGet(tx, key, &asset); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return domain.NotFound.New("asset %s does not exist", key)
			}
			return err
		}
		asset.State = state
		if asset.Metadata == nil {
			asset.Metadata = make(map[string]string)
		}
		asset.Metadata["action"] = action
		if err := r.store.TxUpdate(tx, key, asset); err != nil {
			return err
		}
	}
	return mapConflict(tx.Commit())
}

func (r *assetRepository) DeleteAssets(ctx context.Context, keys []string) error {
	tx := r.store.Badger().NewTransaction(true)
	defer tx.Discard()

	for _, key := range keys {
		if err := r.store.TxDelete(tx, key, domain.Asset{}); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return domain.NotFound.New("asset %s does not exist", key)
			}
			return err
		}
	}
	return mapConflict(tx.Commit())
}

// Transfer runs the burn and the mint in one badger transaction. A commit
// conflict surfaces as Conflict and is never retried here, callers decide
// whether retrying is safe.
func (r *assetRepository) Transfer(
	ctx context.Context, burnKeys []string, mints []domain.Asset,
) error {
	tx := r.store.Badger().NewTransaction(true)
	defer tx.Discard()

	for _, key := range burnKeys {
		if err := r.store.TxDelete(tx, key, domain.Asset{}); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return domain.NotFound.New("asset %s does not exist", key)
			}
			return err
		}
	}
	for _, mint := range mints {
		if err := r.store.TxInsert(tx, mint.Key, mint); err != nil {
			if errors.Is(err, badgerhold.ErrKeyExists) {
				return domain.AssetAlreadyExists.New("asset %s already exists", mint.Key)
			}
			return err
		}
	}
	return mapConflict(tx.Commit())
}

func mapConflict(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrConflict) {
		return domain.Conflict.Wrap(err)
	}
	return err
}
