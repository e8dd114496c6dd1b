package sqlitedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tenorledger/tenord/internal/core/domain"
)

type assetRepository struct {
	db *sql.DB
}

func NewAssetRepository(config ...interface{}) (domain.AssetRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open asset repository: invalid config")
	}

	return &assetRepository{db}, nil
}

func (r *assetRepository) Close() {
	_ = r.db.Close()
}

const insertAsset = `
INSERT INTO assets (
	key, owner, kind, amount, currency, utilities, remaining_uses,
	enforcement_date, expiration_date, state, metadata
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectAsset = `
SELECT key, owner, kind, amount, currency, utilities, remaining_uses,
	enforcement_date, expiration_date, state, metadata
FROM assets
`

func (r *assetRepository) AddAssets(ctx context.Context, assets []domain.Asset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapConflict(err)
	}
	// nolint:all
	defer tx.Rollback()

	for _, asset := range assets {
		if err := insertAssetTx(ctx, tx, asset); err != nil {
			return err
		}
	}
	return mapConflict(tx.Commit())
}

func (r *assetRepository) GetAsset(ctx context.Context, key string) (*domain.Asset, error) {
	row := r.db.QueryRowContext(ctx, selectAsset+"WHERE key = ?", key)
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound.New("asset %s does not exist", key)
		}
		return nil, err
	}
	return asset, nil
}

func (r *assetRepository) GetAssetsByOwner(
	ctx context.Context, owner string,
) ([]domain.Asset, error) {
	rows, err := r.db.QueryContext(
		ctx, selectAsset+"WHERE owner = ? ORDER BY key ASC", owner,
	)
	if err != nil {
		return nil, err
	}
	// nolint:all
	defer rows.Close()

	assets := make([]domain.Asset, 0)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *asset)
	}
	return assets, rows.Err()
}

func (r *assetRepository) UpdateAsset(ctx context.Context, asset domain.Asset) error {
	utilities, metadata, err := encodeAssetMaps(asset)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE assets SET owner = ?, amount = ?, utilities = ?, remaining_uses = ?,
			enforcement_date = ?, expiration_date = ?, state = ?, metadata = ?
		WHERE key = ?`,
		asset.Owner, int64(asset.Amount), utilities, int64(asset.RemainingUses),
		asset.EnforcementDate, asset.ExpirationDate, string(asset.State), metadata,
		asset.Key,
	)
	if err != nil {
		return mapConflict(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.NotFound.New("asset %s does not exist", asset.Key)
	}
	return nil
}

// MutateAsset runs the select and the update in one sql transaction so the
// read can never be overwritten by a concurrent commit in between.
func (r *assetRepository) MutateAsset(
	ctx context.Context, key string, mutate func(*domain.Asset) error,
) (*domain.Asset, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapConflict(err)
	}
	// nolint:all
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, selectAsset+"WHERE key = ?", key)
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound.New("asset %s does not exist", key)
		}
		return nil, err
	}
	if err := mutate(asset); err != nil {
		return nil, err
	}

	utilities, metadata, err := encodeAssetMaps(*asset)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE assets SET owner = ?, amount = ?, utilities = ?, remaining_uses = ?,
			enforcement_date = ?, expiration_date = ?, state = ?, metadata = ?
		WHERE key = ?`,
		asset.Owner, int64(asset.Amount), utilities, int64(asset.RemainingUses),
		asset.EnforcementDate, asset.ExpirationDate, string(asset.State), metadata,
		asset.Key,
	); err != nil {
		return nil, err
	}
	if err := mapConflict(tx.Commit()); err != nil {
		return nil, err
	}
	return asset, nil
}

func (r *assetRepository) UpdateAssetsState(
	ctx context.Context, keys []string, state domain.AssetState, action string,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapConflict(err)
	}
	// nolint:all
	defer tx.Rollback()

	for _, key := range keys {
		row := tx.QueryRowContext(ctx, selectAsset+"WHERE key = ?", key)
		asset, err := scanAsset(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NotFound.New("asset %s does not exist", key)
			}
			return err
		}
		updated := asset.WithAction(action)
		updated.State = state
		_, metadata, err := encodeAssetMaps(updated)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE assets SET state = ?, metadata = ? WHERE key = ?",
			string(state), metadata, key,
		); err != nil {
			return err
		}
	}
	return mapConflict(tx.Commit())
}

func (r *assetRepository) DeleteAssets(ctx context.Context, keys []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapConflict(err)
	}
	// nolint:all
	defer tx.Rollback()

	for _, key := range keys {
		if err := deleteAssetTx(ctx, tx, key); err != nil {
			return err
		}
	}
	return mapConflict(tx.Commit())
}

func (r *assetRepository) Transfer(
	ctx context.Context, burnKeys []string, mints []domain.Asset,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapConflict(err)
	}
	// nolint:all
	defer tx.Rollback()

	for _, key := range burnKeys {
		if err := deleteAssetTx(ctx, tx, key); err != nil {
			return err
		}
	}
	for _, mint := range mints {
		if err := insertAssetTx(ctx, tx, mint); err != nil {
			return err
		}
	}
	return mapConflict(tx.Commit())
}

func insertAssetTx(ctx context.Context, tx *sql.Tx, asset domain.Asset) error {
	utilities, metadata, err := encodeAssetMaps(asset)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, insertAsset,
		asset.Key, asset.Owner, string(asset.Kind), int64(asset.Amount),
		asset.Currency, utilities, int64(asset.RemainingUses),
		asset.EnforcementDate, asset.ExpirationDate, string(asset.State), metadata,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.AssetAlreadyExists.New("asset %s already exists", asset.Key)
		}
		return err
	}
	return nil
}

func deleteAssetTx(ctx context.Context, tx *sql.Tx, key string) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM assets WHERE key = ?", key)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.NotFound.New("asset %s does not exist", key)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*domain.Asset, error) {
	var (
		a                   domain.Asset
		amount, uses        int64
		utilities, metadata string
		kind, state         string
	)
	if err := row.Scan(
		&a.Key, &a.Owner, &kind, &amount, &a.Currency, &utilities, &uses,
		&a.EnforcementDate, &a.ExpirationDate, &state, &metadata,
	); err != nil {
		return nil, err
	}
	a.Kind = domain.AssetKind(kind)
	a.State = domain.AssetState(state)
	a.Amount = uint64(amount)
	a.RemainingUses = uint64(uses)
	if len(utilities) > 0 {
		if err := json.Unmarshal([]byte(utilities), &a.Utilities); err != nil {
			return nil, err
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

func encodeAssetMaps(asset domain.Asset) (string, string, error) {
	utilities := ""
	if len(asset.Utilities) > 0 {
		b, err := json.Marshal(asset.Utilities)
		if err != nil {
			return "", "", err
		}
		utilities = string(b)
	}
	metadata := ""
	if len(asset.Metadata) > 0 {
		b, err := json.Marshal(asset.Metadata)
		if err != nil {
			return "", "", err
		}
		metadata = string(b)
	}
	return utilities, metadata, nil
}
