package application

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/tenorledger/tenord/internal/core/domain"
	"github.com/tenorledger/tenord/internal/core/ports"
)

// Standalone assets are single mutable records: every operation here is a
// read-modify-write against the store, with the in-memory asset owned solely
// by the operation for the duration of one transaction.

func (s *service) MintValue(
	ctx context.Context, tx ports.TxContext,
	userID string, amount uint64, currency string, enforcementDate, expirationDate int64,
) (*Envelope, error) {
	if err := assertSignerIsAdmin(tx.Identity); err != nil {
		return nil, err
	}

	newAsset := domain.Asset{
		Key:             domain.AssetKey(tx.TxID, 0),
		Owner:           userID,
		Kind:            domain.KindValue,
		Amount:          amount,
		Currency:        currency,
		EnforcementDate: enforcementDate,
		ExpirationDate:  expirationDate,
		State:           domain.StateLiquid,
		Metadata:        map[string]string{"action": domain.ActionMint},
	}
	if err := assertMintConditions(newAsset, tx.TxTime); err != nil {
		return nil, err
	}

	if err := s.repoManager.Assets().AddAssets(ctx, []domain.Asset{newAsset}); err != nil {
		return nil, err
	}

	s.publish(ctx, ports.MintEvent, tx.TxID, newAsset)
	return &Envelope{Result: newAsset, Txid: tx.TxID}, nil
}

func (s *service) MintUtility(
	ctx context.Context, tx ports.TxContext,
	userID string, utilities map[string]string, usageLimit uint64,
	enforcementDate, expirationDate int64,
) (*Envelope, error) {
	if err := assertSignerIsAdmin(tx.Identity); err != nil {
		return nil, err
	}

	newAsset := domain.Asset{
		Key:             domain.AssetKey(tx.TxID, 0),
		Owner:           userID,
		Kind:            domain.KindUtility,
		Utilities:       utilities,
		RemainingUses:   usageLimit,
		EnforcementDate: enforcementDate,
		ExpirationDate:  expirationDate,
		State:           domain.StateLiquid,
		Metadata:        map[string]string{"action": domain.ActionMint},
	}
	if err := assertMintConditions(newAsset, tx.TxTime); err != nil {
		return nil, err
	}

	if err := s.repoManager.Assets().AddAssets(ctx, []domain.Asset{newAsset}); err != nil {
		return nil, err
	}

	s.publish(ctx, ports.MintEvent, tx.TxID, newAsset)
	return &Envelope{Result: newAsset, Txid: tx.TxID}, nil
}

func (s *service) SpendValue(
	ctx context.Context, tx ports.TxContext, amount uint64, assetID string,
) (*Envelope, error) {
	return s.spendValue(ctx, tx, tx.Identity.ID, amount, assetID)
}

func (s *service) AdminSpendValue(
	ctx context.Context, tx ports.TxContext, senderID string, amount uint64, assetID string,
) (*Envelope, error) {
	if err := assertSignerIsAdmin(tx.Identity); err != nil {
		return nil, err
	}
	return s.spendValue(ctx, tx, senderID, amount, assetID)
}

func (s *service) Transfer(
	ctx context.Context, tx ports.TxContext, assetID, recipientID string,
) (*Envelope, error) {
	return s.transferStandalone(ctx, tx, tx.Identity.ID, assetID, recipientID)
}

func (s *service) AdminTransfer(
	ctx context.Context, tx ports.TxContext, senderID, assetID, recipientID string,
) (*Envelope, error) {
	if err := assertSignerIsAdmin(tx.Identity); err != nil {
		return nil, err
	}
	return s.transferStandalone(ctx, tx, senderID, assetID, recipientID)
}

func (s *service) Recharge(
	ctx context.Context, tx ports.TxContext, amount uint64, extendPeriodDays int64, assetID string,
) (*Envelope, error) {
	return s.recharge(ctx, tx, amount, extendPeriodDays, assetID)
}

func (s *service) AdminRecharge(
	ctx context.Context, tx ports.TxContext, amount uint64, extendPeriodDays int64, assetID string,
) (*Envelope, error) {
	if err := assertSignerIsAdmin(tx.Identity); err != nil {
		return nil, err
	}
	return s.recharge(ctx, tx, amount, extendPeriodDays, assetID)
}

func (s *service) Use(
	ctx context.Context, tx ports.TxContext, utility, assetID string,
) (*Envelope, error) {
	return s.use(ctx, tx, tx.Identity.ID, utility, assetID)
}

func (s *service) AdminUse(
	ctx context.Context, tx ports.TxContext, senderID, utility, assetID string,
) (*Envelope, error) {
	if err := assertSignerIsAdmin(tx.Identity); err != nil {
		return nil, err
	}
	return s.use(ctx, tx, senderID, utility, assetID)
}

func (s *service) spendValue(
	ctx context.Context, tx ports.TxContext, senderID string, amount uint64, assetID string,
) (*Envelope, error) {
	if amount == 0 {
		return nil, domain.NonPositiveAmount.New("amount to spend must be positive")
	}

	var oldAmount uint64
	updated, err := s.repoManager.Assets().MutateAsset(ctx, assetID, func(asset *domain.Asset) error {
		if err := assertKind(*asset, domain.KindValue); err != nil {
			return err
		}
		if err := assertIsOwner(*asset, senderID); err != nil {
			return err
		}
		if err := assertAssetSpendable(*asset, tx.TxTime); err != nil {
			return err
		}
		if amount > asset.Amount {
			return domain.InsufficientFunds.New(
				"asset %s holds %d tokens, %d requested", asset.Key, asset.Amount, amount,
			)
		}

		oldAmount = asset.Amount
		*asset = asset.WithAction(domain.ActionSpend)
		asset.Amount -= amount
		if asset.Amount == 0 {
			// exhausted standalone assets record a terminal zero-balance spend
			// instead of being deleted
			asset.State = domain.StateSpent
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debugf("asset %s balance changed from %d to %d", updated.Key, oldAmount, updated.Amount)

	s.publish(ctx, ports.SpendEvent, tx.TxID, *updated)
	return &Envelope{Result: *updated, Txid: tx.TxID}, nil
}

func (s *service) transferStandalone(
	ctx context.Context, tx ports.TxContext, senderID, assetID, recipientID string,
) (*Envelope, error) {
	updated, err := s.repoManager.Assets().MutateAsset(ctx, assetID, func(asset *domain.Asset) error {
		if err := assertStandalone(*asset); err != nil {
			return err
		}
		if err := assertIsOwner(*asset, senderID); err != nil {
			return err
		}
		if err := assertAssetSpendable(*asset, tx.TxTime); err != nil {
			return err
		}

		*asset = asset.WithAction(domain.ActionTransfer)
		asset.Owner = recipientID
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debugf("asset %s transferred from %s to %s", updated.Key, senderID, recipientID)

	return &Envelope{Result: *updated, Txid: tx.TxID}, nil
}

func (s *service) recharge(
	ctx context.Context, tx ports.TxContext, amount uint64, extendPeriodDays int64, assetID string,
) (*Envelope, error) {
	if amount == 0 {
		return nil, domain.NonPositiveAmount.New("recharge amount must be positive")
	}

	var oldAmount uint64
	var oldExpiration int64
	updated, err := s.repoManager.Assets().MutateAsset(ctx, assetID, func(asset *domain.Asset) error {
		if err := assertKind(*asset, domain.KindValue); err != nil {
			return err
		}
		if err := assertAssetRechargeable(*asset); err != nil {
			return err
		}

		oldAmount = asset.Amount
		oldExpiration = asset.ExpirationDate
		*asset = asset.WithAction(domain.ActionRecharge)
		asset.Amount += amount
		asset.ExpirationDate += extendPeriodDays * 24 * 60 * 60
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debugf(
		"asset %s recharged: amount %d -> %d, expiration %d -> %d",
		updated.Key, oldAmount, updated.Amount, oldExpiration, updated.ExpirationDate,
	)

	return &Envelope{Result: *updated, Txid: tx.TxID}, nil
}

func (s *service) use(
	ctx context.Context, tx ports.TxContext, senderID, utility, assetID string,
) (*Envelope, error) {
	var oldUses uint64
	updated, err := s.repoManager.Assets().MutateAsset(ctx, assetID, func(asset *domain.Asset) error {
		if err := assertKind(*asset, domain.KindUtility); err != nil {
			return err
		}
		if err := assertIsOwner(*asset, senderID); err != nil {
			return err
		}
		if err := assertAssetSpendable(*asset, tx.TxTime); err != nil {
			return err
		}
		if err := assertUtilityProvided(*asset, utility); err != nil {
			return err
		}

		oldUses = asset.RemainingUses
		*asset = asset.WithAction(domain.ActionUse)
		asset.Metadata["utility"] = utility
		asset.RemainingUses--
		if asset.RemainingUses == 0 {
			asset.State = domain.StateSpent
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debugf(
		"asset %s uses count changed from %d to %d", updated.Key, oldUses, updated.RemainingUses,
	)

	s.publish(ctx, ports.UseEvent, tx.TxID, *updated)
	return &Envelope{Result: *updated, Txid: tx.TxID}, nil
}
