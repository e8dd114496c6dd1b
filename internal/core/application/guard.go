package application

import (
	"github.com/tenorledger/tenord/internal/core/domain"
)

// The guard is a set of pure predicates consumed by every money-moving
// operation. No function here touches the store or mutates its arguments.

func assertSignerIsAdmin(identity domain.Identity) error {
	if !identity.IsAdmin() {
		return domain.NotAuthorized.New(
			"identity %s with role %q is not allowed to perform admin operations",
			identity.ID, identity.Role,
		)
	}
	return nil
}

func assertIsOwner(asset domain.Asset, claimedOwner string) error {
	if asset.Owner != claimedOwner {
		return domain.NotOwner.New("asset %s is not owned by %s", asset.Key, claimedOwner)
	}
	return nil
}

// Standalone lookups are kind-scoped: a key holding a different kind is a
// miss, not a type error.
func assertKind(asset domain.Asset, kind domain.AssetKind) error {
	if asset.Kind != kind {
		return domain.NotFound.New("%s asset %s does not exist", kind, asset.Key)
	}
	return nil
}

func assertStandalone(asset domain.Asset) error {
	if !asset.IsStandalone() {
		return domain.NotFound.New("standalone asset %s does not exist", asset.Key)
	}
	return nil
}

func assertAssetSpendable(asset domain.Asset, now int64) error {
	if now < asset.EnforcementDate {
		return domain.NotYetEnforced.New(
			"asset %s is not spendable before %d (now %d)", asset.Key, asset.EnforcementDate, now,
		)
	}
	if now >= asset.ExpirationDate {
		return domain.Expired.New(
			"asset %s expired at %d (now %d)", asset.Key, asset.ExpirationDate, now,
		)
	}
	if !asset.IsLiquid() {
		return domain.NotLiquid.New(
			"asset %s must be %s to be spent but is %s", asset.Key, domain.StateLiquid, asset.State,
		)
	}
	return nil
}

func assertMintConditions(asset domain.Asset, now int64) error {
	if !asset.Tenor().Valid() {
		return domain.InvalidWindow.New(
			"asset %s has enforcement date %d not before expiration date %d",
			asset.Key, asset.EnforcementDate, asset.ExpirationDate,
		)
	}
	switch asset.Kind {
	case domain.KindUtility:
		if asset.RemainingUses == 0 {
			return domain.NonPositiveAmount.New("asset %s has no usage limit", asset.Key)
		}
	default:
		if asset.Amount == 0 {
			return domain.NonPositiveAmount.New("asset %s principal amount must be positive", asset.Key)
		}
	}
	return nil
}

func assertAssetRechargeable(asset domain.Asset) error {
	if !asset.IsLiquid() {
		return domain.NotRechargeable.New(
			"asset %s must be %s to be recharged but is %s",
			asset.Key, domain.StateLiquid, asset.State,
		)
	}
	return nil
}

func assertUtilityProvided(asset domain.Asset, utility string) error {
	if !asset.ProvidesUtility(utility) {
		return domain.UtilityNotProvided.New(
			"asset %s does not provide utility %q", asset.Key, utility,
		)
	}
	return nil
}
