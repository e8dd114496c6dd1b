package application

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/tenorledger/tenord/internal/core/domain"
	"github.com/tenorledger/tenord/internal/core/ports"
)

// Cross-channel settlement is two independent commits: the freeze phase on
// the source ledger and the resolve phase on the destination ledger. The
// entry timeout is the only bound on how long a frozen hold may stay
// unresolved; the expiry watcher enforces it as a liveness property.

func (s *service) SendCrossChannelTransfer(
	ctx context.Context, tx ports.TxContext,
	amount uint64, recipientID, recipientLedger, traceLedger string,
) (*Envelope, error) {
	clientID := tx.Identity.ID

	candidates, err := s.repoManager.Assets().GetAssetsByOwner(ctx, clientID)
	if err != nil {
		return nil, err
	}
	prep, err := prepareInputs(candidates, amount, tx.TxTime)
	if err != nil {
		return nil, err
	}

	// change phase: pay the sender itself so the frozen set carries exactly
	// the requested amount
	inputs, outputs, change := buildOutputs(tx.TxID, prep, amount, clientID, clientID)
	if err := s.transfer(ctx, inputs, outputs, 0); err != nil {
		return nil, err
	}
	s.publish(ctx, ports.SendEvent, tx.TxID, TransferResult{Inputs: inputs, Outputs: outputs})

	toFreeze := outputs
	if change != nil {
		toFreeze = outputs[:len(outputs)-1]
	}
	frozenKeys := make([]string, 0, len(toFreeze))
	for _, out := range toFreeze {
		frozenKeys = append(frozenKeys, out.Key)
	}
	if err := s.repoManager.Assets().UpdateAssetsState(
		ctx, frozenKeys, domain.StateFrozen, domain.ActionFreeze,
	); err != nil {
		return nil, err
	}

	frozenAssets := make([]domain.Asset, 0, len(toFreeze))
	for _, out := range toFreeze {
		frozen := out.WithAction(domain.ActionFreeze)
		frozen.State = domain.StateFrozen
		frozenAssets = append(frozenAssets, frozen)
	}

	entry := domain.CrossChannelEntry{
		EntryID:         tx.TxID,
		ClientID:        clientID,
		SourceLedger:    s.ledgerID,
		RecipientID:     recipientID,
		RecipientLedger: recipientLedger,
		Amount:          amount,
		FrozenKeys:      frozenKeys,
		Tenor:           settlementTenor(frozenAssets),
		TimeoutEpoch:    tx.TxTime + domain.EntryGracePeriod,
		Status:          domain.EntryStatusPending,
	}
	if err := s.repoManager.Entries().AddEntry(ctx, entry); err != nil {
		return nil, err
	}

	if len(traceLedger) > 0 && s.remote != nil {
		// advisory bookkeeping on the mutual-agreement trace ledger
		if err := s.remote.RecordEntry(ctx, traceLedger, entry); err != nil {
			log.WithError(err).Warnf("failed to record entry %s on trace ledger %s", entry.EntryID, traceLedger)
		}
	}

	if err := s.watcher.scheduleEntry(entry); err != nil {
		log.WithError(err).Warnf("failed to schedule expiry of entry %s", entry.EntryID)
	}

	result := SettlementResult{FrozenAssets: frozenAssets, Entry: entry}
	return &Envelope{Result: result, Txid: tx.TxID}, nil
}

func (s *service) ReceiveCrossChannelTransfer(
	ctx context.Context, tx ports.TxContext,
	userID string, amount uint64, enforcementDate, expirationDate int64,
) (*Envelope, error) {
	if err := assertSignerIsAdmin(tx.Identity); err != nil {
		return nil, err
	}

	newUtxo := domain.Asset{
		Key:             domain.AssetKey(tx.TxID, 0),
		Owner:           userID,
		Kind:            domain.KindBanknote,
		Amount:          amount,
		EnforcementDate: enforcementDate,
		ExpirationDate:  expirationDate,
		State:           domain.StateFrozen,
		Metadata:        map[string]string{"action": domain.ActionMint},
	}
	if err := assertMintConditions(newUtxo, tx.TxTime); err != nil {
		return nil, err
	}

	if err := s.repoManager.Assets().AddAssets(ctx, []domain.Asset{newUtxo}); err != nil {
		return nil, err
	}

	s.publish(ctx, ports.MintFrozenEvent, tx.TxID, newUtxo)
	return &Envelope{Result: newUtxo, Txid: tx.TxID}, nil
}

// AdminUnfreeze releases assets minted or held in FROZEN state back to
// LIQUID. This is the only way out of FROZEN besides deletion.
func (s *service) AdminUnfreeze(
	ctx context.Context, tx ports.TxContext, assetKeys []string,
) (*Envelope, error) {
	if err := assertSignerIsAdmin(tx.Identity); err != nil {
		return nil, err
	}
	if err := s.repoManager.Assets().UpdateAssetsState(
		ctx, assetKeys, domain.StateLiquid, domain.ActionUnfreeze,
	); err != nil {
		return nil, err
	}
	return &Envelope{Result: assetKeys, Txid: tx.TxID}, nil
}

func (s *service) CreateEntry(
	ctx context.Context, tx ports.TxContext, entry domain.CrossChannelEntry,
) (*Envelope, error) {
	if len(entry.EntryID) == 0 {
		entry.EntryID = tx.TxID
	}
	if len(entry.ClientID) == 0 {
		entry.ClientID = tx.Identity.ID
	}
	if len(entry.SourceLedger) == 0 {
		entry.SourceLedger = s.ledgerID
	}
	if entry.TimeoutEpoch == 0 {
		entry.TimeoutEpoch = tx.TxTime + domain.EntryGracePeriod
	}
	entry.Status = domain.EntryStatusPending

	if err := s.repoManager.Entries().AddEntry(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.watcher.scheduleEntry(entry); err != nil {
		log.WithError(err).Warnf("failed to schedule expiry of entry %s", entry.EntryID)
	}
	return &Envelope{Result: entry, Txid: tx.TxID}, nil
}

func (s *service) ResolveEntry(
	ctx context.Context, tx ports.TxContext, entryID string,
) (*Envelope, error) {
	entry, err := s.repoManager.Entries().GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.TimedOut(tx.TxTime) && entry.Status == domain.EntryStatusPending {
		if _, err := s.repoManager.Entries().MarkExpired(ctx, entryID); err != nil {
			return nil, err
		}
		return nil, domain.EntryExpired.New(
			"entry %s timed out at %d (now %d)", entryID, entry.TimeoutEpoch, tx.TxTime,
		)
	}

	// the PENDING -> RESOLVED transition is the idempotence gate: a second
	// resolution attempt fails here and never reaches the mint
	resolved, err := s.repoManager.Entries().MarkResolved(ctx, entryID, tx.TxID)
	if err != nil {
		return nil, err
	}

	minted := domain.Asset{
		Key:             domain.AssetKey(tx.TxID, 0),
		Owner:           resolved.RecipientID,
		Kind:            domain.KindBanknote,
		Amount:          resolved.Amount,
		EnforcementDate: resolved.Tenor.EnforcementDate,
		ExpirationDate:  resolved.Tenor.ExpirationDate,
		State:           domain.StateLiquid,
		Metadata:        map[string]string{"action": domain.ActionMint},
	}
	if err := s.repoManager.Assets().AddAssets(ctx, []domain.Asset{minted}); err != nil {
		return nil, err
	}

	s.publish(ctx, ports.MintEvent, tx.TxID, minted)
	result := SettlementResult{FrozenAssets: []domain.Asset{minted}, Entry: *resolved}
	return &Envelope{Result: result, Txid: tx.TxID}, nil
}

func (s *service) GetEntry(
	ctx context.Context, tx ports.TxContext, entryID string,
) (*Envelope, error) {
	entry, err := s.repoManager.Entries().GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return &Envelope{Result: *entry, Txid: tx.TxID}, nil
}

// ReclaimExpiredEntry is the reversal path: once an entry timed out, the
// frozen source-side value returns to the original client as LIQUID assets.
func (s *service) ReclaimExpiredEntry(
	ctx context.Context, tx ports.TxContext, entryID string,
) (*Envelope, error) {
	entry, err := s.repoManager.Entries().GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !tx.Identity.IsAdmin() && entry.ClientID != tx.Identity.ID {
		return nil, domain.NotOwner.New("entry %s was not created by %s", entryID, tx.Identity.ID)
	}

	switch entry.Status {
	case domain.EntryStatusResolved:
		return nil, domain.AlreadyResolved.New("entry %s has already been resolved", entryID)
	case domain.EntryStatusPending:
		if !entry.TimedOut(tx.TxTime) {
			return nil, domain.EntryNotExpired.New(
				"entry %s is still resolvable until %d (now %d)", entryID, entry.TimeoutEpoch, tx.TxTime,
			)
		}
		if _, err := s.repoManager.Entries().MarkExpired(ctx, entryID); err != nil {
			return nil, err
		}
	}

	if err := s.repoManager.Assets().UpdateAssetsState(
		ctx, entry.FrozenKeys, domain.StateLiquid, domain.ActionUnfreeze,
	); err != nil {
		return nil, err
	}

	unfrozen := make([]domain.Asset, 0, len(entry.FrozenKeys))
	for _, key := range entry.FrozenKeys {
		asset, err := s.repoManager.Assets().GetAsset(ctx, key)
		if err != nil {
			return nil, err
		}
		unfrozen = append(unfrozen, *asset)
	}
	return &Envelope{Result: unfrozen, Txid: tx.TxID}, nil
}

// settlementTenor computes the window carried by the destination-side mint:
// the latest enforcement date and the earliest expiration date among the
// frozen assets, so resolution never extends any source asset's validity.
func settlementTenor(frozen []domain.Asset) domain.Tenor {
	var tenor domain.Tenor
	for i, asset := range frozen {
		if i == 0 {
			tenor = asset.Tenor()
			continue
		}
		if asset.EnforcementDate > tenor.EnforcementDate {
			tenor.EnforcementDate = asset.EnforcementDate
		}
		if asset.ExpirationDate < tenor.ExpirationDate {
			tenor.ExpirationDate = asset.ExpirationDate
		}
	}
	return tenor
}
