package application

import (
	"sort"

	"github.com/tenorledger/tenord/internal/core/domain"
)

// preparedInputs is the outcome of coin selection: the banknotes consumed in
// full, their running total (split included), and the banknote that will be
// partially consumed to produce exact change, if any.
type preparedInputs struct {
	spentUtxos  []domain.Asset
	totalAmount uint64
	utxoToSplit *domain.Asset
}

// prepareInputs selects spendable banknotes owned by the requester until
// their total covers amount. Candidates are visited in ascending
// lexicographic key order: the engine runs inside replicated execution, so
// two replicas evaluating the same request against the same state must
// select byte-identical input sets.
func prepareInputs(candidates []domain.Asset, amount uint64, now int64) (*preparedInputs, error) {
	if amount == 0 {
		return nil, domain.NonPositiveAmount.New("requested amount must be positive")
	}

	sorted := make([]domain.Asset, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Key < sorted[j].Key
	})

	prep := &preparedInputs{spentUtxos: make([]domain.Asset, 0, len(sorted))}
	for _, candidate := range sorted {
		if candidate.Kind != domain.KindBanknote {
			continue
		}
		if err := assertAssetSpendable(candidate, now); err != nil {
			continue
		}
		prep.spentUtxos = append(prep.spentUtxos, candidate)
		prep.totalAmount += candidate.Amount
		if prep.totalAmount >= amount {
			break
		}
	}

	if prep.totalAmount < amount {
		return nil, domain.InsufficientFunds.New(
			"owner holds %d spendable tokens, %d requested", prep.totalAmount, amount,
		)
	}
	if prep.totalAmount > amount {
		// the last selected banknote funds the transfer only partially and
		// will be split into a recipient portion and a change output
		last := prep.spentUtxos[len(prep.spentUtxos)-1]
		prep.spentUtxos = prep.spentUtxos[:len(prep.spentUtxos)-1]
		prep.utxoToSplit = &last
	}
	return prep, nil
}

// tenorGroup accumulates the spent inputs sharing one validity window.
type tenorGroup struct {
	tenor  domain.Tenor
	amount uint64
	head   domain.Asset
}

// groupByTenor folds assets into per-tenor groups, preserving first-seen
// order so that output indexes are deterministic.
func groupByTenor(assets []domain.Asset) []*tenorGroup {
	groups := make([]*tenorGroup, 0, len(assets))
	index := make(map[string]*tenorGroup, len(assets))
	for _, asset := range assets {
		key := asset.Tenor().String()
		if group, ok := index[key]; ok {
			group.amount += asset.Amount
			continue
		}
		group := &tenorGroup{tenor: asset.Tenor(), amount: asset.Amount, head: asset}
		index[key] = group
		groups = append(groups, group)
	}
	return groups
}

// buildOutputs turns a selection into the input and output sides of an
// atomic transfer. One recipient output is created per input tenor group so
// the output side never extends any input's validity window. When a split is
// required, the recipient portion of the split banknote is merged into its
// same-tenor group if one exists; the change output back to the sender is
// always a dedicated output, appended last.
func buildOutputs(
	txid string, prep *preparedInputs, amount uint64, senderID, recipientID string,
) (inputs, outputs []domain.Asset, change *domain.Asset) {
	inputs = prep.spentUtxos
	groups := groupByTenor(prep.spentUtxos)

	changeAmount := prep.totalAmount - amount
	if prep.utxoToSplit != nil {
		inputs = append(inputs, *prep.utxoToSplit)
		recipientPortion := prep.utxoToSplit.Amount - changeAmount

		splitKey := prep.utxoToSplit.Tenor().String()
		merged := false
		for _, group := range groups {
			if group.tenor.String() == splitKey {
				group.amount += recipientPortion
				merged = true
				break
			}
		}
		if !merged {
			groups = append(groups, &tenorGroup{
				tenor:  prep.utxoToSplit.Tenor(),
				amount: recipientPortion,
				head:   *prep.utxoToSplit,
			})
		}
	}

	outputs = make([]domain.Asset, 0, len(groups)+1)
	for _, group := range groups {
		outputs = append(outputs, domain.Asset{
			Key:             domain.AssetKey(txid, len(outputs)),
			Owner:           recipientID,
			Kind:            domain.KindBanknote,
			Amount:          group.amount,
			EnforcementDate: group.tenor.EnforcementDate,
			ExpirationDate:  group.tenor.ExpirationDate,
			State:           domain.StateLiquid,
			Metadata:        map[string]string{"action": domain.ActionTransfer},
		})
	}

	if changeAmount > 0 {
		changeOut := domain.Asset{
			Key:             domain.AssetKey(txid, len(outputs)),
			Owner:           senderID,
			Kind:            domain.KindBanknote,
			Amount:          changeAmount,
			EnforcementDate: prep.utxoToSplit.EnforcementDate,
			ExpirationDate:  prep.utxoToSplit.ExpirationDate,
			State:           domain.StateLiquid,
			Metadata:        map[string]string{"action": domain.ActionTransfer},
		}
		outputs = append(outputs, changeOut)
		change = &changeOut
	}
	return inputs, outputs, change
}
