package application

import (
	"context"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/tenorledger/tenord/internal/core/domain"
	"github.com/tenorledger/tenord/internal/core/ports"
)

type service struct {
	ledgerID string

	repoManager ports.RepoManager
	publisher   ports.EventPublisher
	remote      ports.RemoteLedger
	watcher     *entryWatcher
}

func NewService(
	ledgerID string,
	repoManager ports.RepoManager,
	publisher ports.EventPublisher,
	scheduler ports.SchedulerService,
	remote ports.RemoteLedger,
) (Service, error) {
	svc := &service{
		ledgerID:    ledgerID,
		repoManager: repoManager,
		publisher:   publisher,
		remote:      remote,
	}
	svc.watcher = newEntryWatcher(repoManager, scheduler)
	return svc, nil
}

func (s *service) Start() error {
	log.Debug("starting entry expiry watcher...")
	if err := s.watcher.start(); err != nil {
		return err
	}
	log.Debug("entry expiry watcher started")
	return nil
}

func (s *service) Stop() {
	s.watcher.stop()
	s.repoManager.Close()
	log.Debug("closed connection to repo manager")
}

func (s *service) Mint(
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
		State:           domain.StateLiquid,
		Metadata:        map[string]string{"action": domain.ActionMint},
	}
	if err := assertMintConditions(newUtxo, tx.TxTime); err != nil {
		return nil, err
	}

	if err := s.repoManager.Assets().AddAssets(ctx, []domain.Asset{newUtxo}); err != nil {
		return nil, err
	}

	s.publish(ctx, ports.MintEvent, tx.TxID, newUtxo)
	return &Envelope{Result: newUtxo, Txid: tx.TxID}, nil
}

func (s *service) Burn(
	ctx context.Context, tx ports.TxContext, ownersAndKeys map[string][]string,
) (*Envelope, error) {
	if err := assertSignerIsAdmin(tx.Identity); err != nil {
		return nil, err
	}

	owners := make([]string, 0, len(ownersAndKeys))
	for owner := range ownersAndKeys {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	seen := make(map[string]struct{})
	inputs := make([]domain.Asset, 0)
	for _, owner := range owners {
		for _, key := range ownersAndKeys[owner] {
			if _, ok := seen[key]; ok {
				return nil, domain.DoubleConsumption.New("the same asset %s cannot be burned twice", key)
			}
			seen[key] = struct{}{}

			asset, err := s.repoManager.Assets().GetAsset(ctx, key)
			if err != nil {
				return nil, err
			}
			if err := assertIsOwner(*asset, owner); err != nil {
				return nil, err
			}
			if err := assertAssetSpendable(*asset, tx.TxTime); err != nil {
				return nil, err
			}
			inputs = append(inputs, *asset)
		}
	}

	keys := make([]string, 0, len(inputs))
	for _, input := range inputs {
		keys = append(keys, input.Key)
	}
	if err := s.repoManager.Assets().DeleteAssets(ctx, keys); err != nil {
		return nil, err
	}

	s.publish(ctx, ports.BurnEvent, tx.TxID, BurnResult{BurntInputs: inputs})
	return &Envelope{Result: BurnResult{BurntInputs: inputs}, Txid: tx.TxID}, nil
}

func (s *service) Spend(
	ctx context.Context, tx ports.TxContext, amount uint64,
) (*Envelope, error) {
	return s.spend(ctx, tx, tx.Identity.ID, amount)
}

func (s *service) AdminSpend(
	ctx context.Context, tx ports.TxContext, senderID string, amount uint64,
) (*Envelope, error) {
	if err := assertSignerIsAdmin(tx.Identity); err != nil {
		return nil, err
	}
	return s.spend(ctx, tx, senderID, amount)
}

func (s *service) Send(
	ctx context.Context, tx ports.TxContext, amount uint64, recipientID string,
) (*Envelope, error) {
	result, err := s.send(ctx, tx, tx.Identity.ID, amount, recipientID)
	if err != nil {
		return nil, err
	}
	return &Envelope{Result: result, Txid: tx.TxID}, nil
}

func (s *service) AdminSend(
	ctx context.Context, tx ports.TxContext, senderID string, amount uint64, recipientID string,
) (*Envelope, error) {
	if err := assertSignerIsAdmin(tx.Identity); err != nil {
		return nil, err
	}
	result, err := s.send(ctx, tx, senderID, amount, recipientID)
	if err != nil {
		return nil, err
	}
	return &Envelope{Result: result, Txid: tx.TxID}, nil
}

// Change converts the sender's banknotes into a set containing one group of
// exactly the requested amount, paying the sender itself. The settlement
// freeze phase relies on it to carve out the value to be held.
func (s *service) Change(
	ctx context.Context, tx ports.TxContext, amount uint64,
) (*Envelope, error) {
	return s.Send(ctx, tx, amount, tx.Identity.ID)
}

func (s *service) TransferBanknotes(
	ctx context.Context, tx ports.TxContext, inputKeys []string, outputs []OutputDescriptor,
) (*Envelope, error) {
	clientID := tx.Identity.ID
	isAdmin := tx.Identity.IsAdmin()

	seen := make(map[string]struct{}, len(inputKeys))
	inputs := make([]domain.Asset, 0, len(inputKeys))
	for _, key := range inputKeys {
		if _, ok := seen[key]; ok {
			return nil, domain.DoubleConsumption.New("the same utxo input %s cannot be spent twice", key)
		}
		seen[key] = struct{}{}

		asset, err := s.repoManager.Assets().GetAsset(ctx, key)
		if err != nil {
			return nil, err
		}
		if !isAdmin {
			if err := assertIsOwner(*asset, clientID); err != nil {
				return nil, err
			}
		}
		if err := assertAssetSpendable(*asset, tx.TxTime); err != nil {
			return nil, err
		}
		inputs = append(inputs, *asset)
	}

	minted := make([]domain.Asset, 0, len(outputs))
	for i, out := range outputs {
		minted = append(minted, domain.Asset{
			Key:             domain.AssetKey(tx.TxID, i),
			Owner:           out.Recipient,
			Kind:            domain.KindBanknote,
			Amount:          out.Amount,
			EnforcementDate: out.EnforcementDate,
			ExpirationDate:  out.ExpirationDate,
			State:           domain.StateLiquid,
			Metadata:        map[string]string{"action": domain.ActionTransfer},
		})
	}

	if err := s.transfer(ctx, inputs, minted, 0); err != nil {
		return nil, err
	}

	result := TransferResult{Inputs: inputs, Outputs: minted}
	return &Envelope{Result: result, Txid: tx.TxID}, nil
}

func (s *service) spend(
	ctx context.Context, tx ports.TxContext, senderID string, amount uint64,
) (*Envelope, error) {
	candidates, err := s.repoManager.Assets().GetAssetsByOwner(ctx, senderID)
	if err != nil {
		return nil, err
	}
	prep, err := prepareInputs(candidates, amount, tx.TxTime)
	if err != nil {
		return nil, err
	}

	inputs := prep.spentUtxos
	outputs := make([]domain.Asset, 0, 1)
	if changeAmount := prep.totalAmount - amount; changeAmount > 0 {
		inputs = append(inputs, *prep.utxoToSplit)
		outputs = append(outputs, domain.Asset{
			Key:             domain.AssetKey(tx.TxID, 0),
			Owner:           senderID,
			Kind:            domain.KindBanknote,
			Amount:          changeAmount,
			EnforcementDate: prep.utxoToSplit.EnforcementDate,
			ExpirationDate:  prep.utxoToSplit.ExpirationDate,
			State:           domain.StateLiquid,
			Metadata:        map[string]string{"action": domain.ActionTransfer},
		})
	}

	if err := s.transfer(ctx, inputs, outputs, amount); err != nil {
		return nil, err
	}

	result := TransferResult{Inputs: inputs, Outputs: outputs}
	s.publish(ctx, ports.SpendEvent, tx.TxID, result)
	return &Envelope{Result: result, Txid: tx.TxID}, nil
}

func (s *service) send(
	ctx context.Context, tx ports.TxContext, senderID string, amount uint64, recipientID string,
) (*TransferResult, error) {
	candidates, err := s.repoManager.Assets().GetAssetsByOwner(ctx, senderID)
	if err != nil {
		return nil, err
	}
	prep, err := prepareInputs(candidates, amount, tx.TxTime)
	if err != nil {
		return nil, err
	}

	inputs, outputs, _ := buildOutputs(tx.TxID, prep, amount, senderID, recipientID)
	if err := s.transfer(ctx, inputs, outputs, 0); err != nil {
		return nil, err
	}

	result := &TransferResult{Inputs: inputs, Outputs: outputs}
	s.publish(ctx, ports.SendEvent, tx.TxID, result)
	return result, nil
}

// transfer is the atomic burn+mint primitive. All conservation and
// tenor-matching assertions run before anything is committed; the store
// transaction then makes the burn and mint all-or-nothing.
func (s *service) transfer(
	ctx context.Context, inputs, outputs []domain.Asset, spentAmount uint64,
) error {
	seen := make(map[string]struct{}, len(inputs))
	var inputTotal uint64
	inputTenors := make(map[domain.Tenor]uint64, len(inputs))
	enforcements := make(map[int64]struct{}, len(inputs))
	for _, input := range inputs {
		if _, ok := seen[input.Key]; ok {
			return domain.DoubleConsumption.New("the same utxo input %s cannot be spent twice", input.Key)
		}
		seen[input.Key] = struct{}{}
		inputTotal += input.Amount
		inputTenors[input.Tenor()] += input.Amount
		enforcements[input.EnforcementDate] = struct{}{}
	}

	var outputTotal uint64
	outputTenors := make(map[domain.Tenor]uint64, len(outputs))
	for _, output := range outputs {
		outputTotal += output.Amount
		outputTenors[output.Tenor()] += output.Amount
	}

	if inputTotal != outputTotal+spentAmount {
		return domain.AmountMismatch.New(
			"inputs total %d but outputs total %d with %d spent", inputTotal, outputTotal, spentAmount,
		)
	}
	for tenor, outSum := range outputTenors {
		if _, ok := enforcements[tenor.EnforcementDate]; !ok {
			return domain.EnforcementMismatch.New(
				"no input carries enforcement date %d required by outputs", tenor.EnforcementDate,
			)
		}
		inSum, ok := inputTenors[tenor]
		if !ok {
			return domain.ExpirationMismatch.New(
				"no input carries expiration date %d required by outputs", tenor.ExpirationDate,
			)
		}
		if outSum > inSum {
			return domain.AmountMismatch.New(
				"outputs with tenor %s total %d but inputs only provide %d", tenor, outSum, inSum,
			)
		}
	}

	burnKeys := make([]string, 0, len(inputs))
	for _, input := range inputs {
		burnKeys = append(burnKeys, input.Key)
	}
	return s.repoManager.Assets().Transfer(ctx, burnKeys, outputs)
}

func (s *service) publish(ctx context.Context, eventType ports.EventType, txid string, payload any) {
	if s.publisher == nil {
		return
	}
	event := ports.Event{Type: eventType, Txid: txid, Payload: payload}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.WithError(err).Warnf("failed to publish %s for tx %s", eventType, txid)
	}
}
