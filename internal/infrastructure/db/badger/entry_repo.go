package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/tenorledger/tenord/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const entryStoreDir = "entries"

type entryRepository struct {
	store *badgerhold.Store
}

func NewEntryRepository(config ...interface{}) (domain.EntryRepository, error) {
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
		dir = filepath.Join(baseDir, entryStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open entry store: %s", err)
	}

	return &entryRepository{store}, nil
}

func (r *entryRepository) Close() {
	// nolint:all
	r.store.Close()
}

func (r *entryRepository) AddEntry(ctx context.Context, entry domain.CrossChannelEntry) error {
	if err := r.store.Insert(entry.EntryID, entry); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return domain.AssetAlreadyExists.New("entry %s already exists", entry.EntryID)
		}
		return mapConflict(err)
	}
	return nil
}

func (r *entryRepository) GetEntry(
	ctx context.Context, entryID string,
) (*domain.CrossChannelEntry, error) {
	var entry domain.CrossChannelEntry
	if err := r.store.Get(entryID, &entry); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.NotFound.New("entry %s does not exist", entryID)
		}
		return nil, err
	}
	return &entry, nil
}

func (r *entryRepository) MarkResolved(
	ctx context.Context, entryID, resolvedBy string,
) (*domain.CrossChannelEntry, error) {
	tx := r.store.Badger().NewTransaction(true)
	defer tx.Discard()

	var entry domain.CrossChannelEntry
	if err := r.store.TxGet(tx, entryID, &entry); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.NotFound.New("entry %s does not exist", entryID)
		}
		return nil, err
	}
	switch entry.Status {
	case domain.EntryStatusResolved:
		return nil, domain.AlreadyResolved.New(
			"entry %s has already been resolved by %s", entryID, entry.ResolvedBy,
		)
	case domain.EntryStatusExpired:
		return nil, domain.EntryExpired.New("entry %s has expired", entryID)
	}

	entry.Status = domain.EntryStatusResolved
	entry.ResolvedBy = resolvedBy
	if err := r.store.TxUpdate(tx, entryID, entry); err != nil {
		return nil, err
	}
	if err := mapConflict(tx.Commit()); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *entryRepository) MarkExpired(
	ctx context.Context, entryID string,
) (*domain.CrossChannelEntry, error) {
	var entry *domain.CrossChannelEntry
	var err error

	for range maxRetries {
		entry, err = r.markExpired(entryID)
		if err == nil {
			return entry, nil
		}
		if errors.Is(err, badger.ErrConflict) || domain.Is(err, domain.Conflict) {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		return nil, err
	}
	return nil, err
}

func (r *entryRepository) markExpired(entryID string) (*domain.CrossChannelEntry, error) {
	tx := r.store.Badger().NewTransaction(true)
	defer tx.Discard()

	var entry domain.CrossChannelEntry
	if err := r.store.TxGet(tx, entryID, &entry); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.NotFound.New("entry %s does not exist", entryID)
		}
		return nil, err
	}
	switch entry.Status {
	case domain.EntryStatusResolved:
		return nil, domain.AlreadyResolved.New(
			"entry %s has already been resolved by %s", entryID, entry.ResolvedBy,
		)
	case domain.EntryStatusExpired:
		return &entry, nil
	}

	entry.Status = domain.EntryStatusExpired
	if err := r.store.TxUpdate(tx, entryID, entry); err != nil {
		return nil, err
	}
	if err := mapConflict(tx.Commit()); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *entryRepository) GetPendingBefore(
	ctx context.Context, cutoff int64,
) ([]domain.CrossChannelEntry, error) {
	var entries []domain.CrossChannelEntry
	query := badgerhold.Where("Status").
		Eq(domain.EntryStatusPending).
		And("TimeoutEpoch").
		Le(cutoff)
	if err := r.store.Find(&entries, query); err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].EntryID < entries[j].EntryID
	})
	return entries, nil
}
