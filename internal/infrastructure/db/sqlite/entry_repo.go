package sqlitedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tenorledger/tenord/internal/core/domain"
)

type entryRepository struct {
	db *sql.DB
}

func NewEntryRepository(config ...interface{}) (domain.EntryRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open entry repository: invalid config")
	}

	return &entryRepository{db}, nil
}

func (r *entryRepository) Close() {
	_ = r.db.Close()
}

const selectEntry = `
SELECT entry_id, client_id, source_ledger, recipient_id, recipient_ledger,
	amount, frozen_keys, enforcement_date, expiration_date, timeout_epoch,
	status, resolved_by
FROM entries
`

func (r *entryRepository) AddEntry(ctx context.Context, entry domain.CrossChannelEntry) error {
	frozenKeys, err := json.Marshal(entry.FrozenKeys)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO entries (
			entry_id, client_id, source_ledger, recipient_id, recipient_ledger,
			amount, frozen_keys, enforcement_date, expiration_date, timeout_epoch,
			status, resolved_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EntryID, entry.ClientID, entry.SourceLedger, entry.RecipientID,
		entry.RecipientLedger, int64(entry.Amount), string(frozenKeys),
		entry.Tenor.EnforcementDate, entry.Tenor.ExpirationDate,
		entry.TimeoutEpoch, string(entry.Status), entry.ResolvedBy,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.AssetAlreadyExists.New("entry %s already exists", entry.EntryID)
		}
		return mapConflict(err)
	}
	return nil
}

func (r *entryRepository) GetEntry(
	ctx context.Context, entryID string,
) (*domain.CrossChannelEntry, error) {
	row := r.db.QueryRowContext(ctx, selectEntry+"WHERE entry_id = ?", entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound.New("entry %s does not exist", entryID)
		}
		return nil, err
	}
	return entry, nil
}

func (r *entryRepository) MarkResolved(
	ctx context.Context, entryID, resolvedBy string,
) (*domain.CrossChannelEntry, error) {
	return r.transition(ctx, entryID, domain.EntryStatusResolved, resolvedBy)
}

func (r *entryRepository) MarkExpired(
	ctx context.Context, entryID string,
) (*domain.CrossChannelEntry, error) {
	return r.transition(ctx, entryID, domain.EntryStatusExpired, "")
}

// transition applies a PENDING-only status change inside one transaction so
// two concurrent resolutions cannot both pass the status check.
func (r *entryRepository) transition(
	ctx context.Context, entryID string, to domain.EntryStatus, resolvedBy string,
) (*domain.CrossChannelEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapConflict(err)
	}
	// nolint:all
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, selectEntry+"WHERE entry_id = ?", entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
		if to == domain.EntryStatusExpired {
			return entry, nil
		}
		return nil, domain.EntryExpired.New("entry %s has expired", entryID)
	}

	entry.Status = to
	entry.ResolvedBy = resolvedBy
	if _, err := tx.ExecContext(ctx,
		"UPDATE entries SET status = ?, resolved_by = ? WHERE entry_id = ?",
		string(to), resolvedBy, entryID,
	); err != nil {
		return nil, err
	}
	if err := mapConflict(tx.Commit()); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *entryRepository) GetPendingBefore(
	ctx context.Context, cutoff int64,
) ([]domain.CrossChannelEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		selectEntry+"WHERE status = ? AND timeout_epoch <= ? ORDER BY entry_id ASC",
		string(domain.EntryStatusPending), cutoff,
	)
	if err != nil {
		return nil, err
	}
	// nolint:all
	defer rows.Close()

	entries := make([]domain.CrossChannelEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func scanEntry(row rowScanner) (*domain.CrossChannelEntry, error) {
	var (
		e          domain.CrossChannelEntry
		amount     int64
		frozenKeys string
		status     string
	)
	if err := row.Scan(
		&e.EntryID, &e.ClientID, &e.SourceLedger, &e.RecipientID, &e.RecipientLedger,
		&amount, &frozenKeys, &e.Tenor.EnforcementDate, &e.Tenor.ExpirationDate,
		&e.TimeoutEpoch, &status, &e.ResolvedBy,
	); err != nil {
		return nil, err
	}
	e.Amount = uint64(amount)
	e.Status = domain.EntryStatus(status)
	if len(frozenKeys) > 0 {
		if err := json.Unmarshal([]byte(frozenKeys), &e.FrozenKeys); err != nil {
			return nil, err
		}
	}
	return &e, nil
}
