package ports

import "github.com/tenorledger/tenord/internal/core/domain"

type RepoManager interface {
	Assets() domain.AssetRepository
	Entries() domain.EntryRepository
	Close()
}
