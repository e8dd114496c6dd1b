package db

import (
	"embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/tenorledger/tenord/internal/core/domain"
	"github.com/tenorledger/tenord/internal/core/ports"
	badgerdb "github.com/tenorledger/tenord/internal/infrastructure/db/badger"
	sqlitedb "github.com/tenorledger/tenord/internal/infrastructure/db/sqlite"
)

//go:embed sqlite/migration/*
var migrations embed.FS

var (
	assetStoreTypes = map[string]func(...interface{}) (domain.AssetRepository, error){
		"badger": badgerdb.NewAssetRepository,
		"sqlite": sqlitedb.NewAssetRepository,
	}
	entryStoreTypes = map[string]func(...interface{}) (domain.EntryRepository, error){
		"badger": badgerdb.NewEntryRepository,
		"sqlite": sqlitedb.NewEntryRepository,
	}
)

const (
	sqliteDbFile = "sqlite.db"
)

type ServiceConfig struct {
	DataStoreType   string
	DataStoreConfig []interface{}
}

type service struct {
	assetStore domain.AssetRepository
	entryStore domain.EntryRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	assetStoreFactory, ok := assetStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("asset store type not supported")
	}
	entryStoreFactory, ok := entryStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("entry store type not supported")
	}

	var assetStore domain.AssetRepository
	var entryStore domain.EntryRepository
	var err error

	switch config.DataStoreType {
	case "badger":
		assetStore, err = assetStoreFactory(config.DataStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open asset store: %s", err)
		}
		entryStore, err = entryStoreFactory(config.DataStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open entry store: %s", err)
		}

	case "sqlite":
		if len(config.DataStoreConfig) != 1 {
			return nil, fmt.Errorf("invalid data store config")
		}

		baseDir, ok := config.DataStoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}

		dbFile := filepath.Join(baseDir, sqliteDbFile)
		db, err := sqlitedb.OpenDb(dbFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %s", err)
		}

		driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init driver: %s", err)
		}

		source, err := iofs.New(migrations, "sqlite/migration")
		if err != nil {
			return nil, fmt.Errorf("failed to embed migrations: %s", err)
		}

		m, err := migrate.NewWithInstance("iofs", source, "tenordb", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migration instance: %s", err)
		}

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("failed to run migrations: %s", err)
		}

		assetStore, err = assetStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open asset store: %s", err)
		}
		entryStore, err = entryStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open entry store: %s", err)
		}

	default:
		return nil, fmt.Errorf("unknown data store db type")
	}

	return &service{
		assetStore: assetStore,
		entryStore: entryStore,
	}, nil
}

func (s *service) Assets() domain.AssetRepository {
	return s.assetStore
}

func (s *service) Entries() domain.EntryRepository {
	return s.entryStore
}

func (s *service) Close() {
	s.assetStore.Close()
	s.entryStore.Close()
}
