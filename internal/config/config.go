package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tenorledger/tenord/internal/core/application"
	"github.com/tenorledger/tenord/internal/core/ports"
	"github.com/tenorledger/tenord/internal/infrastructure/db"
	eventsinmemory "github.com/tenorledger/tenord/internal/infrastructure/events/inmemory"
	remoteinmemory "github.com/tenorledger/tenord/internal/infrastructure/remote/inmemory"
	timescheduler "github.com/tenorledger/tenord/internal/infrastructure/scheduler/gocron"
	"github.com/tenorledger/tenord/internal/infrastructure/txcontext"
	"github.com/urfave/cli/v2"
)

var (
	supportedDbs = supportedType{
		"badger": {},
		"sqlite": {},
	}
	supportedSchedulers = supportedType{
		"gocron": {},
	}
)

const (
	DefaultPort = 7070

	defaultDatadir       = "./data"
	defaultLogLevel      = 4 // info
	defaultDbType        = "badger"
	defaultSchedulerType = "gocron"
	defaultLedgerID      = "channel0"
)

type Config struct {
	Datadir  string
	Port     uint32
	LogLevel int
	LedgerID string

	DbType        string
	DbDir         string
	SchedulerType string

	repo      ports.RepoManager
	scheduler ports.SchedulerService
	publisher ports.EventPublisher
	remote    ports.RemoteLedger
	txCtx     ports.TxContextProvider
	svc       application.Service
}

// env returns a list of strings prefixed with `TENORD_`.
// This is used as a syntax sugar for defining env vars.
func env(values ...string) []string {
	envs := make([]string, len(values))

	for i, value := range values {
		envs[i] = fmt.Sprintf("TENORD_%s", value)
	}

	return envs
}

var (
	Datadir = &cli.StringFlag{
		Usage: "Directory to store data",
		Name:  "datadir", EnvVars: env("DATADIR"),
		Value: defaultDatadir,
	}

	Port = &cli.UintFlag{
		Usage: "Port to listen on",
		Name:  "port", EnvVars: env("PORT"),
		Value: uint(DefaultPort),
	}

	LogLevel = &cli.IntFlag{
		Usage: "Logging level (0-6, where 6 is trace)",
		Name:  "log-level", EnvVars: env("LOG_LEVEL"),
		Value: defaultLogLevel,
	}

	LedgerID = &cli.StringFlag{
		Usage: "Name of the channel this ledger instance serves",
		Name:  "ledger-id", EnvVars: env("LEDGER_ID"),
		Value: defaultLedgerID,
	}

	DbType = &cli.StringFlag{
		Usage: "Database type (sqlite, badger)",
		Name:  "db-type", EnvVars: env("DB_TYPE"),
		Value: defaultDbType,
	}

	SchedulerType = &cli.StringFlag{
		Usage: "Scheduler type (gocron)",
		Name:  "scheduler-type", EnvVars: env("SCHEDULER_TYPE"),
		Value: defaultSchedulerType,
	}
)

var Flags = []cli.Flag{
	Datadir,
	Port,
	LogLevel,
	LedgerID,
	DbType,
	SchedulerType,
}

func LoadConfig(c *cli.Context) (*Config, error) {
	if err := initDatadir(c); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %s", err)
	}

	dbPath := filepath.Join(c.String(Datadir.Name), "db")

	return &Config{
		Datadir:       c.String(Datadir.Name),
		Port:          uint32(c.Uint(Port.Name)),
		LogLevel:      c.Int(LogLevel.Name),
		LedgerID:      c.String(LedgerID.Name),
		DbType:        c.String(DbType.Name),
		DbDir:         dbPath,
		SchedulerType: c.String(SchedulerType.Name),
	}, nil
}

func (c *Config) Validate() error {
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedSchedulers.supports(c.SchedulerType) {
		return fmt.Errorf(
			"scheduler type not supported, please select one of: %s",
			supportedSchedulers,
		)
	}
	if len(c.LedgerID) == 0 {
		return fmt.Errorf("ledger id must not be empty")
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	if err := c.publisherService(); err != nil {
		return err
	}
	if err := c.remoteService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

func (c *Config) TxContextProvider() ports.TxContextProvider {
	if c.txCtx == nil {
		c.txCtx = txcontext.NewProvider()
	}
	return c.txCtx
}

func (c *Config) RepoManager() ports.RepoManager {
	return c.repo
}

func (c *Config) repoManager() error {
	var dataStoreConfig []interface{}
	logger := log.New()

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "sqlite":
		dataStoreConfig = []interface{}{c.DbDir}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err := db.NewService(db.ServiceConfig{
		DataStoreType:   c.DbType,
		DataStoreConfig: dataStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) schedulerService() error {
	switch c.SchedulerType {
	case "gocron":
		c.scheduler = timescheduler.NewScheduler()
	default:
		return fmt.Errorf("unknown scheduler type")
	}
	return nil
}

func (c *Config) publisherService() error {
	c.publisher = eventsinmemory.NewPublisher()
	return nil
}

func (c *Config) remoteService() error {
	registry := remoteinmemory.NewRegistry()
	registry.Register(c.LedgerID, c.repo)
	c.remote = registry
	return nil
}

func (c *Config) appService() error {
	svc, err := application.NewService(
		c.LedgerID, c.repo, c.publisher, c.scheduler, c.remote,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

func initDatadir(c *cli.Context) error {
	datadir := c.String(Datadir.Name)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0o755)
	}
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
