package application_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tenorledger/tenord/internal/core/application"
	"github.com/tenorledger/tenord/internal/core/domain"
	"github.com/tenorledger/tenord/internal/core/ports"
	badgerdb "github.com/tenorledger/tenord/internal/infrastructure/db/badger"
	eventsinmemory "github.com/tenorledger/tenord/internal/infrastructure/events/inmemory"
)

var (
	adminIdentity = domain.Identity{ID: "operator", Role: domain.AdminRole}
	alice         = domain.Identity{ID: "alice", Role: "user"}
	bob           = domain.Identity{ID: "bob", Role: "user"}
)

type testRepoManager struct {
	assets  domain.AssetRepository
	entries domain.EntryRepository
}

func (m *testRepoManager) Assets() domain.AssetRepository  { return m.assets }
func (m *testRepoManager) Entries() domain.EntryRepository { return m.entries }
func (m *testRepoManager) Close() {
	m.assets.Close()
	m.entries.Close()
}

func newRepoManager(t *testing.T) ports.RepoManager {
	t.Helper()

	assetRepo, err := badgerdb.NewAssetRepository("", nil)
	require.NoError(t, err)
	entryRepo, err := badgerdb.NewEntryRepository("", nil)
	require.NoError(t, err)

	rm := &testRepoManager{assets: assetRepo, entries: entryRepo}
	t.Cleanup(rm.Close)
	return rm
}

// mockScheduler records scheduled tasks so tests fire expirations
// deterministically. AfterNow always reports true to keep the watcher from
// expiring entries in the background.
type mockScheduler struct {
	lock  sync.Mutex
	tasks []func()
}

func (m *mockScheduler) Start() {}
func (m *mockScheduler) Stop()  {}

func (m *mockScheduler) AfterNow(expiry int64) bool { return true }

func (m *mockScheduler) ScheduleTaskOnce(at int64, task func()) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *mockScheduler) fire() {
	m.lock.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.lock.Unlock()

	for _, task := range tasks {
		task()
	}
}

func (m *mockScheduler) taskCount() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.tasks)
}

type testFixture struct {
	svc       application.Service
	repo      ports.RepoManager
	scheduler *mockScheduler
	events    <-chan ports.Event
	now       int64
}

func newTestService(t *testing.T) *testFixture {
	t.Helper()

	rm := newRepoManager(t)
	scheduler := &mockScheduler{}
	publisher := eventsinmemory.NewPublisher()
	t.Cleanup(publisher.Close)
	events := publisher.Subscribe()

	svc, err := application.NewService("channel0", rm, publisher, scheduler, nil)
	require.NoError(t, err)

	return &testFixture{
		svc:       svc,
		repo:      rm,
		scheduler: scheduler,
		events:    events,
		now:       time.Now().Unix(),
	}
}

func (f *testFixture) tx(txid string, identity domain.Identity) ports.TxContext {
	return ports.TxContext{TxID: txid, TxTime: f.now, Identity: identity}
}

func (f *testFixture) txAt(txid string, txTime int64, identity domain.Identity) ports.TxContext {
	return ports.TxContext{TxID: txid, TxTime: txTime, Identity: identity}
}

// drainEvents empties the event channel and returns what was buffered.
func (f *testFixture) drainEvents() []ports.Event {
	events := make([]ports.Event, 0)
	for {
		select {
		case event, ok := <-f.events:
			if !ok {
				return events
			}
			events = append(events, event)
		default:
			return events
		}
	}
}
