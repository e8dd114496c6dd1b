package application

import (
	"context"
	"math"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tenorledger/tenord/internal/core/domain"
	"github.com/tenorledger/tenord/internal/core/ports"
)

// entryWatcher enforces the settlement timeout. Every pending entry gets a
// one-shot task scheduled right after its timeout that marks the entry
// EXPIRED and releases the frozen source-side assets. Restarts reload the
// pending set from the store so no entry is ever left without a task.
type entryWatcher struct {
	repoManager ports.RepoManager
	scheduler   ports.SchedulerService

	locker         *sync.Mutex
	scheduledTasks map[string]struct{}
}

func newEntryWatcher(repoManager ports.RepoManager, scheduler ports.SchedulerService) *entryWatcher {
	return &entryWatcher{
		repoManager:    repoManager,
		scheduler:      scheduler,
		locker:         &sync.Mutex{},
		scheduledTasks: make(map[string]struct{}),
	}
}

func (w *entryWatcher) start() error {
	w.scheduler.Start()

	pending, err := w.repoManager.Entries().GetPendingBefore(context.Background(), math.MaxInt64)
	if err != nil {
		return err
	}
	for _, entry := range pending {
		if err := w.scheduleEntry(entry); err != nil {
			log.WithError(err).Warnf("failed to schedule expiry of entry %s", entry.EntryID)
		}
	}
	return nil
}

func (w *entryWatcher) stop() {
	w.scheduler.Stop()
}

func (w *entryWatcher) scheduleEntry(entry domain.CrossChannelEntry) error {
	w.locker.Lock()
	if _, ok := w.scheduledTasks[entry.EntryID]; ok {
		w.locker.Unlock()
		return nil
	}
	w.scheduledTasks[entry.EntryID] = struct{}{}
	w.locker.Unlock()

	// expiry fires strictly after the timeout, the timeout second itself is
	// still resolvable
	at := entry.TimeoutEpoch + 1
	if !w.scheduler.AfterNow(at) {
		go w.expireEntry(entry.EntryID)
		return nil
	}

	entryID := entry.EntryID
	return w.scheduler.ScheduleTaskOnce(at, func() {
		w.expireEntry(entryID)
	})
}

func (w *entryWatcher) expireEntry(entryID string) {
	defer func() {
		w.locker.Lock()
		delete(w.scheduledTasks, entryID)
		w.locker.Unlock()
	}()

	ctx := context.Background()
	entry, err := w.repoManager.Entries().MarkExpired(ctx, entryID)
	if err != nil {
		if domain.Is(err, domain.AlreadyResolved) {
			log.Debugf("entry %s resolved before its timeout, nothing to expire", entryID)
			return
		}
		log.WithError(err).Warnf("failed to expire entry %s", entryID)
		return
	}

	if len(entry.FrozenKeys) == 0 {
		return
	}
	if err := w.repoManager.Assets().UpdateAssetsState(
		ctx, entry.FrozenKeys, domain.StateLiquid, domain.ActionUnfreeze,
	); err != nil {
		log.WithError(err).Warnf("failed to unfreeze assets of expired entry %s", entryID)
		return
	}
	log.Debugf("expired entry %s and unfroze %d assets", entryID, len(entry.FrozenKeys))
}
