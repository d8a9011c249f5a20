package scheduler

import (
	"context"
	"time"

	"media-sync/internal/backend"
	"media-sync/internal/cache"
	"media-sync/internal/database"
	"media-sync/internal/events"
	"media-sync/internal/logging"
	"media-sync/internal/metrics"
	"media-sync/internal/model"
	"media-sync/internal/queue"
	"media-sync/internal/reconciler"
)

// ClientSource resolves the backend client for an account.
// *backend.Registry is the production implementation.
type ClientSource interface {
	Client(account model.Account) (backend.Client, error)
}

// Options configures a Scheduler.
type Options struct {
	Database  *database.Database
	Feed      *events.Feed
	Clients   ClientSource
	Rec       *reconciler.Reconciler
	Populator *cache.Populator
	Accounts  []model.Account

	BaseInterval       time.Duration
	MaxIntervalFactor  int
	StalenessThreshold time.Duration
	SeedFolderCount    int
}

// Scheduler is the periodic driver.
type Scheduler struct {
	db        *database.Database
	feed      *events.Feed
	clients   ClientSource
	rec       *reconciler.Reconciler
	populator *cache.Populator
	accounts  []model.Account

	base      time.Duration
	maxFactor int
	staleness time.Duration
	seedCount int

	kick chan struct{}
}

// New creates a scheduler; Run starts the loop.
func New(opts Options) *Scheduler {
	return &Scheduler{
		db:        opts.Database,
		feed:      opts.Feed,
		clients:   opts.Clients,
		rec:       opts.Rec,
		populator: opts.Populator,
		accounts:  opts.Accounts,
		base:      opts.BaseInterval,
		maxFactor: opts.MaxIntervalFactor,
		staleness: opts.StalenessThreshold,
		seedCount: opts.SeedFolderCount,
		kick:      make(chan struct{}, 1),
	}
}

// Kick forces the loop to sweep immediately and reset its interval,
// used by the filesystem watcher and the out-of-band sync endpoint.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run sweeps all accounts, then sleeps for an interval that grows by
// one base step per quiet cycle up to base*maxFactor and snaps back to
// base whenever recent activity is observed. Blocks until ctx ends.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.base
	for {
		s.sweep(ctx)

		interval = s.nextInterval(interval)
		metrics.SchedulerInterval.Set(interval.Seconds())
		logging.Debug("scheduler: sleeping %v", interval)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.kick:
			timer.Stop()
			interval = s.base
		case <-timer.C:
		}
	}
}

// nextInterval applies the adaptive policy: quiet feeds grow the
// interval one base step at a time, activity resets it.
func (s *Scheduler) nextInterval(current time.Duration) time.Duration {
	max := s.base * time.Duration(s.maxFactor)

	latest, ok := s.feed.Latest()
	if ok && time.Since(latest.Date) <= current {
		return s.base
	}
	next := current + s.base
	if next > max {
		next = max
	}
	return next
}

// sweep seeds every account and triggers cache cleanup.
func (s *Scheduler) sweep(ctx context.Context) {
	metrics.SchedulerSweepsTotal.Inc()
	metrics.SchedulerLastSweepTimestamp.SetToCurrentTime()

	for _, account := range s.accounts {
		if ctx.Err() != nil {
			return
		}
		if err := s.StartAccountSync(ctx, account); err != nil {
			logging.Error("scheduler: account %s sweep failed: %v", account.ID, err)
		}
	}
}

// StartAccountSync performs the per-account seeding pass: ensure a root
// folder row exists, queue reconciliation for the root plus the
// newest/oldest/stale folders and the folders of recently updated
// files, then clean the account's artifact cache. Also invoked
// out-of-band right after an account is created or edited.
func (s *Scheduler) StartAccountSync(ctx context.Context, account model.Account) error {
	client, err := s.clients.Client(account)
	if err != nil {
		return err
	}

	root, err := s.ensureRoot(ctx, account)
	if err != nil {
		return err
	}
	s.rec.EnqueueFolder(account, client, root, queue.PriorityNormal)

	seed := func(folders []*model.Folder, err error, what string) {
		if err != nil {
			logging.Error("scheduler: listing %s folders for %s: %v", what, account.ID, err)
			return
		}
		for _, folder := range folders {
			s.rec.EnqueueFolder(account, client, folder, queue.PriorityNormal)
		}
	}

	newest, err := s.db.RecentSyncedFolders(ctx, account.ID, s.seedCount)
	seed(newest, err, "recently synced")
	oldest, err := s.db.OldestSyncedFolders(ctx, account.ID, s.seedCount)
	seed(oldest, err, "least recently synced")
	stale, err := s.db.StaleFolders(ctx, account.ID, time.Now().Add(-s.staleness))
	seed(stale, err, "stale")
	active, err := s.db.FoldersOfRecentFiles(ctx, account.ID, s.seedCount)
	seed(active, err, "recently active")

	if err := s.populator.CleanAccount(ctx, s.db, account.ID); err != nil {
		logging.Error("scheduler: cache cleanup for %s: %v", account.ID, err)
	}
	return nil
}

// ensureRoot returns the indexed root folder for an account, seeding it
// with an epoch sync time when missing so the first pass runs at once.
func (s *Scheduler) ensureRoot(ctx context.Context, account model.Account) (*model.Folder, error) {
	root, err := s.db.GetFolderByPath(ctx, account.ID, "/")
	if err == nil {
		return root, nil
	}

	root = &model.Folder{
		ID:        model.FolderID(account.ID, "/"),
		AccountID: account.ID,
		Path:      "/",
	}
	if err := s.db.UpsertFolder(ctx, root); err != nil {
		return nil, err
	}
	logging.Info("scheduler: seeded root folder for account %s", account.ID)
	return root, nil
}
