package tracker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"minecraft-tracker-backend/config"
	"minecraft-tracker-backend/internal/fetcher"
	"minecraft-tracker-backend/internal/model"
	"minecraft-tracker-backend/internal/notification"
	"minecraft-tracker-backend/internal/store"
)

// Outcome is the per-server result of one tracking cycle. Failures are
// carried as values; nothing a single server does can abort the cycle.
type Outcome struct {
	Server       string
	Fetched      bool
	RecordErr    error
	ReconcileErr error
}

// OK reports whether the server was fetched and persisted cleanly.
func (o Outcome) OK() bool {
	return o.Fetched && o.RecordErr == nil && o.ReconcileErr == nil
}

// CycleReport aggregates the outcomes of one full cycle.
type CycleReport struct {
	Outcomes []Outcome
}

// Fetched returns how many servers produced a snapshot this cycle.
func (r CycleReport) Fetched() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Fetched {
			n++
		}
	}
	return n
}

// Service drives the tracking cycles against the store.
type Service struct {
	cfg        *config.Config
	store      store.Store
	fetcher    *fetcher.Fetcher
	workerPool *notification.WorkerPool

	// lastOnline remembers the previous cycle's reachability per server,
	// to detect online/offline transitions. Guarded by lastMu: a manual
	// TrackOnce may overlap the Run loop's cycle.
	lastMu     sync.Mutex
	lastOnline map[int64]bool
}

// NewService creates and initializes a new tracker service.
func NewService(cfg *config.Config, st store.Store) *Service {
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	return &Service{
		cfg:        cfg,
		store:      st,
		fetcher:    fetcher.New(&cfg.Tracker),
		workerPool: notification.NewWorkerPool(cfg.WorkerPool.Size, st.DB(), &webpushOptions),
		lastOnline: make(map[int64]bool),
	}
}

// Run starts the tracking loop. The timer is reset only after a cycle
// completes, so cycles never overlap.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Tracker.Enabled {
		log.Println("Tracker is disabled. Not starting.")
		return
	}
	log.Println("Starting tracker service...")

	s.workerPool.Start(ctx)

	s.TrackOnce(ctx)

	timer := time.NewTimer(s.cfg.Tracker.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Tracker service shutting down.")
			return
		case <-timer.C:
			s.TrackOnce(ctx)
			timer.Reset(s.cfg.Tracker.Interval)
		}
	}
}

// TrackOnce performs a single tracking cycle over all registered servers:
// fetch a snapshot, append a population record, reconcile sessions. The
// full server list is always walked; per-server failures end up in the
// returned report.
func (s *Service) TrackOnce(ctx context.Context) CycleReport {
	log.Println("Executing tracking cycle...")
	now := time.Now().UTC()

	var report CycleReport

	servers, err := s.store.ListServers(ctx)
	if err != nil {
		log.Printf("Error listing servers, skipping cycle: %v", err)
		return report
	}

	for _, server := range servers {
		outcome := Outcome{Server: server.Endpoint()}

		snapshot := s.fetcher.Fetch(ctx, server)
		if snapshot == nil {
			s.observeReachability(server, false)
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}
		outcome.Fetched = true

		if err := s.store.RecordPopulation(ctx, server.ID, snapshot.PlayerCount, now); err != nil {
			outcome.RecordErr = err
			log.Printf("Error recording population for %s: %v", server.Endpoint(), err)
		}

		if err := s.store.ReconcileSessions(ctx, server, snapshot.Players, now, s.cfg.Tracker.IntervalMinutes); err != nil {
			outcome.ReconcileErr = err
			log.Printf("Error reconciling sessions for %s: %v", server.Endpoint(), err)
		}

		s.observeReachability(server, true)
		report.Outcomes = append(report.Outcomes, outcome)
	}

	log.Printf("Tracking cycle finished: %d/%d servers fetched.", report.Fetched(), len(report.Outcomes))
	return report
}

// observeReachability updates the last-known online state for a server
// and dispatches a notification job when it flips. The first observation
// of a server only records the state.
func (s *Service) observeReachability(server model.Server, online bool) {
	s.lastMu.Lock()
	prev, seen := s.lastOnline[server.ID]
	s.lastOnline[server.ID] = online
	s.lastMu.Unlock()
	if !seen || prev == online {
		return
	}

	log.Printf("Server %s transitioned to online=%t, dispatching notifications", server.Endpoint(), online)
	s.workerPool.Dispatch(notification.ServerEvent{ServerID: server.ID, Online: online})
}
