// Package digest periodically persists conversation statistics.
package digest

import (
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/conversation"
	"github.com/matheus3301/wppbot/internal/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Options configures a Scheduler.
type Options struct {
	Core *conversation.Core
	DB   *store.DB
	Bus  *bus.Bus
	// Schedule is a standard cron expression or descriptor such as "@hourly".
	// Empty disables the scheduler.
	Schedule string
	// Retention bounds how long digests are kept. Zero keeps them forever.
	Retention time.Duration
	Logger    *zap.Logger
}

// Scheduler takes a stats digest on a cron schedule.
type Scheduler struct {
	core      *conversation.Core
	db        *store.DB
	bus       *bus.Bus
	schedule  string
	retention time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewScheduler creates a digest scheduler.
func NewScheduler(opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Scheduler{
		core:      opts.Core,
		db:        opts.DB,
		bus:       opts.Bus,
		schedule:  opts.Schedule,
		retention: opts.Retention,
		logger:    opts.Logger,
		cron:      cron.New(),
	}
}

// Start validates the schedule and begins running digests.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("digest schedule not configured, skipping scheduler")
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Run(time.Now()); err != nil {
			s.logger.Error("scheduled digest failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule digest: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("digest scheduler started",
		zap.String("schedule", s.schedule),
		zap.Duration("retention", s.retention),
	)
	return nil
}

// Stop stops the scheduler and waits for a running digest to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("digest scheduler stopped")
}

// NextRun returns the next scheduled digest time, or the zero time when the
// scheduler is not running.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Run takes one digest at now, stores it, prunes expired digests and
// publishes a stats.digest event carrying the stats.
func (s *Scheduler) Run(now time.Time) (*store.Digest, error) {
	snap := s.core.Snapshot()
	d := FromStats(snap.Stats, now)
	if err := s.db.SaveDigest(d); err != nil {
		return nil, fmt.Errorf("save digest: %w", err)
	}

	if s.retention > 0 {
		pruned, err := s.db.PruneDigests(now.Add(-s.retention))
		if err != nil {
			s.logger.Warn("prune digests failed", zap.Error(err))
		} else if pruned > 0 {
			s.logger.Debug("pruned digests", zap.Int64("count", pruned))
		}
	}

	if s.bus != nil {
		s.bus.Publish(bus.Event{Kind: bus.KindStatsDigest, Timestamp: now, Payload: snap.Stats})
	}
	s.logger.Info("stats digest taken",
		zap.Int("total_messages", d.TotalMessages),
		zap.Int("unread_messages", d.UnreadMessages),
		zap.Int("response_rate", d.ResponseRate),
	)
	return d, nil
}

// FromStats converts stats into a storable digest.
func FromStats(st conversation.Stats, takenAt time.Time) *store.Digest {
	d := &store.Digest{
		TakenAt:             takenAt,
		TotalMessages:       st.TotalMessages,
		IncomingMessages:    st.IncomingMessages,
		OutgoingMessages:    st.OutgoingMessages,
		ActiveConversations: st.ActiveConversations,
		UnreadMessages:      st.UnreadMessages,
		ResponseRate:        st.ResponseRate,
	}
	if st.AverageResponseTime.Available() {
		avg := st.AverageResponseTime.Mean
		d.AverageResponse = &avg
	}
	return d
}
