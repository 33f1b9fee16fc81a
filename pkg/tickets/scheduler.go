package tickets

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Jacobbrewer1/kennel/pkg/logging"
)

// DeleteFunc deletes a channel.
type DeleteFunc func(ctx context.Context, channelID string) error

type pendingDeletion struct {
	timer Timer
	due   time.Time
	seq   uint64
}

// Scheduler deletes channels after a delay. Entries are keyed by channel ID and can
// be replaced, cancelled, or flushed on shutdown.
type Scheduler struct {
	l *slog.Logger

	clock   Clock
	delay   time.Duration
	timeout time.Duration
	del     DeleteFunc

	mut     sync.Mutex
	pending map[string]*pendingDeletion
	seq     uint64
	closed  bool

	// wg tracks deletions that are running.
	wg sync.WaitGroup
}

// NewScheduler creates a scheduler that calls del for a channel delay after it was scheduled.
// Each deletion runs under a context with the given timeout.
func NewScheduler(l *slog.Logger, clock Clock, delay, timeout time.Duration, del DeleteFunc) *Scheduler {
	return &Scheduler{
		l:       l,
		clock:   clock,
		delay:   delay,
		timeout: timeout,
		del:     del,
		pending: make(map[string]*pendingDeletion),
	}
}

// Delay is the time between scheduling and deleting a channel.
func (s *Scheduler) Delay() time.Duration {
	return s.delay
}

// Schedule queues the channel for deletion, replacing any earlier entry for it.
// It returns when the deletion is due, or false if the scheduler has shut down.
func (s *Scheduler) Schedule(channelID string) (time.Time, bool) {
	s.mut.Lock()
	defer s.mut.Unlock()

	if s.closed {
		s.l.Warn("Deletion scheduler is shut down, not scheduling", slog.String(logging.KeyChannelID, channelID))
		return time.Time{}, false
	}

	if p, ok := s.pending[channelID]; ok {
		p.timer.Stop()
		delete(s.pending, channelID)
	}

	s.seq++
	seq := s.seq
	p := &pendingDeletion{
		due: s.clock.Now().Add(s.delay),
		seq: seq,
	}
	s.pending[channelID] = p
	p.timer = s.clock.AfterFunc(s.delay, func() {
		s.fire(channelID, seq)
	})

	PendingDeletions.Set(float64(len(s.pending)))
	return p.due, true
}

// Cancel removes the pending deletion of the channel. It reports whether one was pending.
func (s *Scheduler) Cancel(channelID string) bool {
	s.mut.Lock()
	defer s.mut.Unlock()

	p, ok := s.pending[channelID]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(s.pending, channelID)
	PendingDeletions.Set(float64(len(s.pending)))
	return true
}

// Pending returns when the channel's deletion is due, if one is pending.
func (s *Scheduler) Pending(channelID string) (time.Time, bool) {
	s.mut.Lock()
	defer s.mut.Unlock()

	p, ok := s.pending[channelID]
	if !ok {
		return time.Time{}, false
	}
	return p.due, true
}

// Len is the number of pending deletions.
func (s *Scheduler) Len() int {
	s.mut.Lock()
	defer s.mut.Unlock()
	return len(s.pending)
}

func (s *Scheduler) fire(channelID string, seq uint64) {
	s.mut.Lock()
	p, ok := s.pending[channelID]
	if !ok || p.seq != seq {
		// Cancelled or replaced after the timer fired.
		s.mut.Unlock()
		return
	}
	delete(s.pending, channelID)
	PendingDeletions.Set(float64(len(s.pending)))
	s.wg.Add(1)
	s.mut.Unlock()

	defer s.wg.Done()
	s.run(context.Background(), channelID)
}

func (s *Scheduler) run(ctx context.Context, channelID string) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.del(ctx, channelID)
	switch {
	case err == nil:
		ChannelDeletions.WithLabelValues("deleted").Inc()
		s.l.Info("Ticket channel deleted", slog.String(logging.KeyChannelID, channelID))
	case errors.Is(err, ErrChannelNotFound):
		ChannelDeletions.WithLabelValues("gone").Inc()
		s.l.Debug("Ticket channel already deleted", slog.String(logging.KeyChannelID, channelID))
	default:
		ChannelDeletions.WithLabelValues("failed").Inc()
		s.l.Error("Error deleting ticket channel",
			slog.String(logging.KeyChannelID, channelID),
			slog.String(logging.KeyError, err.Error()))
	}
}

// Shutdown stops the scheduler. With flush every pending deletion runs now, otherwise they are
// dropped. It waits for running deletions to finish or ctx to be done.
func (s *Scheduler) Shutdown(ctx context.Context, flush bool) error {
	s.mut.Lock()
	s.closed = true
	pending := make([]string, 0, len(s.pending))
	for channelID, p := range s.pending {
		p.timer.Stop()
		pending = append(pending, channelID)
	}
	s.pending = make(map[string]*pendingDeletion)
	PendingDeletions.Set(0)
	s.mut.Unlock()

	if flush {
		for _, channelID := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.run(ctx, channelID)
		}
	} else if len(pending) > 0 {
		s.l.Info("Dropped pending channel deletions", slog.Int("count", len(pending)))
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
