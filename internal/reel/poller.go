package reel

import (
	"context"
	"log/slog"
	"time"

	"github.com/reelworks/reel-agent/internal/platform"
)

// StatusFunc performs one remote status query for a tracked job.
type StatusFunc func(ctx context.Context) (*platform.ReprocessJob, error)

// PollUpdate is one emission from a subscription. Err is set when the
// status query itself failed (transport or platform rejection), which is
// distinct from a job reporting a failed status in Job.
type PollUpdate struct {
	Job *platform.ReprocessJob
	Err error
}

// Poller tracks long-running remote jobs by periodic status queries. A
// subscription stops after the first terminal status (emitted once more),
// after Cancel, after a query error, or silently once the wall-clock
// budget elapses.
type Poller struct {
	interval time.Duration
	budget   time.Duration
	logger   *slog.Logger
}

func NewPoller(interval, budget time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		interval: interval,
		budget:   budget,
		logger:   logger,
	}
}

// Subscription is one active polling loop. Updates is closed when the
// loop stops, whatever the reason.
type Subscription struct {
	updates chan PollUpdate
	cancel  context.CancelFunc
	done    chan struct{}
}

// Updates returns the stream of status updates.
func (s *Subscription) Updates() <-chan PollUpdate {
	return s.updates
}

// Cancel stops the subscription immediately. No further queries are
// issued after it returns and the updates channel is closed.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
}

// Start begins polling jobID. The subscription is bound to ctx: cancelling
// it (session teardown) stops the loop the same way Cancel does.
func (p *Poller) Start(ctx context.Context, jobID string, fetch StatusFunc) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		updates: make(chan PollUpdate, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go p.run(ctx, jobID, fetch, sub)
	return sub
}

func (p *Poller) run(ctx context.Context, jobID string, fetch StatusFunc, sub *Subscription) {
	defer close(sub.done)
	defer close(sub.updates)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	deadline := time.NewTimer(p.budget)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			// Supervision safety valve: stop without marking the job
			// failed, the last known status stands.
			p.logger.Warn("polling budget elapsed", "job_id", jobID, "budget", p.budget)
			return
		case <-ticker.C:
			// The query runs inline, so at most one is ever in flight.
			// A query slower than the interval leaves at most one tick
			// pending in the ticker channel; the rest are skipped.
			job, err := fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Error("status query failed", "job_id", jobID, "error", err)
				p.emit(ctx, sub, PollUpdate{Err: err})
				return
			}

			p.emit(ctx, sub, PollUpdate{Job: job})
			if job.Terminal() {
				return
			}
		}
	}
}

func (p *Poller) emit(ctx context.Context, sub *Subscription, u PollUpdate) {
	select {
	case sub.updates <- u:
	case <-ctx.Done():
	}
}
