package reel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reelworks/reel-agent/internal/platform"
)

// Reprocess controller states. Transitions only move forward through
// Idle -> Starting -> Tracking -> Completed|Failed -> Idle.
type ReprocessState string

const (
	StateIdle      ReprocessState = "idle"
	StateStarting  ReprocessState = "starting"
	StateTracking  ReprocessState = "tracking"
	StateCompleted ReprocessState = "completed"
	StateFailed    ReprocessState = "failed"
)

var (
	// ErrReprocessActive is returned when Start is called outside Idle.
	// The check is local; no request is issued.
	ErrReprocessActive = errors.New("reprocessing already in progress")

	// ErrNoActiveJob is returned when Cancel is called with no tracked job.
	ErrNoActiveJob = errors.New("no active reprocessing job")

	// ErrNotTerminal is returned when Acknowledge is called before the
	// job reached a terminal status.
	ErrNotTerminal = errors.New("no reprocessing result to acknowledge")
)

// ReprocessHooks are fired by the controller on lifecycle events. The
// session uses them for cache invalidation and user notifications.
// OnCompleted fires exactly once per completed job.
type ReprocessHooks struct {
	OnCompleted func()
	OnFailed    func(message string)
	OnError     func(err error)
}

// ReprocessStatus is a point-in-time snapshot for status surfaces.
type ReprocessStatus struct {
	State    ReprocessState `json:"state"`
	JobID    string         `json:"job_id,omitempty"`
	Progress int            `json:"progress"`
	Message  string         `json:"message,omitempty"`
}

// ReprocessController owns the reprocessing lifecycle of one reel. At
// most one job is tracked at a time.
type ReprocessController struct {
	reelID string
	client platform.Client
	poller *Poller
	hooks  ReprocessHooks
	logger *slog.Logger

	mu    sync.Mutex
	state ReprocessState
	job   *platform.ReprocessJob
	sub   *Subscription
}

func NewReprocessController(reelID string, client platform.Client, poller *Poller, hooks ReprocessHooks, logger *slog.Logger) *ReprocessController {
	return &ReprocessController{
		reelID: reelID,
		client: client,
		poller: poller,
		hooks:  hooks,
		logger: logger,
		state:  StateIdle,
	}
}

// Start kicks off a reprocessing job and begins tracking it. The ctx
// bounds the whole tracking loop, so the session passes its lifetime
// context here.
func (c *ReprocessController) Start(ctx context.Context) (*platform.ReprocessJob, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrReprocessActive
	}
	c.state = StateStarting
	c.mu.Unlock()

	job, err := c.client.StartReprocess(ctx, c.reelID)
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return nil, fmt.Errorf("start reprocessing: %w", err)
	}

	fetch := func(ctx context.Context) (*platform.ReprocessJob, error) {
		return c.client.GetReprocessStatus(ctx, c.reelID, job.ID)
	}

	c.mu.Lock()
	c.state = StateTracking
	c.job = job
	c.sub = c.poller.Start(ctx, job.ID, fetch)
	sub := c.sub
	c.mu.Unlock()

	c.logger.Info("tracking reprocess job", "reel_id", c.reelID, "job_id", job.ID)
	go c.consume(sub)

	return job, nil
}

func (c *ReprocessController) consume(sub *Subscription) {
	for u := range sub.Updates() {
		if u.Err != nil {
			// The query failed, so the job's true remote status is
			// unknown: back to Idle, not Failed.
			c.mu.Lock()
			if c.state != StateTracking {
				c.mu.Unlock()
				return
			}
			c.state = StateIdle
			c.job = nil
			c.sub = nil
			c.mu.Unlock()
			if c.hooks.OnError != nil {
				c.hooks.OnError(u.Err)
			}
			return
		}

		c.mu.Lock()
		if c.state != StateTracking {
			// Cancelled while this update was in flight.
			c.mu.Unlock()
			return
		}
		c.job = u.Job
		if !u.Job.Terminal() {
			c.mu.Unlock()
			continue
		}

		if u.Job.Status == platform.JobStatusCompleted {
			c.state = StateCompleted
		} else {
			c.state = StateFailed
		}
		c.sub = nil
		c.mu.Unlock()

		c.logger.Info("reprocess job finished", "reel_id", c.reelID, "job_id", u.Job.ID, "status", u.Job.Status)
		if u.Job.Status == platform.JobStatusCompleted {
			if c.hooks.OnCompleted != nil {
				c.hooks.OnCompleted()
			}
		} else if c.hooks.OnFailed != nil {
			c.hooks.OnFailed(u.Job.Message)
		}
		return
	}
}

// Cancel stops tracking and best-effort cancels the remote job. The reel
// is not invalidated: nothing completed.
func (c *ReprocessController) Cancel(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateTracking || c.job == nil {
		c.mu.Unlock()
		return ErrNoActiveJob
	}
	jobID := c.job.ID
	sub := c.sub
	c.state = StateIdle
	c.job = nil
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}

	if err := c.client.CancelReprocess(ctx, c.reelID, jobID); err != nil {
		c.logger.Warn("remote cancel failed", "reel_id", c.reelID, "job_id", jobID, "error", err)
	}
	c.logger.Info("reprocess cancelled", "reel_id", c.reelID, "job_id", jobID)
	return nil
}

// Acknowledge returns the controller to Idle after the user has seen a
// terminal result. A failed job must be acknowledged before a retry.
func (c *ReprocessController) Acknowledge() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCompleted && c.state != StateFailed {
		return ErrNotTerminal
	}
	c.state = StateIdle
	c.job = nil
	return nil
}

// Status returns a snapshot of the controller state.
func (c *ReprocessController) Status() ReprocessStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := ReprocessStatus{State: c.state}
	if c.job != nil {
		s.JobID = c.job.ID
		s.Progress = c.job.Progress
		s.Message = c.job.Message
	}
	return s
}

// State returns the current lifecycle state.
func (c *ReprocessController) State() ReprocessState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
