package reel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reelworks/reel-agent/internal/platform"
)

func TestPoller_StopsAfterTerminalStatus(t *testing.T) {
	statuses := []*platform.ReprocessJob{
		{ID: "job1", Status: platform.JobStatusProcessing, Progress: 40},
		{ID: "job1", Status: platform.JobStatusCompleted, Progress: 100},
	}
	var calls atomic.Int32

	fetch := func(ctx context.Context) (*platform.ReprocessJob, error) {
		n := calls.Add(1)
		if int(n) > len(statuses) {
			t.Error("query issued after terminal status")
			return statuses[len(statuses)-1], nil
		}
		return statuses[n-1], nil
	}

	p := NewPoller(10*time.Millisecond, time.Second, testLogger())
	sub := p.Start(context.Background(), "job1", fetch)

	var updates []PollUpdate
	for u := range sub.Updates() {
		updates = append(updates, u)
	}

	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2", len(updates))
	}
	if updates[0].Job.Status != platform.JobStatusProcessing || updates[0].Job.Progress != 40 {
		t.Errorf("first update = %+v, want processing at 40", updates[0].Job)
	}
	if updates[1].Job.Status != platform.JobStatusCompleted {
		t.Errorf("last update status = %s, want completed", updates[1].Job.Status)
	}

	// The loop must not issue further queries after the terminal emit.
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 2 {
		t.Errorf("queries = %d, want 2", got)
	}
}

func TestPoller_CancelStopsQueries(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context) (*platform.ReprocessJob, error) {
		calls.Add(1)
		return &platform.ReprocessJob{ID: "job1", Status: platform.JobStatusProcessing}, nil
	}

	p := NewPoller(10*time.Millisecond, time.Second, testLogger())
	sub := p.Start(context.Background(), "job1", fetch)

	// Drain updates so the loop keeps ticking, then cancel.
	go func() {
		for range sub.Updates() {
		}
	}()

	waitFor(t, time.Second, func() bool { return calls.Load() >= 2 }, "at least two queries")
	sub.Cancel()

	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != after {
		t.Errorf("queries continued after cancel: %d -> %d", after, got)
	}
}

func TestPoller_NoOverlappingQueries(t *testing.T) {
	var inFlight, maxInFlight, calls atomic.Int32

	fetch := func(ctx context.Context) (*platform.ReprocessJob, error) {
		calls.Add(1)
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		time.Sleep(35 * time.Millisecond) // slower than the interval
		inFlight.Add(-1)
		return &platform.ReprocessJob{ID: "job1", Status: platform.JobStatusProcessing}, nil
	}

	p := NewPoller(10*time.Millisecond, time.Second, testLogger())
	sub := p.Start(context.Background(), "job1", fetch)
	go func() {
		for range sub.Updates() {
		}
	}()

	time.Sleep(150 * time.Millisecond)
	sub.Cancel()

	if got := maxInFlight.Load(); got > 1 {
		t.Errorf("max in-flight queries = %d, want 1", got)
	}
	// Slow queries skip ticks rather than queueing them all.
	if got := calls.Load(); got > 5 {
		t.Errorf("queries = %d, want at most 5 in 150ms with 35ms queries", got)
	}
}

func TestPoller_QueryErrorStopsAndSurfaces(t *testing.T) {
	queryErr := errors.New("connection refused")
	var calls atomic.Int32
	fetch := func(ctx context.Context) (*platform.ReprocessJob, error) {
		calls.Add(1)
		return nil, queryErr
	}

	p := NewPoller(10*time.Millisecond, time.Second, testLogger())
	sub := p.Start(context.Background(), "job1", fetch)

	var updates []PollUpdate
	for u := range sub.Updates() {
		updates = append(updates, u)
	}

	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	if !errors.Is(updates[0].Err, queryErr) {
		t.Errorf("update error = %v, want %v", updates[0].Err, queryErr)
	}
	if updates[0].Job != nil {
		t.Errorf("update carries a job alongside the error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("queries = %d, want 1", got)
	}
}

func TestPoller_BudgetElapsesSilently(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context) (*platform.ReprocessJob, error) {
		calls.Add(1)
		return &platform.ReprocessJob{ID: "job1", Status: platform.JobStatusProcessing, Progress: 10}, nil
	}

	p := NewPoller(10*time.Millisecond, 45*time.Millisecond, testLogger())
	sub := p.Start(context.Background(), "job1", fetch)

	var last PollUpdate
	for u := range sub.Updates() {
		last = u
	}

	// The channel closed because the budget elapsed: no error emission,
	// the last known status stands.
	if last.Err != nil {
		t.Errorf("unexpected error after budget: %v", last.Err)
	}
	if last.Job == nil || last.Job.Status != platform.JobStatusProcessing {
		t.Errorf("last update = %+v, want last known processing status", last.Job)
	}

	after := calls.Load()
	time.Sleep(40 * time.Millisecond)
	if got := calls.Load(); got != after {
		t.Errorf("queries continued after budget: %d -> %d", after, got)
	}
}

func TestPoller_ParentContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	fetch := func(ctx context.Context) (*platform.ReprocessJob, error) {
		calls.Add(1)
		return &platform.ReprocessJob{ID: "job1", Status: platform.JobStatusProcessing}, nil
	}

	p := NewPoller(10*time.Millisecond, time.Second, testLogger())
	sub := p.Start(ctx, "job1", fetch)
	go func() {
		for range sub.Updates() {
		}
	}()

	waitFor(t, time.Second, func() bool { return calls.Load() >= 1 }, "first query")
	cancel()

	select {
	case <-sub.done:
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop on parent context cancel")
	}
}
