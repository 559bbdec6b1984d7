package ingest

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/metrics"
)

type pollResult struct {
	msg *kafka.Message
	err error
}

// fakeSubscription replays queued poll results, then reports empty polls
// until its context is cancelled.
type fakeSubscription struct {
	subscribeErr error

	mu        sync.Mutex
	queue     []pollResult
	committed []int64
	polls     int
	closed    bool
}

func (s *fakeSubscription) Subscribe(ctx context.Context) error {
	return s.subscribeErr
}

func (s *fakeSubscription) Poll(ctx context.Context) (*kafka.Message, error) {
	s.mu.Lock()
	s.polls++
	if len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		return next.msg, next.err
	}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (s *fakeSubscription) Commit(ctx context.Context, msg *kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, msg.Offset)
	return nil
}

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSubscription) snapshot() (committed []int64, closed bool, pending int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...), s.closed, len(s.queue)
}

func message(offset int64, value string) pollResult {
	return pollResult{msg: &kafka.Message{Topic: "application-events", Offset: offset, Value: []byte(value)}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func stopRunner(t *testing.T, r *Runner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestRunnerProcessesMessagesInOrder(t *testing.T) {
	sub := &fakeSubscription{queue: []pollResult{
		message(0, `{"provider":"PCIC","submissionId":"S1"}`),
		message(1, `{"provider":"OTHER","submissionId":"S2"}`),
		message(2, `not valid json`),
		message(3, `{"provider":"PCIC","submissionId":"S3"}`),
	}}
	store := &memCreator{}
	p, m := newTestPipeline(store)
	r := NewRunner(sub, p, m)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool {
		committed, _, _ := sub.snapshot()
		return len(committed) == 4
	})
	if r.State() != StatePolling {
		t.Errorf("state = %s, want polling", r.State())
	}
	stopRunner(t, r)

	recs := store.all()
	if len(recs) != 2 || *recs[0].ApplicationID != "S1" || *recs[1].ApplicationID != "S3" {
		t.Fatalf("stored = %+v, want S1 then S3", recs)
	}
	committed, closed, _ := sub.snapshot()
	for i, off := range committed {
		if off != int64(i) {
			t.Errorf("committed[%d] = %d", i, off)
		}
	}
	if !closed {
		t.Error("subscription not closed on stop")
	}
	if r.State() != StateStopped {
		t.Errorf("state = %s, want stopped", r.State())
	}
	if r.Err() != nil {
		t.Errorf("Err = %v after clean stop", r.Err())
	}
	if got := testutil.ToFloat64(m.ConsumerState); got != float64(StateStopped) {
		t.Errorf("consumer state gauge = %v", got)
	}
}

func TestRunnerSurvivesPollErrors(t *testing.T) {
	sub := &fakeSubscription{queue: []pollResult{
		{err: errors.New("broker not available")},
		{},
		{err: errors.New("request timed out")},
		message(7, `{"provider":"PCIC","submissionId":"S1"}`),
	}}
	store := &memCreator{}
	p, m := newTestPipeline(store)
	r := NewRunner(sub, p, m)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stopRunner(t, r)

	waitFor(t, func() bool { return len(store.all()) == 1 })
	if got := testutil.ToFloat64(m.IngestPollErrorsTotal); got != 2 {
		t.Errorf("poll errors = %v, want 2", got)
	}
	if r.State() != StatePolling {
		t.Errorf("state = %s, want polling", r.State())
	}
}

func TestRunnerSurvivesStoreFailure(t *testing.T) {
	sub := &fakeSubscription{queue: []pollResult{
		message(0, `{"provider":"PCIC","submissionId":"S1"}`),
		message(1, `{"provider":"PCIC","submissionId":"S2"}`),
	}}
	store := &memCreator{failures: 1, err: errors.New("database is down")}
	p, _ := newTestPipeline(store)
	r := NewRunner(sub, p, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stopRunner(t, r)

	waitFor(t, func() bool {
		committed, _, _ := sub.snapshot()
		return len(committed) == 2
	})
	recs := store.all()
	if len(recs) != 1 || *recs[0].ApplicationID != "S2" {
		t.Fatalf("stored = %+v, want only S2", recs)
	}
	select {
	case <-r.Done():
		t.Fatal("runner exited after a store failure")
	default:
	}
}

func TestRunnerStopDuringStoreLeavesMessageUncommitted(t *testing.T) {
	sub := &fakeSubscription{queue: []pollResult{
		message(5, `{"provider":"PCIC","submissionId":"S1"}`),
	}}
	store := &memCreator{block: true, entered: make(chan struct{}, 1)}
	p, m := newTestPipeline(store)
	r := NewRunner(sub, p, m)
	var logs bytes.Buffer
	r.logger = captureLogger(&logs)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("store never called")
	}
	stopRunner(t, r)

	if committed, _, _ := sub.snapshot(); len(committed) != 0 {
		t.Errorf("committed = %v, want none", committed)
	}
	if n := countLogEntries(t, &logs, "ERROR", "failed to store result, message dropped"); n != 0 {
		t.Errorf("logged %d drop errors for an interrupted message", n)
	}
	if n := countLogEntries(t, &logs, "INFO", "processing interrupted by shutdown, message left uncommitted"); n != 1 {
		t.Errorf("logged %d interruption entries, want 1", n)
	}
	if got := testutil.ToFloat64(m.IngestMessagesTotal.WithLabelValues(metrics.OutcomeFailed)); got != 0 {
		t.Errorf("failed count = %v, want 0", got)
	}
}

func TestRunnerSubscribeFailure(t *testing.T) {
	subErr := errors.New("unknown topic")
	sub := &fakeSubscription{subscribeErr: subErr}
	p, _ := newTestPipeline(&memCreator{})
	r := NewRunner(sub, p, nil)

	if err := r.Start(context.Background()); !errors.Is(err, subErr) {
		t.Fatalf("Start = %v, want subscribe error", err)
	}
	if r.State() != StateStopped {
		t.Errorf("state = %s, want stopped", r.State())
	}
	select {
	case <-r.Done():
	default:
		t.Error("Done not closed after failed start")
	}
	if _, closed, _ := sub.snapshot(); !closed {
		t.Error("subscription not released")
	}
	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestRunnerStartTwice(t *testing.T) {
	p, _ := newTestPipeline(&memCreator{})
	r := NewRunner(&fakeSubscription{}, p, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stopRunner(t, r)
	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestRunnerExitsWhenSubscriptionClosed(t *testing.T) {
	sub := &fakeSubscription{queue: []pollResult{{err: kafka.ErrClosed}}}
	p, _ := newTestPipeline(&memCreator{})
	r := NewRunner(sub, p, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not exit")
	}
	if !errors.Is(r.Err(), kafka.ErrClosed) {
		t.Errorf("Err = %v, want ErrClosed", r.Err())
	}
	if r.State() != StateStopped {
		t.Errorf("state = %s, want stopped", r.State())
	}
	stopRunner(t, r)
}

func TestRunnerStopsWithParentContext(t *testing.T) {
	sub := &fakeSubscription{}
	p, _ := newTestPipeline(&memCreator{})
	r := NewRunner(sub, p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not exit after context cancellation")
	}
	if r.Err() != nil {
		t.Errorf("Err = %v, want nil", r.Err())
	}
}

func TestRunnerStopIdle(t *testing.T) {
	sub := &fakeSubscription{}
	p, _ := newTestPipeline(&memCreator{})
	r := NewRunner(sub, p, nil)

	stopRunner(t, r)
	if r.State() != StateStopped {
		t.Errorf("state = %s, want stopped", r.State())
	}
	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start after Stop = %v, want ErrAlreadyStarted", err)
	}
	stopRunner(t, r)
}

func TestStateString(t *testing.T) {
	want := map[State]string{
		StateIdle:       "idle",
		StateSubscribed: "subscribed",
		StatePolling:    "polling",
		StateStopped:    "stopped",
	}
	for s, name := range want {
		if s.String() != name {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), name)
		}
	}
}
