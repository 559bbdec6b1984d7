package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/tracing"
)

// ErrAlreadyStarted is returned by Start on a runner that has left Idle.
var ErrAlreadyStarted = errors.New("consumer already started")

// pollErrorBackoff spaces out retries while the broker keeps failing.
const pollErrorBackoff = 200 * time.Millisecond

// Subscription is the message source the runner consumes. *kafka.Consumer
// implements it.
type Subscription interface {
	Subscribe(ctx context.Context) error
	Poll(ctx context.Context) (*kafka.Message, error)
	Commit(ctx context.Context, msg *kafka.Message) error
	Close() error
}

// State is the lifecycle position of a Runner.
type State int32

const (
	StateIdle State = iota
	StateSubscribed
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribed:
		return "subscribed"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Runner owns the consume loop: one goroutine that polls, processes and
// commits messages strictly one at a time.
type Runner struct {
	sub      Subscription
	pipeline *Pipeline
	metrics  *metrics.Metrics
	logger   *slog.Logger

	state atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewRunner creates an idle Runner. m may be nil.
func NewRunner(sub Subscription, pipeline *Pipeline, m *metrics.Metrics) *Runner {
	r := &Runner{
		sub:      sub,
		pipeline: pipeline,
		metrics:  m,
		logger:   slog.Default().With("component", "ingest-runner"),
		done:     make(chan struct{}),
	}
	r.setState(StateIdle)
	return r
}

// Start subscribes and launches the consume loop. A subscription failure is
// returned and leaves the runner Stopped. The loop runs until ctx is
// cancelled or Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() != StateIdle {
		return ErrAlreadyStarted
	}

	if err := r.sub.Subscribe(ctx); err != nil {
		r.err = err
		r.release()
		r.setState(StateStopped)
		close(r.done)
		return err
	}
	r.setState(StateSubscribed)

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	go r.run(loopCtx)
	return nil
}

// Stop cancels the loop and waits for it to exit or for ctx to expire. Stop
// on an idle runner moves it straight to Stopped.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	switch r.State() {
	case StateIdle:
		r.setState(StateStopped)
		close(r.done)
		r.mu.Unlock()
		r.release()
		return nil
	case StateStopped:
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.mu.Unlock()

	r.logger.Info("stopping consumer")
	cancel()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for consumer loop to exit: %w", ctx.Err())
	}
}

// Done is closed once the loop has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Err returns the error that ended the runner, if any. A clean stop leaves it
// nil.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)
	defer func() {
		r.release()
		r.setState(StateStopped)
		r.logger.Info("consumer loop stopped")
	}()

	r.setState(StatePolling)
	r.logger.Info("consumer loop started")

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := r.sub.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, kafka.ErrClosed) {
				r.logger.Error("subscription closed underneath consumer loop", "error", err)
				r.mu.Lock()
				r.err = err
				r.mu.Unlock()
				return
			}
			r.logger.Warn("poll failed", "error", err)
			if r.metrics != nil {
				r.metrics.IngestPollErrorsTotal.Inc()
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollErrorBackoff):
			}
			continue
		}
		if msg == nil {
			continue
		}

		r.handle(ctx, msg)
	}
}

func (r *Runner) handle(ctx context.Context, msg *kafka.Message) {
	ctx, span := tracing.StartSpan(ctx, "ingest.message", fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset))
	defer func() {
		span.End()
		span.Log(ctx, r.logger)
	}()

	outcome, err := r.pipeline.Process(ctx, msg.Value)
	span.SetAttr("outcome", string(outcome))
	if outcome == OutcomeInterrupted {
		r.logger.Info("processing interrupted by shutdown, message left uncommitted",
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		return
	}
	if err != nil {
		r.logger.Error("failed to store result, message dropped",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	} else {
		r.logger.Debug("message processed",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"outcome", string(outcome),
		)
	}

	_, commitSpan := tracing.StartChildSpan(ctx, "commit")
	err = r.sub.Commit(ctx, msg)
	commitSpan.End()
	if err != nil && ctx.Err() == nil {
		r.logger.Error("failed to commit offset",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
}

func (r *Runner) release() {
	if err := r.sub.Close(); err != nil {
		r.logger.Warn("closing subscription", "error", err)
	}
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
	if r.metrics != nil {
		r.metrics.ConsumerState.Set(float64(s))
	}
}
