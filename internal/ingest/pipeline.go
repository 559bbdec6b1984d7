package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ai-result-service/internal/result"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/tracing"
)

// Outcome is what happened to one message.
type Outcome string

const (
	OutcomeStored      Outcome = metrics.OutcomeStored
	OutcomeSkipped     Outcome = metrics.OutcomeSkipped
	OutcomeMalformed   Outcome = metrics.OutcomeMalformed
	OutcomeFailed      Outcome = metrics.OutcomeFailed
	OutcomeInterrupted Outcome = metrics.OutcomeInterrupted
)

// Creator is the part of result.Store the pipeline writes through.
type Creator interface {
	Create(ctx context.Context, rec result.Record) (result.Record, error)
}

// Pipeline runs Decode, Map and Create for a single message.
type Pipeline struct {
	store          Creator
	provider       string
	persistTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// NewPipeline creates a Pipeline writing to store. m may be nil.
func NewPipeline(store Creator, cfg config.IngestionConfig, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		store:          store,
		provider:       cfg.Provider,
		persistTimeout: cfg.PersistTimeout,
		metrics:        m,
		logger:         slog.Default().With("component", "ingest-pipeline", "provider", cfg.Provider),
	}
}

// Process handles one message body. The error is non-nil only when an
// eligible record could not be stored. OutcomeInterrupted means ctx was
// cancelled while storing; the message was neither stored nor dropped.
func (p *Pipeline) Process(ctx context.Context, value []byte) (Outcome, error) {
	_, decodeSpan := tracing.StartChildSpan(ctx, "decode")
	payload := Decode(p.logger, value)
	decodeSpan.End()
	if _, ok := payload.(RawPayload); ok {
		p.count(OutcomeMalformed)
		return OutcomeMalformed, nil
	}

	rec, ok := Map(payload, p.provider)
	if !ok {
		p.logger.Debug("message ignored")
		p.count(OutcomeSkipped)
		return OutcomeSkipped, nil
	}

	persistCtx, persistSpan := tracing.StartChildSpan(ctx, "persist")
	defer persistSpan.End()

	start := time.Now()
	var created result.Record
	err := resilience.WithTimeout(persistCtx, p.persistTimeout, "persist result", func(ctx context.Context) error {
		var err error
		created, err = p.store.Create(ctx, rec)
		return err
	})
	if p.metrics != nil {
		p.metrics.IngestPersistDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil && ctx.Err() != nil {
		p.count(OutcomeInterrupted)
		return OutcomeInterrupted, fmt.Errorf("storing result for submission %s: %w", describeID(rec.ApplicationID), err)
	}
	if err != nil {
		p.count(OutcomeFailed)
		return OutcomeFailed, fmt.Errorf("storing result for submission %s: %w", describeID(rec.ApplicationID), err)
	}

	p.count(OutcomeStored)
	if p.metrics != nil {
		p.metrics.ResultsCreatedTotal.WithLabelValues("stream").Inc()
	}
	p.logger.Info("result stored",
		"id", created.ID,
		"application_id", describeID(created.ApplicationID),
	)
	return OutcomeStored, nil
}

func (p *Pipeline) count(o Outcome) {
	if p.metrics != nil {
		p.metrics.IngestMessagesTotal.WithLabelValues(string(o)).Inc()
	}
}

func describeID(id *string) string {
	if id == nil {
		return "<none>"
	}
	return *id
}
