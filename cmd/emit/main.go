// Command emit publishes sample application events to the configured topic so
// the consume loop can be exercised locally. Every fifth event names another
// provider and every seventh is deliberately malformed.
//
// Usage:
//
//	go run ./cmd/emit [-config configs/development.yaml] [-count 50] [-concurrency 4]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/logger"
)

// applicationEvent mirrors what the application service publishes when a
// submission is received.
type applicationEvent struct {
	EventType         string    `json:"eventType"`
	Provider          string    `json:"provider"`
	SubmissionID      string    `json:"submissionId"`
	ApplicationTypeID string    `json:"applicationTypeId"`
	SubmittedAt       time.Time `json:"submittedAt"`
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	count := flag.Int("count", 50, "number of events to publish")
	concurrency := flag.Int("concurrency", 4, "number of concurrent publishers")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topic)
	defer producer.Close()

	fmt.Println("=== AI Service Event Emitter ===")
	fmt.Printf("Brokers:     %v\n", cfg.Kafka.Brokers)
	fmt.Printf("Topic:       %s\n", cfg.Kafka.Topic)
	fmt.Printf("Events:      %d\n", *count)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Println()

	var eligible, other, malformed atomic.Int64
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)
	for i := 1; i <= *count; i++ {
		g.Go(func() error {
			submissionID := uuid.NewString()
			switch {
			case i%7 == 0:
				malformed.Add(1)
				return producer.PublishRaw(gctx, submissionID, []byte("not valid json"))
			case i%5 == 0:
				other.Add(1)
				return producer.Publish(gctx, kafka.Event{Key: submissionID, Value: newEvent("OTHER", submissionID, i)})
			default:
				eligible.Add(1)
				return producer.Publish(gctx, kafka.Event{Key: submissionID, Value: newEvent(cfg.Ingestion.Provider, submissionID, i)})
			}
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "publishing failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Results ===")
	fmt.Printf("Eligible:    %d\n", eligible.Load())
	fmt.Printf("Other:       %d\n", other.Load())
	fmt.Printf("Malformed:   %d\n", malformed.Load())
	fmt.Printf("Elapsed:     %s\n", time.Since(start).Round(time.Millisecond))
}

func newEvent(provider, submissionID string, seq int) applicationEvent {
	return applicationEvent{
		EventType:         "application-submitted",
		Provider:          provider,
		SubmissionID:      submissionID,
		ApplicationTypeID: fmt.Sprintf("type-%d", seq%3+1),
		SubmittedAt:       time.Now().UTC(),
	}
}
