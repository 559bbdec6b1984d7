// Command loadtest drives the result API with concurrent readers. It seeds a
// set of records through POST /ai/ and then mixes GET /ai/{id} (served by the
// read-through cache when Redis is enabled) with paged GET /ai/ calls.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8000] [-concurrency 10] [-duration 30s]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Seed        int
	ListRatio   float64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "base URL of the ai service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	seed := flag.Int("seed", 100, "records to create before reading")
	listRatio := flag.Float64("list-ratio", 0.1, "fraction of requests that list instead of get by id")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Seed:        *seed,
		ListRatio:   *listRatio,
	}

	fmt.Println("=== AI Service Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Seed:        %d records\n", cfg.Seed)
	fmt.Println()

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ids, err := seedRecords(context.Background(), client, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seeding failed: %v\n", err)
		os.Exit(1)
	}

	stats := runLoadTest(client, cfg, ids)
	printReport(stats, cfg.Duration)
	if stats.totalRequests.Load() == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func seedRecords(ctx context.Context, client *http.Client, cfg Config) ([]int64, error) {
	ids := make([]int64, 0, cfg.Seed)
	for i := 0; i < cfg.Seed; i++ {
		body, _ := json.Marshal(map[string]string{
			"applicationId": fmt.Sprintf("loadtest-%d", i),
			"result":        "approved",
			"prediction":    "low risk",
			"accuracy":      "0.9",
		})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/ai/", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("creating record %d: %w", i, err)
		}
		var created struct {
			ID int64 `json:"id"`
		}
		err = json.NewDecoder(resp.Body).Decode(&created)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated || err != nil {
			return nil, fmt.Errorf("creating record %d: status %d", i, resp.StatusCode)
		}
		ids = append(ids, created.ID)
	}
	return ids, nil
}

func runLoadTest(client *http.Client, cfg Config, ids []int64) *Stats {
	stats := NewStats()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	fmt.Print("Running")
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for ctx.Err() == nil {
				endpoint, target := "GET /ai/", cfg.BaseURL+"/ai/?limit=20"
				if len(ids) > 0 && rand.Float64() >= cfg.ListRatio {
					endpoint = "GET /ai/{id}"
					target = fmt.Sprintf("%s/ai/%d", cfg.BaseURL, ids[rand.IntN(len(ids))])
				}

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					return err
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.RecordRequest(endpoint, elapsed, 0, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.RecordRequest(endpoint, elapsed, resp.StatusCode, nil)
			}
			return nil
		})
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	g.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}
