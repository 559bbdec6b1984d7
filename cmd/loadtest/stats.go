package main

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Stats accumulates per-request outcomes from all workers.
type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64

	mu          sync.Mutex
	latencies   map[string][]time.Duration
	statusCodes map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make(map[string][]time.Duration),
		statusCodes: make(map[int]int64),
	}
}

// RecordRequest counts one request against the named endpoint. A non-nil
// err means no response arrived.
func (s *Stats) RecordRequest(endpoint string, duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.mu.Lock()
	s.latencies[endpoint] = append(s.latencies[endpoint], duration)
	s.statusCodes[statusCode]++
	s.mu.Unlock()
}

// LatencySummary is the distribution of one endpoint's latencies.
type LatencySummary struct {
	Count         int
	Min, Avg, Max time.Duration
	P50, P95, P99 time.Duration
	StdDev        time.Duration
}

func summarize(latencies []time.Duration) LatencySummary {
	if len(latencies) == 0 {
		return LatencySummary{}
	}
	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	avg := sum / time.Duration(len(sorted))

	var sumSquared float64
	for _, l := range sorted {
		diff := float64(l) - float64(avg)
		sumSquared += diff * diff
	}

	return LatencySummary{
		Count:  len(sorted),
		Min:    sorted[0],
		Avg:    avg,
		Max:    sorted[len(sorted)-1],
		P50:    percentile(sorted, 50),
		P95:    percentile(sorted, 95),
		P99:    percentile(sorted, 99),
		StdDev: time.Duration(math.Sqrt(sumSquared / float64(len(sorted)))),
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", stats.successCount.Load())
	fmt.Printf("Errors:          %d\n", stats.errorCount.Load())
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(stats.errorCount.Load())/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()

	endpoints := make([]string, 0, len(stats.latencies))
	for ep := range stats.latencies {
		endpoints = append(endpoints, ep)
	}
	slices.Sort(endpoints)
	for _, ep := range endpoints {
		s := summarize(stats.latencies[ep])
		fmt.Println()
		fmt.Printf("=== Latency: %s (%d) ===\n", ep, s.Count)
		fmt.Printf("Min:    %s\n", s.Min)
		fmt.Printf("Avg:    %s\n", s.Avg)
		fmt.Printf("P50:    %s\n", s.P50)
		fmt.Printf("P95:    %s\n", s.P95)
		fmt.Printf("P99:    %s\n", s.P99)
		fmt.Printf("Max:    %s\n", s.Max)
		fmt.Printf("StdDev: %s\n", s.StdDev)
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code])
	}
}
