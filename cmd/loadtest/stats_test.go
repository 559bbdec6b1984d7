package main

import (
	"errors"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}
	tests := map[float64]time.Duration{
		0:   time.Millisecond,
		50:  50 * time.Millisecond,
		95:  95 * time.Millisecond,
		100: 100 * time.Millisecond,
	}
	for p, want := range tests {
		if got := percentile(sorted, p); got != want {
			t.Errorf("percentile(%v) = %v, want %v", p, got, want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile(nil) = %v", got)
	}
}

func TestSummarize(t *testing.T) {
	s := summarize([]time.Duration{3 * time.Millisecond, time.Millisecond, 2 * time.Millisecond})
	if s.Count != 3 || s.Min != time.Millisecond || s.Max != 3*time.Millisecond || s.Avg != 2*time.Millisecond {
		t.Errorf("summary = %+v", s)
	}
}

func TestRecordRequest(t *testing.T) {
	s := NewStats()
	s.RecordRequest("GET /ai/{id}", time.Millisecond, 200, nil)
	s.RecordRequest("GET /ai/{id}", time.Millisecond, 404, nil)
	s.RecordRequest("GET /ai/", 0, 0, errors.New("connection refused"))

	if s.totalRequests.Load() != 3 || s.successCount.Load() != 1 || s.errorCount.Load() != 2 {
		t.Errorf("counts = %d/%d/%d", s.totalRequests.Load(), s.successCount.Load(), s.errorCount.Load())
	}
	if len(s.latencies["GET /ai/{id}"]) != 2 {
		t.Errorf("latencies = %v", s.latencies)
	}
	if s.statusCodes[404] != 1 {
		t.Errorf("status codes = %v", s.statusCodes)
	}
}
