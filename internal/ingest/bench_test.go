package ingest

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/config"
)

var samplePayloads = map[string]string{
	"eligible":  `{"provider":"PCIC","submissionId":"S1","applicationTypeId":"type-2","submittedAt":"2024-05-01T10:00:00Z"}`,
	"other":     `{"provider":"OTHER","submissionId":"S2"}`,
	"malformed": `not valid json`,
	"large": `{"provider":"PCIC","submissionId":"S3","answers":[` +
		strings.TrimSuffix(strings.Repeat(`{"question":"farm area","value":12.5},`, 200), ",") + `]}`,
}

func BenchmarkDecode(b *testing.B) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for name, payload := range samplePayloads {
		value := []byte(payload)
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(value)))
			for i := 0; i < b.N; i++ {
				_ = Decode(logger, value)
			}
		})
	}
}

func BenchmarkProcess(b *testing.B) {
	p := NewPipeline(&memCreator{}, config.IngestionConfig{Provider: "PCIC", PersistTimeout: time.Second}, nil)
	p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	value := []byte(samplePayloads["eligible"])

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := p.Process(context.Background(), value); err != nil {
			b.Fatal(err)
		}
	}
}
