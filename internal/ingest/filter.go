package ingest

import (
	"encoding/json"

	"github.com/Adithya-Monish-Kumar-K/ai-result-service/internal/result"
)

// Values stored on stream-derived records until inference runs for real.
const (
	PlaceholderResult     = "mock_result"
	PlaceholderPrediction = "mock_prediction"
	PlaceholderAccuracy   = "mock_accuracy"
)

// Map reports whether p should produce a record and, if so, the record to
// create. Only structured payloads whose "provider" field is exactly provider
// are eligible.
func Map(p Payload, provider string) (result.Record, bool) {
	switch p := p.(type) {
	case StructuredPayload:
		if v, ok := p.Fields["provider"].(string); !ok || v != provider {
			return result.Record{}, false
		}
		return result.Record{
			ApplicationID: submissionID(p.Fields["submissionId"]),
			Result:        PlaceholderResult,
			Prediction:    PlaceholderPrediction,
			Accuracy:      PlaceholderAccuracy,
		}, true
	case RawPayload:
		return result.Record{}, false
	default:
		return result.Record{}, false
	}
}

func submissionID(v any) *string {
	switch id := v.(type) {
	case string:
		return result.StringPtr(id)
	case json.Number:
		return result.StringPtr(id.String())
	default:
		return nil
	}
}
