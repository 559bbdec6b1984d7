// Package ingest turns application events read from Kafka into stored
// result records: Decode parses a message body, Map decides whether it yields
// a record, Pipeline persists it and Runner owns the consume loop.
package ingest

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"unicode/utf8"
)

// maxLoggedPayload caps how much of a body is logged above debug level.
const maxLoggedPayload = 256

// Payload is a decoded message body, either a StructuredPayload or a
// RawPayload.
type Payload interface {
	payload()
}

// StructuredPayload is a message body that parsed as a JSON object. Numbers
// are kept as json.Number.
type StructuredPayload struct {
	Fields map[string]any
}

// RawPayload holds a message body that is not a JSON object, verbatim.
type RawPayload struct {
	Text string
}

func (StructuredPayload) payload() {}
func (RawPayload) payload()        {}

// Decode parses value as a JSON object. Anything else comes back as a
// RawPayload; malformed JSON is logged as a warning and never returned as an
// error.
func Decode(logger *slog.Logger, value []byte) Payload {
	text := string(value)
	logger.Debug("decoding message", "raw", text)

	if !json.Valid(value) {
		logger.Warn("invalid JSON payload", "raw", preview(text), "size", len(value))
		return RawPayload{Text: text}
	}

	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		logger.Warn("invalid JSON payload", "raw", preview(text), "size", len(value), "error", err)
		return RawPayload{Text: text}
	}

	fields, ok := decoded.(map[string]any)
	if !ok {
		logger.Info("payload is not a JSON object", "raw", preview(text), "size", len(value))
		return RawPayload{Text: text}
	}
	logger.Debug("decoded message", "fields", len(fields))
	return StructuredPayload{Fields: fields}
}

// preview returns at most maxLoggedPayload bytes of s, cut on a rune
// boundary, with "..." appended when anything was dropped.
func preview(s string) string {
	if len(s) <= maxLoggedPayload {
		return s
	}
	cut := maxLoggedPayload
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
