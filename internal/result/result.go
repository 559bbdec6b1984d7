// Package result defines the persisted AI inference result record and the
// stores that hold it.
package result

import "context"

// Record is one stored inference outcome. ID is assigned by the store on
// creation; records are never updated or deleted afterwards.
type Record struct {
	ID            int64   `json:"id"`
	ApplicationID *string `json:"applicationId"`
	Result        string  `json:"result"`
	Prediction    string  `json:"prediction"`
	Accuracy      string  `json:"accuracy"`
}

// Page bounds a List call. A zero Limit returns every record after Offset.
type Page struct {
	Limit  int
	Offset int
}

// Store is durable keyed storage for result records.
type Store interface {
	Create(ctx context.Context, rec Record) (Record, error)
	List(ctx context.Context, page Page) ([]Record, error)
	GetByID(ctx context.Context, id int64) (Record, error)
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}
