package result

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/postgres"
)

// PostgresStore implements Store on the ai_results table.
type PostgresStore struct {
	db *postgres.Client
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts rec and returns it with the assigned id. rec.ID is ignored.
func (s *PostgresStore) Create(ctx context.Context, rec Record) (Record, error) {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`INSERT INTO ai_results (application_id, result, prediction, accuracy)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			nullableString(rec.ApplicationID), rec.Result, rec.Prediction, rec.Accuracy,
		).Scan(&rec.ID)
	})
	if err != nil {
		return Record{}, fmt.Errorf("inserting result: %w", err)
	}
	return rec, nil
}

// List returns records ordered by id.
func (s *PostgresStore) List(ctx context.Context, page Page) ([]Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if page.Limit > 0 {
		rows, err = s.db.DB.QueryContext(ctx,
			`SELECT id, application_id, result, prediction, accuracy
			 FROM ai_results ORDER BY id LIMIT $1 OFFSET $2`,
			page.Limit, page.Offset,
		)
	} else {
		rows, err = s.db.DB.QueryContext(ctx,
			`SELECT id, application_id, result, prediction, accuracy
			 FROM ai_results ORDER BY id OFFSET $1`,
			page.Offset,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result rows: %w", err)
	}
	return records, nil
}

// GetByID returns the record with the given id or an error wrapping
// apperrors.ErrResultNotFound.
func (s *PostgresStore) GetByID(ctx context.Context, id int64) (Record, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT id, application_id, result, prediction, accuracy
		 FROM ai_results WHERE id = $1`, id,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, apperrors.NotFound(id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("fetching result %d: %w", id, err)
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec   Record
		appID sql.NullString
	)
	if err := row.Scan(&rec.ID, &appID, &rec.Result, &rec.Prediction, &rec.Accuracy); err != nil {
		return Record{}, err
	}
	if appID.Valid {
		rec.ApplicationID = StringPtr(appID.String)
	}
	return rec, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
