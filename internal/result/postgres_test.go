package result

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	apperrors "github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/postgres"
)

var recordColumns = []string{"id", "application_id", "result", "prediction", "accuracy"}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return NewPostgresStore(postgres.NewFromDB(db)), mock
}

func TestPostgresCreate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO ai_results").
		WithArgs("S1", "mock_result", "mock_prediction", "mock_accuracy").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(17)))
	mock.ExpectCommit()

	rec, err := store.Create(context.Background(), Record{
		ApplicationID: StringPtr("S1"),
		Result:        "mock_result",
		Prediction:    "mock_prediction",
		Accuracy:      "mock_accuracy",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID != 17 {
		t.Errorf("ID = %d, want 17", rec.ID)
	}
	if rec.ApplicationID == nil || *rec.ApplicationID != "S1" {
		t.Errorf("ApplicationID = %v", rec.ApplicationID)
	}
}

func TestPostgresCreateNullApplicationID(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO ai_results").
		WithArgs(nil, "r", "p", "a").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	rec, err := store.Create(context.Background(), Record{Result: "r", Prediction: "p", Accuracy: "a"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ApplicationID != nil {
		t.Errorf("ApplicationID = %q, want nil", *rec.ApplicationID)
	}
}

func TestPostgresCreateFailureRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO ai_results").WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	if _, err := store.Create(context.Background(), Record{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestPostgresList(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, application_id, result, prediction, accuracy FROM ai_results ORDER BY id OFFSET").
		WithArgs(0).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow(int64(1), "S1", "r1", "p1", "a1").
			AddRow(int64(2), nil, "r2", "p2", "a2"))

	records, err := store.List(context.Background(), Page{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2", len(records))
	}
	if records[0].ApplicationID == nil || *records[0].ApplicationID != "S1" {
		t.Errorf("first ApplicationID = %v", records[0].ApplicationID)
	}
	if records[1].ApplicationID != nil {
		t.Errorf("second ApplicationID should be nil")
	}
}

func TestPostgresListPaged(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM ai_results ORDER BY id LIMIT").
		WithArgs(10, 20).
		WillReturnRows(sqlmock.NewRows(recordColumns))

	records, err := store.List(context.Background(), Page{Limit: 10, Offset: 20})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", records)
	}
}

func TestPostgresGetByID(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM ai_results WHERE id = \\$1").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(int64(5), "S5", "r", "p", "a"))

	rec, err := store.GetByID(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.ID != 5 || rec.Result != "r" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestPostgresGetByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM ai_results WHERE id = \\$1").
		WithArgs(int64(999)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetByID(context.Background(), 999)
	if !errors.Is(err, apperrors.ErrResultNotFound) {
		t.Fatalf("err = %v, want ErrResultNotFound", err)
	}
}
