package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainlogistics/provenance/pkg/ledger"
	"github.com/chainlogistics/provenance/pkg/store"
)

func newMockStore(t *testing.T) (*store.SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS products").
		WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := store.NewSQLStore(db)
	require.NoError(t, err)
	return s, mock
}

func TestSQLStore_GetProduct_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT record FROM products").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"record"}))

	_, err := s.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_GetProduct_Decodes(t *testing.T) {
	s, mock := newMockStore(t)

	record, err := json.Marshal(ledger.Product{ID: "PROD-1", Owner: "alice"})
	require.NoError(t, err)
	mock.ExpectQuery("SELECT record FROM products").
		WithArgs("PROD-1").
		WillReturnRows(sqlmock.NewRows([]string{"record"}).AddRow(record))

	p, err := s.GetProduct(context.Background(), "PROD-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Owner)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSQLStore_Commit_RollsBackOnFailedAppend verifies the product
// upsert and event inserts share one transaction.
func TestSQLStore_Commit_RollsBackOnFailedAppend(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO products").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").
		WillReturnError(errors.New("UNIQUE constraint failed"))
	mock.ExpectRollback()

	err := s.Commit(context.Background(), ledger.Mutation{
		Product: ledger.Product{ID: "PROD-1"},
		Events: []ledger.TrackingEvent{
			{ProductID: "PROD-1", Stream: ledger.StreamCustody, Sequence: 0, EventType: "HARVEST"},
		},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Commit_CommitsWholeWriteSet(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO products").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Commit(context.Background(), ledger.Mutation{
		Product: ledger.Product{ID: "PROD-1"},
		Events: []ledger.TrackingEvent{
			{ProductID: "PROD-1", Stream: ledger.StreamCustody, Sequence: 0, EventType: "HARVEST"},
			{ProductID: "PROD-1", Stream: ledger.StreamCustody, Sequence: 1, EventType: "SHIPPING"},
		},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
