package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateApplicationStaleWhenRowStillExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	notes := "n"
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications SET version=version\\+1").
		WithArgs(sqlmock.AnyArg(), "n", "a-1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM applications WHERE id=\\?").
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectRollback()

	r := New(db)
	err = r.UpdateApplication(context.Background(), "a-1", 3, ApplicationPatch{Notes: &notes, UpdatedAt: time.Now()}, "u-1")
	assert.ErrorIs(t, err, ErrStaleVersion)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateApplicationRollsBackWhenEventFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	notes := "n"
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	r := New(db)
	err = r.UpdateApplication(context.Background(), "a-1", 1, ApplicationPatch{Notes: &notes, UpdatedAt: time.Now()}, "u-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(sql.ErrNoRows), ErrNotFound)
	other := errors.New("boom")
	assert.Equal(t, other, translate(other))
}
