package batchpostgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"
)

func newRepoWithMock(t *testing.T) (PostgresRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return PostgresRepo{DB: &dbpg.DB{Master: db}}, mock
}

// CREATE - SUCCESS
func TestPostgresRepo_Create_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	ctime := time.Now()
	b := &model.Batch{
		UID:         uuid.New(),
		Tier:        model.TierPremium,
		SourceKeys:  model.StringSlice{"src/1"},
		SourceNames: model.StringSlice{"cat.png"},
		Options:     model.ProcessingOptions{Templates: []model.Template{{Name: "Post", Width: 10, Height: 10}}},
		Status:      model.StatusCreated,
		CreatedAt:   &ctime,
	}

	mock.ExpectExec(`INSERT INTO batches`).
		WithArgs(b.UID, b.Tier, sqlmock.AnyArg(), sqlmock.AnyArg(), "", sqlmock.AnyArg(), b.Status, b.CreatedAt, b.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), b))
	require.NoError(t, mock.ExpectationsWereMet())
}

// GET - SUCCESS
func TestPostgresRepo_Get_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	id := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"batch_uid", "tier", "source_keys", "source_names", "wm_key", "options",
		"result_key", "result_ctype", "status", "failures", "created_at", "updated_at",
	}).AddRow(
		id.String(), "premium", []byte(`["src/1","src/2"]`), []byte(`["a.png","b.png"]`), "",
		[]byte(`{"templates":[{"name":"Post","width":10,"height":10}]}`),
		"res/1.zip", model.Archive, model.StatusDone,
		[]byte(`[{"output":"b.post.10x10.png","file":"b.png","template":"Post","kind":"UndecodableSource","message":"x"}]`),
		now, now,
	)

	mock.ExpectQuery(`SELECT batch_uid`).WithArgs(id.String()).WillReturnRows(rows)

	b, err := repo.Get(context.Background(), id.String())
	require.NoError(t, err)
	require.Equal(t, id, b.UID)
	require.Equal(t, model.StringSlice{"a.png", "b.png"}, b.SourceNames)
	require.Len(t, b.Options.Templates, 1)
	require.Len(t, b.Failures, 1)
	require.Equal(t, model.KindUndecodableSource, b.Failures[0].Kind)
}

// GET - NOT FOUND
func TestPostgresRepo_Get_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT batch_uid`).WillReturnRows(sqlmock.NewRows([]string{"batch_uid"}))

	_, err := repo.Get(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrBatchNotFound)
}

// GETLIST - SUCCESS
func TestPostgresRepo_GetList_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows([]string{
		"batch_uid", "tier", "source_names", "options", "result_ctype", "status", "failures", "created_at", "updated_at",
	}).
		AddRow(uuid.New().String(), "free", []byte(`["a.png"]`), []byte(`{}`), "", model.StatusCreated, nil, time.Now(), time.Now()).
		AddRow(uuid.New().String(), "free", []byte(`["b.png"]`), []byte(`{}`), model.PNG, model.StatusDone, []byte(`[]`), time.Now(), time.Now())

	mock.ExpectQuery(`ORDER BY created_at DESC`).WithArgs(10, 10).WillReturnRows(rows)

	res, err := repo.GetList(context.Background(), &model.ListRequest{Page: 2, Limit: 10, Sort: "created_at", Order: "DESC"})
	require.NoError(t, err)
	require.Len(t, res, 2)
}

// DELETE
func TestPostgresRepo_Delete(t *testing.T) {
	tests := []struct {
		name    string
		result  driver.Result
		execErr error
		wantErr error
	}{
		{name: "deleted", result: sqlmock.NewResult(0, 1)},
		{name: "not found", result: sqlmock.NewResult(0, 0), wantErr: model.ErrBatchNotFound},
		{name: "db error", execErr: errors.New("db down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			id := uuid.New().String()

			exp := mock.ExpectExec(`DELETE FROM batches`).WithArgs(id)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			err := repo.Delete(context.Background(), id)
			switch {
			case tt.execErr != nil:
				require.ErrorIs(t, err, tt.execErr)
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
			}
		})
	}
}

// UPDATESTATUS - SUCCESS
func TestPostgresRepo_UpdateStatus_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New().String()

	mock.ExpectExec(`UPDATE batches SET status`).
		WithArgs(model.StatusInProgress, id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), id, model.StatusInProgress))
}

// CLAIM
func TestPostgresRepo_Claim(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		execErr  error
		wantErr  error
	}{
		{name: "claimed", affected: 1},
		{name: "held by another worker", affected: 0, wantErr: model.ErrBatchBusy},
		{name: "db error", execErr: errors.New("db down"), wantErr: errors.New("db down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			id := uuid.New().String()

			exp := mock.ExpectExec(`UPDATE batches SET status = \$1, updated_at = now\(\)\s+WHERE batch_uid = \$2\s+AND \(status = \$3 OR \(status = \$1 AND updated_at < now\(\) - interval '10 minutes'\)\)`).
				WithArgs(model.StatusInProgress, id, model.StatusCreated)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, tt.affected))
			}

			err := repo.Claim(context.Background(), id)
			switch {
			case tt.wantErr == nil:
				require.NoError(t, err)
			case errors.Is(tt.wantErr, model.ErrBatchBusy):
				require.ErrorIs(t, err, model.ErrBatchBusy)
			default:
				require.EqualError(t, err, tt.wantErr.Error())
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// TOUCH - only a batch in progress is refreshed
func TestPostgresRepo_Touch(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New().String()

	mock.ExpectExec(`UPDATE batches SET updated_at = now\(\) WHERE batch_uid = \$1 AND status = \$2`).
		WithArgs(id, model.StatusInProgress).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Touch(context.Background(), id))
	require.NoError(t, mock.ExpectationsWereMet())
}

// SAVERESULT - NOT FOUND
func TestPostgresRepo_SaveResult_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectExec(`UPDATE batches SET status`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveResult(context.Background(), &model.Batch{UID: uuid.New(), Status: model.StatusDone, UpdatedAt: &now})
	require.ErrorIs(t, err, model.ErrBatchNotFound)
}

// FETCHORPHANS - SUCCESS
func TestPostgresRepo_FetchOrphans_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows([]string{"batch_uid"}).AddRow("id1").AddRow("id2")
	mock.ExpectQuery(`SELECT batch_uid`).
		WithArgs(model.StatusCreated, model.StatusInProgress, 5).
		WillReturnRows(rows)

	res, err := repo.FetchOrphans(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, []string{"id1", "id2"}, res)
}
