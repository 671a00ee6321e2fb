// Package batchpostgres keeps async batches in the "batches" table
package batchpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

func (p PostgresRepo) Create(ctx context.Context, b *model.Batch) error {
	query := `INSERT INTO batches (batch_uid, tier, source_keys, source_names, wm_key, options, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := p.DB.Master.ExecContext(ctx, query,
		b.UID, b.Tier, b.SourceKeys, b.SourceNames, b.WatermarkKey, b.Options, b.Status, b.CreatedAt, b.CreatedAt)
	return err
}

func (p PostgresRepo) Get(ctx context.Context, id string) (*model.Batch, error) {
	query := `SELECT batch_uid, tier, source_keys, source_names, wm_key, options, result_key, result_ctype, status, failures, created_at, updated_at
	FROM batches
	WHERE batch_uid = $1`
	var b model.Batch

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&b.UID,
		&b.Tier,
		&b.SourceKeys,
		&b.SourceNames,
		&b.WatermarkKey,
		&b.Options,
		&b.ResultKey,
		&b.ResultCType,
		&b.Status,
		&b.Failures,
		&b.CreatedAt,
		&b.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrBatchNotFound
		default:
			return nil, err // 500
		}
	}
	return &b, nil
}

// GetList expects Sort/Order already normalized to column names and ASC/DESC.
func (p PostgresRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.Batch, error) {
	query := fmt.Sprintf(`SELECT batch_uid, tier, source_names, options, result_ctype, status, failures, created_at, updated_at
	FROM batches
	ORDER BY %s %s
	LIMIT $1
	OFFSET $2`, req.Sort, req.Order)

	offset := (req.Page - 1) * req.Limit

	rows, err := p.DB.QueryContext(ctx, query, req.Limit, offset)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("Error while closing *sql.Rows after scanning")
		}
	}()

	batches := make([]model.Batch, 0, req.Limit)
	for rows.Next() {
		var b model.Batch
		if err := rows.Scan(&b.UID,
			&b.Tier,
			&b.SourceNames,
			&b.Options,
			&b.ResultCType,
			&b.Status,
			&b.Failures,
			&b.CreatedAt,
			&b.UpdatedAt); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return batches, nil
}

func (p PostgresRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM batches WHERE batch_uid = $1`
	return affectedOne(p.DB.Master.ExecContext(ctx, query, id))
}

func (p PostgresRepo) UpdateStatus(ctx context.Context, id string, newStat model.Status) error {
	query := `UPDATE batches SET status = $1, updated_at = now() WHERE batch_uid = $2`
	return affectedOne(p.DB.Master.ExecContext(ctx, query, newStat, id))
}

// Claim moves the batch to in_progress unless a live worker already holds it.
// An in_progress batch is free again once its updated_at is older than the orphan threshold.
func (p PostgresRepo) Claim(ctx context.Context, id string) error {
	query := `UPDATE batches SET status = $1, updated_at = now()
	WHERE batch_uid = $2
	AND (status = $3 OR (status = $1 AND updated_at < now() - interval '10 minutes'))`

	err := affectedOne(p.DB.Master.ExecContext(ctx, query, model.StatusInProgress, id, model.StatusCreated))
	if errors.Is(err, model.ErrBatchNotFound) {
		return model.ErrBatchBusy
	}
	return err
}

// Touch refreshes updated_at of a batch in progress so the orphan scan leaves it alone.
func (p PostgresRepo) Touch(ctx context.Context, id string) error {
	query := `UPDATE batches SET updated_at = now() WHERE batch_uid = $1 AND status = $2`
	_, err := p.DB.Master.ExecContext(ctx, query, id, model.StatusInProgress)
	return err
}

func (p PostgresRepo) SaveResult(ctx context.Context, b *model.Batch) error {
	query := `UPDATE batches SET status = $1, updated_at = $2, result_key = $3, result_ctype = $4, failures = $5 WHERE batch_uid = $6`
	return affectedOne(p.DB.Master.ExecContext(ctx, query, b.Status, b.UpdatedAt, b.ResultKey, b.ResultCType, b.Failures, b.UID))
}

// FetchOrphans returns batches stuck in created/in_progress for more than 10 minutes.
func (p PostgresRepo) FetchOrphans(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT batch_uid
	FROM batches
	WHERE status IN ($1, $2)
	AND updated_at < now() - interval '10 minutes'
	LIMIT $3`

	rows, err := p.DB.QueryContext(ctx, query, model.StatusCreated, model.StatusInProgress, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("Error while closing *sql.Rows after scanning")
		}
	}()

	orphans := make([]string, 0, limit)
	for rows.Next() {
		uid := ""
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		orphans = append(orphans, uid)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return orphans, nil
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err // 500
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrBatchNotFound // 404
	}
	return nil
}
