// Package repository provides methods to work with DB
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/UnendingLoop/PicDeck/internal/repository/batchpostgres"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

type BatchRepo interface {
	Create(ctx context.Context, b *model.Batch) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Batch, error)
	GetList(ctx context.Context, req *model.ListRequest) ([]model.Batch, error)
	SaveResult(ctx context.Context, b *model.Batch) error
	UpdateStatus(ctx context.Context, id string, newStat model.Status) error
	Claim(ctx context.Context, id string) error
	Touch(ctx context.Context, id string) error
	FetchOrphans(ctx context.Context, limit int) ([]string, error)
}

func NewPostgresBatchRepo(dbconn *dbpg.DB) BatchRepo {
	return batchpostgres.PostgresRepo{DB: dbconn}
}

func ConnectWithRetries(dsn string, retryCount int, idleTime time.Duration) (*dbpg.DB, error) {
	dbOptions := dbpg.Options{
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: 10 * time.Minute,
	}

	var (
		dbConn *dbpg.DB
		err    error
	)

	for i := range retryCount {
		dbConn, err = dbpg.New(dsn, nil, &dbOptions)
		if err == nil {
			return dbConn, nil
		}
		zlog.Logger.Warn().Err(err).Int("try", i+1).Dur("wait", idleTime).Msg("Failed to connect to PGDB")
		time.Sleep(idleTime)
	}

	return nil, fmt.Errorf("connect to DB after %d tries: %w", retryCount, err)
}

func MigrateWithRetries(db *sql.DB, migrationsPath string, retries int, idle time.Duration) error {
	var err error
	for i := range retries {
		if err = runMigrate(db, migrationsPath); err == nil {
			return nil
		}
		zlog.Logger.Warn().Err(err).Int("try", i+1).Dur("wait", idle).Msg("Migration was unsuccessful")
		time.Sleep(idle)
	}

	return fmt.Errorf("migrations out of retries: %w", err)
}

func runMigrate(db *sql.DB, migrationsPath string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return err
	}

	sourceURL := "file://" + absPath
	zlog.Logger.Info().Str("source", sourceURL).Msg("Running migrations")

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	zlog.Logger.Info().Msg("Database migrations applied successfully")
	return nil
}
