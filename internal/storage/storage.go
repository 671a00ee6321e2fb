// Package storage connects the object storage that keeps batch sources and results
package storage

import (
	"context"
	"time"

	"github.com/UnendingLoop/PicDeck/internal/config"
	"github.com/UnendingLoop/PicDeck/internal/storage/miniostorage"
	"github.com/wb-go/wbf/zlog"
)

// NewBlobStorage retries until MinIO is reachable and the bucket exists, or ctx is done.
func NewBlobStorage(ctx context.Context, cfg *config.AppConfig, delay time.Duration) (*miniostorage.MinioBlobStorage, error) {
	opts := miniostorage.Options{
		Endpoint: cfg.MinioEndpoint,
		User:     cfg.MinioUser,
		Pass:     cfg.MinioPass,
		UseSSL:   cfg.MinioUseSSL,
		Bucket:   cfg.Bucket,
	}

	for {
		zlog.Logger.Info().Str("endpoint", opts.Endpoint).Msg("Connecting to blob-storage...")
		client, err := miniostorage.NewMinioClient(ctx, opts)
		if err == nil {
			zlog.Logger.Info().Str("bucket", opts.Bucket).Msg("Successfully connected blob-storage!")
			return client, nil
		}
		zlog.Logger.Warn().Err(err).Dur("retry_in", delay).Msg("Failed to init connection to blob-storage")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}
