package main

import (
	"context"

	"github.com/UnendingLoop/PicDeck/internal/transport"
)

// BatchAPIService - всё, что нужно API: хендлеры и recovery loop
type BatchAPIService interface {
	transport.BatchService
	ReviveOrphans(ctx context.Context, limit int)
}
