package transport

import (
	"context"
	"errors"
	"io"
	"mime"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/UnendingLoop/PicDeck/internal/mwlogger"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrBatchNotFound),
		errors.Is(err, model.ErrResultNotReady):
		return 404
	case errors.Is(err, model.ErrTierForbidden):
		return 403
	case errors.Is(err, model.ErrUploadTooLarge):
		return 413
	case errors.Is(err, model.ErrEmptyBatchResult):
		return 422
	case errors.Is(err, model.ErrIncorrectQuery),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrEmptyWMark),
		errors.Is(err, model.ErrNoSourceFiles),
		errors.Is(err, model.ErrInvalidOptions),
		errors.Is(err, model.ErrUnknownTemplate):
		return 400
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return 500
	}
}

func contentDisposition(fileName string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": fileName})
}

func closeUploads(ctx context.Context, data *model.BatchCreateData) {
	for _, f := range data.Files {
		closeFileFlow(ctx, f.File)
	}
	if data.Watermark != nil {
		closeFileFlow(ctx, data.Watermark.File)
	}
}

func closeFileFlow(ctx context.Context, res io.Closer) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		ctxLogger := mwlogger.LoggerFromContext(ctx)
		ctxLogger.Warn().Err(err).Msg("Handler failed to close fileflow")
	}
}
