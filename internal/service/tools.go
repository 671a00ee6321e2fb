package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/UnendingLoop/PicDeck/internal/mwlogger"
	"github.com/go-playground/validator/v10"
)

func validateQueryParams(req *model.ListRequest) {
	// Обрабатываем пустые значения, присваиваем дефолты если надо
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 30
	}

	// Валидируем поле типа сортировки
	sort := strings.TrimSpace(strings.ToLower(req.Sort))
	switch {
	case strings.Contains(sort, model.ByUUID):
		req.Sort = "batch_uid"
	default:
		req.Sort = "created_at" // по дефолту сортировка по времени создания
	}

	// Валидируем порядок
	order := strings.TrimSpace(strings.ToLower(req.Order))
	switch {
	case strings.Contains(order, model.OrderASC):
		req.Order = "ASC"
	default:
		req.Order = "DESC" // по дефолту "новое-выше"
	}
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// validateOptions checks option ranges. Template dimensions are left to the jobs:
// a zero-sized template fails only its own jobs.
func (c BatchService) validateOptions(opts *model.ProcessingOptions) error {
	if err := c.validate.Struct(opts); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 {
			return fmt.Errorf("%w: field %s failed on %q", model.ErrInvalidOptions, vErrs[0].Namespace(), vErrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", model.ErrInvalidOptions, err)
	}

	if len(opts.EffectiveTemplates()) == 0 {
		return fmt.Errorf("%w: no templates selected", model.ErrInvalidOptions)
	}
	return nil
}

func closeFileFlow(ctx context.Context, res io.Closer) {
	if res == nil {
		return
	}

	if err := res.Close(); err != nil {
		ctxLogger := mwlogger.LoggerFromContext(ctx)
		ctxLogger.Warn().Err(err).Msg("Failed to close fileflow")
	}
}
