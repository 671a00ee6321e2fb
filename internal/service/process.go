package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/UnendingLoop/PicDeck/internal/archive"
	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/UnendingLoop/PicDeck/internal/mwlogger"
)

// Process runs a batch synchronously and returns the packaged output.
// On ErrEmptyBatchResult the returned output still carries the failure list.
func (c BatchService) Process(ctx context.Context, data *model.BatchCreateData) (*model.BatchOutput, error) {
	if err := c.prepare(data); err != nil {
		return nil, err
	}

	files, err := readUploads(ctx, data.Files)
	if err != nil {
		return nil, err
	}

	return c.Execute(ctx, data.Tier, data.Options, files)
}

// Execute is the shared core of the sync endpoint and the async worker:
// entitlement check, job fan-out and packaging.
func (c BatchService) Execute(ctx context.Context, tier model.Tier, opts *model.ProcessingOptions, files []model.SourceFile) (*model.BatchOutput, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if len(files) == 0 {
		return nil, model.ErrNoSourceFiles
	}
	if err := model.CheckEntitlement(tier, opts); err != nil {
		return nil, err
	}

	results, err := c.processor.Run(ctx, files, opts)
	if err != nil {
		logger.Warn().Err(err).Msg("Batch run aborted")
		return nil, err
	}

	out, err := archive.Package(results)
	if err != nil {
		if errors.Is(err, model.ErrEmptyBatchResult) {
			return out, err
		}
		logger.Error().Err(err).Msg("Failed to package batch result")
		return nil, model.ErrCommon500
	}

	return out, nil
}

// prepare resolves template names against the catalog, attaches the uploaded watermark asset,
// validates the options and checks the tier.
func (c BatchService) prepare(data *model.BatchCreateData) error {
	if len(data.Files) == 0 {
		return model.ErrNoSourceFiles
	}
	if data.Options == nil {
		return fmt.Errorf("%w: options are missing", model.ErrInvalidOptions)
	}

	// при customSize список шаблонов не обрабатывается, резолвить его незачем
	if data.Options.CustomSize == nil {
		tpls, err := c.resolveTemplates(data.Options.Templates)
		if err != nil {
			return err
		}
		data.Options.Templates = tpls
	}

	if data.Watermark != nil {
		wm, err := readWatermark(data.Watermark)
		if err != nil {
			return err
		}
		if data.Options.WatermarkSettings == nil {
			data.Options.WatermarkSettings = &model.WatermarkSettings{}
		}
		data.Options.WatermarkSettings.Image = wm
	}

	if err := c.validateOptions(data.Options); err != nil {
		return err
	}

	return model.CheckEntitlement(data.Tier, data.Options)
}

// resolveTemplates fills dimensions of templates given by name only.
// Templates with any explicit dimension are taken as is.
func (c BatchService) resolveTemplates(in []model.Template) ([]model.Template, error) {
	res := make([]model.Template, 0, len(in))
	for _, t := range in {
		if t.Width != 0 || t.Height != 0 {
			res = append(res, t)
			continue
		}

		resolved, err := c.catalog.Resolve([]string{t.Name})
		if err != nil {
			return nil, err
		}
		res = append(res, resolved...)
	}
	return res, nil
}

func readUploads(ctx context.Context, uploads []model.UploadedFile) ([]model.SourceFile, error) {
	files := make([]model.SourceFile, 0, len(uploads))
	for _, u := range uploads {
		if u.File == nil {
			return nil, model.ErrEmptySource
		}
		data, err := io.ReadAll(u.File)
		if err != nil {
			ctxLogger := mwlogger.LoggerFromContext(ctx)
			ctxLogger.Error().Err(err).Str("file", u.Name).Msg("Failed to read uploaded file")
			return nil, model.ErrCommon500
		}
		files = append(files, model.SourceFile{Name: u.Name, Data: data})
	}
	return files, nil
}

func readWatermark(u *model.UploadedFile) ([]byte, error) {
	if u.File == nil || u.Size == 0 {
		return nil, model.ErrEmptyWMark
	}
	if ct := strings.ToLower(u.ContentType); ct != "" && ct != "application/octet-stream" && !model.InImageTypeMap[ct] {
		return nil, model.ErrEmptyWMark
	}

	data, err := io.ReadAll(u.File)
	if err != nil || len(data) == 0 {
		return nil, model.ErrEmptyWMark
	}
	return data, nil
}

func watermarkCType(u *model.UploadedFile) string {
	if u == nil || u.ContentType == "" {
		return "application/octet-stream"
	}
	return u.ContentType
}
