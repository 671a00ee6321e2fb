// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/UnendingLoop/PicDeck/internal/mwlogger"
	"github.com/wb-go/wbf/ginext"
)

const (
	tierHeader     = "X-User-Tier"
	failuresHeader = "X-Job-Failures"
)

type BatchHandler struct {
	service   BatchService
	maxUpload int64
}

type BatchService interface {
	Templates() []model.Template
	Process(ctx context.Context, data *model.BatchCreateData) (*model.BatchOutput, error) // синхронный прогон
	Create(ctx context.Context, data *model.BatchCreateData) (*model.Batch, error)         // асинхронный - через очередь
	Get(ctx context.Context, id string) (*model.Batch, error)
	GetList(ctx context.Context, req *model.ListRequest) ([]model.Batch, error)
	LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, id string) error // удалить как в базе, так и в minio
}

// NewBatchHandler - maxUploadMB ограничивает размер всего multipart-тела
func NewBatchHandler(svc BatchService, maxUploadMB int) *BatchHandler {
	return &BatchHandler{
		service:   svc,
		maxUpload: int64(maxUploadMB) << 20,
	}
}

func (h BatchHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h BatchHandler) Templates(ctx *ginext.Context) {
	ctx.JSON(200, h.service.Templates())
}

// Process runs the batch within the request and streams back the image or the archive.
func (h BatchHandler) Process(ctx *ginext.Context) {
	data, err := h.parseBatchForm(ctx)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeUploads(ctx.Request.Context(), data)

	out, err := h.service.Process(ctx.Request.Context(), data)
	if err != nil {
		if errors.Is(err, model.ErrEmptyBatchResult) && out != nil {
			ctx.JSON(422, map[string]any{"error": err.Error(), "failures": out.Failures})
			return
		}
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	if len(out.Failures) > 0 {
		if raw, err := json.Marshal(out.Failures); err == nil {
			ctx.Writer.Header().Set(failuresHeader, string(raw))
		}
	}
	ctx.Writer.Header().Set("Content-Disposition", contentDisposition(out.FileName))
	ctx.Data(200, out.ContentType, out.Data)
}

func (h BatchHandler) Create(ctx *ginext.Context) {
	data, err := h.parseBatchForm(ctx)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeUploads(ctx.Request.Context(), data)

	res, err := h.service.Create(ctx.Request.Context(), data)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(202, res)
}

func (h BatchHandler) GetAllBatches(ctx *ginext.Context) {
	var req model.ListRequest

	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse query-params"})
		return
	}

	res, err := h.service.GetList(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h BatchHandler) Get(ctx *ginext.Context) {
	res, err := h.service.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h BatchHandler) LoadResult(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, cType, err := h.service.LoadResult(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(ctx.Request.Context(), res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.Header().Set("Content-Disposition", contentDisposition(id+model.GetImageFileExt[cType]))
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		ctxLogger := mwlogger.LoggerFromContext(ctx.Request.Context())
		ctxLogger.Error().Err(err).
			Int64("written", n).Str("batch", id).Msg("Failed to write response")
	}
}

func (h BatchHandler) Delete(ctx *ginext.Context) {
	if err := h.service.Delete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(204)
}

// parseBatchForm reads files[] (or files), the options JSON, an optional watermark file and the tier header.
func (h BatchHandler) parseBatchForm(ctx *ginext.Context) (*model.BatchCreateData, error) {
	if h.maxUpload > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, h.maxUpload)
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, model.ErrUploadTooLarge
		}
		return nil, model.ErrNoSourceFiles
	}

	data := &model.BatchCreateData{
		Tier:    model.ParseTier(ctx.GetHeader(tierHeader)),
		Options: &model.ProcessingOptions{},
	}

	if raw := form.Value["options"]; len(raw) > 0 && raw[0] != "" {
		if err := json.Unmarshal([]byte(raw[0]), data.Options); err != nil {
			return nil, model.ErrInvalidOptions
		}
	}

	headers := append(form.File["files[]"], form.File["files"]...)
	for _, fh := range headers {
		u, err := openUpload(fh)
		if err != nil {
			closeUploads(ctx.Request.Context(), data)
			return nil, model.ErrEmptySource
		}
		data.Files = append(data.Files, *u)
	}
	if len(data.Files) == 0 {
		return nil, model.ErrNoSourceFiles
	}

	if wm := form.File["watermark"]; len(wm) > 0 {
		u, err := openUpload(wm[0])
		if err != nil {
			closeUploads(ctx.Request.Context(), data)
			return nil, model.ErrEmptyWMark
		}
		data.Watermark = u
	}

	return data, nil
}

func openUpload(fh *multipart.FileHeader) (*model.UploadedFile, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	return &model.UploadedFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		File:        f,
	}, nil
}
