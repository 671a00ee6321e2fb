// Package service provides business-logic for the app
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/UnendingLoop/PicDeck/internal/catalog"
	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/UnendingLoop/PicDeck/internal/mwlogger"
	"github.com/UnendingLoop/PicDeck/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
)

const (
	srcKeyPrefix    = "src/"
	wmKeyPrefix     = "wm/"
	resultKeyPrefix = "res/"
)

type BatchService struct {
	repo      repository.BatchRepo
	publisher TaskPublisher
	storage   BlobStorage
	processor BatchProcessor
	catalog   *catalog.Catalog
	validate  *validator.Validate
}

func NewBatchService(repo repository.BatchRepo, pub TaskPublisher, strg BlobStorage, proc BatchProcessor, cat *catalog.Catalog) *BatchService {
	if cat == nil {
		cat = catalog.Default()
	}
	return &BatchService{
		repo:      repo,
		publisher: pub,
		storage:   strg,
		processor: proc,
		catalog:   cat,
		validate:  newValidator(),
	}
}

// TaskPublisher - контракт для работы с очередью
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// BlobStorage - контракт для работы с хранилищем
type BlobStorage interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// BatchProcessor runs (file x template) jobs; implemented by pipeline.Processor.
type BatchProcessor interface {
	Run(ctx context.Context, files []model.SourceFile, opts *model.ProcessingOptions) ([]model.JobResult, error)
}

// Стратегия ретрая отправки в очередь
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

func (c BatchService) Templates() []model.Template {
	return c.catalog.All()
}

// Create stores the uploads, registers the batch and queues it for the worker.
func (c BatchService) Create(ctx context.Context, data *model.BatchCreateData) (*model.Batch, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := c.prepare(data); err != nil {
		return nil, err
	}

	uid := uuid.New()
	batch := &model.Batch{
		UID:         uid,
		Tier:        data.Tier,
		Options:     *data.Options,
		SourceKeys:  make(model.StringSlice, 0, len(data.Files)),
		SourceNames: make(model.StringSlice, 0, len(data.Files)),
	}

	// кладем в хранилище исходники
	for i, f := range data.Files {
		key := srcKeyPrefix + uid.String() + "/" + strconv.Itoa(i)
		if err := c.storage.Put(ctx, key, f.Size, f.ContentType, f.File); err != nil {
			logger.Error().Err(err).Str("file", f.Name).Msg("Failed to save source image in Storage")
			return nil, model.ErrCommon500
		}
		batch.SourceKeys = append(batch.SourceKeys, key)
		batch.SourceNames = append(batch.SourceNames, f.Name)
	}

	// ватермарк - если прислали
	if ws := data.Options.WatermarkSettings; ws != nil && len(ws.Image) > 0 {
		key := wmKeyPrefix + uid.String()
		if err := c.storage.Put(ctx, key, int64(len(ws.Image)), watermarkCType(data.Watermark), bytes.NewReader(ws.Image)); err != nil {
			logger.Error().Err(err).Msg("Failed to save watermark in Storage")
			return nil, model.ErrCommon500
		}
		batch.WatermarkKey = key
	}

	// ставим статус и таймстамп
	batch.Status = model.StatusCreated
	now := time.Now().UTC()
	batch.CreatedAt = &now

	// шлем в базу
	if err := c.repo.Create(ctx, batch); err != nil {
		logger.Error().Err(err).Msg("Failed to create batch in DB")
		return nil, model.ErrCommon500
	}

	// кладем в очередь задач
	if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(uid.String()), nil); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to publish batch %q to task-queue", uid))
		return nil, model.ErrCommon500
	}

	logger.Info().Str("batch", uid.String()).Int("files", len(data.Files)).Msg("Batch queued")
	return batch, nil
}

func (c BatchService) GetList(ctx context.Context, req *model.ListRequest) ([]model.Batch, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	validateQueryParams(req)

	res, err := c.repo.GetList(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch batch list from DB")
		return nil, model.ErrCommon500
	}

	return res, nil
}

func (c BatchService) Get(ctx context.Context, id string) (*model.Batch, error) {
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := c.repo.Get(ctx, id)
	if err != nil {
		return nil, c.repoErr(ctx, err, fmt.Sprintf("Failed to fetch batch %q from DB", id))
	}

	return res, nil
}

func (c BatchService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	res, err := c.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if res.Status != model.StatusDone || res.ResultKey == "" {
		return nil, "", model.ErrResultNotReady
	}

	// достаем из хранилища
	data, cType, err := c.storage.Get(ctx, res.ResultKey)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch result of batch %q from Storage", id))
		return nil, "", model.ErrCommon500
	}
	if cType == "" {
		cType = res.ResultCType
	}
	return data, cType, nil
}

func (c BatchService) Delete(ctx context.Context, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)

	// читаем из базы
	res, err := c.Get(ctx, id)
	if err != nil {
		return err
	}

	// удаляем из базы
	if err := c.repo.Delete(ctx, id); err != nil {
		return c.repoErr(ctx, err, "Failed to delete batch from DB")
	}

	// удаляем из хранилища исходники, результат и ватермарк (если они есть)
	keys := append([]string{}, res.SourceKeys...)
	if res.ResultKey != "" {
		keys = append(keys, res.ResultKey)
	}
	if res.WatermarkKey != "" {
		keys = append(keys, res.WatermarkKey)
	}

	var errs []error
	for _, k := range keys {
		if err := c.storage.Delete(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.Error().Err(err).Str("batch", id).Msg("Failed to delete batch objects from Storage")
		return model.ErrCommon500
	}

	return nil
}

func (c BatchService) UpdateStatus(ctx context.Context, id string, newStat model.Status) error {
	if err := uuid.Validate(id); err != nil {
		return model.ErrIncorrectID
	}
	if !model.StatusMap[newStat] {
		return model.ErrIncorrectQuery
	}

	if err := c.repo.UpdateStatus(ctx, id, newStat); err != nil {
		return c.repoErr(ctx, err, "Failed to update batch status in DB")
	}

	return nil
}

// ClaimBatch takes the batch for processing; ErrBatchBusy means another worker holds it or it is finished.
func (c BatchService) ClaimBatch(ctx context.Context, id string) error {
	err := c.repo.Claim(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrBatchBusy):
		return err
	default:
		return c.repoErr(ctx, err, "Failed to claim batch in DB")
	}
}

// TouchBatch - heartbeat of a batch in progress
func (c BatchService) TouchBatch(ctx context.Context, id string) error {
	if err := c.repo.Touch(ctx, id); err != nil {
		return c.repoErr(ctx, err, "Failed to refresh batch heartbeat in DB")
	}
	return nil
}

func (c BatchService) SaveResult(ctx context.Context, input *model.Batch) error {
	t := time.Now().UTC()
	input.UpdatedAt = &t
	if err := c.repo.SaveResult(ctx, input); err != nil {
		return c.repoErr(ctx, err, "Failed to save batch result in DB")
	}

	return nil
}

// StoreResult puts the packaged blob into storage and returns its key.
func (c BatchService) StoreResult(ctx context.Context, id string, out *model.BatchOutput) (string, error) {
	key := resultKeyPrefix + id + model.GetImageFileExt[out.ContentType]
	if err := c.storage.Put(ctx, key, int64(len(out.Data)), out.ContentType, bytes.NewReader(out.Data)); err != nil {
		ctxLogger := mwlogger.LoggerFromContext(ctx)
		ctxLogger.Error().Err(err).Str("batch", id).Msg("Failed to put batch result to Storage")
		return "", model.ErrCommon500
	}
	return key, nil
}

// LoadSources reads every source object and the watermark asset of a stored batch.
func (c BatchService) LoadSources(ctx context.Context, b *model.Batch) ([]model.SourceFile, []byte, error) {
	files := make([]model.SourceFile, 0, len(b.SourceKeys))
	for i, key := range b.SourceKeys {
		data, err := c.readObject(ctx, key)
		if err != nil {
			return nil, nil, fmt.Errorf("load source %q: %w", key, err)
		}
		name := key
		if i < len(b.SourceNames) {
			name = b.SourceNames[i]
		}
		files = append(files, model.SourceFile{Name: name, Data: data})
	}

	if b.WatermarkKey == "" {
		return files, nil, nil
	}

	wm, err := c.readObject(ctx, b.WatermarkKey)
	if err != nil {
		return nil, nil, fmt.Errorf("load watermark %q: %w", b.WatermarkKey, err)
	}
	return files, wm, nil
}

func (c BatchService) readObject(ctx context.Context, key string) ([]byte, error) {
	r, _, err := c.storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer closeFileFlow(ctx, r)

	return io.ReadAll(r)
}

func (c BatchService) ReviveOrphans(ctx context.Context, limit int) {
	logger := mwlogger.LoggerFromContext(ctx)

	orphans, err := c.repo.FetchOrphans(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load orphans from DB")
		return
	}

	for _, v := range orphans {
		if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(v), nil); err != nil {
			logger.Error().Err(err).Str("batch", v).Msg("Failed to publish orphan to queue")
		}
	}
}

func (c BatchService) repoErr(ctx context.Context, err error, msg string) error {
	if errors.Is(err, model.ErrBatchNotFound) {
		return model.ErrBatchNotFound // 404
	}
	ctxLogger := mwlogger.LoggerFromContext(ctx)
	ctxLogger.Error().Err(err).Msg(msg)
	return model.ErrCommon500
}
