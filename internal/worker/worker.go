// Package worker consumes queued batch ids and runs them through the batch pipeline
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/UnendingLoop/PicDeck/internal/mwlogger"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"
)

type BatchWorkerService interface {
	Get(ctx context.Context, id string) (*model.Batch, error)
	UpdateStatus(ctx context.Context, id string, newStat model.Status) error
	ClaimBatch(ctx context.Context, id string) error
	TouchBatch(ctx context.Context, id string) error
	SaveResult(ctx context.Context, res *model.Batch) error
	LoadSources(ctx context.Context, b *model.Batch) ([]model.SourceFile, []byte, error)
	StoreResult(ctx context.Context, id string, out *model.BatchOutput) (string, error)
	Execute(ctx context.Context, tier model.Tier, opts *model.ProcessingOptions, files []model.SourceFile) (*model.BatchOutput, error)
}

// Committer - подтверждение обработанного сообщения очереди (wbf kafka.Consumer)
type Committer interface {
	Commit(ctx context.Context, msg kafkago.Message) error
}

// heartbeatInterval должен быть заметно меньше порога осиротевших батчей (10 минут)
const heartbeatInterval = time.Minute

type Worker struct {
	service   BatchWorkerService
	queue     <-chan kafkago.Message
	consumer  Committer
	heartbeat time.Duration
}

func NewWorkerInstance(svc BatchWorkerService, q <-chan kafkago.Message, cons Committer) *Worker {
	return &Worker{service: svc, queue: q, consumer: cons, heartbeat: heartbeatInterval}
}

func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				zlog.Logger.Info().Msg("Queue channel closed, stopping worker...")
				return
			}
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg kafkago.Message) {
	id := string(msg.Key)
	logger := zlog.Logger.With().Str("batch", id).Logger()
	ctx = mwlogger.WithLogger(ctx, logger)

	// неизвестный батч коммитим: повторная доставка ничего не изменит
	if err := w.initProcessor(ctx, id); err != nil && !errors.Is(err, model.ErrBatchNotFound) {
		logger.Error().Err(err).Msg("Batch failed")
		return
	}
	if err := w.consumer.Commit(ctx, msg); err != nil {
		logger.Error().Err(err).Msg("Failed to commit queue-message")
	}
}

func (w *Worker) initProcessor(ctx context.Context, id string) error {
	// считать из базы батч
	batch, err := w.service.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("worker failed to fetch batch %q from DB: %w", id, err)
	}

	// готовые батчи не пересчитываем
	switch batch.Status {
	case model.StatusDone, model.StatusFailed:
		return nil
	}

	// in_progress отдается только если его давно не обновляли - значит прежний воркер упал
	if err := w.service.ClaimBatch(ctx, id); err != nil {
		if errors.Is(err, model.ErrBatchBusy) {
			ctxLogger := mwlogger.LoggerFromContext(ctx)
			ctxLogger.Info().Msg("Batch is held by another worker, skipping")
			return nil
		}
		return fmt.Errorf("failed to claim batch %q in DB: %w", id, err)
	}

	stopBeat := w.startHeartbeat(ctx, id)
	pErr := w.processBatch(ctx, batch)
	stopBeat()

	if pErr != nil {
		// при остановке воркера статус не трогаем - батч подберет recovery loop
		if ctx.Err() != nil {
			return pErr
		}
		if uErr := w.service.UpdateStatus(ctx, id, model.StatusFailed); uErr != nil {
			return fmt.Errorf("failed to set status of batch %q to `failed` in DB: %w \nAFTER\n error while processing batch: %w", id, uErr, pErr)
		}
		return fmt.Errorf("failed to process batch %q: %w", id, pErr)
	}

	return nil
}

// startHeartbeat keeps updated_at of the claimed batch fresh until the returned stop is called.
func (w *Worker) startHeartbeat(ctx context.Context, id string) (stop func()) {
	interval := w.heartbeat
	if interval <= 0 {
		interval = heartbeatInterval
	}

	beatCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-beatCtx.Done():
				return
			case <-ticker.C:
				if err := w.service.TouchBatch(beatCtx, id); err != nil && beatCtx.Err() == nil {
					ctxLogger := mwlogger.LoggerFromContext(ctx)
					ctxLogger.Warn().Err(err).Msg("Failed to refresh batch heartbeat")
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (w *Worker) processBatch(ctx context.Context, batch *model.Batch) error {
	id := batch.UID.String()

	// достать из хранилища исходники и ватермарк
	files, wm, err := w.service.LoadSources(ctx, batch)
	if err != nil {
		return err
	}

	opts := batch.Options
	if wm != nil {
		ws := model.WatermarkSettings{}
		if opts.WatermarkSettings != nil {
			ws = *opts.WatermarkSettings
		}
		ws.Image = wm
		opts.WatermarkSettings = &ws
	}

	out, err := w.service.Execute(ctx, batch.Tier, &opts, files)
	switch {
	case errors.Is(err, model.ErrEmptyBatchResult):
		// ни одной успешной задачи: батч завершен, причины сохраняем
		batch.Status = model.StatusFailed
		batch.Failures = out.Failures
		return w.service.SaveResult(ctx, batch)
	case err != nil:
		return err
	}

	key, err := w.service.StoreResult(ctx, id, out)
	if err != nil {
		return err
	}

	batch.Status = model.StatusDone
	batch.ResultKey = key
	batch.ResultCType = out.ContentType
	batch.Failures = out.Failures

	if err := w.service.SaveResult(ctx, batch); err != nil {
		return fmt.Errorf("worker failed to save result to DB: %w", err)
	}

	ctxLogger := mwlogger.LoggerFromContext(ctx)
	ctxLogger.Info().
		Int("succeeded", out.Succeeded).
		Int("failed", len(out.Failures)).
		Str("result", key).
		Msg("Batch done")
	return nil
}
