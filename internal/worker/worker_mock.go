package worker

import (
	"context"

	"github.com/UnendingLoop/PicDeck/internal/model"
	kafkago "github.com/segmentio/kafka-go"
)

type mockWorkerService struct {
	getFn         func(ctx context.Context, id string) (*model.Batch, error)
	updateFn      func(ctx context.Context, id string, st model.Status) error
	claimFn       func(ctx context.Context, id string) error
	touchFn       func(ctx context.Context, id string) error
	saveResultFn  func(ctx context.Context, b *model.Batch) error
	loadSourcesFn func(ctx context.Context, b *model.Batch) ([]model.SourceFile, []byte, error)
	storeResultFn func(ctx context.Context, id string, out *model.BatchOutput) (string, error)
	executeFn     func(ctx context.Context, tier model.Tier, opts *model.ProcessingOptions, files []model.SourceFile) (*model.BatchOutput, error)
}

func (m *mockWorkerService) Get(ctx context.Context, id string) (*model.Batch, error) {
	return m.getFn(ctx, id)
}

func (m *mockWorkerService) UpdateStatus(ctx context.Context, id string, st model.Status) error {
	return m.updateFn(ctx, id, st)
}

func (m *mockWorkerService) ClaimBatch(ctx context.Context, id string) error {
	return m.claimFn(ctx, id)
}

func (m *mockWorkerService) TouchBatch(ctx context.Context, id string) error {
	return m.touchFn(ctx, id)
}

func (m *mockWorkerService) SaveResult(ctx context.Context, b *model.Batch) error {
	return m.saveResultFn(ctx, b)
}

func (m *mockWorkerService) LoadSources(ctx context.Context, b *model.Batch) ([]model.SourceFile, []byte, error) {
	return m.loadSourcesFn(ctx, b)
}

func (m *mockWorkerService) StoreResult(ctx context.Context, id string, out *model.BatchOutput) (string, error) {
	return m.storeResultFn(ctx, id, out)
}

func (m *mockWorkerService) Execute(ctx context.Context, tier model.Tier, opts *model.ProcessingOptions, files []model.SourceFile) (*model.BatchOutput, error) {
	return m.executeFn(ctx, tier, opts, files)
}

//----------------------------------

type mockCommitter struct {
	committed []string
}

func (m *mockCommitter) Commit(ctx context.Context, msg kafkago.Message) error {
	m.committed = append(m.committed, string(msg.Key))
	return nil
}
