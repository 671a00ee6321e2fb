package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/gin-gonic/gin"
)

type mockBatchService struct {
	templatesFn  func() []model.Template
	processFn    func(ctx context.Context, d *model.BatchCreateData) (*model.BatchOutput, error)
	createFn     func(ctx context.Context, d *model.BatchCreateData) (*model.Batch, error)
	getFn        func(ctx context.Context, id string) (*model.Batch, error)
	deleteFn     func(ctx context.Context, id string) error
	loadResultFn func(ctx context.Context, id string) (io.ReadCloser, string, error)
	getListFn    func(ctx context.Context, req *model.ListRequest) ([]model.Batch, error)
}

func (m *mockBatchService) Templates() []model.Template {
	return m.templatesFn()
}

func (m *mockBatchService) Process(ctx context.Context, d *model.BatchCreateData) (*model.BatchOutput, error) {
	return m.processFn(ctx, d)
}

func (m *mockBatchService) Create(ctx context.Context, d *model.BatchCreateData) (*model.Batch, error) {
	return m.createFn(ctx, d)
}

func (m *mockBatchService) Get(ctx context.Context, id string) (*model.Batch, error) {
	return m.getFn(ctx, id)
}

func (m *mockBatchService) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockBatchService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	return m.loadResultFn(ctx, id)
}

func (m *mockBatchService) GetList(ctx context.Context, req *model.ListRequest) ([]model.Batch, error) {
	return m.getListFn(ctx, req)
}

func init() {
	gin.SetMode(gin.TestMode)
}
