package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
)

func TestBatchHandler_Ping(t *testing.T) {
	r := gin.New()
	h := NewBatchHandler(nil, 1)

	r.GET("/ping", func(c *gin.Context) {
		h.SimplePinger((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "pong", body["message"])
}

func TestBatchHandler_Templates(t *testing.T) {
	r := gin.New()
	h := NewBatchHandler(&mockBatchService{
		templatesFn: func() []model.Template {
			return []model.Template{{Name: "Instagram Post", Width: 1080, Height: 1080}}
		},
	}, 1)

	r.GET("/templates", func(c *gin.Context) {
		h.Templates((*ginext.Context)(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/templates", nil))

	require.Equal(t, 200, w.Code)
	var body []model.Template
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1080, body[0].Width)
}

type formFile struct {
	field, name string
	content     []byte
}

func newMultipartRequest(t *testing.T, target string, fields map[string]string, files []formFile) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

const tplOptions = `{"templates":[{"name":"Instagram Post"}]}`

func TestBatchHandler_Process(t *testing.T) {
	tests := []struct {
		name       string
		req        func() *http.Request
		mock       *mockBatchService
		wantStatus int
		check      func(t *testing.T, w *httptest.ResponseRecorder)
	}{
		{
			name: "single image",
			req: func() *http.Request {
				req := newMultipartRequest(t, "/process", map[string]string{"options": tplOptions},
					[]formFile{{"files[]", "cat.png", []byte("img")}})
				req.Header.Set(tierHeader, "Premium")
				return req
			},
			mock: &mockBatchService{
				processFn: func(ctx context.Context, d *model.BatchCreateData) (*model.BatchOutput, error) {
					require.Equal(t, model.TierPremium, d.Tier)
					require.Len(t, d.Files, 1)
					require.Equal(t, "cat.png", d.Files[0].Name)
					require.Equal(t, "Instagram Post", d.Options.Templates[0].Name)
					return &model.BatchOutput{Data: []byte("png"), ContentType: model.PNG, FileName: "cat.instagrampost.1080x1080.png", Succeeded: 1}, nil
				},
			},
			wantStatus: 200,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				require.Equal(t, model.PNG, w.Header().Get("Content-Type"))
				require.Contains(t, w.Header().Get("Content-Disposition"), "cat.instagrampost.1080x1080.png")
				require.Empty(t, w.Header().Get(failuresHeader))
				require.Equal(t, "png", w.Body.String())
			},
		},
		{
			name: "archive with partial failures and watermark",
			req: func() *http.Request {
				return newMultipartRequest(t, "/process", map[string]string{"options": tplOptions},
					[]formFile{{"files[]", "a.png", []byte("a")}, {"files[]", "b.png", []byte("b")}, {"watermark", "logo.png", []byte("wm")}})
			},
			mock: &mockBatchService{
				processFn: func(ctx context.Context, d *model.BatchCreateData) (*model.BatchOutput, error) {
					require.Equal(t, model.TierFree, d.Tier)
					require.Len(t, d.Files, 2)
					require.NotNil(t, d.Watermark)
					return &model.BatchOutput{
						Data:        []byte("zip"),
						ContentType: model.Archive,
						FileName:    "picdeck.zip",
						Succeeded:   1,
						Failures:    []model.JobFailure{{OutputName: "b.instagrampost.1080x1080.png", Kind: model.KindUndecodableSource}},
					}, nil
				},
			},
			wantStatus: 200,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				var failures []model.JobFailure
				require.NoError(t, json.Unmarshal([]byte(w.Header().Get(failuresHeader)), &failures))
				require.Len(t, failures, 1)
				require.Equal(t, model.KindUndecodableSource, failures[0].Kind)
				require.Equal(t, model.Archive, w.Header().Get("Content-Type"))
			},
		},
		{
			name: "empty batch result",
			req: func() *http.Request {
				return newMultipartRequest(t, "/process", map[string]string{"options": tplOptions},
					[]formFile{{"files[]", "a.png", []byte("a")}})
			},
			mock: &mockBatchService{
				processFn: func(ctx context.Context, d *model.BatchCreateData) (*model.BatchOutput, error) {
					return &model.BatchOutput{Failures: []model.JobFailure{{Kind: model.KindUndecodableSource}}}, model.ErrEmptyBatchResult
				},
			},
			wantStatus: 422,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				require.Contains(t, w.Body.String(), "UndecodableSource")
			},
		},
		{
			name: "no files",
			req: func() *http.Request {
				return newMultipartRequest(t, "/process", map[string]string{"options": tplOptions}, nil)
			},
			mock:       &mockBatchService{},
			wantStatus: 400,
		},
		{
			name: "malformed options",
			req: func() *http.Request {
				return newMultipartRequest(t, "/process", map[string]string{"options": "{"},
					[]formFile{{"files[]", "a.png", []byte("a")}})
			},
			mock:       &mockBatchService{},
			wantStatus: 400,
		},
		{
			name: "tier forbidden",
			req: func() *http.Request {
				return newMultipartRequest(t, "/process", map[string]string{"options": tplOptions},
					[]formFile{{"files", "a.png", []byte("a")}})
			},
			mock: &mockBatchService{
				processFn: func(ctx context.Context, d *model.BatchCreateData) (*model.BatchOutput, error) {
					return nil, model.ErrTierForbidden
				},
			},
			wantStatus: 403,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewBatchHandler(tt.mock, 8)

			r.POST("/process", func(c *gin.Context) {
				h.Process((*ginext.Context)(c))
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, tt.req())

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.check != nil {
				tt.check(t, w)
			}
		})
	}
}

func TestBatchHandler_Create(t *testing.T) {
	tests := []struct {
		name       string
		mock       *mockBatchService
		wantStatus int
	}{
		{
			name: "accepted",
			mock: &mockBatchService{
				createFn: func(ctx context.Context, d *model.BatchCreateData) (*model.Batch, error) {
					require.Len(t, d.Files, 1)
					return &model.Batch{UID: uuid.New(), Status: model.StatusCreated}, nil
				},
			},
			wantStatus: 202,
		},
		{
			name: "unknown template",
			mock: &mockBatchService{
				createFn: func(ctx context.Context, d *model.BatchCreateData) (*model.Batch, error) {
					return nil, model.ErrUnknownTemplate
				},
			},
			wantStatus: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewBatchHandler(tt.mock, 8)

			r.POST("/batches", func(c *gin.Context) {
				h.Create((*ginext.Context)(c))
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, newMultipartRequest(t, "/batches", map[string]string{"options": tplOptions},
				[]formFile{{"files[]", "a.png", []byte("a")}}))

			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestBatchHandler_GetAllBatches(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		mock       *mockBatchService
		wantStatus int
	}{
		{
			name:  "success",
			query: "?page=1&limit=10",
			mock: &mockBatchService{
				getListFn: func(ctx context.Context, req *model.ListRequest) ([]model.Batch, error) {
					require.Equal(t, 10, req.Limit)
					return []model.Batch{{}}, nil
				},
			},
			wantStatus: 200,
		},
		{
			name:       "bad query",
			query:      "?page=abc",
			mock:       &mockBatchService{},
			wantStatus: 400,
		},
		{
			name: "service error",
			mock: &mockBatchService{
				getListFn: func(ctx context.Context, req *model.ListRequest) ([]model.Batch, error) {
					return nil, model.ErrCommon500
				},
			},
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewBatchHandler(tt.mock, 1)

			r.GET("/batches", func(c *gin.Context) {
				h.GetAllBatches((*ginext.Context)(c))
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/batches"+tt.query, nil))

			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestBatchHandler_Get(t *testing.T) {
	id := uuid.New()
	h := NewBatchHandler(&mockBatchService{
		getFn: func(ctx context.Context, uid string) (*model.Batch, error) {
			if uid != id.String() {
				return nil, model.ErrBatchNotFound
			}
			return &model.Batch{UID: id, Status: model.StatusDone, Failures: model.FailureList{{Kind: model.KindWatermarkAsset}}}, nil
		},
	}, 1)

	r := gin.New()
	r.GET("/batches/:id", func(c *gin.Context) {
		h.Get((*ginext.Context)(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/batches/"+id.String(), nil))
	require.Equal(t, 200, w.Code)
	require.Contains(t, w.Body.String(), "WatermarkAssetError")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/batches/"+uuid.NewString(), nil))
	require.Equal(t, 404, w.Code)
}

func TestBatchHandler_LoadResult(t *testing.T) {
	tests := []struct {
		name       string
		mock       *mockBatchService
		wantStatus int
	}{
		{
			name: "success",
			mock: &mockBatchService{
				loadResultFn: func(ctx context.Context, id string) (io.ReadCloser, string, error) {
					return io.NopCloser(strings.NewReader("zip")), model.Archive, nil
				},
			},
			wantStatus: 200,
		},
		{
			name: "not ready",
			mock: &mockBatchService{
				loadResultFn: func(ctx context.Context, id string) (io.ReadCloser, string, error) {
					return nil, "", model.ErrResultNotReady
				},
			},
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewBatchHandler(tt.mock, 1)

			r.GET("/batches/:id/result", func(c *gin.Context) {
				h.LoadResult((*ginext.Context)(c))
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/batches/123/result", nil))

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == 200 {
				require.Equal(t, "zip", w.Body.String())
				require.Contains(t, w.Header().Get("Content-Disposition"), "123.zip")
			}
		})
	}
}

func TestBatchHandler_Delete(t *testing.T) {
	tests := []struct {
		name       string
		mock       *mockBatchService
		wantStatus int
	}{
		{
			name: "success",
			mock: &mockBatchService{
				deleteFn: func(ctx context.Context, id string) error {
					return nil
				},
			},
			wantStatus: 204,
		},
		{
			name: "not found",
			mock: &mockBatchService{
				deleteFn: func(ctx context.Context, id string) error {
					return model.ErrBatchNotFound
				},
			},
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewBatchHandler(tt.mock, 1)

			r.DELETE("/batches/:id", func(c *gin.Context) {
				h.Delete((*ginext.Context)(c))
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/batches/123", nil))

			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestErrorCodeDefiner(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{model.ErrCommon500, 500},
		{model.ErrBatchNotFound, 404},
		{model.ErrResultNotReady, 404},
		{model.ErrTierForbidden, 403},
		{model.ErrUploadTooLarge, 413},
		{model.ErrEmptyBatchResult, 422},
		{model.ErrInvalidOptions, 400},
		{model.ErrUnknownTemplate, 400},
		{model.ErrNoSourceFiles, 400},
		{context.Canceled, 499},
		{io.EOF, 500},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			require.Equal(t, tt.code, errorCodeDefiner(tt.err))
		})
	}
}
