// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in_progress"
	StatusFailed     Status = "failed"
	StatusDone       Status = "done"
)

var StatusMap = map[Status]bool{
	StatusCreated:    true,
	StatusInProgress: true,
	StatusFailed:     true,
	StatusDone:       true,
}

//---------------------

// Batch - асинхронный батч: исходники лежат в хранилище, результат (картинка или архив) тоже
type Batch struct {
	UID          uuid.UUID         `json:"uid"`
	Tier         Tier              `json:"tier"`
	SourceKeys   StringSlice       `json:"-"`
	SourceNames  StringSlice       `json:"files"`
	WatermarkKey string            `json:"-"`
	Options      ProcessingOptions `json:"options"`
	ResultKey    string            `json:"-"`
	ResultCType  string            `json:"result_type,omitempty"`
	Status       Status            `json:"status,omitempty"`
	Failures     FailureList       `json:"failures,omitempty"`
	CreatedAt    *time.Time        `json:"created_at,omitempty"`
	UpdatedAt    *time.Time        `json:"updated_at,omitempty"`
}

//-------------------

type ListRequest struct {
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Sort  string `form:"sort"`
	Order string `form:"order"`
}

const (
	ByUUID    = "uid"
	ByCreated = "created"
	OrderASC  = "ascend"
	OrderDESC = "descend"
)

// UploadedFile - файл из multipart-формы вместе с метаданными
type UploadedFile struct {
	Name        string
	ContentType string
	Size        int64
	File        multipart.File
}

type BatchCreateData struct {
	Tier      Tier
	Options   *ProcessingOptions
	Files     []UploadedFile
	Watermark *UploadedFile
}

// ------------------

var (
	ErrCommon500      error = errors.New("something went wrong. Try again later") // 500
	ErrIncorrectQuery error = errors.New("incorrect query parameters")            // 400
	ErrIncorrectID    error = errors.New("incorrect batch UUID")                  // 400
	ErrBatchNotFound  error = errors.New("specified batch UUID doesn't exist")    // 404
	ErrResultNotReady error = errors.New("requested batch is not processed yet")  // 404
	ErrEmptySource    error = errors.New("empty/incorrect source image provided") // 400
	ErrEmptyWMark     error = errors.New("empty/incorrect watermark provided")    // 400
	ErrNoSourceFiles  error = errors.New("no source files provided")              // 400
	ErrInvalidOptions error = errors.New("malformed processing options")          // 400
	ErrTierForbidden  error = errors.New("option is not available for this tier") // 403
	ErrUploadTooLarge error = errors.New("upload exceeds the size limit")         // 413
	ErrBatchBusy      error = errors.New("batch is taken by another worker or finished")
)

// Ошибки уровня отдельной задачи - не прерывают батч
var (
	ErrInvalidImageDimensions error = errors.New("invalid image dimensions")
	ErrUnsupportedFormat      error = errors.New("unsupported image format")
	ErrWatermarkAsset         error = errors.New("watermark asset is unreadable")
	ErrUndecodableSource      error = errors.New("source image could not be decoded")
)

// Ошибки уровня батча
var (
	ErrEmptyBatchResult error = errors.New("no job in batch succeeded") // 422
	ErrUnknownTemplate  error = errors.New("unknown template")          // 400
)

//--------------------

const (
	JPEG    = "image/jpeg"
	PNG     = "image/png"
	GIF     = "image/gif"
	BMP     = "image/bmp"
	TIFF    = "image/tiff"
	WEBP    = "image/webp"
	Archive = "application/zip"
)

var GetImageFileExt = map[string]string{
	JPEG:    ".jpg",
	PNG:     ".png",
	GIF:     ".gif",
	BMP:     ".bmp",
	TIFF:    ".tiff",
	WEBP:    ".webp",
	Archive: ".zip",
}

var InImageTypeMap = map[string]bool{
	JPEG: true,
	PNG:  true,
	GIF:  true,
	BMP:  true,
	TIFF: true,
	WEBP: true,
}

//--------------------

type StringSlice []string

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = []string{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for StringSlice")
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to []StringSlice: %w", err)
	}
	return nil
}

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return []byte(`[]`), nil
	}
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal []StringSlice to JSONB: %w", err)
	}

	return res, nil
}

type FailureList []JobFailure

func (f *FailureList) Scan(value any) error {
	if value == nil {
		*f = FailureList{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for FailureList")
	}

	if err := json.Unmarshal(b, f); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to FailureList: %w", err)
	}
	return nil
}

func (f FailureList) Value() (driver.Value, error) {
	if len(f) == 0 {
		return []byte(`[]`), nil
	}
	res, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal FailureList to JSONB: %w", err)
	}

	return res, nil
}
