package model

import "errors"

// SourceFile - исходник батча: имя файла и сырые байты
type SourceFile struct {
	Name string
	Data []byte
}

// Job - одна пара (файл, шаблон) внутри батча
type Job struct {
	Index    int
	Source   *SourceFile
	Template Template
	Options  *ProcessingOptions
}

// JobResult - результат задачи. Err != nil означает провал только этой задачи
type JobResult struct {
	Index       int
	OutputName  string
	FileName    string
	Template    Template
	Data        []byte
	ContentType string
	Err         error
}

func (r JobResult) OK() bool {
	return r.Err == nil
}

type ErrorKind string

const (
	KindInvalidImageDimensions ErrorKind = "InvalidImageDimensions"
	KindUnsupportedFormat      ErrorKind = "UnsupportedFormat"
	KindWatermarkAsset         ErrorKind = "WatermarkAssetError"
	KindUndecodableSource      ErrorKind = "UndecodableSource"
	KindInternal               ErrorKind = "Internal"
)

// KindOf maps a (possibly wrapped) job error to its stable kind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidImageDimensions):
		return KindInvalidImageDimensions
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrWatermarkAsset):
		return KindWatermarkAsset
	case errors.Is(err, ErrUndecodableSource):
		return KindUndecodableSource
	default:
		return KindInternal
	}
}

type JobFailure struct {
	OutputName string    `json:"output"`
	FileName   string    `json:"file"`
	Template   string    `json:"template"`
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
}

func NewJobFailure(r JobResult) JobFailure {
	return JobFailure{
		OutputName: r.OutputName,
		FileName:   r.FileName,
		Template:   r.Template.Name,
		Kind:       KindOf(r.Err),
		Message:    r.Err.Error(),
	}
}

// BatchOutput - итог батча: либо одна картинка, либо архив, плюс список провалившихся задач
type BatchOutput struct {
	Data        []byte
	ContentType string
	FileName    string
	Succeeded   int
	Entries     []OutputEntry
	Failures    []JobFailure
}

// OutputEntry - строка итоговой сводки, по одной на задачу в порядке задач.
// У проваленной задачи Size = 0, а Kind и Message заполнены
type OutputEntry struct {
	Name    string
	Size    int
	Kind    ErrorKind
	Message string
}

func (e OutputEntry) OK() bool {
	return e.Kind == ""
}
