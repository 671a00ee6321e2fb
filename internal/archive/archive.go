// Package archive packages batch results into the blob handed back to the caller.
package archive

import (
	"bytes"
	"fmt"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/klauspost/compress/zip"
)

// FileName is the download name used for multi-output batches.
const FileName = "picdeck.zip"

// Package returns the single encoded image when the batch produced exactly one output and no
// failures; otherwise a zip with one flat entry per successful result, in job order.
// Failed jobs are omitted from the archive and listed in the output's Failures.
func Package(results []model.JobResult) (*model.BatchOutput, error) {
	out := &model.BatchOutput{}
	ok := make([]model.JobResult, 0, len(results))

	for _, r := range results {
		if r.OK() {
			ok = append(ok, r)
			out.Entries = append(out.Entries, model.OutputEntry{Name: r.OutputName, Size: len(r.Data)})
			continue
		}
		f := model.NewJobFailure(r)
		out.Failures = append(out.Failures, f)
		out.Entries = append(out.Entries, model.OutputEntry{Name: f.OutputName, Kind: f.Kind, Message: f.Message})
	}
	out.Succeeded = len(ok)

	if len(ok) == 0 {
		return out, model.ErrEmptyBatchResult
	}

	if len(ok) == 1 && len(out.Failures) == 0 {
		out.Data = ok[0].Data
		out.ContentType = ok[0].ContentType
		out.FileName = ok[0].OutputName
		return out, nil
	}

	data, err := Zip(ok)
	if err != nil {
		return nil, err
	}

	out.Data = data
	out.ContentType = model.Archive
	out.FileName = FileName
	return out, nil
}

// Zip writes the entries with deflate and zeroed timestamps so equal inputs give equal bytes.
func Zip(results []model.JobResult) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, r := range results {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   r.OutputName,
			Method: zip.Deflate,
		})
		if err != nil {
			return nil, fmt.Errorf("create archive entry %q: %w", r.OutputName, err)
		}
		if _, err := w.Write(r.Data); err != nil {
			return nil, fmt.Errorf("write archive entry %q: %w", r.OutputName, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	return buf.Bytes(), nil
}
