package archive

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

func okResult(name, data string) model.JobResult {
	return model.JobResult{OutputName: name, Data: []byte(data), ContentType: model.PNG}
}

func failedResult(name string, err error) model.JobResult {
	return model.JobResult{OutputName: name, FileName: "f.png", Template: model.Template{Name: "T"}, Err: err}
}

func readZip(t *testing.T, data []byte) ([]string, map[string]string) {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	content := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		names = append(names, f.Name)
		content[f.Name] = string(b)
	}
	return names, content
}

func TestPackage_SingleResultIsRaw(t *testing.T) {
	out, err := Package([]model.JobResult{okResult("cat.post.10x10.png", "png-bytes")})
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), out.Data)
	require.Equal(t, model.PNG, out.ContentType)
	require.Equal(t, "cat.post.10x10.png", out.FileName)
	require.Empty(t, out.Failures)
}

func TestPackage_MultipleResultsZipped(t *testing.T) {
	out, err := Package([]model.JobResult{
		okResult("b.t.1x1.png", "second-by-name-first-by-order"),
		okResult("a.t.1x1.png", "a"),
	})
	require.NoError(t, err)
	require.Equal(t, model.Archive, out.ContentType)
	require.Equal(t, FileName, out.FileName)
	require.Equal(t, 2, out.Succeeded)
	require.Equal(t, []model.OutputEntry{{Name: "b.t.1x1.png", Size: 29}, {Name: "a.t.1x1.png", Size: 1}}, out.Entries)

	names, content := readZip(t, out.Data)
	require.Equal(t, []string{"b.t.1x1.png", "a.t.1x1.png"}, names)
	require.Equal(t, "a", content["a.t.1x1.png"])
}

func TestPackage_PartialFailureStillArchives(t *testing.T) {
	out, err := Package([]model.JobResult{
		failedResult("cat.t.1x1.png", model.ErrWatermarkAsset),
		okResult("dog.t.1x1.png", "dog"),
	})
	require.NoError(t, err)
	require.Equal(t, model.Archive, out.ContentType)

	names, _ := readZip(t, out.Data)
	require.Equal(t, []string{"dog.t.1x1.png"}, names)

	require.Len(t, out.Failures, 1)
	require.Equal(t, model.KindWatermarkAsset, out.Failures[0].Kind)
	require.Equal(t, "cat.t.1x1.png", out.Failures[0].OutputName)

	// сводка идет в порядке задач, вместе с провалами
	require.Len(t, out.Entries, 2)
	require.Equal(t, "cat.t.1x1.png", out.Entries[0].Name)
	require.Equal(t, model.KindWatermarkAsset, out.Entries[0].Kind)
	require.False(t, out.Entries[0].OK())
	require.Equal(t, model.OutputEntry{Name: "dog.t.1x1.png", Size: 3}, out.Entries[1])
}

func TestPackage_Empty(t *testing.T) {
	tests := []struct {
		name    string
		results []model.JobResult
	}{
		{name: "no jobs", results: nil},
		{name: "all failed", results: []model.JobResult{failedResult("x", errors.New("boom"))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Package(tt.results)
			require.ErrorIs(t, err, model.ErrEmptyBatchResult)
			require.Nil(t, out.Data)
			require.Len(t, out.Failures, len(tt.results))
		})
	}
}

func TestZip_Deterministic(t *testing.T) {
	results := []model.JobResult{okResult("a", "1"), okResult("b", "2")}

	first, err := Zip(results)
	require.NoError(t, err)
	second, err := Zip(results)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
