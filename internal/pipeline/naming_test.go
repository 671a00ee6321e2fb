package pipeline

import (
	"testing"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/stretchr/testify/require"
)

func TestBaseName(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		legacy bool
		want   string
	}{
		{name: "simple", file: "cat.png", want: "cat"},
		{name: "multi dot", file: "v1.2.final.png", want: "v1.2.final"},
		{name: "multi dot legacy", file: "v1.2.final.png", legacy: true, want: "v1"},
		{name: "no extension", file: "README", want: "README"},
		{name: "directories stripped", file: "photos/2024/cat.jpg", want: "cat"},
		{name: "windows path", file: `C:\photos\dog.jpg`, want: "dog"},
		{name: "hidden file", file: ".png", want: fallbackBase},
		{name: "empty", file: "", want: fallbackBase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, BaseName(tt.file, tt.legacy))
		})
	}
}

func TestTemplateSlug(t *testing.T) {
	require.Equal(t, "instagrampost", TemplateSlug("Instagram Post"))
	require.Equal(t, "youtubethumbnail", TemplateSlug("  YouTube \t Thumbnail "))
	require.Equal(t, "customsize", TemplateSlug(model.CustomSizeName))
}

func TestOutputNames(t *testing.T) {
	files := []model.SourceFile{{Name: "cat.png"}, {Name: "dog.jpg"}}
	opts := &model.ProcessingOptions{Templates: []model.Template{{Name: "Instagram Post", Width: 1080, Height: 1080}}}

	names := OutputNames(Expand(files, opts), opts.Extension(), false)
	require.Equal(t, []string{
		"cat.instagrampost.1080x1080.png",
		"dog.instagrampost.1080x1080.png",
	}, names)
}

func TestOutputNames_ExtensionFromOutputSettings(t *testing.T) {
	files := []model.SourceFile{{Name: "cat.png"}}
	opts := &model.ProcessingOptions{
		CustomSize:     &model.Size{Width: 640, Height: 480},
		OutputSettings: &model.OutputSettings{Format: model.FormatJPG},
	}

	names := OutputNames(Expand(files, opts), opts.Extension(), false)
	require.Equal(t, []string{"cat.customsize.640x480.jpg"}, names)
}

func TestOutputNames_CollisionsAreUnique(t *testing.T) {
	files := []model.SourceFile{{Name: "cat.png"}, {Name: "cat.jpg"}, {Name: "cat-2.gif"}}
	opts := &model.ProcessingOptions{Templates: []model.Template{
		{Name: "Post", Width: 10, Height: 10},
		{Name: "post", Width: 10, Height: 10},
	}}

	names := OutputNames(Expand(files, opts), opts.Extension(), false)
	require.Equal(t, []string{
		"cat.post.10x10.png",
		"cat-2.post.10x10.png",
		"cat-3.post.10x10.png",
		"cat-4.post.10x10.png",
		"cat-2-2.post.10x10.png",
		"cat-2-3.post.10x10.png",
	}, names)

	seen := map[string]bool{}
	for _, n := range names {
		require.False(t, seen[n], n)
		seen[n] = true
	}
}
