package imageproc

import (
	"image"
	"image/color"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/disintegration/imaging"
)

var background = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// Compose rasterizes src fitted into the template on an opaque white canvas and,
// when wm is set, alpha-composites the watermark layer over it. src is never modified.
func Compose(src image.Image, tpl model.Template, wm *model.WatermarkSettings) (*image.NRGBA, error) {
	b := src.Bounds()
	p, err := Fit(b.Dx(), b.Dy(), tpl.Width, tpl.Height)
	if err != nil {
		return nil, err
	}
	rect := p.Rect(tpl.Width, tpl.Height)

	canvas := imaging.New(tpl.Width, tpl.Height, background)
	scaled := imaging.Resize(src, rect.Dx(), rect.Dy(), imaging.Lanczos)
	// непрозрачная заливка под исходником - прозрачные пиксели исходника становятся белыми
	canvas = imaging.Overlay(canvas, scaled, rect.Min, 1.0)

	if wm == nil {
		return canvas, nil
	}

	layer, at, err := RenderWatermark(wm, tpl.Width, tpl.Height)
	if err != nil {
		return nil, err
	}

	return imaging.Overlay(canvas, layer, at, wm.Alpha()), nil
}
