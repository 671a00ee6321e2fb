// Package imageproc provides the per-job raster pipeline: fitting, compositing, watermarking and encoding.
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	fontOnce    sync.Once
	regularFont *truetype.Font
	fontErr     error
)

func defaultFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		regularFont, fontErr = truetype.Parse(goregular.TTF)
	})
	return regularFont, fontErr
}

// RenderWatermark builds the overlay layer for a w x h canvas and resolves where its
// top-left corner goes. The layer is opaque content; opacity is applied at compositing.
func RenderWatermark(s *model.WatermarkSettings, w, h int) (image.Image, image.Point, error) {
	var (
		layer image.Image
		err   error
	)

	switch {
	case len(s.Image) > 0:
		layer, err = imageLayer(s, w)
	case s.Text != "":
		layer, err = textLayer(s, w)
	default:
		return nil, image.Point{}, fmt.Errorf("%w: neither image nor text provided", model.ErrWatermarkAsset)
	}
	if err != nil {
		return nil, image.Point{}, err
	}

	// положительный угол - по часовой стрелке, imaging крутит против
	if s.Rotation != 0 {
		layer = imaging.Rotate(layer, -s.Rotation, color.Transparent)
	}

	lb := layer.Bounds()
	return layer, anchorPoint(s, w, h, lb.Dx(), lb.Dy()), nil
}

func imageLayer(s *model.WatermarkSettings, canvasW int) (image.Image, error) {
	wm, err := imaging.Decode(bytes.NewReader(s.Image))
	if err != nil {
		return nil, fmt.Errorf("%w: decode watermark image: %v", model.ErrWatermarkAsset, err)
	}
	if b := wm.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: watermark image is empty", model.ErrWatermarkAsset)
	}

	targetW := max(1, int(math.Round(float64(canvasW)*s.WidthFraction())))

	return imaging.Resize(wm, targetW, 0, imaging.Lanczos), nil // 0 - сохраняет ратио ватермарка
}

func textLayer(s *model.WatermarkSettings, canvasW int) (image.Image, error) {
	f, err := defaultFont()
	if err != nil {
		return nil, fmt.Errorf("%w: load font: %v", model.ErrWatermarkAsset, err)
	}

	size := math.Max(1, float64(canvasW)*s.FontFraction())
	face := truetype.NewFace(f, &truetype.Options{Size: size})
	defer face.Close()

	measure := gg.NewContext(1, 1)
	measure.SetFontFace(face)
	tw, th := measure.MeasureString(s.Text)

	// запас по высоте под выносные элементы глифов
	dc := gg.NewContext(int(math.Ceil(tw))+2, int(math.Ceil(th*1.4))+2)
	dc.SetFontFace(face)
	dc.SetColor(parseColor(s.Color))
	dc.DrawStringAnchored(s.Text, float64(dc.Width())/2, float64(dc.Height())/2, 0.5, 0.5)

	return dc.Image(), nil
}

func anchorPoint(s *model.WatermarkSettings, cw, ch, lw, lh int) image.Point {
	m := s.MarginPx()

	switch s.Position() {
	case model.AnchorTopLeft:
		return image.Pt(m, m)
	case model.AnchorTop:
		return image.Pt((cw-lw)/2, m)
	case model.AnchorTopRight:
		return image.Pt(cw-lw-m, m)
	case model.AnchorLeft:
		return image.Pt(m, (ch-lh)/2)
	case model.AnchorCenter:
		return image.Pt((cw-lw)/2, (ch-lh)/2)
	case model.AnchorRight:
		return image.Pt(cw-lw-m, (ch-lh)/2)
	case model.AnchorBottomLeft:
		return image.Pt(m, ch-lh-m)
	case model.AnchorBottom:
		return image.Pt((cw-lw)/2, ch-lh-m)
	case model.AnchorCustom:
		return image.Pt(int(math.Round(s.X*float64(cw))), int(math.Round(s.Y*float64(ch))))
	default:
		return image.Pt(cw-lw-m, ch-lh-m)
	}
}

// parseColor accepts "r,g,b" or "#rrggbb"; anything else falls back to white.
func parseColor(s string) color.NRGBA {
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return white
	}

	if strings.HasPrefix(s, "#") {
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err != nil || len(s) != 7 {
			return white
		}
		return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
	}

	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return white
	}

	var rgb [3]uint8
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return white
		}
		rgb[i] = uint8(clamp(v, 0, 255))
	}

	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
}
