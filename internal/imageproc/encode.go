package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
)

var formatCType = map[model.Format]string{
	model.FormatPNG:  model.PNG,
	model.FormatJPEG: model.JPEG,
	model.FormatGIF:  model.GIF,
	model.FormatBMP:  model.BMP,
	model.FormatTIFF: model.TIFF,
	model.FormatWEBP: model.WEBP,
}

// NormalizeFormat folds aliases (jpg, tif) and case; an empty format means png.
func NormalizeFormat(f model.Format) model.Format {
	switch s := model.Format(strings.ToLower(strings.TrimSpace(string(f)))); s {
	case "":
		return model.FormatPNG
	case model.FormatJPG:
		return model.FormatJPEG
	case "tif":
		return model.FormatTIFF
	default:
		return s
	}
}

// Encode serializes img per the output settings and returns the bytes with their MIME type.
// nil settings encode PNG. img is only read.
func Encode(img image.Image, out *model.OutputSettings) ([]byte, string, error) {
	if out == nil {
		out = &model.OutputSettings{Format: model.FormatPNG}
	}

	format := NormalizeFormat(out.Format)
	cType, ok := formatCType[format]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", model.ErrUnsupportedFormat, out.Format)
	}

	var buf bytes.Buffer
	var err error

	switch format {
	case model.FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case model.FormatJPEG:
		// у JPEG нет lossless-режима, флаг игнорируется
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(clamp(out.QualityOrDefault(), 1, 100)))
	case model.FormatGIF:
		err = imaging.Encode(&buf, img, imaging.GIF, imaging.GIFNumColors(gifColors(out.QualityOrDefault())))
	case model.FormatBMP:
		err = imaging.Encode(&buf, img, imaging.BMP)
	case model.FormatTIFF:
		err = imaging.Encode(&buf, img, imaging.TIFF)
	case model.FormatWEBP:
		if out.Lossless {
			// VP8L, quality не влияет
			err = nativewebp.Encode(&buf, img, nil)
		} else {
			err = webp.Encode(&buf, img, webp.Options{Quality: clamp(out.QualityOrDefault(), 0, 100)})
		}
	}
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", format, err)
	}

	return buf.Bytes(), cType, nil
}

// gifColors maps quality 0..100 onto a palette of 2..256 colors.
func gifColors(quality int) int {
	q := clamp(quality, 0, 100)
	return 2 + q*254/100
}
