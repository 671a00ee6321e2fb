package imageproc

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Decode turns raw source bytes into a raster, honoring EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", model.ErrUndecodableSource)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUndecodableSource, err)
	}

	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: source %dx%d", model.ErrInvalidImageDimensions, b.Dx(), b.Dy())
	}

	return img, nil
}
