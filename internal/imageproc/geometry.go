package imageproc

import (
	"fmt"
	"image"
	"math"

	"github.com/UnendingLoop/PicDeck/internal/model"
)

// Placement describes where a uniformly scaled source lands inside a target canvas.
// Offsets and sizes are fractional; snapping to the pixel grid happens in Rect.
type Placement struct {
	Scale  float64
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Fit scales (sw, sh) to fit inside (tw, th) preserving aspect ratio without cropping
// and centers the result.
func Fit(sw, sh, tw, th int) (Placement, error) {
	if sw <= 0 || sh <= 0 {
		return Placement{}, fmt.Errorf("%w: source %dx%d", model.ErrInvalidImageDimensions, sw, sh)
	}
	if tw <= 0 || th <= 0 {
		return Placement{}, fmt.Errorf("%w: template %dx%d", model.ErrInvalidImageDimensions, tw, th)
	}

	scale := math.Min(float64(tw)/float64(sw), float64(th)/float64(sh))
	w := float64(sw) * scale
	h := float64(sh) * scale

	return Placement{
		Scale:  scale,
		X:      (float64(tw) - w) / 2,
		Y:      (float64(th) - h) / 2,
		Width:  w,
		Height: h,
	}, nil
}

// Rect snaps the placement to integer pixels inside a tw x th canvas.
func (p Placement) Rect(tw, th int) image.Rectangle {
	w := clamp(int(math.Round(p.Width)), 1, tw)
	h := clamp(int(math.Round(p.Height)), 1, th)
	x := (tw - w) / 2
	y := (th - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
