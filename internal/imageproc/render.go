package imageproc

import (
	"fmt"

	"github.com/UnendingLoop/PicDeck/internal/model"
)

// Render runs one job end to end: decode the source, compose it onto the template canvas
// and encode the surface per the output settings.
func Render(src []byte, tpl model.Template, opts *model.ProcessingOptions) ([]byte, string, error) {
	if tpl.Width <= 0 || tpl.Height <= 0 {
		return nil, "", fmt.Errorf("%w: template %q is %dx%d", model.ErrInvalidImageDimensions, tpl.Name, tpl.Width, tpl.Height)
	}

	img, err := Decode(src)
	if err != nil {
		return nil, "", err
	}

	surface, err := Compose(img, tpl, opts.WatermarkSettings)
	if err != nil {
		return nil, "", err
	}

	return Encode(surface, opts.OutputSettings)
}
