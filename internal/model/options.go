package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// AllTemplatesName - маркер "все шаблоны" из UI, сам по себе никогда не обрабатывается
const (
	AllTemplatesName = "All Templates"
	CustomSizeName   = "Custom Size"
)

// Template identifies one target output size.
type Template struct {
	Name   string `json:"name" toml:"name"`
	Width  int    `json:"width" toml:"width"`
	Height int    `json:"height" toml:"height"`
}

func (t Template) IsAggregate() bool {
	return t.Name == AllTemplatesName
}

type Size struct {
	Width  int `json:"width" validate:"gt=0"`
	Height int `json:"height" validate:"gt=0"`
}

type ProcessingOptions struct {
	Templates         []Template         `json:"templates,omitempty" validate:"required_without=CustomSize"`
	CustomSize        *Size              `json:"custom_size,omitempty" validate:"omitempty"`
	WatermarkSettings *WatermarkSettings `json:"watermark,omitempty" validate:"omitempty"`
	OutputSettings    *OutputSettings    `json:"output,omitempty" validate:"omitempty"`
}

// EffectiveTemplates returns the template list a batch run actually processes:
// the synthetic custom-size template when set, otherwise the templates minus the aggregate marker.
func (o *ProcessingOptions) EffectiveTemplates() []Template {
	if o.CustomSize != nil {
		return []Template{{Name: CustomSizeName, Width: o.CustomSize.Width, Height: o.CustomSize.Height}}
	}

	res := make([]Template, 0, len(o.Templates))
	for _, t := range o.Templates {
		if t.IsAggregate() {
			continue
		}
		res = append(res, t)
	}
	return res
}

// Extension - расширение итоговых файлов, png по умолчанию
func (o *ProcessingOptions) Extension() string {
	if o.OutputSettings == nil {
		return string(FormatPNG)
	}
	ext := strings.ToLower(strings.TrimSpace(string(o.OutputSettings.Format)))
	if ext == "" {
		return string(FormatPNG)
	}
	return ext
}

func (o *ProcessingOptions) Scan(value any) error {
	if value == nil {
		*o = ProcessingOptions{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for ProcessingOptions")
	}

	if err := json.Unmarshal(b, o); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to ProcessingOptions: %w", err)
	}
	return nil
}

func (o ProcessingOptions) Value() (driver.Value, error) {
	res, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ProcessingOptions to JSONB: %w", err)
	}
	return res, nil
}

//--------------------

type Anchor string

const (
	AnchorTopLeft     Anchor = "top-left"
	AnchorTop         Anchor = "top-center"
	AnchorTopRight    Anchor = "top-right"
	AnchorLeft        Anchor = "center-left"
	AnchorCenter      Anchor = "center"
	AnchorRight       Anchor = "center-right"
	AnchorBottomLeft  Anchor = "bottom-left"
	AnchorBottom      Anchor = "bottom-center"
	AnchorBottomRight Anchor = "bottom-right"
	// AnchorCustom places the watermark's top-left corner at X/Y (fractions of the canvas).
	AnchorCustom Anchor = "custom"
)

const (
	DefaultWatermarkOpacity  = 0.5
	DefaultWatermarkScale    = 0.25
	DefaultWatermarkFontSize = 0.05
	DefaultWatermarkMargin   = 20
)

// WatermarkSettings is shared read-only by every job of a batch run.
// Image carries the decoded-later asset bytes; Text is used when Image is empty.
type WatermarkSettings struct {
	Text     string   `json:"text,omitempty"`
	Image    []byte   `json:"-"`
	Color    string   `json:"color,omitempty"`
	Anchor   Anchor   `json:"anchor,omitempty" validate:"omitempty,oneof=top-left top-center top-right center-left center center-right bottom-left bottom-center bottom-right custom"`
	X        float64  `json:"x,omitempty" validate:"gte=0,lte=1"`
	Y        float64  `json:"y,omitempty" validate:"gte=0,lte=1"`
	Margin   *int     `json:"margin,omitempty" validate:"omitempty,gte=0"`
	Scale    float64  `json:"scale,omitempty" validate:"gte=0,lte=1"`
	FontSize float64  `json:"font_size,omitempty" validate:"gte=0,lte=1"`
	Opacity  *float64 `json:"opacity,omitempty" validate:"omitempty,gte=0,lte=1"`
	Rotation float64  `json:"rotation,omitempty" validate:"gte=-360,lte=360"`
}

func (w *WatermarkSettings) Alpha() float64 {
	if w.Opacity == nil {
		return DefaultWatermarkOpacity
	}
	return *w.Opacity
}

func (w *WatermarkSettings) Position() Anchor {
	if w.Anchor == "" {
		return AnchorBottomRight
	}
	return w.Anchor
}

func (w *WatermarkSettings) MarginPx() int {
	if w.Margin == nil {
		return DefaultWatermarkMargin
	}
	return *w.Margin
}

// WidthFraction - доля ширины холста, которую занимает картинка-ватермарк
func (w *WatermarkSettings) WidthFraction() float64 {
	if w.Scale <= 0 {
		return DefaultWatermarkScale
	}
	return w.Scale
}

// FontFraction - размер шрифта как доля ширины холста
func (w *WatermarkSettings) FontFraction() float64 {
	if w.FontSize <= 0 {
		return DefaultWatermarkFontSize
	}
	return w.FontSize
}

//--------------------

type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatJPG  Format = "jpg"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatWEBP Format = "webp"
)

const DefaultQuality = 80

type OutputSettings struct {
	Format   Format `json:"format"`
	Lossless bool   `json:"lossless,omitempty"`
	Quality  *int   `json:"quality,omitempty" validate:"omitempty,gte=0,lte=100"`
}

func (o *OutputSettings) QualityOrDefault() int {
	if o.Quality == nil {
		return DefaultQuality
	}
	return *o.Quality
}
