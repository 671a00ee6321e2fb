package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/UnendingLoop/PicDeck/internal/model"
	"github.com/UnendingLoop/PicDeck/internal/pipeline"
	"github.com/UnendingLoop/PicDeck/internal/service"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type fitOptions struct {
	templates []string
	size      string

	format   string
	quality  int
	lossless bool

	wmText     string
	wmImage    string
	wmColor    string
	opacity    float64
	position   string
	scale      float64
	fontSize   float64
	rotation   float64
	margin     int
	posX, posY float64

	tier         string
	workers      int
	output       string
	legacyNaming bool
}

func newFitCommand(root *rootOptions) *cobra.Command {
	o := &fitOptions{}

	cmd := &cobra.Command{
		Use:   "fit FILE...",
		Short: "Fit images into templates and write the image or a zip archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd, root, o, args)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&o.templates, "template", "t", nil, `Template name, repeatable; "All Templates" selects the whole catalog`)
	f.StringVar(&o.size, "size", "", "Custom output size WxH, overrides templates")
	f.StringVar(&o.format, "format", "", "Output format: png, jpeg, gif, bmp, tiff, webp")
	f.IntVar(&o.quality, "quality", model.DefaultQuality, "Quality 0-100 for lossy formats")
	f.BoolVar(&o.lossless, "lossless", false, "Prefer lossless encoding")
	f.StringVar(&o.wmText, "watermark-text", "", "Text watermark")
	f.StringVar(&o.wmImage, "watermark-image", "", "Image watermark file, wins over text")
	f.StringVar(&o.wmColor, "color", "", `Text color, "r,g,b" or "#rrggbb"`)
	f.Float64Var(&o.opacity, "opacity", model.DefaultWatermarkOpacity, "Watermark opacity 0-1")
	f.StringVar(&o.position, "position", string(model.AnchorBottomRight), "Watermark anchor, or custom with --x/--y")
	f.Float64Var(&o.scale, "scale", model.DefaultWatermarkScale, "Image watermark width as a fraction of the canvas")
	f.Float64Var(&o.fontSize, "font-size", model.DefaultWatermarkFontSize, "Text size as a fraction of the canvas width")
	f.Float64Var(&o.rotation, "rotation", 0, "Watermark rotation in degrees, clockwise")
	f.IntVar(&o.margin, "margin", model.DefaultWatermarkMargin, "Watermark margin in pixels")
	f.Float64Var(&o.posX, "x", 0, "Custom watermark position, fraction of the width")
	f.Float64Var(&o.posY, "y", 0, "Custom watermark position, fraction of the height")
	f.StringVar(&o.tier, "tier", string(model.TierPlatinum), "Tier: free, premium, platinum")
	f.IntVarP(&o.workers, "workers", "w", 0, "Parallel jobs (default: number of CPUs)")
	f.StringVarP(&o.output, "output", "o", "", "Output file or directory (default: current directory)")
	f.BoolVar(&o.legacyNaming, "legacy-naming", false, "Cut file names at the first dot")

	return cmd
}

func runFit(cmd *cobra.Command, root *rootOptions, o *fitOptions, paths []string) error {
	cat, err := root.loadCatalog()
	if err != nil {
		return err
	}

	opts, err := o.processingOptions(cmd)
	if err != nil {
		return err
	}

	data := &model.BatchCreateData{
		Tier:    model.ParseTier(o.tier),
		Options: opts,
	}
	defer func() {
		for _, f := range data.Files {
			_ = f.File.Close()
		}
		if data.Watermark != nil {
			_ = data.Watermark.File.Close()
		}
	}()

	for _, p := range paths {
		u, err := openLocal(p)
		if err != nil {
			return err
		}
		data.Files = append(data.Files, *u)
	}
	if o.wmImage != "" {
		if data.Watermark, err = openLocal(o.wmImage); err != nil {
			return err
		}
	}

	proc := pipeline.NewProcessor(
		pipeline.WithWorkers(o.workers),
		pipeline.WithLegacyNaming(o.legacyNaming),
	)
	svc := service.NewBatchService(nil, nil, nil, proc, cat)

	out, err := svc.Process(cmd.Context(), data)
	if err != nil {
		if errors.Is(err, model.ErrEmptyBatchResult) && out != nil {
			fmt.Fprintln(cmd.OutOrStdout(), summary(out))
		}
		return err
	}

	target, err := outputPath(o.output, out.FileName)
	if err != nil {
		return err
	}
	if err := os.WriteFile(target, out.Data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary(out))
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d outputs written to %s (%s)\n",
		out.Succeeded, out.Succeeded+len(out.Failures), target, humanize.Bytes(uint64(len(out.Data))))
	return nil
}

func (o *fitOptions) processingOptions(cmd *cobra.Command) (*model.ProcessingOptions, error) {
	opts := &model.ProcessingOptions{}

	for _, name := range o.templates {
		opts.Templates = append(opts.Templates, model.Template{Name: strings.TrimSpace(name)})
	}

	if o.size != "" {
		size, err := parseSize(o.size)
		if err != nil {
			return nil, err
		}
		opts.CustomSize = size
	}

	flags := cmd.Flags()
	if flags.Changed("format") || flags.Changed("quality") || flags.Changed("lossless") {
		q := o.quality
		opts.OutputSettings = &model.OutputSettings{
			Format:   model.Format(o.format),
			Lossless: o.lossless,
			Quality:  &q,
		}
	}

	if o.wmText != "" || o.wmImage != "" {
		opacity, margin := o.opacity, o.margin
		opts.WatermarkSettings = &model.WatermarkSettings{
			Text:     o.wmText,
			Color:    o.wmColor,
			Anchor:   model.Anchor(o.position),
			X:        o.posX,
			Y:        o.posY,
			Margin:   &margin,
			Scale:    o.scale,
			FontSize: o.fontSize,
			Opacity:  &opacity,
			Rotation: o.rotation,
		}
	}

	return opts, nil
}

// parseSize reads "WxH" (also "W*H" and "W,H").
func parseSize(s string) (*model.Size, error) {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == 'x' || r == '*' || r == ','
	})
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: size %q, want WxH", model.ErrInvalidOptions, s)
	}

	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil {
		return nil, fmt.Errorf("%w: size %q, want WxH", model.ErrInvalidOptions, s)
	}

	return &model.Size{Width: w, Height: h}, nil
}

func openLocal(path string) (*model.UploadedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &model.UploadedFile{Name: filepath.Base(path), Size: st.Size(), File: f}, nil
}

// outputPath resolves -o: an existing directory (or empty) receives the result under its own name.
func outputPath(output, fileName string) (string, error) {
	if output == "" {
		return fileName, nil
	}

	st, err := os.Stat(output)
	switch {
	case err == nil && st.IsDir():
		return filepath.Join(output, fileName), nil
	case err == nil, errors.Is(err, os.ErrNotExist):
		return output, nil
	default:
		return "", err
	}
}

func summary(out *model.BatchOutput) string {
	rows := make([][]string, 0, len(out.Entries))
	for _, e := range out.Entries {
		if !e.OK() {
			rows = append(rows, []string{e.Name, "-", string(e.Kind) + ": " + e.Message})
			continue
		}
		rows = append(rows, []string{e.Name, humanize.Bytes(uint64(e.Size)), "ok"})
	}

	return renderTable(
		[]string{"Output", "Size", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft},
	)
}
