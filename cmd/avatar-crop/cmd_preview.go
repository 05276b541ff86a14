package main

import (
	"fmt"

	"github.com/spf13/cobra"

	avatarcrop "github.com/menta2k/avatar-cropper"
	"github.com/menta2k/avatar-cropper/pkg/processing"
	"github.com/menta2k/avatar-cropper/pkg/source"
)

var (
	previewRegion regionFlags
	previewOutput string
)

// previewCmd renders the viewport with the crop box drawn over the photo
var previewCmd = &cobra.Command{
	Use:   "preview [file]",
	Short: "Render the crop viewport to a PNG",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func init() {
	previewRegion.register(previewCmd)
	previewCmd.Flags().StringVarP(&previewOutput, "output", "o", "preview.png", "Output PNG file")
}

func runPreview(cmd *cobra.Command, args []string) error {
	opts, err := cfg.WidgetOptions(logger)
	if err != nil {
		return err
	}

	src, img, err := source.NewWithConfig(opts.Source).LoadFile(args[0])
	if err != nil {
		return err
	}
	w, err := avatarcrop.NewWidget(src, img, opts, nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = w.Cancel() }()

	region, err := previewRegion.region(opts.Cropper)
	if err != nil {
		return fmt.Errorf("invalid crop region: %w", err)
	}
	if err := w.SetRegion(region); err != nil {
		return err
	}

	view, err := w.Preview()
	if err != nil {
		return err
	}
	if err := processing.NewProcessor().SaveImage(view, previewOutput, "png", 0, false); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}

	info := source.GetImageInfo(img)
	fmt.Fprintf(cmd.OutOrStdout(), "source %dx%d (ratio %.2f), preview written to %s\n",
		info.Width, info.Height, info.AspectRatio, previewOutput)
	return nil
}
