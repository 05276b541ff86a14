package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	avatarcrop "github.com/menta2k/avatar-cropper"
	"github.com/menta2k/avatar-cropper/internal/utils"
	"github.com/menta2k/avatar-cropper/pkg/cropper"
	"github.com/menta2k/avatar-cropper/pkg/types"
)

// regionFlags describe a crop box in viewport pixels
type regionFlags struct {
	x, y, size, scale float64
}

func (f *regionFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.x, "x", 0, "Box left edge in viewport pixels")
	cmd.Flags().Float64Var(&f.y, "y", 0, "Box top edge in viewport pixels")
	cmd.Flags().Float64Var(&f.size, "size", 0, "Box side in viewport pixels (default: centered default box)")
	cmd.Flags().Float64Var(&f.scale, "scale", 1, "Zoom factor")
}

// region returns the box the flags describe, or the centered default box
// when no size was given.
func (f *regionFlags) region(c cropper.Config) (types.CropRegion, error) {
	r := cropper.DefaultRegion(c)
	if f.size > 0 {
		r = types.CropRegion{X: f.x, Y: f.y, Width: f.size, Height: f.size}
	}
	r.Scale = f.scale
	if err := cropper.ValidateRegion(r, c); err != nil {
		return types.CropRegion{}, err
	}
	return r, nil
}

var (
	cropRegion  regionFlags
	cropOutput  string
	cropFormat  string
	cropQuality int
)

// cropCmd crops one photo or every photo in a directory
var cropCmd = &cobra.Command{
	Use:   "crop [file|directory]",
	Short: "Crop avatars from image files",
	Long: `Crops the region given by --x, --y, --size and --scale from each input
photo and writes <name><suffix>.<format> into the output directory.

Example:
  avatar-crop crop photo.jpg --x 100 --y 80 --size 200 --scale 1.5`,
	Args: cobra.ExactArgs(1),
	RunE: runCrop,
}

func init() {
	cropRegion.register(cropCmd)
	cropCmd.Flags().StringVarP(&cropOutput, "output", "o", "", "Output directory (default: output.output_dir)")
	cropCmd.Flags().StringVarP(&cropFormat, "format", "f", "", "Output format: jpg, png or webp")
	cropCmd.Flags().IntVarP(&cropQuality, "quality", "q", 0, "Output quality 1-100")
}

func cropOptions() (avatarcrop.Options, error) {
	opts, err := cfg.WidgetOptions(logger)
	if err != nil {
		return opts, err
	}
	if cropFormat != "" {
		opts.Output.Format = cropFormat
	}
	if cropQuality != 0 {
		opts.Output.Quality = cropQuality
	}
	return opts, nil
}

func runCrop(cmd *cobra.Command, args []string) error {
	opts, err := cropOptions()
	if err != nil {
		return err
	}
	region, err := cropRegion.region(opts.Cropper)
	if err != nil {
		return fmt.Errorf("invalid crop region: %w", err)
	}

	input := args[0]
	inputs := []string{input}
	if utils.DirExists(input) {
		if inputs, err = utils.ListImageFiles(input); err != nil {
			return err
		}
		if len(inputs) == 0 {
			return fmt.Errorf("no image files in %s", input)
		}
	}

	outDir := cropOutput
	if outDir == "" {
		outDir = cfg.Output.OutputDir
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var failed int
	for _, in := range inputs {
		out := utils.GenerateOutputFilename(in, outDir, cfg.Output.Suffix, opts.Output.Format)
		rect, err := avatarcrop.CropFile(in, out, region, opts)
		if err != nil {
			failed++
			logger.Error("crop failed", zap.String("input", in), zap.Error(err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (source %.0f,%.0f %.0fpx)\n",
			filepath.Base(in), out, rect.X, rect.Y, rect.Size)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d crops failed", failed, len(inputs))
	}
	return nil
}
