package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/cloudlab/internal/pipeline"
)

// NewDetectCmd creates the detect command.
func NewDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <image>...",
		Short: "Detect objects in images with Google Cloud Vision",
		Long: `Detect sends each image to Google Cloud Vision object localization,
draws a labelled box around every detected object and writes the
annotated copy as <name>_annotated.png to the output directory. Existing
files are never replaced: a taken name gets a -1, -2, ... suffix.

Supported formats: PNG, JPEG, GIF, BMP, TIFF and WebP.
Images carrying GPS coordinates in their EXIF data are flagged.

Examples:
  # Detect objects in one image
  cloudlab detect street.jpg

  # Several images, annotated copies written to ./out, Markdown report
  cloudlab detect -d out -m -o report.md a.png b.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDetectCmd,
	}
}

func runDetectCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range args {
		data, err := os.ReadFile(path) //nolint:gosec // user-chosen input file
		if err != nil {
			a.emit(nil, fmt.Errorf("failed to read image: %w", err))
			continue
		}
		a.emit(a.runner.Detect(cmd.Context(), pipeline.DetectInput{Name: path, Image: data}))
	}
	return a.Err()
}
