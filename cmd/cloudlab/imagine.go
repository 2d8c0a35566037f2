package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/cloudlab/internal/imagegen"
)

// NewImagineCmd creates the imagine command.
func NewImagineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imagine <prompt>",
		Short: "Generate images with Azure OpenAI DALL-E 3",
		Long: `Imagine sends the prompt to the DALL-E 3 deployment. Images returned
as URLs are listed; images returned inline are written to the output
directory as image_<n>.png, never replacing an existing file.

Examples:
  cloudlab imagine "a lighthouse at dawn, watercolor"

  cloudlab imagine --size 1792x1024 --quality hd "city skyline"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImagineCmd,
	}

	cmd.Flags().String("size", imagegen.DefaultSize,
		"Image size ("+strings.Join(imagegen.Sizes, ", ")+")")
	cmd.Flags().String("quality", imagegen.DefaultQuality,
		"Image quality ("+strings.Join(imagegen.Qualities, ", ")+")")
	cmd.Flags().IntP("number", "n", imagegen.MinImages, "Number of images to generate")

	return cmd
}

func runImagineCmd(cmd *cobra.Command, args []string) error {
	req := imagegen.Request{Prompt: strings.Join(args, " ")}
	var err error
	if req.Size, err = cmd.Flags().GetString("size"); err != nil {
		return err
	}
	if req.Quality, err = cmd.Flags().GetString("quality"); err != nil {
		return err
	}
	if req.N, err = cmd.Flags().GetInt("number"); err != nil {
		return err
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	a.emit(a.runner.Imagine(cmd.Context(), req))
	return a.Err()
}
