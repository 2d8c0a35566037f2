package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/cloudlab/internal/config"
)

// NewRootCmd creates the root command for cloudlab.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Command-line front for cloud AI APIs",
		Long: `cloudlab forwards text, images and audio to cloud AI APIs and renders the reply.

Each command is one page backed by one API:
  detect      object detection (Google Cloud Vision)
  translate   translation (Google Cloud Translation)
  transcribe  speech-to-text (Whisper)
  summarize   summarization (Azure OpenAI chat completions)
  speak       text-to-speech (Azure OpenAI TTS)
  imagine     image generation (Azure OpenAI DALL-E 3)

Credentials come from the configuration file (cloudlab init) and the
environment, e.g. GOOGLE_CLOUD_VISION_API_KEY or AZURE_OPENAI_API_KEY.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	pf := cmd.PersistentFlags()
	pf.StringP("config", "c", "",
		"Configuration file path (default: ./"+config.DefaultConfigFile+" or $XDG_CONFIG_HOME/cloudlab/"+config.XDGConfigFile+")")
	pf.BoolP("verbose", "v", false, "Enable verbose logging")
	pf.Bool("log-json", false, "Write logs as JSON")
	pf.BoolP("json", "j", false, "Output JSON (mutually exclusive with --markdown)")
	pf.BoolP("markdown", "m", false, "Output Markdown (mutually exclusive with --json)")
	pf.StringP("output", "o", "", "Write the rendered result to a file (creates directories if needed)")
	pf.StringP("output-dir", "d", "", "Directory for generated images and audio (default: current directory)")
	pf.String("proxy", "", "Route API traffic through a SOCKS5 proxy (host:port)")
	pf.Bool("tor", false, "Start an embedded Tor daemon and route API traffic through it")
	pf.DurationP("timeout", "t", 0, "Timeout for each API request (default: per-page configuration, 60s)")

	cmd.AddCommand(NewDetectCmd())
	cmd.AddCommand(NewTranslateCmd())
	cmd.AddCommand(NewTranscribeCmd())
	cmd.AddCommand(NewSummarizeCmd())
	cmd.AddCommand(NewSpeakCmd())
	cmd.AddCommand(NewImagineCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command with a context cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
