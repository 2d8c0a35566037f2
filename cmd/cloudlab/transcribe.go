package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewTranscribeCmd creates the transcribe command.
func NewTranscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audio>...",
		Short: "Transcribe audio files with a Whisper endpoint",
		Long: `Transcribe uploads each audio file (mp3, wav or m4a, at most 25 MiB)
to the configured Whisper-compatible endpoint and prints the transcript.

Examples:
  cloudlab transcribe meeting.m4a

  # JSON output for scripting
  cloudlab transcribe --json interview.mp3`,
		Args: cobra.MinimumNArgs(1),
		RunE: runTranscribeCmd,
	}
}

func runTranscribeCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range args {
		f, err := os.Open(path) //nolint:gosec // user-chosen input file
		if err != nil {
			a.emit(nil, fmt.Errorf("failed to open audio file: %w", err))
			continue
		}
		a.emit(a.runner.Transcribe(cmd.Context(), path, f))
		_ = f.Close() //nolint:errcheck // read-only file
	}
	return a.Err()
}
