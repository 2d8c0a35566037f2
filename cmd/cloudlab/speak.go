package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/cloudlab/internal/speech"
)

// NewSpeakCmd creates the speak command.
func NewSpeakCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "Synthesize speech with Azure OpenAI text-to-speech",
		Long: `Speak converts the text to audio and writes it to the output directory
as speech_<voice>.<format>, adding a -1, -2, ... suffix when that name
is taken.

Examples:
  cloudlab speak "Hello from cloudlab"

  cloudlab speak --voice nova --speed 1.25 --format wav -d audio "Good morning"

  cloudlab speak --list-voices`,
		RunE: runSpeakCmd,
	}

	cmd.Flags().String("voice", speech.DefaultVoice, "Voice ("+strings.Join(speech.Voices(), ", ")+")")
	cmd.Flags().Float64("speed", speech.DefaultSpeed,
		fmt.Sprintf("Speaking speed (%.1f-%.1f)", speech.MinSpeed, speech.MaxSpeed))
	cmd.Flags().String("format", speech.DefaultFormat, "Audio format (mp3, opus, aac, flac, wav)")
	cmd.Flags().Bool("list-voices", false, "List the available voices and exit")

	return cmd
}

func runSpeakCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	list, err := flags.GetBool("list-voices")
	if err != nil {
		return err
	}
	if list {
		out := cmd.OutOrStdout()
		for _, v := range speech.Voices() {
			fmt.Fprintf(out, "  %-8s %s\n", v, speech.VoiceDescription(v))
		}
		return nil
	}
	if len(args) == 0 {
		return errors.New("no text provided (pass the text to speak as arguments)")
	}

	req := speech.Request{Input: strings.Join(args, " ")}
	if req.Voice, err = flags.GetString("voice"); err != nil {
		return err
	}
	if req.Speed, err = flags.GetFloat64("speed"); err != nil {
		return err
	}
	if req.Format, err = flags.GetString("format"); err != nil {
		return err
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	a.emit(a.runner.Speak(cmd.Context(), req))
	return a.Err()
}
