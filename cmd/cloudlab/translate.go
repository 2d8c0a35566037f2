package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/nao1215/cloudlab/internal/pipeline"
	"github.com/nao1215/cloudlab/internal/translate"
)

// NewTranslateCmd creates the translate command.
func NewTranslateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate [text]",
		Short: "Translate text with Google Cloud Translation",
		Long: `Translate translates the text given as arguments, or starts an
interactive prompt with --interactive.

Language codes are BCP 47 tags such as en, ja or pt-BR. The source
language defaults to auto-detection.

Interactive commands:
  :from <code>   change the source language ("auto" to detect)
  :to <code>     change the target language
  :langs         list common languages
  :quit          leave the prompt (Ctrl-D works too)

Examples:
  cloudlab translate --to ja "Where is the station?"

  cloudlab translate -i --from en --to fr`,
		RunE: runTranslateCmd,
	}

	cmd.Flags().String("from", translate.Auto, "Source language code, or auto")
	cmd.Flags().String("to", "en", "Target language code")
	cmd.Flags().BoolP("interactive", "i", false, "Read texts from an interactive prompt")

	return cmd
}

func runTranslateCmd(cmd *cobra.Command, args []string) error {
	from, err := cmd.Flags().GetString("from")
	if err != nil {
		return err
	}
	to, err := cmd.Flags().GetString("to")
	if err != nil {
		return err
	}
	interactive, err := cmd.Flags().GetBool("interactive")
	if err != nil {
		return err
	}
	if !interactive && len(args) == 0 {
		return errors.New("no text provided (pass the text as arguments or use --interactive)")
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	s := &translateSession{app: a, cmd: cmd, source: from, target: to}
	if !interactive {
		s.translate(strings.Join(args, " "))
		return a.Err()
	}

	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()
	fmt.Fprintf(a.stdout, "Translating %s -> %s. Type :quit to exit.\n",
		translate.DisplayName(s.source), translate.DisplayName(s.target))
	s.loop(rl)
	return nil
}

// lineReader is the part of readline.Instance the prompt loop uses.
type lineReader interface {
	Readline() (string, error)
}

// translateSession holds the languages of an interactive prompt.
type translateSession struct {
	app    *app
	cmd    *cobra.Command
	source string
	target string
}

// loop reads lines until :quit, EOF or interrupt.
func (s *translateSession) loop(rl lineReader) {
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			return
		}
		if s.handle(line) {
			return
		}
	}
}

// handle processes one input line and reports whether the session ends.
func (s *translateSession) handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, ":") {
		s.translate(line)
		return false
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)
	out := s.app.stdout
	switch name {
	case "quit", "q", "exit":
		return true
	case "to":
		code, err := translate.ParseLanguage(arg, false)
		if err != nil {
			fmt.Fprintln(s.app.stderr, "Error:", err)
			return false
		}
		s.target = code
		fmt.Fprintf(out, "Target language: %s\n", translate.DisplayName(code))
	case "from":
		code, err := translate.ParseLanguage(arg, true)
		if err != nil {
			fmt.Fprintln(s.app.stderr, "Error:", err)
			return false
		}
		s.source = code
		fmt.Fprintf(out, "Source language: %s\n", translate.DisplayName(code))
	case "langs":
		writeLanguages(out)
	default:
		fmt.Fprintf(s.app.stderr, "Error: unknown command %q (use :from, :to, :langs or :quit)\n", ":"+name)
	}
	return false
}

func (s *translateSession) translate(text string) {
	s.app.emit(s.app.runner.Translate(s.cmd.Context(), pipeline.TranslateInput{
		Text:   text,
		Source: s.source,
		Target: s.target,
	}))
}

func writeLanguages(w io.Writer) {
	for _, code := range translate.Common {
		fmt.Fprintf(w, "  %-3s %s\n", code, translate.DisplayName(code))
	}
}
