package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/cloudlab/internal/pipeline"
	"github.com/nao1215/cloudlab/internal/summarize"
)

// NewSummarizeCmd creates the summarize command.
func NewSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize [text]",
		Short: "Summarize text or a web page with Azure OpenAI",
		Long: `Summarize asks the Azure OpenAI chat deployment for a summary of the
text given as arguments, a file (--file), a web page (--url) or
standard input ("-").

Connection failures and timeouts are retried with exponential backoff
(retry.maxAttempts and retry.unit in the configuration file).

Lengths:   Very Brief, Brief, Moderate, Detailed
Audiences: General, Academic, Technical, Business

Examples:
  cloudlab summarize --url https://go.dev/blog/slog

  cloudlab summarize --file paper.txt --length detailed --audience academic

  cat notes.txt | cloudlab summarize --reduction 80 -`,
		RunE: runSummarizeCmd,
	}

	cmd.Flags().StringP("file", "f", "", "Read the text from a file")
	cmd.Flags().StringP("url", "u", "", "Fetch and summarize a web page")
	cmd.Flags().StringP("length", "l", string(summarize.Brief), "Summary length")
	cmd.Flags().StringP("audience", "a", string(summarize.General), "Target audience")
	cmd.Flags().IntP("reduction", "r", 0,
		fmt.Sprintf("Custom reduction target in percent (%d-%d, default: per length)", summarize.MinReduction, summarize.MaxReduction))

	return cmd
}

func runSummarizeCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	file, err := flags.GetString("file")
	if err != nil {
		return err
	}
	url, err := flags.GetString("url")
	if err != nil {
		return err
	}
	length, err := flags.GetString("length")
	if err != nil {
		return err
	}
	audience, err := flags.GetString("audience")
	if err != nil {
		return err
	}
	reduction, err := flags.GetInt("reduction")
	if err != nil {
		return err
	}

	opts, err := summarize.ParseOptions(length, audience, reduction)
	if err != nil {
		return err
	}
	text, err := summarizeText(cmd.InOrStdin(), file, url, args)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	a.emit(a.runner.Summarize(cmd.Context(), pipeline.SummarizeInput{Text: text, URL: url, Options: opts}))
	return a.Err()
}

// summarizeText selects the input source. Exactly one of text arguments,
// file, url or "-" (stdin) is accepted.
func summarizeText(stdin io.Reader, file, url string, args []string) (string, error) {
	sources := 0
	for _, set := range []bool{len(args) > 0, file != "", url != ""} {
		if set {
			sources++
		}
	}
	switch {
	case sources == 0:
		return "", errors.New("no input provided (pass text, --file, --url or - for standard input)")
	case sources > 1:
		return "", errors.New("text arguments, --file and --url are mutually exclusive")
	case url != "":
		return "", nil
	case file != "":
		data, err := os.ReadFile(file) //nolint:gosec // user-chosen input file
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(data), nil
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read standard input: %w", err)
		}
		return string(data), nil
	default:
		return strings.Join(args, " "), nil
	}
}
