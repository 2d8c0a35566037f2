package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nao1215/cloudlab/internal/config"
	"github.com/nao1215/cloudlab/internal/imagegen"
	"github.com/nao1215/cloudlab/internal/model"
	"github.com/nao1215/cloudlab/internal/speech"
	"github.com/nao1215/cloudlab/internal/summarize"
	"github.com/nao1215/cloudlab/internal/transcribe"
	"github.com/nao1215/cloudlab/internal/translate"
	"github.com/nao1215/cloudlab/internal/webtext"
)

// TranslateInput is a text to translate.
type TranslateInput struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Translate translates one text.
func (r *Runner) Translate(ctx context.Context, in TranslateInput) (*model.Result, error) {
	if err := r.pageErr(config.PageTranslate); err != nil {
		return nil, err
	}
	res := model.NewResult(string(config.PageTranslate), "Translation", []byte(in.Text))
	return r.run(ctx, res, func(ctx context.Context) error {
		tr, err := r.translate.Translate(ctx, in.Text, in.Source, in.Target)
		if err != nil {
			return err
		}
		res.Text = tr.Text
		from := translate.DisplayName(tr.Source)
		if tr.Detected {
			from += " (detected)"
		}
		res.AddField("From", from)
		res.AddField("To", translate.DisplayName(tr.Target))
		res.Data = tr
		return nil
	})
}

// Transcribe transcribes one audio file read from audio.
func (r *Runner) Transcribe(ctx context.Context, name string, audio io.Reader) (*model.Result, error) {
	if err := r.pageErr(config.PageTranscribe); err != nil {
		return nil, err
	}
	res := model.NewResult(string(config.PageTranscribe), "Transcription", []byte(filepath.Base(name)))
	res.AddField("File", filepath.Base(name))
	return r.run(ctx, res, func(ctx context.Context) error {
		tr, err := r.transcribe.Transcribe(ctx, name, audio)
		if err != nil {
			return err
		}
		res.Text = tr.Text
		if tr.Empty {
			res.Warn(transcribe.NoTranscription)
		}
		if tr.Language != "" {
			res.AddField("Language", tr.Language)
		}
		res.Data = tr
		return nil
	})
}

// SummarizeInput is a document to summarize. When URL is set the page
// is fetched and Text is ignored.
type SummarizeInput struct {
	Text    string            `json:"text"`
	URL     string            `json:"url,omitempty"`
	Options summarize.Options `json:"options"`
}

// Summarize summarizes a text or a web page.
func (r *Runner) Summarize(ctx context.Context, in SummarizeInput) (*model.Result, error) {
	if err := r.pageErr(config.PageSummarize); err != nil {
		return nil, err
	}
	if in.URL == "" && webtext.IsURL(in.Text) {
		in.URL = strings.TrimSpace(in.Text)
	}
	res := model.NewResult(string(config.PageSummarize), "Summary", []byte(in.Text+in.URL))
	return r.run(ctx, res, func(ctx context.Context) error {
		text := in.Text
		if in.URL != "" {
			page, err := r.fetcher.Fetch(ctx, in.URL)
			if err != nil {
				return err
			}
			text = page.Document()
			res.AddField("Source", in.URL)
			if page.Title != "" {
				res.AddField("Page title", page.Title)
			}
		}

		out, err := r.summarize.Summarize(ctx, text, in.Options)
		if err != nil {
			return err
		}
		res.Text = out.Summary
		res.AddField("Length", fmt.Sprintf("%s (target %d%% shorter)", out.Options.Length, out.Options.TargetReduction()))
		res.AddField("Audience", string(out.Options.Audience))
		res.AddField("Original length", strconv.Itoa(out.Metrics.OriginalChars)+" chars")
		res.AddField("Summary length", strconv.Itoa(out.Metrics.SummaryChars)+" chars")
		res.AddField("Reduction", strconv.Itoa(out.Metrics.ReductionPercent)+"%")
		res.Data = out
		return nil
	})
}

// SpeakData is the page-specific payload of a speech result.
type SpeakData struct {
	Request speech.Request `json:"request"`
	Bytes   int64          `json:"bytes"`

	// Audio is omitted when the file was written to the output directory.
	Audio []byte `json:"audio,omitempty"`
}

// Speak synthesizes speech. With saved artifacts the audio is written to
// speech_<voice>.<format> in the output directory, suffixed with -1, -2, ...
// when that name is taken.
func (r *Runner) Speak(ctx context.Context, req speech.Request) (*model.Result, error) {
	if err := r.pageErr(config.PageSpeech); err != nil {
		return nil, err
	}
	res := model.NewResult(string(config.PageSpeech), "Text to Speech", []byte(req.Input))
	return r.run(ctx, res, func(ctx context.Context) error {
		data := &SpeakData{}
		if r.saveArtifacts {
			norm := req
			if norm.Voice == "" {
				norm.Voice = speech.DefaultVoice
			}
			if norm.Format == "" {
				norm.Format = speech.DefaultFormat
			}
			name := fmt.Sprintf("speech_%s.%s", strings.ToLower(norm.Voice), strings.ToLower(norm.Format))
			f, err := r.createArtifact(name)
			if err != nil {
				return fmt.Errorf("failed to create audio file: %w", err)
			}
			path := f.Name()
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to create audio file: %w", err)
			}
			eff, n, err := r.speech.GenerateFile(ctx, req, path)
			if err != nil {
				return err
			}
			data.Request, data.Bytes = eff, n
			res.AddArtifact(model.Artifact{Kind: model.ArtifactAudio, Path: path, MIMEType: speech.ContentType(eff.Format), Size: n})
		} else {
			var buf bytes.Buffer
			eff, n, err := r.speech.Generate(ctx, req, &buf)
			if err != nil {
				return err
			}
			data.Request, data.Bytes, data.Audio = eff, n, buf.Bytes()
		}
		res.AddField("Voice", fmt.Sprintf("%s (%s)", speech.VoiceTitle(data.Request.Voice), speech.VoiceDescription(data.Request.Voice)))
		res.AddField("Speed", strconv.FormatFloat(data.Request.Speed, 'f', -1, 64)+"x")
		res.AddField("Format", data.Request.Format)
		res.Data = data
		return nil
	})
}

// SpeakTo streams synthesized speech to w.
func (r *Runner) SpeakTo(ctx context.Context, req speech.Request, w io.Writer) (speech.Request, error) {
	if err := r.pageErr(config.PageSpeech); err != nil {
		return req, err
	}
	eff, _, err := r.speech.Generate(ctx, req, w)
	return eff, err
}

// ImagineData is the page-specific payload of an image generation result.
type ImagineData struct {
	Request imagegen.Request `json:"request"`
	Images  []GeneratedImage `json:"images"`
}

// GeneratedImage is one generated image. Exactly one of URL, Path and
// Data is set.
type GeneratedImage struct {
	Index         int    `json:"index"`
	URL           string `json:"url,omitempty"`
	Path          string `json:"path,omitempty"`
	Data          []byte `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// Imagine generates images from a prompt.
func (r *Runner) Imagine(ctx context.Context, req imagegen.Request) (*model.Result, error) {
	if err := r.pageErr(config.PageImageGen); err != nil {
		return nil, err
	}
	res := model.NewResult(string(config.PageImageGen), "Image Generation", []byte(req.Prompt))
	return r.run(ctx, res, func(ctx context.Context) error {
		out, err := r.imagegen.Generate(ctx, req)
		if err != nil {
			return err
		}
		for _, w := range out.Warnings {
			res.Warn(w)
		}
		res.AddField("Size", out.Request.Size)
		res.AddField("Quality", out.Request.Quality)

		data := &ImagineData{Request: out.Request, Images: make([]GeneratedImage, 0, len(out.Images))}
		for _, img := range out.Images {
			g := GeneratedImage{Index: img.Index, URL: img.URL, RevisedPrompt: img.RevisedPrompt}
			switch {
			case img.URL != "":
				res.AddArtifact(model.Artifact{Kind: model.ArtifactLink, URL: img.URL})
			case r.saveArtifacts:
				if err := r.attachImage(res, fmt.Sprintf("image_%d.png", img.Index), img.Data, &g.Data); err != nil {
					return err
				}
				g.Path = res.Artifacts[len(res.Artifacts)-1].Path
			default:
				g.Data = img.Data
			}
			if img.RevisedPrompt != "" {
				res.AddField(fmt.Sprintf("Revised prompt %d", img.Index), img.RevisedPrompt)
			}
			data.Images = append(data.Images, g)
		}
		res.Data = data
		return nil
	})
}

func (r *Runner) outputDir() string {
	if r.cfg.OutputDir == "" {
		return "."
	}
	return r.cfg.OutputDir
}
