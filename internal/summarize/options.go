package summarize

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Length is the requested summary length.
type Length string

// Lengths, shortest first.
const (
	VeryBrief Length = "Very Brief"
	Brief     Length = "Brief"
	Moderate  Length = "Moderate"
	Detailed  Length = "Detailed"
)

type lengthSpec struct {
	description string
	reduction   int
}

var lengthSpecs = map[Length]lengthSpec{
	VeryBrief: {description: "1 paragraph (3-4 sentences)", reduction: 85},
	Brief:     {description: "1-2 paragraphs", reduction: 75},
	Moderate:  {description: "2-3 paragraphs", reduction: 60},
	Detailed:  {description: "3-4 paragraphs", reduction: 50},
}

// Lengths returns all lengths, shortest first.
func Lengths() []Length {
	return []Length{VeryBrief, Brief, Moderate, Detailed}
}

// Description returns the paragraph guidance put in the prompt.
func (l Length) Description() string {
	return lengthSpecs[l].description
}

// DefaultReduction returns the reduction target used when none is given.
func (l Length) DefaultReduction() int {
	return lengthSpecs[l].reduction
}

// Audience is the reader the summary targets.
type Audience string

// Audiences.
const (
	General   Audience = "General"
	Academic  Audience = "Academic"
	Technical Audience = "Technical"
	Business  Audience = "Business"
)

// Audiences returns all audiences.
func Audiences() []Audience {
	return []Audience{General, Academic, Technical, Business}
}

// Reduction bounds for a custom target.
const (
	MinReduction = 30
	MaxReduction = 90
)

// Option errors.
var (
	ErrUnknownLength   = errors.New("unknown summary length")
	ErrUnknownAudience = errors.New("unknown audience")
	ErrReductionRange  = fmt.Errorf("reduction must be between %d and %d", MinReduction, MaxReduction)
	ErrEmptyText       = errors.New("text to summarize is empty")
)

// normalize folds "very-brief", "very_brief" and "VERY BRIEF" together.
func normalize(s string) string {
	s = strings.NewReplacer("-", " ", "_", " ").Replace(strings.TrimSpace(s))
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ParseLength accepts a length name in any case, with spaces, dashes or underscores.
func ParseLength(s string) (Length, error) {
	for _, l := range Lengths() {
		if normalize(string(l)) == normalize(s) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLength, s)
}

// ParseAudience accepts an audience name in any case.
func ParseAudience(s string) (Audience, error) {
	for _, a := range Audiences() {
		if strings.EqualFold(string(a), strings.TrimSpace(s)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAudience, s)
}

// Options selects the summary shape.
type Options struct {
	Length   Length   `json:"length"`
	Audience Audience `json:"audience"`

	// Reduction is a custom target in percent. Zero uses the length default.
	Reduction int `json:"reduction,omitempty"`
}

// DefaultOptions returns Brief for a general audience.
func DefaultOptions() Options {
	return Options{Length: Brief, Audience: General}
}

// ParseOptions builds Options from names such as "very brief" and
// "Technical". Empty names keep the defaults.
func ParseOptions(length, audience string, reduction int) (Options, error) {
	o := DefaultOptions()
	if length != "" {
		l, err := ParseLength(length)
		if err != nil {
			return o, err
		}
		o.Length = l
	}
	if audience != "" {
		a, err := ParseAudience(audience)
		if err != nil {
			return o, err
		}
		o.Audience = a
	}
	o.Reduction = reduction
	return o, o.Validate()
}

// Validate checks the options.
func (o Options) Validate() error {
	if _, ok := lengthSpecs[o.Length]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLength, o.Length)
	}
	if _, err := ParseAudience(string(o.Audience)); err != nil {
		return err
	}
	if o.Reduction != 0 && (o.Reduction < MinReduction || o.Reduction > MaxReduction) {
		return ErrReductionRange
	}
	return nil
}

// TargetReduction returns the custom reduction, or the length default.
func (o Options) TargetReduction() int {
	if o.Reduction != 0 {
		return o.Reduction
	}
	return o.Length.DefaultReduction()
}

// BuildPrompt renders the single user message sent to the model.
func BuildPrompt(text string, o Options) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an expert summarizer. Create a highly concise %s summary of the following text.\n", o.Length.Description())
	fmt.Fprintf(&sb, "Your summary should be approximately %d%% shorter than the original text.\n", o.TargetReduction())
	fmt.Fprintf(&sb, "Target the summary for a %s audience.\n", strings.ToLower(string(o.Audience)))
	sb.WriteString("Focus ONLY on the most essential ideas and key findings.\n")
	sb.WriteString("Eliminate all redundancy and unnecessary details.\n")
	sb.WriteString("Use concise language and efficient phrasing.\n")
	sb.WriteString("Maintain factual accuracy while being extremely selective about what to include.\n\n")
	sb.WriteString("Here is the text to summarize:\n\n")
	sb.WriteString(text)
	sb.WriteString("\n")
	return sb.String()
}

// Metrics compares the summary with the original, counted in characters.
type Metrics struct {
	OriginalChars int `json:"original_chars"`
	SummaryChars  int `json:"summary_chars"`

	// ReductionPercent is int((1 - summary/original) * 100), truncated
	// toward zero. It is negative when the summary is longer.
	ReductionPercent int `json:"reduction_percent"`
}

// ComputeMetrics returns the metrics for a summary. An empty original
// yields zero reduction.
func ComputeMetrics(original, summary string) Metrics {
	o := utf8.RuneCountInString(original)
	s := utf8.RuneCountInString(summary)
	m := Metrics{OriginalChars: o, SummaryChars: s}
	if o > 0 {
		m.ReductionPercent = int((1 - float64(s)/float64(o)) * 100)
	}
	return m
}
