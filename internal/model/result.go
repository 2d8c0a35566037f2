package model

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// Field is one labelled value, rendered as "Name: Value".
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Table is a rendered table, e.g. the detected objects.
type Table struct {
	Title  string     `json:"title,omitempty"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// ArtifactKind describes what an artifact holds.
type ArtifactKind string

// Artifact kinds.
const (
	ArtifactImage ArtifactKind = "image"
	ArtifactAudio ArtifactKind = "audio"
	ArtifactLink  ArtifactKind = "link"
)

// Artifact is a file written to the output directory or a remote URL
// returned by the API.
type Artifact struct {
	Kind     ArtifactKind `json:"kind"`
	Path     string       `json:"path,omitempty"`
	URL      string       `json:"url,omitempty"`
	MIMEType string       `json:"mime_type,omitempty"`
	Size     int64        `json:"size,omitempty"`
}

// Slice is one pie chart segment.
type Slice struct {
	Label string `json:"label"`
	Value uint64 `json:"value"`
}

// Chart is a pie chart rendered by the Markdown writer.
type Chart struct {
	Title  string  `json:"title"`
	Slices []Slice `json:"slices"`
}

// Result is the outcome of one page action.
type Result struct {
	// RequestID correlates log lines and the X-Request-Id header.
	RequestID string `json:"request_id"`

	// Page is the page name, e.g. "vision".
	Page string `json:"page"`

	// Title is the heading used by the renderers.
	Title string `json:"title"`

	// StartedAt is when the action began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall time of the action.
	Duration time.Duration `json:"duration_ns"`

	// InputDigest is the SHA3-256 of the primary input.
	InputDigest string `json:"input_digest,omitempty"`

	// Text is the main textual output (translation, transcript, summary).
	Text string `json:"text,omitempty"`

	Fields    []Field    `json:"fields,omitempty"`
	Table     *Table     `json:"table,omitempty"`
	Notices   []Notice   `json:"notices,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	Chart     *Chart     `json:"chart,omitempty"`

	// Data is the page-specific payload, included only in JSON output.
	Data any `json:"data,omitempty"`
}

// NewResult starts a result for page. input is hashed for InputDigest;
// pass nil when there is no single primary input.
func NewResult(page, title string, input []byte) *Result {
	r := &Result{
		RequestID: uuid.NewString(),
		Page:      page,
		Title:     title,
		StartedAt: time.Now(),
	}
	if input != nil {
		r.InputDigest = Digest(input)
	}
	return r
}

// Finish records the elapsed time.
func (r *Result) Finish() {
	r.Duration = time.Since(r.StartedAt)
}

// AddField appends a labelled value.
func (r *Result) AddField(name, value string) {
	r.Fields = append(r.Fields, Field{Name: name, Value: value})
}

// Info appends an informational notice.
func (r *Result) Info(msg string) {
	r.Notices = append(r.Notices, Notice{Level: LevelInfo, Message: msg})
}

// Warn appends a warning notice.
func (r *Result) Warn(msg string) {
	r.Notices = append(r.Notices, Notice{Level: LevelWarning, Message: msg})
}

// AddArtifact appends an artifact.
func (r *Result) AddArtifact(a Artifact) {
	r.Artifacts = append(r.Artifacts, a)
}

// HasWarnings reports whether any notice is a warning or worse.
func (r *Result) HasWarnings() bool {
	for _, n := range r.Notices {
		if n.Level >= LevelWarning {
			return true
		}
	}
	return false
}

// Digest returns the hex SHA3-256 of b.
func Digest(b []byte) string {
	sum := sha3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ShortDigest returns the first 12 hex characters of a digest, short
// enough to log without being mistaken for a credential.
func ShortDigest(digest string) string {
	if len(digest) <= 12 {
		return digest
	}
	return digest[:12]
}
