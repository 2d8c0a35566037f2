package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoders for uploaded images
	_ "image/jpeg"
	"image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/nao1215/cloudlab/internal/annotate"
	"github.com/nao1215/cloudlab/internal/apierr"
	"github.com/nao1215/cloudlab/internal/config"
	"github.com/nao1215/cloudlab/internal/model"
	"github.com/nao1215/cloudlab/internal/vision"
)

// Detection messages.
const (
	MsgNoObjects  = "No objects were detected in the image."
	MsgNoResults  = "No object detection results returned from the API."
	MsgGPSPresent = "The image carries GPS coordinates in its EXIF data and was uploaded with them."
)

// ErrEmptyImage and ErrUnsupportedImage reject unusable uploads.
var (
	ErrEmptyImage       = errors.New("image is empty")
	ErrUnsupportedImage = errors.New("unsupported image format")
)

// DetectInput is an image to analyse.
type DetectInput struct {
	// Name is the file name, used for the output file.
	Name  string
	Image []byte
}

// DetectedObject is one detection in pixel coordinates.
type DetectedObject struct {
	Name     string            `json:"name"`
	Score    float64           `json:"score"`
	Category string            `json:"category"`
	Color    string            `json:"color"`
	Vertices []annotate.Vertex `json:"vertices"`
}

// DetectData is the page-specific payload of a detection result.
type DetectData struct {
	Width   int              `json:"width"`
	Height  int              `json:"height"`
	Format  string           `json:"format"`
	Present bool             `json:"present"`
	Objects []DetectedObject `json:"objects"`
	Labels  []vision.Label   `json:"labels,omitempty"`
	EXIF    vision.Metadata  `json:"exif"`

	// Annotated is the PNG with boxes drawn. It is omitted when the file
	// was written to the output directory.
	Annotated []byte `json:"annotated_png,omitempty"`

	Raw json.RawMessage `json:"raw,omitempty"`
}

// Detect sends the image for object localization and draws the boxes.
func (r *Runner) Detect(ctx context.Context, in DetectInput) (*model.Result, error) {
	const op = "vision.detect"
	if err := r.pageErr(config.PageVision); err != nil {
		return nil, err
	}
	if len(in.Image) == 0 {
		return nil, apierr.InvalidInput(op, ErrEmptyImage)
	}
	src, format, err := image.Decode(bytes.NewReader(in.Image))
	if err != nil {
		return nil, apierr.InvalidInput(op, fmt.Errorf("%w: %w", ErrUnsupportedImage, err))
	}

	res := model.NewResult(string(config.PageVision), "Object Detection", in.Image)
	b := src.Bounds()
	data := &DetectData{Width: b.Dx(), Height: b.Dy(), Format: format, Objects: []DetectedObject{}}
	res.Data = data
	if in.Name != "" {
		res.AddField("Image", in.Name)
	}
	res.AddField("Size", fmt.Sprintf("%dx%d %s", b.Dx(), b.Dy(), format))

	return r.run(ctx, res, func(ctx context.Context) error {
		data.EXIF = vision.InspectEXIF(in.Image)
		if data.EXIF.HasGPS {
			res.Warn(MsgGPSPresent)
		}
		if data.EXIF.Camera != "" {
			res.AddField("Camera", data.EXIF.Camera)
		}
		if data.EXIF.Rotated() {
			res.Info(fmt.Sprintf("EXIF orientation is %d; boxes are drawn on the stored pixels.", data.EXIF.Orientation))
		}

		resp, err := r.vision.Annotate(ctx, in.Image)
		if err != nil {
			return err
		}
		data.Present = resp.Present
		data.Labels = resp.Labels
		data.Raw = resp.Raw

		for _, o := range resp.Objects {
			px := make([]annotate.Vertex, len(o.Vertices))
			for i, v := range o.Vertices {
				px[i] = annotate.Denormalize(v, b.Dx(), b.Dy())
			}
			data.Objects = append(data.Objects, DetectedObject{
				Name:     o.Name,
				Score:    o.Score,
				Category: annotate.Category(o.Name),
				Color:    annotate.HexColor(annotate.ColorFor(o.Name)),
				Vertices: px,
			})
		}

		switch {
		case !resp.Present:
			res.Warn(MsgNoResults)
		case len(resp.Objects) == 0:
			res.Info(MsgNoObjects)
		}
		if len(resp.Labels) > 0 {
			res.AddField("Labels", formatLabels(resp.Labels))
		}
		res.Table = objectTable(data.Objects)
		res.Chart = categoryChart(data.Objects)

		var buf bytes.Buffer
		if err := png.Encode(&buf, annotate.Annotate(src, resp.Objects)); err != nil {
			return fmt.Errorf("failed to encode annotated image: %w", err)
		}
		return r.attachImage(res, baseName(in.Name, "image")+"_annotated.png", buf.Bytes(), &data.Annotated)
	})
}

// attachImage saves img as an artifact, or keeps it inline in *inline.
func (r *Runner) attachImage(res *model.Result, name string, img []byte, inline *[]byte) error {
	if !r.saveArtifacts {
		*inline = img
		return nil
	}
	path, err := r.writeArtifact(name, img)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	res.AddArtifact(model.Artifact{Kind: model.ArtifactImage, Path: path, MIMEType: "image/png", Size: int64(len(img))})
	return nil
}

func objectTable(objs []DetectedObject) *model.Table {
	t := &model.Table{
		Title:  "Detected Objects",
		Header: []string{"Object", "Confidence", "Category", "Color"},
		Rows:   make([][]string, 0, len(objs)),
	}
	for _, o := range objs {
		t.Rows = append(t.Rows, []string{o.Name, percent(o.Score), o.Category, o.Color})
	}
	return t
}

func categoryChart(objs []DetectedObject) *model.Chart {
	if len(objs) == 0 {
		return nil
	}
	counts := make(map[string]uint64)
	for _, o := range objs {
		counts[o.Category]++
	}
	c := &model.Chart{Title: "Detections by Category"}
	for _, cat := range annotate.Categories() {
		if n := counts[cat]; n > 0 {
			c.Slices = append(c.Slices, model.Slice{Label: cat, Value: n})
		}
	}
	return c
}

func formatLabels(labels []vision.Label) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s (%s)", l.Description, percent(l.Score))
	}
	return strings.Join(parts, ", ")
}

func percent(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}
