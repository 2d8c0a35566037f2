// Package annotate draws object-detection results onto an image: one
// closed outline per detection plus a filled label tag above its first
// vertex.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// StrokeWidth is the outline width in pixels.
const StrokeWidth = 3

// labelGap is the vertical distance between the tag and the first vertex.
const labelGap = 5

// Vertex is a point. Detections carry normalized vertices in [0,1];
// Denormalize converts them to pixel coordinates.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection is one localized object.
type Detection struct {
	Name     string   `json:"name"`
	Score    float64  `json:"score"`
	Vertices []Vertex `json:"vertices"`
}

// Denormalize scales a normalized vertex to an image of the given size.
// Values outside [0,1] are scaled the same way and not clamped.
func Denormalize(v Vertex, width, height int) Vertex {
	return Vertex{X: v.X * float64(width), Y: v.Y * float64(height)}
}

// Label returns the tag text, e.g. "Person: 93.2%".
func Label(d Detection) string {
	return fmt.Sprintf("%s: %.1f%%", d.Name, d.Score*100)
}

// Annotate returns a new image with the same bounds as src and every
// detection drawn on it. src is not modified. Detections with fewer than
// four vertices are skipped.
func Annotate(src image.Image, dets []Detection) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	// Drawing happens on a zero-origin canvas; the result is rebased to b.
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Src)

	if len(dets) > 0 {
		z := vector.NewRasterizer(w, h)
		face := basicfont.Face7x13
		for _, d := range dets {
			if len(d.Vertices) < 4 {
				continue
			}
			var box [4]Vertex
			for i := range box {
				box[i] = Denormalize(d.Vertices[i], w, h)
			}
			c := ColorFor(d.Name)
			for i := range box {
				strokeSegment(z, canvas, box[i], box[(i+1)%4], c)
			}
			drawTag(canvas, face, box[0], Label(d), c)
		}
	}

	return &image.RGBA{Pix: canvas.Pix, Stride: canvas.Stride, Rect: b}
}

// strokeSegment fills the StrokeWidth-wide rectangle around p-q, extended
// by half the width at both ends so corners meet without gaps.
func strokeSegment(z *vector.Rasterizer, dst *image.RGBA, p, q Vertex, c color.RGBA) {
	half := float64(StrokeWidth) / 2
	dx, dy := q.X-p.X, q.Y-p.Y
	length := math.Hypot(dx, dy)

	var ux, uy float64
	if length == 0 {
		ux, uy = 1, 0
	} else {
		ux, uy = dx/length, dy/length
	}
	nx, ny := -uy*half, ux*half
	ax, ay := p.X-ux*half, p.Y-uy*half
	bx, by := q.X+ux*half, q.Y+uy*half

	b := dst.Bounds()
	z.Reset(b.Dx(), b.Dy())
	z.MoveTo(float32(ax+nx), float32(ay+ny))
	z.LineTo(float32(bx+nx), float32(by+ny))
	z.LineTo(float32(bx-nx), float32(by-ny))
	z.LineTo(float32(ax-nx), float32(ay-ny))
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(c), image.Point{})
}

// drawTag fills the measured text box at (v.X, v.Y - height - labelGap)
// with c and writes label in white on top.
func drawTag(dst *image.RGBA, face font.Face, v Vertex, label string, c color.RGBA) {
	metrics := face.Metrics()
	textW := font.MeasureString(face, label).Ceil()
	textH := metrics.Height.Ceil()

	x := int(math.Floor(v.X))
	y := int(math.Floor(v.Y)) - textH - labelGap
	tag := image.Rect(x, y, x+textW, y+textH)
	draw.Draw(dst, tag, image.NewUniform(c), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(TextColor),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y) + metrics.Ascent},
	}
	d.DrawString(label)
}

// TextColor is the label text color.
var TextColor = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// colorRule maps a category keyword to an outline color.
type colorRule struct {
	category string
	color    color.RGBA
}

// palette is evaluated in order; the first category contained in the
// detection name wins.
var palette = []colorRule{
	{"Person", rgb(0xFF, 0x00, 0x00)},
	{"Vehicle", rgb(0x00, 0xFF, 0x00)},
	{"Animal", rgb(0x00, 0x00, 0xFF)},
	{"Food", rgb(0xFF, 0xFF, 0x00)},
	{"Electronics", rgb(0xFF, 0x00, 0xFF)},
	{"Furniture", rgb(0x00, 0xFF, 0xFF)},
	{"Clothing", rgb(0xFF, 0xA5, 0x00)},
	{"Sports", rgb(0x80, 0x00, 0x80)},
	{"Building", rgb(0xA5, 0x2A, 0x2A)},
}

// DefaultColor is used when no category matches.
var DefaultColor = rgb(0xFF, 0xFF, 0xFF)

// OtherCategory names detections that match no palette entry.
const OtherCategory = "Other"

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}
}

// ColorFor returns the outline color for a detection name.
func ColorFor(name string) color.RGBA {
	if i := match(name); i >= 0 {
		return palette[i].color
	}
	return DefaultColor
}

// Category returns the palette category of a detection name, or OtherCategory.
func Category(name string) string {
	if i := match(name); i >= 0 {
		return palette[i].category
	}
	return OtherCategory
}

// Categories lists the palette categories in evaluation order.
func Categories() []string {
	out := make([]string, 0, len(palette)+1)
	for _, r := range palette {
		out = append(out, r.category)
	}
	return append(out, OtherCategory)
}

// HexColor formats c as "#RRGGBB".
func HexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func match(name string) int {
	lower := strings.ToLower(name)
	for i, r := range palette {
		if strings.Contains(lower, strings.ToLower(r.category)) {
			return i
		}
	}
	return -1
}
