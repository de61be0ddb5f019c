// Package overlay renders seat zones, their current status and the attributed detections to an
// image, for checking zone placement against the camera view.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/seatsense/seat-monitor/internal/geometry"
	"github.com/seatsense/seat-monitor/internal/zones"
	"github.com/seatsense/seat-monitor/pkg/types"
)

var (
	zoneColor      = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	detectionColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	labelBg        = color.RGBA{A: 200}
	white          = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// StatusColor returns the fill used for a seat status (alpha-premultiplied, translucent).
func StatusColor(s types.SeatStatus) color.RGBA {
	switch s {
	case types.StatusOccupied:
		return color.RGBA{R: 110, A: 110}
	case types.StatusOnHold:
		return color.RGBA{R: 110, G: 70, A: 110}
	default:
		return color.RGBA{G: 110, A: 110}
	}
}

// Options controls the canvas. Zero Width or Height sizes the canvas to the zones plus Margin.
type Options struct {
	Width      int
	Height     int
	Margin     int
	Background color.Color
	Thickness  int
}

// DefaultOptions returns a dark canvas sized to the zones.
func DefaultOptions() Options {
	return Options{
		Margin:     40,
		Background: color.RGBA{R: 32, G: 32, B: 32, A: 255},
		Thickness:  2,
	}
}

// Render draws every zone, filled by its status in result, and the detections attributed to
// it. result may be nil, in which case zones are drawn unfilled.
func Render(z *zones.Zones, result *types.FrameResult, opts Options) *image.RGBA {
	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		b, ok := geometry.Bounds(z.Boxes())
		if !ok {
			b = types.Box{X2: 640, Y2: 480}
		}
		w = int(math.Ceil(b.X2)) + opts.Margin
		h = int(math.Ceil(b.Y2)) + opts.Margin
	}
	thickness := max(opts.Thickness, 1)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bg := opts.Background
	if bg == nil {
		bg = color.Black
	}
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	for _, zone := range z.All() {
		rect := toRect(zone.Box)
		label := strings.ToUpper(zone.ID)

		var seat *types.SeatAssignmentResult
		if result != nil {
			if s, ok := result.Seat(zone.ID); ok {
				seat = &s
			}
		}
		if seat != nil {
			draw.Draw(img, rect, image.NewUniform(StatusColor(seat.Status)), image.Point{}, draw.Over)
			label = fmt.Sprintf("%s %s", label, seat.Status)
		}
		drawRect(img, rect, zoneColor, thickness)
		drawLabel(img, rect.Min.X+thickness+2, rect.Min.Y+thickness+2, label)

		if seat == nil {
			continue
		}
		for _, d := range seat.Detections {
			dr := toRect(d.BBox)
			drawRect(img, dr, detectionColor, 1)
			y := dr.Min.Y - 15
			if y < 0 {
				y = dr.Max.Y + 2
			}
			drawLabel(img, dr.Min.X, y, fmt.Sprintf("%s %.2f", d.ClassName, d.Confidence))
		}
	}

	if result != nil {
		drawLabel(img, 4, max(h-17, 0), fmt.Sprintf("Frame %d  occupied %d/%d", result.FrameNumber, result.Occupied, len(result.Seats)))
	}
	return img
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

func toRect(b types.Box) image.Rectangle {
	return image.Rect(int(math.Round(b.X1)), int(math.Round(b.Y1)), int(math.Round(b.X2)), int(math.Round(b.Y2)))
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.Color, thickness int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), src, image.Point{}, draw.Src)
	}
}

// drawLabel writes text on a dark box whose top-left corner is (x, y).
func drawLabel(img *image.RGBA, x, y int, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(white), Face: face}
	width := d.MeasureString(text).Ceil()
	box := image.Rect(x, y, x+width+4, y+face.Height+2)
	draw.Draw(img, box.Intersect(img.Bounds()), image.NewUniform(labelBg), image.Point{}, draw.Over)
	d.Dot = fixed.P(x+2, y+face.Ascent+1)
	d.DrawString(text)
}
