// Package render draws a diary window as a PNG: one polyline per
// segment colored by zone, over the target band and day grid.
package render

import (
	"bytes"
	"fmt"
	"time"

	"glyko/diary/pkg/segment"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var zoneColors = map[segment.Zone]string{
	segment.InRange: "#32CD32",
	segment.Above:   "#FF4444",
	segment.Below:   "#FFA500",
	segment.Out:     "#FF4444",
}

const (
	marginLeft   = 48.0
	marginRight  = 16.0
	marginTop    = 16.0
	marginBottom = 32.0

	minCeiling = 15.0
)

type Plot struct {
	Width  int
	Height int
	Range  segment.Range
}

// Render draws segments over the [start, end] window. Segments outside
// the window are clipped by the axis mapping, not filtered.
func (p Plot) Render(segments []segment.Segment, start, end time.Time) ([]byte, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("invalid window: start %v, end %v", start, end)
	}

	dc := gg.NewContext(p.Width, p.Height)
	dc.SetHexColor("#FFFFFF")
	dc.Clear()

	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("unable to parse font: %w", err)
	}
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: 11}))

	ceiling := minCeiling
	for _, seg := range segments {
		for _, pt := range seg.Points {
			if pt.Mmol*1.1 > ceiling {
				ceiling = pt.Mmol * 1.1
			}
		}
	}

	x := func(t time.Time) float64 {
		frac := float64(t.Sub(start)) / float64(end.Sub(start))
		return marginLeft + frac*(float64(p.Width)-marginLeft-marginRight)
	}
	y := func(v float64) float64 {
		frac := v / ceiling
		return float64(p.Height) - marginBottom - frac*(float64(p.Height)-marginTop-marginBottom)
	}

	p.drawDays(dc, start, end, x)
	p.drawBand(dc, x(start), x(end), y)
	p.drawAxis(dc, ceiling, y)

	for _, seg := range segments {
		dc.SetHexColor(zoneColors[seg.Zone])
		dc.SetLineWidth(2)
		if len(seg.Points) == 1 {
			pt := seg.Points[0]
			dc.DrawCircle(x(pt.Time), y(pt.Mmol), 2)
			dc.Fill()
			continue
		}
		for _, pt := range seg.Points {
			dc.LineTo(x(pt.Time), y(pt.Mmol))
		}
		dc.Stroke()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("unable to encode plot: %w", err)
	}
	return buf.Bytes(), nil
}

// drawDays shades alternating days and separates them with dashed
// vertical lines.
func (p Plot) drawDays(dc *gg.Context, start, end time.Time, x func(time.Time) float64) {
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for i := 0; day.Before(end); i++ {
		next := day.AddDate(0, 0, 1)

		if i%2 == 0 {
			dc.SetRGBA(0.78, 0.78, 0.78, 0.15)
			x0 := clamp(x(day), marginLeft, float64(p.Width)-marginRight)
			x1 := clamp(x(next), marginLeft, float64(p.Width)-marginRight)
			dc.DrawRectangle(x0, marginTop, x1-x0, float64(p.Height)-marginTop-marginBottom)
			dc.Fill()
		}

		if !day.Before(start) {
			dc.SetRGBA(0.5, 0.5, 0.5, 0.5)
			dc.SetLineWidth(1)
			dc.SetDash(4, 4)
			dc.DrawLine(x(day), marginTop, x(day), float64(p.Height)-marginBottom)
			dc.Stroke()
			dc.SetDash()
		}

		dc.SetRGB(0.2, 0.2, 0.2)
		mid := day.Add(12 * time.Hour)
		if mid.After(start) && mid.Before(end) {
			dc.DrawStringAnchored(day.Format("01/02"), x(mid), float64(p.Height)-marginBottom/2, 0.5, 0.5)
		}

		day = next
	}
}

// drawBand fills the target range and dashes its boundaries.
func (p Plot) drawBand(dc *gg.Context, x0, x1 float64, y func(float64) float64) {
	dc.SetRGBA(0.196, 0.804, 0.196, 0.06)
	dc.DrawRectangle(x0, y(p.Range.High), x1-x0, y(p.Range.Low)-y(p.Range.High))
	dc.Fill()

	for _, boundary := range []float64{p.Range.Low, p.Range.High} {
		dc.SetRGBA(0.196, 0.804, 0.196, 0.5)
		dc.SetLineWidth(1)
		dc.SetDash(6, 4)
		dc.DrawLine(x0, y(boundary), x1, y(boundary))
		dc.Stroke()
		dc.SetDash()
	}
}

func (p Plot) drawAxis(dc *gg.Context, ceiling float64, y func(float64) float64) {
	dc.SetRGB(0.2, 0.2, 0.2)
	for v := 0.0; v <= ceiling; v += 2 {
		dc.DrawStringAnchored(fmt.Sprintf("%.0f", v), marginLeft-8, y(v), 1, 0.5)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
