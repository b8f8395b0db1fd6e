// Package segment splits a glucose trace into same-zone polyline
// segments with exact threshold crossings, so a renderer can color
// each piece independently while the joined line stays continuous.
package segment

import (
	"fmt"
	"time"

	"glyko/diary/defs"
)

type Zone int

const (
	Below Zone = iota
	InRange
	Above
	// Out is only produced under the TwoZone policy, which does not
	// distinguish which side of the target range a value fell on.
	Out
)

func (z Zone) String() string {
	return [...]string{"below", "in_range", "above", "out_of_range"}[z]
}

type Policy int

const (
	ThreeZone Policy = iota
	TwoZone
)

// Range holds the target range boundaries. Values equal to a boundary
// classify InRange (closed interval).
type Range struct {
	Low    float64
	High   float64
	Policy Policy
}

func NewRange(cfg defs.GlucoseConfig) (Range, error) {
	if cfg.Low >= cfg.High {
		return Range{}, fmt.Errorf("invalid glucose range: low %.2f >= high %.2f", cfg.Low, cfg.High)
	}

	policy := ThreeZone
	switch cfg.Policy {
	case "", "three_zone":
	case "two_zone":
		policy = TwoZone
	default:
		return Range{}, fmt.Errorf("unknown zone policy %q", cfg.Policy)
	}

	return Range{Low: cfg.Low, High: cfg.High, Policy: policy}, nil
}

func (r Range) Classify(v float64) Zone {
	switch {
	case v < r.Low:
		if r.Policy == TwoZone {
			return Out
		}
		return Below
	case v > r.High:
		if r.Policy == TwoZone {
			return Out
		}
		return Above
	default:
		return InRange
	}
}

type Point struct {
	Time time.Time `json:"time"`
	Mmol float64   `json:"mmol"`
}

// Segment is a maximal run of consecutive points within one zone.
// Its first and last points are either original readings or crossing
// points shared with the neighboring segment.
type Segment struct {
	Points []Point `json:"points"`
	Zone   Zone    `json:"zone"`
}

// Crossing returns the point where the line between two samples meets
// the boundary that separates their zones. Which boundary was crossed
// follows from whether the samples straddle Low; a Below-to-Above jump
// never reaches here in one call since Build compares only immediate
// neighbors.
func (r Range) Crossing(t0, t1 time.Time, v0, v1 float64) Point {
	boundary := r.High
	if (v0 < r.Low) != (v1 < r.Low) {
		boundary = r.Low
	}

	// Unreachable when the zones differ, but kept as a guard.
	ratio := 0.5
	if v1 != v0 {
		ratio = (boundary - v0) / (v1 - v0)
	}

	return Point{
		Time: t0.Add(time.Duration(ratio * float64(t1.Sub(t0)))),
		Mmol: boundary,
	}
}

// Build partitions readings into same-zone segments in one pass.
// Readings must already be sorted ascending by time.
func (r Range) Build(readings []defs.GlucoseReading) []Segment {
	if len(readings) == 0 {
		return nil
	}

	var segments []Segment
	open := Segment{
		Points: []Point{{Time: readings[0].Time, Mmol: readings[0].Mmol}},
		Zone:   r.Classify(readings[0].Mmol),
	}

	for _, gr := range readings[1:] {
		zone := r.Classify(gr.Mmol)
		if zone == open.Zone {
			open.Points = append(open.Points, Point{Time: gr.Time, Mmol: gr.Mmol})
			continue
		}

		prev := open.Points[len(open.Points)-1]
		cross := r.Crossing(prev.Time, gr.Time, prev.Mmol, gr.Mmol)
		open.Points = append(open.Points, cross)
		segments = append(segments, open)

		open = Segment{
			Points: []Point{cross, {Time: gr.Time, Mmol: gr.Mmol}},
			Zone:   zone,
		}
	}

	return append(segments, open)
}
