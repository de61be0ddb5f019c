// Package geometry provides the box tests used to relate detections to seat zones.
//
// Every function is pure. Boxes with zero or negative width/height have zero area and
// never overlap anything.
package geometry

import (
	"math"

	"github.com/seatsense/seat-monitor/pkg/types"
)

// Point is a position in image-pixel coordinates.
type Point struct {
	X, Y float64
}

// Area returns the area of b, or 0 for degenerate boxes.
func Area(b types.Box) float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Intersection returns the area shared by a and b.
func Intersection(a, b types.Box) float64 {
	if Area(a) == 0 || Area(b) == 0 {
		return 0
	}
	w := math.Min(a.X2, b.X2) - math.Max(a.X1, b.X1)
	h := math.Min(a.Y2, b.Y2) - math.Max(a.Y1, b.Y1)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// OverlapsAny reports whether a and b share a positive-area intersection.
func OverlapsAny(a, b types.Box) bool {
	return Intersection(a, b) > 0
}

// ContainsCenter reports whether the center of inner lies within outer, bounds inclusive.
func ContainsCenter(outer, inner types.Box) bool {
	return ContainsPoint(outer, Center(inner))
}

// ContainsPoint reports whether p lies within b, bounds inclusive.
func ContainsPoint(b types.Box, p Point) bool {
	return b.X1 <= p.X && p.X <= b.X2 && b.Y1 <= p.Y && p.Y <= b.Y2
}

// IoU returns intersection over union, or 0 when the union is empty.
func IoU(a, b types.Box) float64 {
	inter := Intersection(a, b)
	union := Area(a) + Area(b) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Center returns the midpoint of b.
func Center(b types.Box) Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Distance returns the Euclidean distance between p and q.
func Distance(p, q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Bounds returns the smallest box covering every box in boxes.
// ok is false when boxes is empty.
func Bounds(boxes []types.Box) (b types.Box, ok bool) {
	if len(boxes) == 0 {
		return types.Box{}, false
	}
	b = boxes[0]
	for _, o := range boxes[1:] {
		b.X1 = math.Min(b.X1, o.X1)
		b.Y1 = math.Min(b.Y1, o.Y1)
		b.X2 = math.Max(b.X2, o.X2)
		b.Y2 = math.Max(b.Y2, o.Y2)
	}
	return b, true
}

// Expand grows b by margin pixels on every side.
func Expand(b types.Box, margin float64) types.Box {
	return types.Box{
		X1: b.X1 - margin,
		Y1: b.Y1 - margin,
		X2: b.X2 + margin,
		Y2: b.Y2 + margin,
	}
}

// Membership selects how a detection is judged to be inside a zone.
type Membership int

const (
	MembershipAnyOverlap Membership = iota
	MembershipCenter
	MembershipIoU
)

// InZone applies the membership test m. iouThreshold is only consulted for MembershipIoU,
// where the IoU must strictly exceed it.
func InZone(m Membership, obj, zone types.Box, iouThreshold float64) bool {
	switch m {
	case MembershipCenter:
		return ContainsCenter(zone, obj)
	case MembershipIoU:
		return IoU(obj, zone) > iouThreshold
	default:
		return OverlapsAny(obj, zone)
	}
}
