// Package zonefilter drops detections that belong to background scenery outside the seating area.
package zonefilter

import (
	"github.com/seatsense/seat-monitor/internal/geometry"
	"github.com/seatsense/seat-monitor/internal/zones"
	"github.com/seatsense/seat-monitor/pkg/types"
)

// DefaultMargin is how far, in pixels, the seating area is grown on every side.
const DefaultMargin = 100.0

// Area returns the region detections must be centred in: the bounding box of every zone,
// expanded by margin. ok is false when there are no zones.
func Area(z *zones.Zones, margin float64) (types.Box, bool) {
	b, ok := geometry.Bounds(z.Boxes())
	if !ok {
		return types.Box{}, false
	}
	return geometry.Expand(b, margin), true
}

// Filter keeps the detections whose center lies inside Area (bounds inclusive).
// With no zones there is nothing to filter against and dets is returned unchanged.
func Filter(dets []types.Detection, z *zones.Zones, margin float64) []types.Detection {
	area, ok := Area(z, margin)
	if !ok {
		return dets
	}
	kept := make([]types.Detection, 0, len(dets))
	for _, d := range dets {
		if geometry.ContainsCenter(area, d.BBox) {
			kept = append(kept, d)
		}
	}
	return kept
}
