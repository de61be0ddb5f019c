package zonefilter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seatsense/seat-monitor/internal/zones"
	"github.com/seatsense/seat-monitor/pkg/types"
)

func det(name string, x1, y1, x2, y2 float64) types.Detection {
	return types.Detection{ClassName: name, Confidence: 0.9, BBox: types.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}}
}

func testZones() *zones.Zones {
	return zones.MustNew(
		types.SeatZone{ID: "t1", Box: types.Box{X1: 200, Y1: 200, X2: 300, Y2: 300}},
		types.SeatZone{ID: "t2", Box: types.Box{X1: 400, Y1: 200, X2: 500, Y2: 300}},
	)
}

func TestArea(t *testing.T) {
	area, ok := Area(testZones(), DefaultMargin)
	assert.True(t, ok)
	assert.Equal(t, types.Box{X1: 100, Y1: 100, X2: 600, Y2: 400}, area)

	_, ok = Area(zones.MustNew(), DefaultMargin)
	assert.False(t, ok)
}

func TestFilter(t *testing.T) {
	dets := []types.Detection{
		det("laptop", 220, 220, 260, 260), // inside a seat
		det("book", 320, 120, 380, 180),   // between seats, inside margin
		det("bottle", 700, 700, 720, 720), // background
		det("person", 580, 380, 620, 420), // center exactly on the corner (600, 400)
		det("person", 590, 390, 630, 430), // center just outside (610, 410)
		det("backpack", 0, 0, 10, 10),     // far away
	}

	kept := Filter(dets, testZones(), DefaultMargin)

	var names []string
	for _, d := range kept {
		names = append(names, d.ClassName)
	}
	assert.Equal(t, []string{"laptop", "book", "person"}, names)
	assert.Equal(t, 600.0, (kept[2].BBox.X1+kept[2].BBox.X2)/2, "boundary detection is retained")
}

func TestFilterBoundaryIsInclusive(t *testing.T) {
	// Expanded area is x ∈ [100, 600]; a box centred at x=100 exactly must survive.
	onEdge := det("cup", 90, 240, 110, 260)
	kept := Filter([]types.Detection{onEdge}, testZones(), DefaultMargin)
	assert.Len(t, kept, 1)
}

func TestFilterWithoutZonesReturnsInput(t *testing.T) {
	dets := []types.Detection{det("bottle", 5000, 5000, 5001, 5001)}
	assert.Equal(t, dets, Filter(dets, zones.MustNew(), DefaultMargin))
	assert.Equal(t, dets, Filter(dets, nil, DefaultMargin))
}

func TestFilterZeroMargin(t *testing.T) {
	dets := []types.Detection{det("book", 120, 120, 180, 180)}
	assert.Empty(t, Filter(dets, testZones(), 0))
}
