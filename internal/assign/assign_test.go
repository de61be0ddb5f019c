package assign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatsense/seat-monitor/internal/zones"
	"github.com/seatsense/seat-monitor/pkg/types"
)

func det(name string, conf, x1, y1, x2, y2 float64) types.Detection {
	return types.Detection{ClassName: name, Confidence: conf, BBox: types.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}}
}

// Two seats side by side with a 20px gap: t1 = [0,100]x[0,100], t2 = [120,220]x[0,100].
func pairOfSeats() *zones.Zones {
	return zones.MustNew(
		types.SeatZone{ID: "t1", Box: types.Box{X1: 0, Y1: 0, X2: 100, Y2: 100}},
		types.SeatZone{ID: "t2", Box: types.Box{X1: 120, Y1: 0, X2: 220, Y2: 100}},
	)
}

func byID(t *testing.T, results []types.SeatAssignmentResult) map[string]types.SeatAssignmentResult {
	t.Helper()
	m := make(map[string]types.SeatAssignmentResult, len(results))
	for _, r := range results {
		m[r.SeatID] = r
	}
	return m
}

func TestAssignStatuses(t *testing.T) {
	z := zones.MustNew(
		types.SeatZone{ID: "t1", Box: types.Box{X1: 0, Y1: 0, X2: 100, Y2: 100}},
		types.SeatZone{ID: "t2", Box: types.Box{X1: 200, Y1: 0, X2: 300, Y2: 100}},
		types.SeatZone{ID: "t3", Box: types.Box{X1: 400, Y1: 0, X2: 500, Y2: 100}},
	)
	dets := []types.Detection{
		det("person", 0.9, 10, 10, 90, 90),
		det("laptop", 0.8, 220, 20, 260, 60),
	}

	results := New(DefaultConfig()).Assign(dets, z)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"t1", "t2", "t3"}, []string{results[0].SeatID, results[1].SeatID, results[2].SeatID})

	assert.Equal(t, types.StatusOccupied, results[0].Status)
	assert.Equal(t, types.ReasonPerson, results[0].Reason)
	assert.Equal(t, types.StatusOnHold, results[1].Status)
	assert.Equal(t, types.ReasonObjects, results[1].Reason)
	assert.Equal(t, types.StatusEmpty, results[2].Status)
	assert.Equal(t, types.ReasonNothing, results[2].Reason)
	assert.Empty(t, results[2].Detections)

	for _, r := range results {
		assert.Equal(t, r.Status, r.RawStatus)
	}
}

func TestPersonGoesToNearestOverlappingSeat(t *testing.T) {
	// Overlaps both seats; center (140, 50) is nearer t2's center (170, 50) than t1's (50, 50).
	dets := []types.Detection{det("person", 0.9, 80, 10, 200, 90)}

	got := byID(t, New(DefaultConfig()).Assign(dets, pairOfSeats()))
	assert.Equal(t, types.StatusEmpty, got["t1"].Status)
	assert.Equal(t, types.StatusOccupied, got["t2"].Status)
}

func TestSeatIsExclusiveToOnePerson(t *testing.T) {
	// Both persons sit over t1; the second falls through to t2 which it also overlaps.
	dets := []types.Detection{
		det("person", 0.9, 10, 10, 90, 90),
		det("person", 0.9, 20, 10, 130, 90),
	}

	got := byID(t, New(DefaultConfig()).Assign(dets, pairOfSeats()))
	assert.Equal(t, types.StatusOccupied, got["t1"].Status)
	assert.Equal(t, types.StatusOccupied, got["t2"].Status)
	assert.Len(t, got["t1"].Detections, 1)
	assert.Len(t, got["t2"].Detections, 1)
}

func TestPersonWithoutFreeSeatIsDropped(t *testing.T) {
	dets := []types.Detection{
		det("person", 0.9, 10, 10, 90, 90),
		det("person", 0.8, 20, 20, 80, 80),
	}

	got := byID(t, New(DefaultConfig()).Assign(dets, pairOfSeats()))
	assert.Len(t, got["t1"].Detections, 1)
	assert.Equal(t, 0.9, got["t1"].Detections[0].Confidence)
	assert.Equal(t, types.StatusEmpty, got["t2"].Status)
}

func TestDistanceTieGoesToFirstSeat(t *testing.T) {
	// Center (110, 50) is 60px from both seat centers.
	dets := []types.Detection{det("person", 0.9, 60, 10, 160, 90)}

	got := byID(t, New(DefaultConfig()).Assign(dets, pairOfSeats()))
	assert.Equal(t, types.StatusOccupied, got["t1"].Status)
	assert.Equal(t, types.StatusEmpty, got["t2"].Status)

	reversed := zones.MustNew(
		types.SeatZone{ID: "t2", Box: types.Box{X1: 120, Y1: 0, X2: 220, Y2: 100}},
		types.SeatZone{ID: "t1", Box: types.Box{X1: 0, Y1: 0, X2: 100, Y2: 100}},
	)
	got = byID(t, New(DefaultConfig()).Assign(dets, reversed))
	assert.Equal(t, types.StatusOccupied, got["t2"].Status, "zone order decides ties")
}

func TestPersonOrderConfidence(t *testing.T) {
	// Both persons only overlap t1. In detection order the weaker one claims it.
	dets := []types.Detection{
		det("person", 0.4, 10, 10, 90, 90),
		det("person", 0.95, 15, 15, 85, 85),
	}
	z := zones.MustNew(types.SeatZone{ID: "t1", Box: types.Box{X1: 0, Y1: 0, X2: 100, Y2: 100}})

	first := New(DefaultConfig()).Assign(dets, z)
	assert.Equal(t, 0.4, first[0].Detections[0].Confidence)

	cfg := DefaultConfig()
	cfg.PersonOrder = OrderConfidence
	byConf := New(cfg).Assign(dets, z)
	assert.Equal(t, 0.95, byConf[0].Detections[0].Confidence)
	assert.Equal(t, 0.4, dets[0].Confidence, "input slice is not reordered")
}

func TestObjectsPreferSeatsWithPerson(t *testing.T) {
	// The laptop spans the gap and overlaps both seats. t1 comes first in zone order but is
	// empty, so the occupied t2 must still win it.
	dets := []types.Detection{
		det("laptop", 0.8, 90, 40, 130, 60),
		det("person", 0.9, 130, 10, 210, 90),
	}

	got := byID(t, New(DefaultConfig()).Assign(dets, pairOfSeats()))
	assert.Equal(t, types.StatusEmpty, got["t1"].Status)
	require.Len(t, got["t2"].Detections, 2)
	assert.Equal(t, "person", got["t2"].Detections[0].ClassName)
	assert.Equal(t, "laptop", got["t2"].Detections[1].ClassName)
}

func TestObjectOverlappingTwoEmptySeatsGoesToFirst(t *testing.T) {
	dets := []types.Detection{det("backpack", 0.7, 90, 40, 130, 60)}

	got := byID(t, New(DefaultConfig()).Assign(dets, pairOfSeats()))
	assert.Equal(t, types.StatusOnHold, got["t1"].Status)
	assert.Equal(t, types.StatusEmpty, got["t2"].Status)
}

func TestNoDetectionCountedTwice(t *testing.T) {
	z := zones.MustNew(
		types.SeatZone{ID: "a", Box: types.Box{X1: 0, Y1: 0, X2: 100, Y2: 100}},
		types.SeatZone{ID: "b", Box: types.Box{X1: 50, Y1: 0, X2: 150, Y2: 100}},
		types.SeatZone{ID: "c", Box: types.Box{X1: 100, Y1: 0, X2: 200, Y2: 100}},
	)
	dets := []types.Detection{
		det("book", 0.5, 40, 10, 160, 90),
		det("cup", 0.5, 90, 10, 110, 20),
		det("person", 0.9, 110, 10, 190, 90),
		det("laptop", 0.5, 0, 0, 200, 100),
		det("bottle", 0.5, 60, 60, 70, 70),
	}

	results := New(DefaultConfig()).Assign(dets, z)
	seen := map[types.Detection]string{}
	total := 0
	for _, r := range results {
		for _, d := range r.Detections {
			prev, dup := seen[d]
			assert.False(t, dup, "%s attributed to both %s and %s", d.ClassName, prev, r.SeatID)
			seen[d] = r.SeatID
			total++
		}
	}
	assert.Equal(t, len(dets), total)
}

func TestStatusFollowsAttribution(t *testing.T) {
	z := pairOfSeats()
	frames := [][]types.Detection{
		{},
		{det("book", 0.3, 10, 10, 20, 20)},
		{det("person", 0.9, 10, 10, 90, 90), det("book", 0.3, 130, 10, 140, 20)},
		{det("person", 0.9, 300, 300, 400, 400)},
	}
	e := New(DefaultConfig())
	for _, dets := range frames {
		for _, r := range e.Assign(dets, z) {
			persons, objects := 0, 0
			for _, d := range r.Detections {
				if e.IsPrivileged(d) {
					persons++
				} else {
					objects++
				}
			}
			switch {
			case persons > 0:
				assert.Equal(t, types.StatusOccupied, r.Status)
			case objects > 0:
				assert.Equal(t, types.StatusOnHold, r.Status)
			default:
				assert.Equal(t, types.StatusEmpty, r.Status)
			}
		}
	}
}

func TestPrivilegedClassMatching(t *testing.T) {
	dets := []types.Detection{det("Person", 0.9, 10, 10, 90, 90)}
	got := New(Config{}).Assign(dets, pairOfSeats())
	assert.Equal(t, types.StatusOccupied, got[0].Status, "empty config falls back to person, case-insensitive")

	e := New(Config{PrivilegedClass: "cat"})
	got = e.Assign(dets, pairOfSeats())
	assert.Equal(t, types.StatusOnHold, got[0].Status)
	assert.Equal(t, "cat", e.Config().PrivilegedClass)
}

func TestDegenerateDetectionsAreIgnored(t *testing.T) {
	dets := []types.Detection{
		det("person", 0.9, 50, 50, 50, 50),
		det("laptop", 0.9, 60, 60, 40, 40),
	}
	for _, r := range New(DefaultConfig()).Assign(dets, pairOfSeats()) {
		assert.Equal(t, types.StatusEmpty, r.Status)
	}
}

func TestAssignWithoutZones(t *testing.T) {
	assert.Empty(t, New(DefaultConfig()).Assign([]types.Detection{det("person", 1, 0, 0, 1, 1)}, zones.MustNew()))
}

func TestParsePersonOrder(t *testing.T) {
	o, err := ParsePersonOrder("Confidence")
	require.NoError(t, err)
	assert.Equal(t, OrderConfidence, o)
	assert.Equal(t, "confidence", o.String())

	o, err = ParsePersonOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderDetection, o)

	_, err = ParsePersonOrder("random")
	assert.Error(t, err)
}
