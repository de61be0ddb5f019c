// Package assign maps one frame's detections onto seat zones and derives a raw status per seat.
//
// Persons are placed first, each on the nearest unclaimed seat it overlaps. Objects are then
// handed out in two passes: seats that received a person claim overlapping objects before
// empty seats do. All tie-breaks resolve to the earliest seat in zone order.
package assign

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/seatsense/seat-monitor/internal/geometry"
	"github.com/seatsense/seat-monitor/internal/zones"
	"github.com/seatsense/seat-monitor/pkg/types"
)

// DefaultPrivilegedClass is the class whose presence marks a seat occupied.
const DefaultPrivilegedClass = "person"

// PersonOrder decides the order in which person detections pick their seat.
type PersonOrder int

const (
	// OrderDetection processes persons in the order the detector reported them.
	OrderDetection PersonOrder = iota
	// OrderConfidence processes the most confident persons first (stable for equal scores).
	OrderConfidence
)

func (o PersonOrder) String() string {
	switch o {
	case OrderConfidence:
		return "confidence"
	default:
		return "detection"
	}
}

// ParsePersonOrder parses "detection" or "confidence".
func ParsePersonOrder(s string) (PersonOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "detection":
		return OrderDetection, nil
	case "confidence":
		return OrderConfidence, nil
	default:
		return OrderDetection, fmt.Errorf("unknown person order %q (want detection or confidence)", s)
	}
}

// Config holds the assignment policy.
type Config struct {
	PrivilegedClass string
	PersonOrder     PersonOrder
}

// DefaultConfig returns the stock policy.
func DefaultConfig() Config {
	return Config{
		PrivilegedClass: DefaultPrivilegedClass,
		PersonOrder:     OrderDetection,
	}
}

// Engine performs seat assignment. It holds no per-frame state and is safe for concurrent use.
type Engine struct {
	cfg Config
}

// New returns an engine for cfg. An empty privileged class falls back to DefaultPrivilegedClass.
func New(cfg Config) *Engine {
	if strings.TrimSpace(cfg.PrivilegedClass) == "" {
		cfg.PrivilegedClass = DefaultPrivilegedClass
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine's policy.
func (e *Engine) Config() Config {
	return e.cfg
}

// IsPrivileged reports whether d belongs to the privileged (person) class. Class names are
// compared case-insensitively.
func (e *Engine) IsPrivileged(d types.Detection) bool {
	return strings.EqualFold(strings.TrimSpace(d.ClassName), e.cfg.PrivilegedClass)
}

// Assign distributes dets over the zones and returns one result per seat in zone order.
// dets should already have passed the zone filter.
func (e *Engine) Assign(dets []types.Detection, z *zones.Zones) []types.SeatAssignmentResult {
	seats := z.All()

	var persons, objects []types.Detection
	for _, d := range dets {
		if e.IsPrivileged(d) {
			persons = append(persons, d)
		} else {
			objects = append(objects, d)
		}
	}
	if e.cfg.PersonOrder == OrderConfidence {
		sort.SliceStable(persons, func(i, j int) bool {
			return persons[i].Confidence > persons[j].Confidence
		})
	}

	seatPersons := assignPersons(persons, seats)
	seatObjects := assignObjects(objects, seats, seatPersons)

	results := make([]types.SeatAssignmentResult, len(seats))
	for i, seat := range seats {
		attributed := make([]types.Detection, 0, len(seatPersons[i])+len(seatObjects[i]))
		attributed = append(attributed, seatPersons[i]...)
		attributed = append(attributed, seatObjects[i]...)

		status, reason := derive(len(seatPersons[i]), len(seatObjects[i]))
		results[i] = types.SeatAssignmentResult{
			SeatID:     seat.ID,
			Status:     status,
			RawStatus:  status,
			Detections: attributed,
			Reason:     reason,
		}
	}
	return results
}

// assignPersons gives each person the nearest unclaimed seat it overlaps. A seat holds at
// most one person; persons with no eligible seat are dropped.
func assignPersons(persons []types.Detection, seats []types.SeatZone) [][]types.Detection {
	out := make([][]types.Detection, len(seats))
	centers := make([]geometry.Point, len(seats))
	for i, s := range seats {
		centers[i] = geometry.Center(s.Box)
	}
	claimed := make([]bool, len(seats))

	for _, p := range persons {
		pc := geometry.Center(p.BBox)
		best, bestDist := -1, math.Inf(1)
		for i, s := range seats {
			if claimed[i] || !geometry.OverlapsAny(p.BBox, s.Box) {
				continue
			}
			// strict comparison: the first seat found wins a tie
			if d := geometry.Distance(pc, centers[i]); d < bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			out[best] = append(out[best], p)
			claimed[best] = true
		}
	}
	return out
}

// assignObjects hands every object to at most one overlapping seat, letting seats with a
// person choose first.
func assignObjects(objects []types.Detection, seats []types.SeatZone, seatPersons [][]types.Detection) [][]types.Detection {
	out := make([][]types.Detection, len(seats))
	taken := make([]bool, len(objects))

	pass := func(withPerson bool) {
		for i, s := range seats {
			if (len(seatPersons[i]) > 0) != withPerson {
				continue
			}
			for j, o := range objects {
				if taken[j] || !geometry.OverlapsAny(o.BBox, s.Box) {
					continue
				}
				out[i] = append(out[i], o)
				taken[j] = true
			}
		}
	}
	pass(true)
	pass(false)
	return out
}

func derive(persons, objects int) (types.SeatStatus, string) {
	switch {
	case persons > 0:
		return types.StatusOccupied, types.ReasonPerson
	case objects > 0:
		return types.StatusOnHold, types.ReasonObjects
	default:
		return types.StatusEmpty, types.ReasonNothing
	}
}
