// Package zones loads and holds the seat zone geometry for a monitoring session.
package zones

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seatsense/seat-monitor/pkg/types"
)

// ErrInvalidZone is wrapped by every geometry validation failure.
var ErrInvalidZone = errors.New("invalid seat zone")

// Zones is an immutable, ordered set of seat zones. Iteration order is configuration order
// and is the order every first-found tie-break in seat assignment relies on.
type Zones struct {
	zones []types.SeatZone
	index map[string]int
}

// New validates the given zones and returns them as a set. Seat ids are lowercased.
func New(zones ...types.SeatZone) (*Zones, error) {
	z := &Zones{
		zones: make([]types.SeatZone, 0, len(zones)),
		index: make(map[string]int, len(zones)),
	}
	for _, sz := range zones {
		id := NormalizeID(sz.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: empty seat id", ErrInvalidZone)
		}
		if _, dup := z.index[id]; dup {
			return nil, fmt.Errorf("%w: seat %q defined more than once", ErrInvalidZone, id)
		}
		if err := validateBox(id, sz.Box); err != nil {
			return nil, err
		}
		z.index[id] = len(z.zones)
		z.zones = append(z.zones, types.SeatZone{ID: id, Box: sz.Box})
	}
	return z, nil
}

// MustNew is New for tests and static configuration; it panics on invalid geometry.
func MustNew(zones ...types.SeatZone) *Zones {
	z, err := New(zones...)
	if err != nil {
		panic(err)
	}
	return z
}

// NormalizeID returns the canonical (lowercase, trimmed) form of a seat id.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func validateBox(id string, b types.Box) error {
	if b.X1 >= b.X2 {
		return fmt.Errorf("%w: seat %q: x1 (%g) must be less than x2 (%g)", ErrInvalidZone, id, b.X1, b.X2)
	}
	if b.Y1 >= b.Y2 {
		return fmt.Errorf("%w: seat %q: y1 (%g) must be less than y2 (%g)", ErrInvalidZone, id, b.Y1, b.Y2)
	}
	return nil
}

// Len returns the number of seats.
func (z *Zones) Len() int {
	if z == nil {
		return 0
	}
	return len(z.zones)
}

// All returns a copy of the zones in configuration order.
func (z *Zones) All() []types.SeatZone {
	if z == nil {
		return nil
	}
	out := make([]types.SeatZone, len(z.zones))
	copy(out, z.zones)
	return out
}

// IDs returns the seat ids in configuration order.
func (z *Zones) IDs() []string {
	if z == nil {
		return nil
	}
	ids := make([]string, len(z.zones))
	for i, sz := range z.zones {
		ids[i] = sz.ID
	}
	return ids
}

// Boxes returns the zone rectangles in configuration order.
func (z *Zones) Boxes() []types.Box {
	if z == nil {
		return nil
	}
	boxes := make([]types.Box, len(z.zones))
	for i, sz := range z.zones {
		boxes[i] = sz.Box
	}
	return boxes
}

// Get looks a zone up by id, ignoring case.
func (z *Zones) Get(id string) (types.SeatZone, bool) {
	if z == nil {
		return types.SeatZone{}, false
	}
	i, ok := z.index[NormalizeID(id)]
	if !ok {
		return types.SeatZone{}, false
	}
	return z.zones[i], true
}

// Load reads a seat zone file. Both JSON and YAML are accepted:
//
//	{"T1": {"x1": 10, "y1": 20, "x2": 110, "y2": 140}, ...}
func Load(path string) (*Zones, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seat zones %s: %w", path, err)
	}
	z, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return z, nil
}

// Parse decodes a seat zone document, keeping the seats in document order.
func Parse(data []byte) (*Zones, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidZone, err)
	}
	if len(doc.Content) == 0 {
		return New()
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping of seat id to coordinates", ErrInvalidZone)
	}

	var parsed []types.SeatZone
	for i := 0; i+1 < len(root.Content); i += 2 {
		id := root.Content[i].Value
		b, err := parseBox(id, root.Content[i+1])
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, types.SeatZone{ID: id, Box: b})
	}
	return New(parsed...)
}

func parseBox(id string, node *yaml.Node) (types.Box, error) {
	if node.Kind != yaml.MappingNode {
		return types.Box{}, fmt.Errorf("%w: seat %q: coordinates must be a mapping with x1, y1, x2, y2", ErrInvalidZone, id)
	}
	coords := make(map[string]float64, 4)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := strings.ToLower(node.Content[i].Value)
		val := node.Content[i+1]
		if val.Kind != yaml.ScalarNode || (val.ShortTag() != "!!int" && val.ShortTag() != "!!float") {
			return types.Box{}, fmt.Errorf("%w: seat %q: %s is not numeric (%q)", ErrInvalidZone, id, key, val.Value)
		}
		f, err := strconv.ParseFloat(val.Value, 64)
		if err != nil {
			return types.Box{}, fmt.Errorf("%w: seat %q: %s: %v", ErrInvalidZone, id, key, err)
		}
		coords[key] = f
	}
	for _, k := range []string{"x1", "y1", "x2", "y2"} {
		if _, ok := coords[k]; !ok {
			return types.Box{}, fmt.Errorf("%w: seat %q: missing %s", ErrInvalidZone, id, k)
		}
	}
	return types.Box{X1: coords["x1"], Y1: coords["y1"], X2: coords["x2"], Y2: coords["y2"]}, nil
}
