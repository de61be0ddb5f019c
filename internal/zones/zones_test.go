package zones

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatsense/seat-monitor/pkg/types"
)

const sampleJSON = `{
  "T2": {"x1": 200, "y1": 0, "x2": 300, "y2": 100},
  "t1": {"x1": 0, "y1": 0, "x2": 100, "y2": 100},
  "B1": {"x1": 0.5, "y1": 150, "x2": 100.5, "y2": 250}
}`

func TestParseKeepsDocumentOrder(t *testing.T) {
	z, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)

	assert.Equal(t, []string{"t2", "t1", "b1"}, z.IDs())
	b1, ok := z.Get("B1")
	require.True(t, ok)
	assert.Equal(t, types.Box{X1: 0.5, Y1: 150, X2: 100.5, Y2: 250}, b1.Box)
}

func TestParseYAML(t *testing.T) {
	doc := `
a1:
  x1: 10
  y1: 10
  x2: 20
  y2: 30
a2: {x1: 30, y1: 10, x2: 40, y2: 30}
`
	z, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, z.IDs())
}

func TestParseRejectsBadGeometry(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{"inverted x", `{"t1": {"x1": 100, "y1": 0, "x2": 50, "y2": 100}}`, `seat "t1": x1`},
		{"zero height", `{"t1": {"x1": 0, "y1": 10, "x2": 50, "y2": 10}}`, `seat "t1": y1`},
		{"non numeric", `{"t3": {"x1": "left", "y1": 0, "x2": 50, "y2": 100}}`, `seat "t3": x1 is not numeric`},
		{"missing", `{"t4": {"x1": 0, "y1": 0, "x2": 50}}`, `seat "t4": missing y2`},
		{"not a mapping", `{"t5": [0, 0, 10, 10]}`, `seat "t5": coordinates must be a mapping`},
		{"duplicate after case folding", `{"T1": {"x1": 0, "y1": 0, "x2": 5, "y2": 5}, "t1": {"x1": 0, "y1": 0, "x2": 5, "y2": 5}}`, `more than once`},
		{"top level list", `[1, 2]`, `top level`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidZone)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	z, err := Parse([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, 0, z.Len())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seat_zones.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	z, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, z.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestAccessorsReturnCopies(t *testing.T) {
	z := MustNew(types.SeatZone{ID: "X", Box: types.Box{X2: 1, Y2: 1}})
	all := z.All()
	all[0].ID = "mutated"

	got, ok := z.Get("x")
	require.True(t, ok)
	assert.Equal(t, "x", got.ID)

	var nilZones *Zones
	assert.Equal(t, 0, nilZones.Len())
	assert.Nil(t, nilZones.IDs())
}
