package pipeline

import (
	"strings"

	"github.com/seatsense/seat-monitor/pkg/types"
)

// DefaultThreshold applies to classes without an entry in the threshold table.
const DefaultThreshold = 0.25

// DefaultClassThresholds returns the stock per-class minimum confidences.
func DefaultClassThresholds() map[string]float64 {
	return map[string]float64{
		"person":     0.30,
		"backpack":   0.25,
		"laptop":     0.25,
		"book":       0.10,
		"cell phone": 0.25,
		"bottle":     0.30,
		"cup":        0.30,
	}
}

// DefaultAllowedClasses returns the classes tracked out of the box.
func DefaultAllowedClasses() []string {
	return []string{"person", "backpack", "laptop", "book"}
}

func classKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// classFilter drops low-confidence and untracked detections before any geometry runs.
type classFilter struct {
	thresholds map[string]float64
	fallback   float64
	allowed    map[string]struct{} // nil means every class
}

func newClassFilter(thresholds map[string]float64, fallback float64, allowed []string) classFilter {
	f := classFilter{fallback: fallback}
	if len(thresholds) > 0 {
		f.thresholds = make(map[string]float64, len(thresholds))
		for k, v := range thresholds {
			f.thresholds[classKey(k)] = v
		}
	}
	if len(allowed) > 0 {
		f.allowed = make(map[string]struct{}, len(allowed))
		for _, c := range allowed {
			f.allowed[classKey(c)] = struct{}{}
		}
	}
	return f
}

func (f classFilter) threshold(class string) float64 {
	if t, ok := f.thresholds[class]; ok {
		return t
	}
	return f.fallback
}

func (f classFilter) apply(dets []types.Detection) []types.Detection {
	kept := make([]types.Detection, 0, len(dets))
	for _, d := range dets {
		class := classKey(d.ClassName)
		if f.allowed != nil {
			if _, ok := f.allowed[class]; !ok {
				continue
			}
		}
		if d.Confidence < f.threshold(class) {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}
