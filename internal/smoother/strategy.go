package smoother

import (
	"math"

	"github.com/seatsense/seat-monitor/pkg/types"
)

// strategy turns a seat's window (already holding the new raw status) into an output status.
type strategy interface {
	next(st *seatState, raw types.SeatStatus) types.SeatStatus
}

type majorityVoting struct{}

// next returns the most frequent status in the window. Ties go to whichever of the tied
// statuses appears first in the window.
func (majorityVoting) next(st *seatState, raw types.SeatStatus) types.SeatStatus {
	vals := st.history.values()
	if len(vals) < 2 {
		return raw
	}
	counts := make(map[types.SeatStatus]int, 3)
	best := 0
	for _, v := range vals {
		counts[v]++
		best = max(best, counts[v])
	}
	for _, v := range vals {
		if counts[v] == best {
			return v
		}
	}
	return raw
}

type hysteresis struct {
	threshold int
}

// next holds the last output until threshold consecutive frames disagree with it.
func (h hysteresis) next(st *seatState, raw types.SeatStatus) types.SeatStatus {
	if raw == st.lastOutput {
		st.transitions = 0
		return raw
	}
	st.transitions++
	if st.transitions >= h.threshold {
		st.transitions = 0
		return raw
	}
	return st.lastOutput
}

type exponential struct {
	alpha float64
}

// Averaging needs a number per status. The 1/2/3 ranking below exists only for this filter;
// it is an approximation, not a claim that ON-HOLD lies between OCCUPIED and EMPTY.
var (
	statusOrdinal = map[types.SeatStatus]float64{
		types.StatusOccupied: 1,
		types.StatusOnHold:   2,
		types.StatusEmpty:    3,
	}
	ordinalStatus = [...]types.SeatStatus{1: types.StatusOccupied, 2: types.StatusOnHold, 3: types.StatusEmpty}
)

func (e exponential) next(st *seatState, raw types.SeatStatus) types.SeatStatus {
	vals := st.history.values()
	if len(vals) < 2 {
		return raw
	}
	avg := weightedOrdinal(vals, e.alpha)
	ord := int(math.RoundToEven(avg))
	ord = min(max(ord, 1), 3)
	return ordinalStatus[ord]
}

// exponentialWeights returns normalised weights for n samples, oldest first. The sample i
// frames old gets alpha*(1-alpha)^i before normalisation.
func exponentialWeights(n int, alpha float64) []float64 {
	w := make([]float64, n)
	total := 0.0
	for k := range n {
		age := n - 1 - k
		w[k] = alpha * math.Pow(1-alpha, float64(age))
		total += w[k]
	}
	for k := range w {
		w[k] /= total
	}
	return w
}

func weightedOrdinal(vals []types.SeatStatus, alpha float64) float64 {
	weights := exponentialWeights(len(vals), alpha)
	sum := 0.0
	for k, v := range vals {
		ord, ok := statusOrdinal[v]
		if !ok {
			ord = statusOrdinal[types.StatusEmpty]
		}
		sum += weights[k] * ord
	}
	return sum
}
