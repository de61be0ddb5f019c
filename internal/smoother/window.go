package smoother

import "github.com/seatsense/seat-monitor/pkg/types"

// window is a bounded FIFO of raw statuses; pushing onto a full window drops the oldest.
type window struct {
	buf   []types.SeatStatus
	start int
	n     int
}

func newWindow(size int) *window {
	return &window{buf: make([]types.SeatStatus, size)}
}

func (w *window) push(s types.SeatStatus) {
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = s
		w.n++
		return
	}
	w.buf[w.start] = s
	w.start = (w.start + 1) % len(w.buf)
}

func (w *window) len() int { return w.n }

// values returns the statuses oldest first.
func (w *window) values() []types.SeatStatus {
	out := make([]types.SeatStatus, w.n)
	for i := range w.n {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

func (w *window) last() types.SeatStatus {
	if w.n == 0 {
		return ""
	}
	return w.buf[(w.start+w.n-1)%len(w.buf)]
}
