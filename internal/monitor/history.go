package monitor

import "github.com/shini4i/netspeed/internal/speed"

// history is a fixed-capacity FIFO of readings; pushing onto a full buffer
// evicts the oldest entry.
type history struct {
	buf   []speed.Speed
	start int
	size  int
}

func newHistory(capacity int) *history {
	return &history{buf: make([]speed.Speed, capacity)}
}

func (h *history) push(s speed.Speed) {
	if len(h.buf) == 0 {
		return
	}
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = s
		h.size++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// items returns the readings oldest first.
func (h *history) items() []speed.Speed {
	out := make([]speed.Speed, 0, h.size)
	h.each(func(s speed.Speed) {
		out = append(out, s)
	})
	return out
}

func (h *history) each(fn func(speed.Speed)) {
	for i := 0; i < h.size; i++ {
		fn(h.buf[(h.start+i)%len(h.buf)])
	}
}

func (h *history) latest() (speed.Speed, bool) {
	if h.size == 0 {
		return speed.Speed{}, false
	}
	return h.buf[(h.start+h.size-1)%len(h.buf)], true
}

func (h *history) len() int {
	return h.size
}

func (h *history) capacity() int {
	return len(h.buf)
}

func (h *history) clear() {
	clear(h.buf)
	h.start = 0
	h.size = 0
}
