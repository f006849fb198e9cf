package indicator

import "math"

// Window is a fixed-size rolling window of float64 values backed by a
// preallocated circular buffer. It keeps a running sum for O(1) means.
type Window struct {
	buf   []float64
	idx   int // next write position
	count int
	sum   float64
}

// NewWindow creates a window holding the last size values.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{buf: make([]float64, size)}
}

// Push appends v, evicting the oldest value once full.
func (w *Window) Push(v float64) {
	if w.count >= len(w.buf) {
		w.sum -= w.buf[w.idx]
	} else {
		w.count++
	}
	w.buf[w.idx] = v
	w.sum += v
	w.idx = (w.idx + 1) % len(w.buf)
}

func (w *Window) Size() int  { return len(w.buf) }
func (w *Window) Len() int   { return w.count }
func (w *Window) Full() bool { return w.count == len(w.buf) }

// At returns the i-th value in arrival order (0 is the oldest held).
func (w *Window) At(i int) float64 {
	start := 0
	if w.Full() {
		start = w.idx
	}
	return w.buf[(start+i)%len(w.buf)]
}

// Mean returns the average of the held values.
func (w *Window) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// StdDev returns the population standard deviation of the held values.
func (w *Window) StdDev() float64 {
	if w.count == 0 {
		return 0
	}
	mean := w.Mean()
	var ss float64
	for i := 0; i < w.count; i++ {
		d := w.At(i) - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(w.count))
}

// Max returns the largest held value.
func (w *Window) Max() float64 {
	m := math.Inf(-1)
	for i := 0; i < w.count; i++ {
		m = math.Max(m, w.At(i))
	}
	return m
}

// Min returns the smallest held value.
func (w *Window) Min() float64 {
	m := math.Inf(1)
	for i := 0; i < w.count; i++ {
		m = math.Min(m, w.At(i))
	}
	return m
}

// LinRegLast fits a least-squares line through the held values (x = 0..n-1)
// and returns the fitted value at the newest point.
func (w *Window) LinRegLast() float64 {
	n := float64(w.count)
	if w.count < 2 {
		return w.Mean()
	}
	var sx, sy, sxy, sxx float64
	for i := 0; i < w.count; i++ {
		x := float64(i)
		y := w.At(i)
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}
	slope := (n*sxy - sx*sy) / (n*sxx - sx*sx)
	intercept := (sy - slope*sx) / n
	return intercept + slope*(n-1)
}

// Reset empties the window.
func (w *Window) Reset() {
	for i := range w.buf {
		w.buf[i] = 0
	}
	w.idx = 0
	w.count = 0
	w.sum = 0
}
