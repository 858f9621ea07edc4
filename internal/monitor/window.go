package monitor

// window keeps a bounded rolling series of metric samples.
type window struct {
	vals []float64
	max  int
}

func newWindow(max int) *window {
	if max <= 0 {
		max = 120
	}
	return &window{max: max}
}

func (w *window) push(v float64) {
	w.vals = append(w.vals, v)
	if len(w.vals) > w.max {
		w.vals = w.vals[1:]
	}
}

// trend compares the first and second half of the window. A shift of more
// than 10% either way counts as a direction.
func (w *window) trend() string {
	if len(w.vals) < 6 {
		return "insufficient_data"
	}

	mid := len(w.vals) / 2
	firstHalf := mean(w.vals[:mid])
	secondHalf := mean(w.vals[mid:])
	if firstHalf == 0 {
		return "stable"
	}

	diffPercent := (secondHalf - firstHalf) / firstHalf * 100
	switch {
	case diffPercent > 10:
		return "increasing"
	case diffPercent < -10:
		return "decreasing"
	default:
		return "stable"
	}
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var total float64
	for _, v := range vals {
		total += v
	}
	return total / float64(len(vals))
}
