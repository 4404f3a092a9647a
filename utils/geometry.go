package utils

// Clamp limits v to [lo, hi]. When hi < lo, lo wins.
func Clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// ClampPosition keeps a box of size w x h with its top-left corner at (x, y)
// inside a canvas of canvasW x canvasH.
func ClampPosition(x, y, w, h, canvasW, canvasH int) (int, int) {
	return Clamp(x, 0, canvasW-w), Clamp(y, 0, canvasH-h)
}

// ClampSpan limits the interval [start, end] to [0, limit] while keeping it
// at least minLen long. anchorStart tells which edge stays put when the
// interval has to grow back to minLen.
func ClampSpan(start, end, limit, minLen int, anchorStart bool) (int, int) {
	start = Clamp(start, 0, limit)
	end = Clamp(end, 0, limit)
	if end-start >= minLen {
		return start, end
	}
	if anchorStart {
		end = start + minLen
		if end > limit {
			end = limit
			start = Clamp(end-minLen, 0, limit)
		}
		return start, end
	}
	start = end - minLen
	if start < 0 {
		start = 0
		end = Clamp(minLen, 0, limit)
	}
	return start, end
}
