package indicator

import "math"

// CrossUp is 1 on each bar where fast moves from at or below slow to above it.
func CrossUp(fast, slow []float64) []float64 {
	return cross(fast, slow, func(pf, ps, f, s float64) bool { return pf <= ps && f > s })
}

// CrossDown is 1 on each bar where fast moves from at or above slow to below it.
func CrossDown(fast, slow []float64) []float64 {
	return cross(fast, slow, func(pf, ps, f, s float64) bool { return pf >= ps && f < s })
}

func cross(fast, slow []float64, hit func(pf, ps, f, s float64) bool) []float64 {
	n := min(len(fast), len(slow))
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		if anyNaN(fast[i-1], slow[i-1], fast[i], slow[i]) {
			continue
		}
		if hit(fast[i-1], slow[i-1], fast[i], slow[i]) {
			out[i] = 1
		}
	}
	return out
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
