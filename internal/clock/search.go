package clock

import (
	"fmt"
	"sort"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
)

// DefaultMaxSearchIterations bounds the bisection in IndexNearTime.
const DefaultMaxSearchIterations = 200

// IndexNearTime returns the index of the bar whose time is closest to t.
// Times before the series map to 0 and times after it to the last index. On
// equal distance the earlier bar wins. A series that does not converge
// within maxIter bisection steps is treated as corrupt.
func IndexNearTime(bars []domain.Bar, t int64, maxIter int) (int, error) {
	return nearIndex(len(bars), func(i int) int64 { return bars[i].Time }, t, maxIter)
}

func nearIndex(n int, timeAt func(int) int64, t int64, maxIter int) (int, error) {
	if n == 0 {
		return 0, fmt.Errorf("nearest index for time %d in empty series: %w", t, ports.ErrNotFound)
	}
	if maxIter <= 0 {
		maxIter = DefaultMaxSearchIterations
	}
	if t < timeAt(0) {
		return 0, nil
	}
	if t > timeAt(n-1) {
		return n - 1, nil
	}

	left, right := 0, n-1
	for i := 0; i < maxIter; i++ {
		span := right - left
		mid := left + span/2
		if span <= 1 {
			if timeAt(left) == t || span == 0 {
				return left, nil
			}
			if t-timeAt(left) > timeAt(right)-t {
				return right, nil
			}
			return left, nil
		}
		switch midTime := timeAt(mid); {
		case midTime > t:
			right = mid
		case midTime < t:
			left = mid
		default:
			return mid, nil
		}
	}
	return 0, fmt.Errorf("nearest index for time %d after %d iterations: %w", t, maxIter, ports.ErrIndexSearchExhausted)
}

// IndexAtTime returns the index of the bar with exactly time t.
func IndexAtTime(bars []domain.Bar, t int64) (int, bool) {
	i := sort.Search(len(bars), func(i int) bool { return bars[i].Time >= t })
	if i < len(bars) && bars[i].Time == t {
		return i, true
	}
	return 0, false
}
