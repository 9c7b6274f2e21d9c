package store

import (
	"math"
	"sort"
)

// PriceLine is a sparse, ordered line of price buckets for one symbol. Each
// occupied bucket holds the ids of the active triggers priced inside it.
type PriceLine struct {
	step     float64
	buckets  map[int64]*IDSet
	occupied []int64 // sorted bucket indices with at least one trigger
}

// NewPriceLine creates an empty line with buckets of width step.
func NewPriceLine(step float64) *PriceLine {
	return &PriceLine{step: step, buckets: make(map[int64]*IDSet)}
}

// Index returns the bucket index of price.
func (l *PriceLine) Index(price float64) int64 {
	return int64(math.Floor(price / l.step))
}

// Add places trigger id in the bucket of price.
func (l *PriceLine) Add(id int64, price float64) {
	idx := l.Index(price)
	bucket, ok := l.buckets[idx]
	if !ok {
		bucket = NewIDSet()
		l.buckets[idx] = bucket
		pos := sort.Search(len(l.occupied), func(i int) bool { return l.occupied[i] >= idx })
		l.occupied = append(l.occupied, 0)
		copy(l.occupied[pos+1:], l.occupied[pos:])
		l.occupied[pos] = idx
	}
	bucket.Add(id)
}

// Remove takes trigger id out of the bucket of price. Empty buckets are dropped.
func (l *PriceLine) Remove(id int64, price float64) {
	idx := l.Index(price)
	bucket, ok := l.buckets[idx]
	if !ok {
		return
	}
	bucket.Remove(id)
	if bucket.Len() > 0 {
		return
	}
	delete(l.buckets, idx)
	pos := sort.Search(len(l.occupied), func(i int) bool { return l.occupied[i] >= idx })
	if pos < len(l.occupied) && l.occupied[pos] == idx {
		l.occupied = append(l.occupied[:pos], l.occupied[pos+1:]...)
	}
}

// Bucket returns the trigger ids in bucket idx in ascending order.
func (l *PriceLine) Bucket(idx int64) []int64 {
	bucket, ok := l.buckets[idx]
	if !ok {
		return nil
	}
	return bucket.IDs()
}

// Walk visits the occupied buckets between from and to, both included, in
// the direction of travel. Only occupied buckets are touched, so a large
// jump costs no more than the buckets it actually crosses.
func (l *PriceLine) Walk(from, to int64, fn func(idx int64, ids []int64)) {
	lo, hi := from, to
	if lo > hi {
		lo, hi = hi, lo
	}
	start := sort.Search(len(l.occupied), func(i int) bool { return l.occupied[i] >= lo })
	end := sort.Search(len(l.occupied), func(i int) bool { return l.occupied[i] > hi })
	if start >= end {
		return
	}
	// copy: fn may add or drop buckets while we iterate
	span := append([]int64(nil), l.occupied[start:end]...)
	if from > to {
		for i := len(span) - 1; i >= 0; i-- {
			l.visit(span[i], fn)
		}
		return
	}
	for _, idx := range span {
		l.visit(idx, fn)
	}
}

func (l *PriceLine) visit(idx int64, fn func(int64, []int64)) {
	if bucket, ok := l.buckets[idx]; ok {
		fn(idx, bucket.IDs())
	}
}

// Len returns the number of occupied buckets.
func (l *PriceLine) Len() int {
	return len(l.occupied)
}
