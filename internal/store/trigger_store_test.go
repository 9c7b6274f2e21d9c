package store

import (
	"testing"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceLine_Index(t *testing.T) {
	l := NewPriceLine(0.5)
	tests := []struct {
		price float64
		want  int64
	}{
		{0, 0},
		{0.49, 0},
		{0.5, 1},
		{3, 6},
		{3.74, 7},
		{-0.25, -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, l.Index(tt.price), "price %v", tt.price)
	}
}

func TestPriceLine_Walk(t *testing.T) {
	l := NewPriceLine(1)
	l.Add(1, 2.2)
	l.Add(2, 5.1)
	l.Add(3, 5.9)
	l.Add(4, 9)

	collect := func(from, to int64) []int64 {
		var got []int64
		l.Walk(from, to, func(_ int64, ids []int64) { got = append(got, ids...) })
		return got
	}

	assert.Equal(t, []int64{1, 2, 3}, collect(2, 5), "upward, both ends included")
	assert.Equal(t, []int64{2, 3, 1}, collect(5, 2), "downward visits buckets top first")
	assert.Equal(t, []int64{2, 3}, collect(5, 5))
	assert.Empty(t, collect(6, 8))

	l.Remove(2, 5.1)
	l.Remove(3, 5.9)
	assert.Equal(t, 2, l.Len(), "empty buckets are dropped")
	assert.Nil(t, l.Bucket(5))
}

func newTestTrigger(t *testing.T, s *TriggerStore, positionID int64, label domain.TriggerLabel, price float64) *domain.Trigger {
	t.Helper()
	trig, err := s.Create(TriggerCreateParams{
		Symbol:     "AAPL",
		Price:      price,
		Type:       domain.TouchFromAbove,
		Label:      label,
		PositionID: positionID,
	})
	require.NoError(t, err)
	return trig
}

func visited(s *TriggerStore, symbol string, from, to int64) []int64 {
	var ids []int64
	s.VisitBuckets(symbol, from, to, func(t *domain.Trigger) { ids = append(ids, t.ID) })
	return ids
}

func TestTriggerStore_CreateAndIndex(t *testing.T) {
	s := NewTriggerStore(0.5)
	sl := newTestTrigger(t, s, 1, domain.LabelStopLoss, 3)
	tp := newTestTrigger(t, s, 1, domain.LabelTakeProfit, 12)

	assert.True(t, sl.IsActive)
	assert.True(t, sl.RemoveAfterTrigger)
	assert.Equal(t, domain.CategoryPosition, sl.Category)

	labels := s.LabelsFor(1)
	assert.Len(t, labels, 2)
	assert.Same(t, sl, labels[domain.LabelStopLoss])
	assert.Same(t, tp, labels[domain.LabelTakeProfit])

	assert.Equal(t, []int64{1}, s.ActivePositionIDs("AAPL"))
	assert.Len(t, s.BySymbolType("AAPL", domain.TouchFromAbove), 2)
	assert.Len(t, s.BySymbolType("", ""), 2)
	assert.Empty(t, s.BySymbolType("TSLA", ""))

	_, err := s.Create(TriggerCreateParams{
		Symbol: "AAPL", Price: 4, Type: domain.TouchFromAbove, Label: domain.LabelStopLoss, PositionID: 1,
	})
	assert.ErrorIs(t, err, ports.ErrInvariantViolation)

	// mutating the returned label map does not touch the index
	delete(labels, domain.LabelStopLoss)
	assert.Len(t, s.LabelsFor(1), 2)
}

func TestTriggerStore_UpdatePriceMovesBucket(t *testing.T) {
	s := NewTriggerStore(0.5)
	trig := newTestTrigger(t, s, 1, domain.LabelTrailingStop, 1)
	from := s.BucketIndex(1)
	to := s.BucketIndex(6)

	assert.Equal(t, []int64{trig.ID}, visited(s, "AAPL", from, from))

	_, err := s.UpdatePrice(trig.ID, 6)
	require.NoError(t, err)
	assert.Empty(t, visited(s, "AAPL", from, from))
	assert.Equal(t, []int64{trig.ID}, visited(s, "AAPL", to, to))
	assert.Equal(t, 6.0, trig.Price)
}

func TestTriggerStore_Deactivate(t *testing.T) {
	s := NewTriggerStore(0.5)
	sl := newTestTrigger(t, s, 1, domain.LabelStopLoss, 3)
	tp := newTestTrigger(t, s, 1, domain.LabelTakeProfit, 12)
	other := newTestTrigger(t, s, 2, domain.LabelStopLoss, 3)

	require.NoError(t, s.Deactivate(sl.ID))
	assert.False(t, sl.IsActive)
	assert.NotContains(t, s.LabelsFor(1), domain.LabelStopLoss)
	assert.Same(t, sl, s.InactiveLabelsFor(1)[domain.LabelStopLoss])
	assert.Equal(t, []int64{other.ID}, visited(s, "AAPL", s.BucketIndex(3), s.BucketIndex(3)))

	// a fresh trigger may reuse the label once the old one is inactive
	again := newTestTrigger(t, s, 1, domain.LabelStopLoss, 2)
	require.NoError(t, s.DeactivateForPosition(1))
	assert.Empty(t, s.LabelsFor(1))
	assert.False(t, tp.IsActive)
	assert.False(t, again.IsActive)
	assert.Equal(t, []int64{2}, s.ActivePositionIDs("AAPL"))

	got, err := s.Get(sl.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.True(t, s.Remove(sl.ID))
	_, err = s.Get(sl.ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)
	assert.Same(t, again, s.InactiveLabelsFor(1)[domain.LabelStopLoss])
}

func TestTriggerStore_RecordHit(t *testing.T) {
	s := NewTriggerStore(0)
	assert.Equal(t, DefaultPriceStep, s.Step())

	trig := newTestTrigger(t, s, 1, domain.LabelStopLoss, 3)
	bar := domain.Bar{Time: 10, Open: 4, High: 5, Low: 2, Close: 3}
	_, err := s.RecordHit(trig.ID, bar, 3)
	require.NoError(t, err)

	require.NotNil(t, trig.LastTriggerBar)
	assert.Equal(t, bar, *trig.LastTriggerBar)
	assert.Equal(t, 3.0, trig.LastExecutionPrice)
}
