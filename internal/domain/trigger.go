package domain

// TriggerType is the hit test applied to a bar.
type TriggerType string

const (
	CrossAbove     TriggerType = "crossAbove"     // close > price
	CrossBelow     TriggerType = "crossBelow"     // close < price
	TouchFromAbove TriggerType = "touchFromAbove" // low <= price
	TouchFromBelow TriggerType = "touchFromBelow" // high >= price
	Immediate      TriggerType = "immediate"      // always
)

// IsUpper reports whether the trigger fires on prices moving up through it.
func (t TriggerType) IsUpper() bool {
	return t == TouchFromBelow || t == CrossAbove
}

// IsLower reports whether the trigger fires on prices moving down through it.
func (t TriggerType) IsLower() bool {
	return t == TouchFromAbove || t == CrossBelow
}

// TriggerLabel identifies the role of a trigger for its owning position.
type TriggerLabel string

const (
	LabelEntryMarket      TriggerLabel = "entryMarket"
	LabelEntryLimit       TriggerLabel = "entryLimit"
	LabelEntryStop        TriggerLabel = "entryStop"
	LabelStopLoss         TriggerLabel = "stopLoss"
	LabelTakeProfit       TriggerLabel = "takeProfit"
	LabelTrailingStop     TriggerLabel = "trailingStop"
	LabelPullTrailingStop TriggerLabel = "pullTrailingStop"
	LabelCloseMarket      TriggerLabel = "closeMarket"
)

// IsEntry reports whether the label opens a position.
func (l TriggerLabel) IsEntry() bool {
	return l == LabelEntryMarket || l == LabelEntryLimit || l == LabelEntryStop
}

// TriggerCategory groups triggers by what owns them.
type TriggerCategory string

const (
	CategoryPosition TriggerCategory = "position"
)

// Trigger is a standing conditional rule evaluated against each new bar.
type Trigger struct {
	ID                 int64
	Category           TriggerCategory
	Symbol             string
	Price              float64
	Type               TriggerType
	PositionID         int64 // 0 when not owned by a position
	Label              TriggerLabel
	ExpirationTime     int64 // Unix ms, 0 = never
	RemoveAfterTrigger bool
	IsActive           bool

	LastTriggerBar     *Bar
	LastExecutionPrice float64
}

// IsExpired reports whether the trigger has expired at the given bar time.
func (t *Trigger) IsExpired(at int64) bool {
	return t.ExpirationTime != 0 && at >= t.ExpirationTime
}

// Hit applies the trigger's hit test to bar.
func (t *Trigger) Hit(bar Bar) bool {
	switch t.Type {
	case Immediate:
		return true
	case TouchFromAbove:
		return bar.Low <= t.Price
	case TouchFromBelow:
		return bar.High >= t.Price
	case CrossAbove:
		return bar.Close > t.Price
	case CrossBelow:
		return bar.Close < t.Price
	default:
		return false
	}
}

// LabelMap maps the active labels of one position to their triggers.
type LabelMap map[TriggerLabel]*Trigger
