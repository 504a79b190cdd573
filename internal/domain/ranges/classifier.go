package ranges

// Status classifies a test value against its resolved range.
type Status string

const (
	StatusUndefined    Status = "undefined"
	StatusCriticalLow  Status = "critical_low"
	StatusLow          Status = "low"
	StatusNormal       Status = "normal"
	StatusHigh         Status = "high"
	StatusCriticalHigh Status = "critical_high"
)

// Normal reports whether the status needs no attention.
func (s Status) Normal() bool { return s == StatusNormal }

// DefaultCriticalMargin is the fraction of the normal band width added
// beyond a bound to derive a critical threshold when none is configured.
const DefaultCriticalMargin = 0.3

// Classifier turns values into statuses. The zero value is not usable; use
// NewClassifier.
type Classifier struct {
	margin float64
}

// NewClassifier creates a classifier deriving missing critical thresholds at
// the given margin. margin <= 0 falls back to DefaultCriticalMargin.
func NewClassifier(margin float64) *Classifier {
	if margin <= 0 {
		margin = DefaultCriticalMargin
	}
	return &Classifier{margin: margin}
}

// Classify applies the resolved range to a value. Values exactly on a normal
// bound are normal; critical checks run first and their bounds are
// inclusive. A missing critical threshold is derived per side from the
// normal band width, while an explicitly configured side is kept as is.
func (c *Classifier) Classify(value float64, res Resolution) Status {
	if !res.Found || res.NormalMin == nil || res.NormalMax == nil {
		return StatusUndefined
	}
	min, max := *res.NormalMin, *res.NormalMax
	width := max - min

	criticalLow := min - width*c.margin
	if res.CriticalLow != nil {
		criticalLow = *res.CriticalLow
	}
	criticalHigh := max + width*c.margin
	if res.CriticalHigh != nil {
		criticalHigh = *res.CriticalHigh
	}

	switch {
	case value >= criticalHigh:
		return StatusCriticalHigh
	case value <= criticalLow:
		return StatusCriticalLow
	case value > max:
		return StatusHigh
	case value < min:
		return StatusLow
	default:
		return StatusNormal
	}
}
