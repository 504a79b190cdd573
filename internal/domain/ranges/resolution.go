// Package ranges resolves the applicable reference range for a test result
// and classifies values against it. Resolution prefers configured custom
// ranges, then built-in age and gender adjustments, then the test type's
// base range.
package ranges

// Resolution is the outcome of a range lookup. Found is false when the test
// is unknown or carries no usable normal band from any source.
type Resolution struct {
	Found          bool     `json:"found"`
	NormalMin      *float64 `json:"normal_min,omitempty"`
	NormalMax      *float64 `json:"normal_max,omitempty"`
	CriticalLow    *float64 `json:"critical_low,omitempty"`
	CriticalHigh   *float64 `json:"critical_high,omitempty"`
	Source         string   `json:"source"`
	AgeAdjusted    bool     `json:"age_adjusted"`
	GenderAdjusted bool     `json:"gender_adjusted"`
}

const sourceNone = "No range found"
