package ranges

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/labrec/labrec/internal/domain/catalog"
)

// Catalog is the slice of the catalog service the resolver depends on.
// *catalog.Service satisfies it.
type Catalog interface {
	GetTestType(ctx context.Context, name string) (*catalog.TestType, error)
	ListCustomRanges(ctx context.Context, testTypeID uuid.UUID) ([]*catalog.CustomRange, error)
}

// Resolver picks the reference range that applies to a result given the
// patient's demographics.
type Resolver struct {
	catalog Catalog
}

func NewResolver(cat Catalog) *Resolver {
	return &Resolver{catalog: cat}
}

// Resolve returns the range applying to testName for a patient with the
// given (possibly unknown) age, gender, and condition. Precedence: the most
// specific matching custom range, then the built-in adjustment table, then
// the test type's base range.
func (r *Resolver) Resolve(ctx context.Context, testName string, age *int, gender, condition *string) (Resolution, error) {
	t, err := r.catalog.GetTestType(ctx, testName)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Resolution{Source: sourceNone}, nil
		}
		return Resolution{}, fmt.Errorf("resolve %q: %w", testName, err)
	}

	custom, err := r.catalog.ListCustomRanges(ctx, t.ID)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve %q: %w", testName, err)
	}
	if best := bestMatch(custom, age, gender, condition); best != nil {
		res := Resolution{
			Found:          true,
			NormalMin:      best.NormalMin,
			NormalMax:      best.NormalMax,
			CriticalLow:    coalesce(best.CriticalLow, t.CriticalLow),
			CriticalHigh:   coalesce(best.CriticalHigh, t.CriticalHigh),
			Source:         "Custom range: " + best.Label,
			AgeAdjusted:    age != nil,
			GenderAdjusted: gender != nil && *gender != "",
		}
		return res, nil
	}

	if res, ok := adjustedRange(t, testName, age, gender); ok {
		return res, nil
	}

	if !t.Configured() {
		return Resolution{
			CriticalLow:  t.CriticalLow,
			CriticalHigh: t.CriticalHigh,
			Source:       sourceNone,
		}, nil
	}
	return Resolution{
		Found:        true,
		NormalMin:    t.NormalMin,
		NormalMax:    t.NormalMax,
		CriticalLow:  t.CriticalLow,
		CriticalHigh: t.CriticalHigh,
		Source:       "Base range",
	}, nil
}

// bestMatch selects the compatible custom range with the highest specificity
// score, breaking ties by label. A constraint only disqualifies a range when
// the corresponding patient attribute is actually known.
func bestMatch(candidates []*catalog.CustomRange, age *int, gender, condition *string) *catalog.CustomRange {
	var matched []*catalog.CustomRange
	for _, cr := range candidates {
		if !cr.Active {
			continue
		}
		if age != nil {
			if cr.AgeMin != nil && *age < *cr.AgeMin {
				continue
			}
			if cr.AgeMax != nil && *age > *cr.AgeMax {
				continue
			}
		}
		if gender != nil && *gender != "" && cr.Gender != nil &&
			!strings.EqualFold(*cr.Gender, *gender) {
			continue
		}
		if condition != nil && *condition != "" && cr.ConditionName != nil &&
			!strings.EqualFold(*cr.ConditionName, *condition) {
			continue
		}
		matched = append(matched, cr)
	}
	if len(matched) == 0 {
		return nil
	}
	sort.SliceStable(matched, func(i, j int) bool {
		si, sj := matched[i].Specificity(), matched[j].Specificity()
		if si != sj {
			return si > sj
		}
		return matched[i].Label < matched[j].Label
	})
	return matched[0]
}

// adjustedRange consults the built-in table. Critical thresholds always come
// from the base test type; the table only narrows the normal band.
func adjustedRange(t *catalog.TestType, testName string, age *int, gender *string) (Resolution, bool) {
	table, ok := builtinAdjustments[testName]
	if !ok {
		return Resolution{}, false
	}

	bucket := "adult"
	ageKnown := age != nil
	if ageKnown {
		bucket = ageBucket(*age)
	}

	if gender != nil && *gender != "" {
		if byBucket, ok := table[strings.ToLower(*gender)]; ok {
			if b, ok := byBucket[bucket]; ok {
				source := fmt.Sprintf("Gender adjusted (assumed adult, %s)", strings.ToLower(*gender))
				if ageKnown {
					source = fmt.Sprintf("Age/gender adjusted (%s, %s)", bucket, strings.ToLower(*gender))
				}
				return Resolution{
					Found:          true,
					NormalMin:      &b.min,
					NormalMax:      &b.max,
					CriticalLow:    t.CriticalLow,
					CriticalHigh:   t.CriticalHigh,
					Source:         source,
					AgeAdjusted:    ageKnown,
					GenderAdjusted: true,
				}, true
			}
			return Resolution{}, false
		}
	}

	if byBucket, ok := table["all"]; ok {
		if b, ok := byBucket[bucket]; ok {
			source := "General range (assumed adult)"
			if ageKnown {
				source = fmt.Sprintf("Age adjusted (%s)", bucket)
			}
			return Resolution{
				Found:        true,
				NormalMin:    &b.min,
				NormalMax:    &b.max,
				CriticalLow:  t.CriticalLow,
				CriticalHigh: t.CriticalHigh,
				Source:       source,
				AgeAdjusted:  ageKnown,
			}, true
		}
	}
	return Resolution{}, false
}

func coalesce(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}
