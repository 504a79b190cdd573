package ranges

// ageBucket buckets an age in years for the adjustment table.
func ageBucket(age int) string {
	switch {
	case age < 2:
		return "infant"
	case age < 13:
		return "child"
	case age < 18:
		return "teen"
	case age >= 65:
		return "elderly"
	default:
		return "adult"
	}
}

type band struct {
	min, max float64
}

// builtinAdjustments holds reference bands for common tests where textbook
// values differ by age bucket or gender. Gender-keyed tests use lowercase
// "male"/"female"; tests that vary only with age use the "all" key. Custom
// ranges configured in the catalog always take precedence over this table.
var builtinAdjustments = map[string]map[string]map[string]band{
	"Hemoglobin": {
		"male": {
			"adult":   {13.8, 17.2},
			"child":   {11.0, 16.0},
			"elderly": {13.0, 16.8},
		},
		"female": {
			"adult":   {12.1, 15.1},
			"child":   {11.0, 16.0},
			"elderly": {11.7, 15.5},
		},
	},
	"Creatinine": {
		"male": {
			"adult":   {0.7, 1.3},
			"child":   {0.3, 0.7},
			"elderly": {0.8, 1.4},
		},
		"female": {
			"adult":   {0.6, 1.1},
			"child":   {0.3, 0.7},
			"elderly": {0.6, 1.2},
		},
	},
	"HDL Cholesterol": {
		"male": {
			"adult":   {40, 100},
			"child":   {35, 100},
			"elderly": {40, 100},
		},
		"female": {
			"adult":   {50, 100},
			"child":   {35, 100},
			"elderly": {50, 100},
		},
	},
	"Heart Rate": {
		"all": {
			"infant":  {100, 160},
			"child":   {70, 120},
			"teen":    {60, 100},
			"adult":   {60, 100},
			"elderly": {60, 100},
		},
	},
	"Blood Pressure Systolic": {
		"all": {
			"child":   {80, 110},
			"teen":    {100, 120},
			"adult":   {90, 120},
			"elderly": {90, 140},
		},
	},
}
