package importer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labrec/labrec/internal/domain/catalog"
	"github.com/labrec/labrec/internal/domain/patient"
	"github.com/labrec/labrec/internal/domain/result"
)

type fakeCatalog struct {
	byName map[string]*catalog.TestType
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{byName: map[string]*catalog.TestType{}}
}

func (f *fakeCatalog) FindTestTypeFold(_ context.Context, name string) (*catalog.TestType, error) {
	t, ok := f.byName[strings.ToLower(name)]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return t, nil
}

func (f *fakeCatalog) CreateTestType(_ context.Context, t *catalog.TestType) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	f.byName[strings.ToLower(t.Name)] = t
	return nil
}

type fakePatients struct {
	byID map[string]*patient.Patient
}

func newFakePatients() *fakePatients {
	return &fakePatients{byID: map[string]*patient.Patient{}}
}

func (f *fakePatients) Get(_ context.Context, id string) (*patient.Patient, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

func (f *fakePatients) Create(_ context.Context, p *patient.Patient) error {
	f.byID[p.ID] = p
	return nil
}

// fakeIngestor mimics the ingestion gate's exact-duplicate behavior.
type fakeIngestor struct {
	seen map[string]bool
}

func newFakeIngestor() *fakeIngestor {
	return &fakeIngestor{seen: map[string]bool{}}
}

func (f *fakeIngestor) Ingest(_ context.Context, c result.Candidate, checkDuplicates bool) (result.Outcome, error) {
	key := fmt.Sprintf("%s|%s|%g|%s", c.PatientID, c.TestTypeID, c.Value, c.TestDate)
	if f.seen[key] {
		return result.Outcome{Reason: result.ReasonDuplicate}, nil
	}
	f.seen[key] = true
	return result.Outcome{Accepted: true, Result: &result.TestResult{ID: uuid.New()}}, nil
}

func newTestImporter() (*Importer, *fakeCatalog, *fakePatients, *fakeIngestor) {
	cat := newFakeCatalog()
	pats := newFakePatients()
	ing := newFakeIngestor()
	return New(cat, pats, ing, zerolog.Nop()), cat, pats, ing
}

const standardCSV = `patient_id,test_name,test_value,test_date,age,gender
P-1,Hemoglobin,14.2,2026-03-01,45,F
P-1,Glucose,95.5,2026-03-01,45,F
P-2,Hemoglobin,11.8,2026-03-02,70,M
`

func TestImportCSV_CreatesEverything(t *testing.T) {
	imp, cat, pats, _ := newTestImporter()

	stats, err := imp.ImportCSV(context.Background(), strings.NewReader(standardCSV), true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Added != 3 || stats.Errored != 0 || stats.DuplicatesSkipped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.PatientsAdded != 2 || stats.TestTypesAdded != 2 {
		t.Fatalf("expected 2 patients and 2 test types created: %+v", stats)
	}

	p, err := pats.Get(context.Background(), "P-1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Gender == nil || *p.Gender != "female" {
		t.Fatalf("gender should normalize to female: %+v", p)
	}
	if p.DateOfBirth == nil {
		t.Fatal("age should approximate a date of birth")
	}

	tt, err := cat.FindTestTypeFold(context.Background(), "hemoglobin")
	if err != nil {
		t.Fatal(err)
	}
	if tt.Configured() {
		t.Fatal("auto-created test types should start unconfigured")
	}
}

func TestImportCSV_SameFileTwiceAllDuplicates(t *testing.T) {
	imp, _, _, _ := newTestImporter()
	ctx := context.Background()

	first, err := imp.ImportCSV(ctx, strings.NewReader(standardCSV), true)
	if err != nil {
		t.Fatal(err)
	}
	if first.Added != 3 {
		t.Fatalf("first run should add 3, got %+v", first)
	}

	second, err := imp.ImportCSV(ctx, strings.NewReader(standardCSV), true)
	if err != nil {
		t.Fatal(err)
	}
	if second.Added != 0 || second.DuplicatesSkipped != 3 {
		t.Fatalf("second run should skip everything: %+v", second)
	}
}

func TestImportCSV_AliasedHeaders(t *testing.T) {
	imp, _, _, _ := newTestImporter()
	csv := `Patient ID,Test,Result,Date
P-9,Sodium,140,15/01/2026
`
	stats, err := imp.ImportCSV(context.Background(), strings.NewReader(csv), true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Added != 1 {
		t.Fatalf("aliased headers should import: %+v", stats)
	}
}

func TestImportCSV_UnparseableDateIsRowError(t *testing.T) {
	imp, _, _, _ := newTestImporter()
	csv := `patient_id,test_name,test_value,test_date
P-1,Hemoglobin,14.2,sometime last week
P-1,Glucose,95.5,2026-03-01
`
	stats, err := imp.ImportCSV(context.Background(), strings.NewReader(csv), true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Added != 1 || stats.Errored != 1 {
		t.Fatalf("bad date should error its row only: %+v", stats)
	}
	if len(stats.Errors) != 1 || !strings.Contains(stats.Errors[0], "unparseable date") {
		t.Fatalf("unexpected errors: %v", stats.Errors)
	}
}

func TestImportCSV_BadRows(t *testing.T) {
	imp, _, _, _ := newTestImporter()
	csv := `patient_id,test_name,test_value,test_date
,Hemoglobin,14.2,2026-03-01
P-1,Glucose,not-a-number,2026-03-01

P-1,Glucose,95.5,2026-03-01
`
	stats, err := imp.ImportCSV(context.Background(), strings.NewReader(csv), true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Added != 1 || stats.Errored != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestImportCSV_MissingEssentialColumns(t *testing.T) {
	imp, _, _, _ := newTestImporter()
	if _, err := imp.ImportCSV(context.Background(), strings.NewReader("name,phone\nAda,555\n"), true); err == nil {
		t.Fatal("expected error without patient id and value columns")
	}
}

func TestDetectColumns(t *testing.T) {
	header := []string{"Sr.", "Barcode ID", "Parameters", "Reading", "Date & Time", "Operator"}
	mapping := detectColumns(header)

	want := map[string]int{
		"patient_id":     1,
		"test_name":      2,
		"test_value":     3,
		"test_date":      4,
		"lab_technician": 5,
	}
	for field, idx := range want {
		if got, ok := mapping[field]; !ok || got != idx {
			t.Errorf("%s: got %d (found=%v), want %d", field, got, ok, idx)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantOK  bool
	}{
		{"2026-01-15", "2026-01-15", true},
		{"15/01/2026", "2026-01-15", true},
		{"2026/01/15", "2026-01-15", true},
		{"15.01.2026", "2026-01-15", true},
		{"15-Jan-2026", "2026-01-15", true},
		{"Jan 15, 2026", "2026-01-15", true},
		{"2026-01-15 14:30:00", "2026-01-15", true},
		{"yesterday", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := parseDate(tc.in)
			if got != tc.want || ok != tc.wantOK {
				t.Fatalf("parseDate(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestNormalizeGender(t *testing.T) {
	cases := map[string]string{
		"M": "male", "male": "male", "1": "male",
		"F": "female", "Female": "female", "woman": "female",
		"other": "other", "unknown": "other", "x": "other",
		"": "",
	}
	for in, want := range cases {
		if got := normalizeGender(in); got != want {
			t.Errorf("normalizeGender(%q) = %q, want %q", in, got, want)
		}
	}
}
