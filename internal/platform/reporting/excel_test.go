package reporting

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/labrec/labrec/internal/domain/patient"
	"github.com/labrec/labrec/internal/domain/ranges"
	"github.com/labrec/labrec/internal/domain/result"
)

type fakePatients struct {
	byID map[string]*patient.Patient
}

func (f *fakePatients) Get(_ context.Context, id string) (*patient.Patient, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

type fakeResults struct {
	byPatient map[string][]*result.ClassifiedResult
}

func (f *fakeResults) Classified(_ context.Context, patientID string) ([]*result.ClassifiedResult, error) {
	return f.byPatient[patientID], nil
}

func f64(v float64) *float64 { return &v }

func classified(name string, value float64, date string, status ranges.Status) *result.ClassifiedResult {
	cr := &result.ClassifiedResult{Status: status}
	cr.TestName = name
	cr.Value = value
	cr.TestDate = date
	if status != ranges.StatusUndefined {
		cr.Range = ranges.Resolution{
			Found: true, NormalMin: f64(12), NormalMax: f64(16), Source: "Base range",
		}
	} else {
		cr.Range = ranges.Resolution{Source: "No range found"}
	}
	return cr
}

func newTestGenerator() *Generator {
	dob := time.Date(1980, 5, 2, 0, 0, 0, 0, time.UTC)
	gender := "female"
	patients := &fakePatients{byID: map[string]*patient.Patient{
		"P-1": {ID: "P-1", FirstName: "Ada", LastName: "Lovelace", DateOfBirth: &dob, Gender: &gender},
	}}
	results := &fakeResults{byPatient: map[string][]*result.ClassifiedResult{
		"P-1": {
			classified("Hemoglobin", 14.0, "2026-03-01", ranges.StatusNormal),
			classified("Hemoglobin", 17.5, "2026-03-02", ranges.StatusCriticalHigh),
			classified("Mystery", 5.0, "2026-03-03", ranges.StatusUndefined),
		},
	}}
	return NewGenerator(patients, results)
}

func TestGenerate_Workbook(t *testing.T) {
	gen := newTestGenerator()
	file, err := gen.Generate(context.Background(), "P-1")
	if err != nil {
		t.Fatal(err)
	}

	if len(file.Sheets) != 2 {
		t.Fatalf("expected 2 sheets, got %d", len(file.Sheets))
	}
	if file.Sheets[0].Name != "Summary" || file.Sheets[1].Name != "Test Results" {
		t.Fatalf("unexpected sheet names: %s, %s", file.Sheets[0].Name, file.Sheets[1].Name)
	}

	results := file.Sheets[1]
	// Header plus three result rows.
	if len(results.Rows) != 4 {
		t.Fatalf("expected 4 rows on results sheet, got %d", len(results.Rows))
	}

	var sawNeedsConfiguration bool
	for _, row := range results.Rows[1:] {
		if row.Cells[4].String() == "needs configuration" {
			sawNeedsConfiguration = true
		}
	}
	if !sawNeedsConfiguration {
		t.Fatal("undefined results should render as needing configuration")
	}
}

func TestGenerate_UnknownPatient(t *testing.T) {
	gen := newTestGenerator()
	if _, err := gen.Generate(context.Background(), "P-404"); err != patient.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReport_HTTP(t *testing.T) {
	h := NewHandler(newTestGenerator())
	e := echo.New()
	h.RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/P-1/report.xlsx", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != xlsxContentType {
		t.Fatalf("unexpected content type %q", got)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("response body should carry the workbook")
	}
}

func TestReport_HTTP_NotFound(t *testing.T) {
	h := NewHandler(newTestGenerator())
	e := echo.New()
	h.RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/P-404/report.xlsx", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStatusLabel(t *testing.T) {
	if statusLabel(ranges.StatusUndefined) != "needs configuration" {
		t.Fatal("undefined should render as needs configuration")
	}
	if statusLabel(ranges.StatusCriticalHigh) != "critical_high" {
		t.Fatal("other statuses render verbatim")
	}
}
