package ranges

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/labrec/labrec/internal/domain/catalog"
)

func doResolve(h *Handler, target string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e.Group("/api/v1"))
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestResolve_HTTP(t *testing.T) {
	cat := newMockCatalog()
	cat.addType(&catalog.TestType{
		Name: "Hemoglobin", NormalMin: f64(12), NormalMax: f64(16),
	})
	h := NewHandler(NewResolver(cat))

	rec := doResolve(h, "/api/v1/resolve?test=Hemoglobin&age=40&gender=male")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res Resolution
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Source != "Age/gender adjusted (adult, male)" {
		t.Fatalf("unexpected source: %q", res.Source)
	}
}

func TestResolve_HTTP_MissingTest(t *testing.T) {
	h := NewHandler(NewResolver(newMockCatalog()))
	rec := doResolve(h, "/api/v1/resolve?age=40")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestResolve_HTTP_InvalidAge(t *testing.T) {
	h := NewHandler(NewResolver(newMockCatalog()))
	rec := doResolve(h, "/api/v1/resolve?test=Hemoglobin&age=abc")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestResolve_HTTP_UnknownTestIsNotAnError(t *testing.T) {
	h := NewHandler(NewResolver(newMockCatalog()))
	rec := doResolve(h, "/api/v1/resolve?test=Mystery")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res Resolution
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Found || res.Source != "No range found" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}
