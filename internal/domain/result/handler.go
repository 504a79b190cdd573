package result

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labrec/labrec/internal/domain/catalog"
	"github.com/labrec/labrec/internal/domain/patient"
	"github.com/labrec/labrec/pkg/pagination"
)

// TypeFinder resolves a submitted test name to a catalog entry.
// *catalog.Service satisfies it.
type TypeFinder interface {
	GetTestType(ctx context.Context, name string) (*catalog.TestType, error)
}

// Handler exposes result ingestion and review over HTTP.
type Handler struct {
	svc   *Service
	types TypeFinder
}

func NewHandler(svc *Service, types TypeFinder) *Handler {
	return &Handler{svc: svc, types: types}
}

// RegisterRoutes mounts the result endpoints on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/results", h.ingest)
	api.DELETE("/results/:id", h.remove)
	api.GET("/patients/:id/results", h.listByPatient)
	api.GET("/patients/:id/results/classified", h.classified)
	api.GET("/patients/:id/alerts", h.alerts)
}

type ingestRequest struct {
	PatientID     string     `json:"patient_id"`
	TestTypeID    *uuid.UUID `json:"test_type_id,omitempty"`
	TestName      string     `json:"test_name,omitempty"`
	Value         float64    `json:"value"`
	TestDate      string     `json:"test_date"`
	LabTechnician *string    `json:"lab_technician,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

func (h *Handler) ingest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()

	var testTypeID uuid.UUID
	switch {
	case req.TestTypeID != nil && *req.TestTypeID != uuid.Nil:
		testTypeID = *req.TestTypeID
	case req.TestName != "":
		t, err := h.types.GetTestType(ctx, req.TestName)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "test type not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		testTypeID = t.ID
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "test_type_id or test_name is required")
	}

	checkDuplicates := true
	if raw := c.QueryParam("check_duplicates"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "check_duplicates must be a boolean")
		}
		checkDuplicates = v
	}

	out, err := h.svc.Ingest(ctx, Candidate{
		PatientID:     req.PatientID,
		TestTypeID:    testTypeID,
		Value:         req.Value,
		TestDate:      req.TestDate,
		LabTechnician: req.LabTechnician,
		Notes:         req.Notes,
	}, checkDuplicates)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !out.Accepted {
		return c.JSON(http.StatusConflict, out)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) remove(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid result id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "result not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) listByPatient(c echo.Context) error {
	params := pagination.FromContext(c)
	results, total, err := h.svc.ListByPatient(c.Request().Context(), c.Param("id"), params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if results == nil {
		results = []*PatientResult{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(results, total, params))
}

func (h *Handler) classified(c echo.Context) error {
	classified, err := h.svc.Classified(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.patientError(err)
	}
	if classified == nil {
		classified = []*ClassifiedResult{}
	}
	return c.JSON(http.StatusOK, classified)
}

func (h *Handler) alerts(c echo.Context) error {
	alerts, err := h.svc.Alerts(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.patientError(err)
	}
	if alerts == nil {
		alerts = []*ClassifiedResult{}
	}
	return c.JSON(http.StatusOK, alerts)
}

func (h *Handler) patientError(err error) error {
	if errors.Is(err, patient.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
