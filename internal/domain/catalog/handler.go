package catalog

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Handler exposes the catalog over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the catalog endpoints on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/test-types", h.listTestTypes)
	api.POST("/test-types", h.createTestType)
	api.GET("/test-types/:id", h.getTestType)
	api.PUT("/test-types/:id", h.updateTestType)
	api.DELETE("/test-types/:id", h.deleteTestType)

	api.GET("/test-types/:id/ranges", h.listRanges)
	api.POST("/test-types/:id/ranges", h.createRange)
	api.PUT("/ranges/:id", h.updateRange)
	api.DELETE("/ranges/:id", h.deactivateRange)
	api.GET("/ranges/export", h.exportRanges)
	api.POST("/ranges/import", h.importRanges)
}

func (h *Handler) listTestTypes(c echo.Context) error {
	types, err := h.svc.ListTestTypes(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if types == nil {
		types = []*TestType{}
	}
	return c.JSON(http.StatusOK, types)
}

func (h *Handler) createTestType(c echo.Context) error {
	var t TestType
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateTestType(c.Request().Context(), &t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

// getTestType accepts either a test type UUID or an exact test name in the
// path segment.
func (h *Handler) getTestType(c echo.Context) error {
	ctx := c.Request().Context()
	key := c.Param("id")

	var t *TestType
	var err error
	if id, perr := uuid.Parse(key); perr == nil {
		t, err = h.svc.GetTestTypeByID(ctx, id)
	} else {
		t, err = h.svc.GetTestType(ctx, key)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "test type not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) updateTestType(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid test type id")
	}
	var t TestType
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t.ID = id
	if err := h.svc.UpdateTestType(c.Request().Context(), &t); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "test type not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) deleteTestType(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid test type id")
	}
	if err := h.svc.DeleteTestType(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "test type not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) listRanges(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid test type id")
	}
	ranges, err := h.svc.ListCustomRanges(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if ranges == nil {
		ranges = []*CustomRange{}
	}
	return c.JSON(http.StatusOK, ranges)
}

func (h *Handler) createRange(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid test type id")
	}
	var cr CustomRange
	if err := c.Bind(&cr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cr.TestTypeID = id
	if err := h.svc.CreateCustomRange(c.Request().Context(), &cr); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "test type not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, cr)
}

func (h *Handler) updateRange(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid range id")
	}
	var cr CustomRange
	if err := c.Bind(&cr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cr.ID = id
	if err := h.svc.UpdateCustomRange(c.Request().Context(), &cr); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "custom range not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, cr)
}

func (h *Handler) deactivateRange(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid range id")
	}
	if err := h.svc.DeactivateCustomRange(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "custom range not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) exportRanges(c echo.Context) error {
	data, err := h.svc.ExportRanges(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="custom_ranges.json"`)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

func (h *Handler) importRanges(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read request body")
	}
	stats, err := h.svc.ImportRanges(c.Request().Context(), data)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
