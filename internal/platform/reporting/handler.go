package reporting

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/labrec/labrec/internal/domain/patient"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler serves patient workbooks.
type Handler struct {
	gen *Generator
}

func NewHandler(gen *Generator) *Handler {
	return &Handler{gen: gen}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id/report.xlsx", h.report)
}

func (h *Handler) report(c echo.Context) error {
	patientID := c.Param("id")
	file, err := h.gen.Generate(c.Request().Context(), patientID)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	c.Response().Header().Set(echo.HeaderContentType, xlsxContentType)
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="patient_%s_report.xlsx"`, patientID))
	c.Response().WriteHeader(http.StatusOK)
	return file.Write(c.Response())
}
