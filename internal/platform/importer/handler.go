package importer

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler exposes CSV import over HTTP.
type Handler struct {
	importer *Importer
}

func NewHandler(importer *Importer) *Handler {
	return &Handler{importer: importer}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/import/csv", h.importCSV)
}

// importCSV accepts either a multipart upload under the "file" field or a
// raw CSV request body.
func (h *Handler) importCSV(c echo.Context) error {
	checkDuplicates := true
	if raw := c.QueryParam("check_duplicates"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "check_duplicates must be a boolean")
		}
		checkDuplicates = v
	}

	var src io.ReadCloser
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unable to open uploaded file")
		}
		src = f
	} else {
		src = c.Request().Body
	}
	defer src.Close()

	stats, err := h.importer.ImportCSV(c.Request().Context(), src, checkDuplicates)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
