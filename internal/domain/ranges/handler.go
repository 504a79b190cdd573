package ranges

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler exposes ad hoc range resolution, letting operators preview which
// range would apply to a result before it is recorded.
type Handler struct {
	resolver *Resolver
}

func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/resolve", h.resolve)
}

func (h *Handler) resolve(c echo.Context) error {
	testName := c.QueryParam("test")
	if testName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "test query parameter is required")
	}

	var age *int
	if raw := c.QueryParam("age"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "age must be a non-negative integer")
		}
		age = &v
	}
	var gender *string
	if raw := c.QueryParam("gender"); raw != "" {
		gender = &raw
	}
	var condition *string
	if raw := c.QueryParam("condition"); raw != "" {
		condition = &raw
	}

	res, err := h.resolver.Resolve(c.Request().Context(), testName, age, gender, condition)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}
