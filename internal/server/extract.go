package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/companion/internal/extract"
)

type urlExtractor interface {
	Extract(ctx context.Context, link string) (extract.Result, error)
}

// ExtractHandler turns a web page into (text, metadata) for the working
// set.
type ExtractHandler struct {
	Extractor urlExtractor
}

func (h *ExtractHandler) Register(g *echo.Group) {
	g.POST("/extract-url", h.extractURL)
}

func (h *ExtractHandler) extractURL(c echo.Context) error {
	var req extractRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "URL is required")
	}
	if strings.TrimSpace(req.URL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "URL is required")
	}

	result, err := h.Extractor.Extract(c.Request().Context(), req.URL)
	if err != nil {
		if strings.Contains(err.Error(), "invalid url") {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid URL format")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
