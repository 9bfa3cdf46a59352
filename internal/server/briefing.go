package server

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/companion/internal/pipeline"
)

type briefer interface {
	GenerateBriefing(ctx context.Context, req pipeline.BriefingRequest) (*pipeline.AIResponse, error)
}

type exchangeLister interface {
	Exchanges(ctx context.Context, collectionID string) ([]pipeline.Exchange, error)
}

// BriefingHandler serves the "generate a briefing" operation.
type BriefingHandler struct {
	Pipeline briefer
	Store    exchangeLister // optional; loads prior exchanges when the request carries none
	Logger   *log.Logger
}

func (h *BriefingHandler) Register(g *echo.Group) {
	g.POST("/briefing", h.generate)
}

func (h *BriefingHandler) generate(c echo.Context) error {
	var req briefingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required fields")
	}
	if req.CollectionID == "" || req.Model == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required fields")
	}

	ctx := c.Request().Context()
	exchanges := req.Exchanges
	if len(exchanges) == 0 && h.Store != nil {
		stored, err := h.Store.Exchanges(ctx, req.CollectionID)
		if err == nil {
			exchanges = stored
		} else if h.Logger != nil {
			h.Logger.Printf("load exchanges for collection %s: %v", req.CollectionID, err)
		}
	}

	resp, err := h.Pipeline.GenerateBriefing(ctx, pipeline.BriefingRequest{
		CollectionID: req.CollectionID,
		Exchanges:    exchanges,
		Passages:     req.RetrievedPassages,
		Model:        req.Model,
	})
	if err != nil {
		return mapPipelineError(err)
	}
	return c.JSON(http.StatusOK, resp)
}
