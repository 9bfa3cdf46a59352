package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/companion/internal/pipeline"
	"github.com/mohammad-safakhou/companion/internal/store"
)

type asker interface {
	AskQuestion(ctx context.Context, req pipeline.AskRequest) (*pipeline.AIResponse, error)
	AskQuestionStream(ctx context.Context, req pipeline.AskRequest, onChunk func(string)) (*pipeline.AIResponse, error)
}

type exchangeSaver interface {
	Save(ctx context.Context, rec store.ExchangeRecord) (store.ExchangeRecord, error)
}

// ChatHandler serves the "ask a question" operation.
type ChatHandler struct {
	Pipeline asker
	Store    exchangeSaver // optional; nil disables exchange persistence
	Logger   *log.Logger
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.ask)
	g.POST("/chat/stream", h.stream)
}

func (h *ChatHandler) ask(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required fields")
	}
	if req.Question == "" || len(req.Context) == 0 || req.Model == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required fields")
	}

	resp, err := h.Pipeline.AskQuestion(c.Request().Context(), pipeline.AskRequest{
		Question:     req.Question,
		Passages:     req.Context,
		CollectionID: req.CollectionID,
		Model:        req.Model,
		Settings:     req.Settings,
	})
	if err != nil {
		return mapPipelineError(err)
	}

	h.persistExchange(c.Request().Context(), req, resp)
	return c.JSON(http.StatusOK, resp)
}

// stream answers over SSE: incremental chunk frames while the model
// generates, one final frame with the fully parsed response, then the
// terminal sentinel.
func (h *ChatHandler) stream(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required fields")
	}
	if req.Question == "" || len(req.Context) == 0 || req.Model == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required fields")
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	resp, err := h.Pipeline.AskQuestionStream(c.Request().Context(), pipeline.AskRequest{
		Question:     req.Question,
		Passages:     req.Context,
		CollectionID: req.CollectionID,
		Model:        req.Model,
		Settings:     req.Settings,
	}, func(chunk string) {
		writeFrame(res, streamFrame{Chunk: chunk})
	})
	if err != nil {
		// Headers are already sent; surface the failure in-band.
		fmt.Fprintf(res, "data: %s\n\n", errPayload(err))
		res.Flush()
		return nil
	}

	h.persistExchange(c.Request().Context(), req, resp)
	writeFrame(res, streamFrame{Response: resp})
	fmt.Fprint(res, "data: [DONE]\n\n")
	res.Flush()
	return nil
}

func (h *ChatHandler) persistExchange(ctx context.Context, req askRequest, resp *pipeline.AIResponse) {
	if h.Store == nil || req.CollectionID == "" {
		return
	}
	_, err := h.Store.Save(ctx, store.ExchangeRecord{
		CollectionID: req.CollectionID,
		Question:     req.Question,
		Answer:       resp.Answer,
		Citations:    resp.Citations,
		Model:        req.Model,
	})
	if err != nil && h.Logger != nil {
		h.Logger.Printf("save exchange for collection %s: %v", req.CollectionID, err)
	}
}

func writeFrame(res *echo.Response, frame streamFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(res, "data: %s\n\n", data)
	res.Flush()
}

func errPayload(err error) []byte {
	data, _ := json.Marshal(errorResponse{Error: "Internal server error", Message: err.Error()})
	return data
}

// mapPipelineError translates pipeline failures into the HTTP error shape.
// Everything upstream-related stays a 500 with a human-readable message; the
// UI decides on retry or mock-mode fallback.
func mapPipelineError(err error) *echo.HTTPError {
	if errors.Is(err, pipeline.ErrNoContext) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
