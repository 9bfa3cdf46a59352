package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mohammad-safakhou/companion/config"
	"github.com/mohammad-safakhou/companion/internal/extract"
	"github.com/mohammad-safakhou/companion/internal/pipeline"
	"github.com/mohammad-safakhou/companion/internal/provider"
	"github.com/mohammad-safakhou/companion/internal/retrieval"
	"github.com/mohammad-safakhou/companion/internal/store"
	"github.com/mohammad-safakhou/companion/internal/telemetry"
)

// Run wires the full service and serves HTTP until the listener fails.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(corsMiddleware)

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = httpErrorHandler(baseLogger)

	tele := telemetry.New(cfg.Telemetry)
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(tele.Handler()))

	completer := provider.NewOpenRouterClient(cfg.LLM, cfg.Server)
	orch := pipeline.NewOrchestrator(cfg.LLM, cfg.Retrieval, completer, retrieval.NewBleveRanker(), tele)

	var exchanges *store.ExchangeStore
	if cfg.Storage.Redis.Enabled {
		client, err := store.Conn(context.Background(), cfg.Storage.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		exchanges = store.NewExchangeStore(client)
	}

	api := e.Group("/api")
	api.GET("/models", func(c echo.Context) error {
		return c.JSON(http.StatusOK, provider.Models)
	})

	chat := &ChatHandler{Pipeline: orch, Logger: baseLogger}
	briefing := &BriefingHandler{Pipeline: orch, Logger: baseLogger}
	if exchanges != nil {
		chat.Store = exchanges
		briefing.Store = exchanges
	}
	chat.Register(api)
	briefing.Register(api)

	extractor := &ExtractHandler{Extractor: extract.NewURLExtractor(cfg.Extract)}
	extractor.Register(api)

	return e.Start(cfg.Server.Address)
}

// httpErrorHandler renders every failure as the JSON error shape. 5xx
// responses hide the raw message behind a generic error and carry the detail
// in message; 4xx responses expose the message directly.
func httpErrorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if c.Response().Committed {
			return
		}
		if code >= http.StatusInternalServerError {
			_ = c.JSON(code, errorResponse{Error: "Internal server error", Message: msg})
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

// corsMiddleware applies the permissive CORS surface on every response and
// answers preflight with 200, the contract the UI is built against.
func corsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if c.Request().Method == http.MethodOptions {
			return c.NoContent(http.StatusOK)
		}
		return next(c)
	}
}
