package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"alphabot/internal/domain/models"
	"alphabot/internal/repository"
	"alphabot/internal/service/ledger"
	"alphabot/internal/service/strategy"
	"alphabot/internal/usecase"
	xhttp "alphabot/pkg/http"
	"alphabot/pkg/logger"
)

// StrategyFactory builds a strategy by name for on-demand predictions.
type StrategyFactory func(name string) (strategy.Strategy, error)

// Handler exposes the prediction pipeline over HTTP: on-demand predictions
// with caller-supplied market data, manual cycle runs, and orchestrator
// status.
type Handler struct {
	orchestrator *usecase.Orchestrator
	strategies   StrategyFactory
	ledger       *ledger.Client                // nil omits ledger state from /status
	history      *repository.SignalHistoryRepo // nil disables /history
	logger       *logger.Logger
}

func NewHandler(o *usecase.Orchestrator, strategies StrategyFactory, ledgerClient *ledger.Client, history *repository.SignalHistoryRepo, l *logger.Logger) *Handler {
	return &Handler{
		orchestrator: o,
		strategies:   strategies,
		ledger:       ledgerClient,
		history:      history,
		logger:       l,
	}
}

// RegisterRoutes implements xhttp.Handler.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.health)

	v1 := e.Group("/api/v1")
	v1.POST("/predict", h.predict)
	v1.POST("/run", h.run)
	v1.GET("/status", h.status)
	v1.GET("/history", h.recentHistory)
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(200, map[string]interface{}{
		"status":    "ok",
		"service":   "alphabot",
		"timestamp": time.Now().UnixMilli(),
	})
}

type predictRequest struct {
	Strategy   string                 `json:"strategy" validate:"required"`
	MarketData *models.MarketSnapshot `json:"marketData" validate:"required"`
}

type predictResponse struct {
	Signal          *models.Signal `json:"signal"`
	ExecutionTimeMs int64          `json:"executionTimeMs"`
}

// predict runs one strategy against caller-supplied market data and returns
// the resulting signal. The orchestrator's schedule is not involved.
func (h *Handler) predict(c echo.Context) error {
	var req predictRequest
	if resp := xhttp.ReadAndValidateRequest(c, &req); resp != nil {
		return xhttp.BadRequestResponse(c, resp)
	}
	if req.MarketData.CurrentPrice <= 0 || len(req.MarketData.PriceHistory) == 0 {
		return xhttp.BadRequestResponse(c, "marketData requires a positive currentPrice and a non-empty priceHistory")
	}

	strat, err := h.strategies(req.Strategy)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	start := time.Now()
	signal, err := strat.Predict(c.Request().Context(), req.MarketData)
	if err != nil {
		h.logger.Error("on-demand prediction failed",
			logger.String("strategy", req.Strategy),
			logger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	if err := signal.Validate(); err != nil {
		h.logger.Error("strategy returned invalid signal",
			logger.String("strategy", req.Strategy),
			logger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}

	return xhttp.SuccessResponse(c, predictResponse{
		Signal:          signal,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	})
}

// run triggers exactly one synchronous cycle through the orchestrator's
// configured pipeline.
func (h *Handler) run(c echo.Context) error {
	signal, err := h.orchestrator.RunOnce(c.Request().Context())
	if err != nil {
		h.logger.Error("manual cycle failed", logger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, predictResponse{Signal: signal})
}

type statusResponse struct {
	usecase.Status
	Ledger *models.BotState `json:"ledger,omitempty"`
}

// status reports the orchestrator state plus, best effort, the bot state
// committed on the ledger. A failed or empty ledger query leaves the field
// absent rather than failing the request.
func (h *Handler) status(c echo.Context) error {
	resp := statusResponse{Status: h.orchestrator.Status()}

	if h.ledger != nil {
		state, err := h.ledger.BotState(c.Request().Context())
		switch {
		case err == nil:
			resp.Ledger = state
		case errors.Is(err, ledger.ErrNoState):
			// Nothing committed yet.
		default:
			h.logger.Warn("ledger state query failed", logger.Error(err))
		}
	}

	return xhttp.SuccessResponse(c, resp)
}

func (h *Handler) recentHistory(c echo.Context) error {
	if h.history == nil {
		return xhttp.NotFoundResponse(c, "signal history is not enabled")
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return xhttp.BadRequestResponse(c, "limit must be a positive integer")
		}
		if v > 500 {
			v = 500
		}
		limit = v
	}

	records, err := h.history.Recent(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("failed to read signal history", logger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, records)
}
