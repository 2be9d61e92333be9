package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/andriputra/skysearch/internal/filter"
	"github.com/andriputra/skysearch/internal/models"
	"github.com/andriputra/skysearch/internal/orchestrator"
	"github.com/andriputra/skysearch/internal/progress"
	"github.com/andriputra/skysearch/internal/store"
)

type SearchHandler struct {
	orch  *orchestrator.Orchestrator
	store store.SearchStore
	pub   *progress.Publisher
	log   *zap.Logger
}

func NewSearchHandler(orch *orchestrator.Orchestrator, st store.SearchStore, pub *progress.Publisher, log *zap.Logger) *SearchHandler {
	return &SearchHandler{orch: orch, store: st, pub: pub, log: log}
}

type submitRequest struct {
	models.SearchCriteria
	Options models.SearchOptions `json:"options"`
}

func (h *SearchHandler) Submit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request", "failed to parse request body: "+err.Error())
	}

	resp, err := h.orch.Submit(c.Request().Context(), req.SearchCriteria, req.Options)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrCapacityExceeded):
			return errorJSON(c, http.StatusTooManyRequests, "capacity_exceeded", err.Error())
		case errors.Is(err, models.ErrSearchCancelled):
			return errorJSON(c, http.StatusConflict, "search_cancelled", err.Error())
		default:
			var validation models.ValidationError
			if errors.As(err, &validation) {
				return errorJSON(c, http.StatusBadRequest, "validation_error", err.Error())
			}
			h.log.Error("search submission failed", zap.Error(err))
			return errorJSON(c, http.StatusInternalServerError, "search_error", err.Error())
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *SearchHandler) GetProgress(c echo.Context) error {
	id := c.Param("id")
	snap, err := h.orch.GetProgress(id)
	if err == nil {
		return c.JSON(http.StatusOK, snap)
	}
	// Finished searches leave the active table; fall back to the record.
	if record, ok := h.store.GetSearch(c.Request().Context(), id); ok {
		return c.JSON(http.StatusOK, record)
	}
	return errorJSON(c, http.StatusNotFound, "not_found", models.ErrSearchNotFound.Error())
}

func (h *SearchHandler) Cancel(c echo.Context) error {
	cancelled := h.orch.Cancel(c.Request().Context(), c.Param("id"), "cancelled by user")
	if !cancelled {
		return errorJSON(c, http.StatusConflict, "not_cancellable", "search is not active")
	}
	return c.JSON(http.StatusOK, map[string]bool{"cancelled": true})
}

func (h *SearchHandler) ListActive(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"searches": h.orch.ListActive()})
}

func (h *SearchHandler) Filter(c echo.Context) error {
	var spec filter.Spec
	if err := c.Bind(&spec); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
	}
	flights, err := h.orch.FilterResults(c.Request().Context(), c.Param("id"), &spec)
	if err != nil {
		return recordErrorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"flights": flights, "total": len(flights)})
}

type sortRequest struct {
	SortBy models.SortKey   `json:"sort_by"`
	Order  filter.SortOrder `json:"order"`
}

func (h *SearchHandler) Sort(c echo.Context) error {
	var req sortRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
	}
	flights, err := h.orch.SortResults(c.Request().Context(), c.Param("id"), req.SortBy, req.Order)
	if err != nil {
		return recordErrorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"flights": flights, "total": len(flights)})
}

func (h *SearchHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, h.orch.Health(c.Request().Context()))
}

func recordErrorJSON(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrSearchNotFound):
		return errorJSON(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, models.ErrSearchNotCompleted):
		return errorJSON(c, http.StatusConflict, "not_completed", err.Error())
	default:
		return errorJSON(c, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func errorJSON(c echo.Context, code int, kind, message string) error {
	return c.JSON(code, models.ErrorResponse{Error: kind, Message: message, Code: code})
}
