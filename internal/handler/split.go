package handler

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/splitkart/split-backend/internal/model"
    "github.com/splitkart/split-backend/internal/repository"
    "github.com/splitkart/split-backend/internal/service"
)

// SplitHandler exposes the split listing lifecycle: creation, browse
// and read endpoints, and owner cancellation.  All methods assume
// JWT authentication has already run except where routes are mounted
// publicly.
type SplitHandler struct {
    Splits *service.SplitService
    Orch   *service.Orchestrator
}

// NewSplitHandler constructs a SplitHandler.  All dependencies must be non-nil.
func NewSplitHandler(splits *service.SplitService, orch *service.Orchestrator) *SplitHandler {
    if splits == nil || orch == nil {
        panic("nil service passed to NewSplitHandler")
    }
    return &SplitHandler{Splits: splits, Orch: orch}
}

// CreateSplit handles POST /v1/splits.  The authenticated user becomes
// the owner; their pre-claimed seats are counted as sold from the
// start.
func (h *SplitHandler) CreateSplit(c echo.Context) error {
    ownerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var in service.CreateSplitInput
    if err := c.Bind(&in); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    in.OwnerID = ownerID
    res := h.Splits.Create(c.Request().Context(), in)
    return c.JSON(res.Code, res)
}

// GetSplit handles GET /v1/splits/:id.
func (h *SplitHandler) GetSplit(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    split, err := h.Splits.Get(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, repository.ErrSplitNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "split not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, split)
}

// ListSplits handles GET /v1/splits.  Only open splits are listed;
// limit is clamped server-side.
func (h *SplitHandler) ListSplits(c echo.Context) error {
    limit, _ := strconv.Atoi(c.QueryParam("limit"))
    splits, err := h.Splits.ListActive(c.Request().Context(), limit)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"splits": splits, "count": len(splits)})
}

// CancelSplit handles POST /v1/splits/:id/cancel.  Only the owner or
// an administrator may cancel; every live order is refunded with the
// platform fee reversed and the split freezes in the CANCELLED state.
func (h *SplitHandler) CancelSplit(c echo.Context) error {
    callerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    var body struct {
        Reason string `json:"reason"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    res := h.Orch.CancelSplit(c.Request().Context(), id, callerID, getUserRole(c), model.SplitCancelled, body.Reason)
    return c.JSON(res.Code, res)
}
