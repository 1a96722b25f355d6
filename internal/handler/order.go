package handler

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/splitkart/split-backend/internal/repository"
    "github.com/splitkart/split-backend/internal/service"
)

// OrderHandler exposes the order lifecycle: joining a split, the two
// cancellation paths and the shipping sub-flow.  All routes require
// authentication; the acting user always comes from the token, never
// the body.
type OrderHandler struct {
    Orders   *service.OrderService
    Orch     *service.Orchestrator
    Readside *repository.OrderRepo
}

// NewOrderHandler constructs an OrderHandler.  All dependencies must be non-nil.
func NewOrderHandler(orders *service.OrderService, orch *service.Orchestrator, readside *repository.OrderRepo) *OrderHandler {
    if orders == nil || orch == nil || readside == nil {
        panic("nil dependency passed to NewOrderHandler")
    }
    return &OrderHandler{Orders: orders, Orch: orch, Readside: readside}
}

// CreateOrder handles POST /v1/splits/:id/orders.  The body carries
// the seat count and the payment authorization handles; the split
// comes from the path.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
    clientID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    splitID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    var in service.CreateOrderInput
    if err := c.Bind(&in); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    in.ClientID = clientID
    in.SplitID = splitID
    res := h.Orders.Create(c.Request().Context(), in)
    return c.JSON(res.Code, res)
}

// CancelOwnOrder handles POST /v1/splits/:id/orders/cancel.  The
// caller cancels their own paid order; the charge is refunded but
// the platform fee is kept.
func (h *OrderHandler) CancelOwnOrder(c echo.Context) error {
    clientID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    splitID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    res := h.Orch.CancelByClient(c.Request().Context(), splitID, clientID)
    return c.JSON(res.Code, res)
}

// CancelClientOrder handles POST /v1/splits/:id/orders/:client_id/cancel.
// The split owner cancels a client's paid order; the refund reverses
// the platform fee as well.
func (h *OrderHandler) CancelClientOrder(c echo.Context) error {
    callerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    splitID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    clientID, err := pathID(c, "client_id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    res := h.Orch.CancelByOwner(c.Request().Context(), splitID, clientID, callerID)
    return c.JSON(res.Code, res)
}

// MarkShipped handles POST /v1/orders/:id/ship.
func (h *OrderHandler) MarkShipped(c echo.Context) error {
    callerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    orderID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    res := h.Orders.MarkShipped(c.Request().Context(), orderID, callerID)
    return c.JSON(res.Code, res)
}

// MarkReceived handles POST /v1/orders/:id/receive.
func (h *OrderHandler) MarkReceived(c echo.Context) error {
    callerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    orderID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    res := h.Orders.MarkReceived(c.Request().Context(), orderID, callerID)
    return c.JSON(res.Code, res)
}

// ListMyOrders handles GET /v1/orders.  It lists the caller's orders
// newest first, with their frozen split snapshots.
func (h *OrderHandler) ListMyOrders(c echo.Context) error {
    clientID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    limit, _ := strconv.Atoi(c.QueryParam("limit"))
    if limit <= 0 || limit > 100 {
        limit = 50
    }
    orders, err := h.Readside.ListByClient(c.Request().Context(), clientID, limit)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"orders": orders, "count": len(orders)})
}
