package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/repository"
	"github.com/joseph-ayodele/order-parser/internal/utils"
)

type createSalesOrderRequest struct {
	DocumentID string  `json:"document_id"`
	Actor      *string `json:"actor"`
}

type transitionRequest struct {
	Actor  *string `json:"actor"`
	Reason string  `json:"reason"`
}

func (h *handler) createSalesOrder(c *gin.Context) {
	var req createSalesOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.DocumentID) == "" {
		h.respondError(c, common.InvalidInput("document_id is required"))
		return
	}
	so, err := h.SalesOrders.CreateFromDocument(c.Request.Context(), strings.TrimSpace(req.DocumentID), req.Actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, so)
}

func (h *handler) listSalesOrders(c *gin.Context) {
	limit, offset, err := paging(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	orders, err := h.SalesOrders.List(c.Request.Context(), repository.SalesOrderFilter{
		Status: strings.TrimSpace(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *handler) getSalesOrder(c *gin.Context) {
	id, ok := h.salesOrderID(c)
	if !ok {
		return
	}
	so, err := h.SalesOrders.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, so)
}

func (h *handler) submitSalesOrder(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, req transitionRequest) (*entity.SalesOrder, error) {
		return h.SalesOrders.Submit(c.Request.Context(), id, req.Actor)
	})
}

func (h *handler) approveSalesOrder(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, req transitionRequest) (*entity.SalesOrder, error) {
		return h.SalesOrders.Approve(c.Request.Context(), id, req.Actor)
	})
}

func (h *handler) rejectSalesOrder(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, req transitionRequest) (*entity.SalesOrder, error) {
		return h.SalesOrders.Reject(c.Request.Context(), id, req.Actor, req.Reason)
	})
}

func (h *handler) reopenSalesOrder(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, req transitionRequest) (*entity.SalesOrder, error) {
		return h.SalesOrders.Reopen(c.Request.Context(), id, req.Actor)
	})
}

// transition runs fn with the path id and the optional JSON body.
func (h *handler) transition(c *gin.Context, fn func(uuid.UUID, transitionRequest) (*entity.SalesOrder, error)) {
	id, ok := h.salesOrderID(c)
	if !ok {
		return
	}
	var req transitionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.respondError(c, common.InvalidInput("invalid request body"))
			return
		}
	}
	if req.Actor == nil {
		req.Actor = utils.StrPtr(c.GetHeader("X-Actor"))
	}
	so, err := fn(id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, so)
}

func (h *handler) salesOrderID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, common.NotFound("Sales order not found"))
		return uuid.Nil, false
	}
	return id, true
}
