package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/common"
)

type scanInboxRequest struct {
	Root string `json:"root"`
}

// scanInbox queues every PDF under root for background parsing.
func (h *handler) scanInbox(c *gin.Context) {
	var req scanInboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, common.InvalidInput("root is required"))
		return
	}
	res, err := h.Inbox.IngestDirectory(c.Request.Context(), req.Root, constants.TriggeredByAPI)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}
