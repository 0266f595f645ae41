package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/pipeline"
	"github.com/joseph-ayodele/order-parser/internal/services/models"
)

func (h *handler) listModels(c *gin.Context) {
	ms, err := h.Models.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ms)
}

func (h *handler) getModel(c *gin.Context) {
	m, err := h.Models.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *handler) createModel(c *gin.Context) {
	var req models.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, common.InvalidInput("invalid request body: "+err.Error()))
		return
	}
	m, err := h.Models.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *handler) updateModel(c *gin.Context) {
	var req models.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, common.InvalidInput("invalid request body: "+err.Error()))
		return
	}
	m, err := h.Models.Update(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *handler) activateModel(c *gin.Context) {
	m, err := h.Models.Activate(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *handler) deactivateModel(c *gin.Context) {
	m, err := h.Models.Deactivate(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *handler) detect(c *gin.Context) {
	in, err := h.readInput(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.runDetect(c, in)
}

func (h *handler) detectText(c *gin.Context) {
	in, err := readText(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.runDetect(c, in)
}

func (h *handler) runDetect(c *gin.Context, in pipeline.Input) {
	det, _, err := h.Runner.Detect(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, det)
}

func (h *handler) preview(c *gin.Context) {
	in, err := h.readInput(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.runPreview(c, in)
}

func (h *handler) previewText(c *gin.Context) {
	in, err := readText(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.runPreview(c, in)
}

func (h *handler) runPreview(c *gin.Context, in pipeline.Input) {
	p, err := h.Runner.Preview(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
