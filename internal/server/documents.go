package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/order-parser/internal/repository"
)

func (h *handler) listDocuments(c *gin.Context) {
	f, err := documentFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	docs, err := h.Documents.List(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

// getParsedDocument returns the stored canonical payload as is.
func (h *handler) getParsedDocument(c *gin.Context) {
	doc, err := h.Documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", doc.Canonical)
}

func (h *handler) downloadParsedDocument(c *gin.Context) {
	id := c.Param("id")
	doc, err := h.Documents.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, doc.Canonical, "", "  "); err != nil {
		h.respondError(c, err)
		return
	}
	attachment(c, id+".json", "application/json", buf.Bytes())
}

func (h *handler) exportDocuments(c *gin.Context) {
	f, err := documentFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if c.Query("limit") == "" {
		f.Limit = repository.MaxListLimit
	}
	b, err := h.Export.ParsedDocumentsXLSX(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	attachment(c, "parsed_documents.xlsx", xlsxContentType, b)
}

func documentFilter(c *gin.Context) (repository.ParsedDocumentFilter, error) {
	limit, offset, err := paging(c)
	if err != nil {
		return repository.ParsedDocumentFilter{}, err
	}
	return repository.ParsedDocumentFilter{
		Status:    strings.TrimSpace(c.Query("status")),
		ModelName: strings.TrimSpace(c.Query("model")),
		Limit:     limit,
		Offset:    offset,
	}, nil
}
