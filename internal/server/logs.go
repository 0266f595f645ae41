package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/repository"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *handler) listLogs(c *gin.Context) {
	f, err := logFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	logs, err := h.Logs.List(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *handler) getLog(c *gin.Context) {
	l, err := h.Logs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *handler) exportLogs(c *gin.Context) {
	f, err := logFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if c.Query("limit") == "" {
		f.Limit = repository.MaxListLimit
	}
	b, err := h.Export.ProcessingLogsXLSX(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	attachment(c, "processing_logs.xlsx", xlsxContentType, b)
}

func logFilter(c *gin.Context) (entity.ProcessingLogFilter, error) {
	limit, offset, err := paging(c)
	if err != nil {
		return entity.ProcessingLogFilter{}, err
	}
	f := entity.ProcessingLogFilter{
		Status:      strings.TrimSpace(c.Query("status")),
		ModelName:   strings.TrimSpace(c.Query("model")),
		Filename:    strings.TrimSpace(c.Query("filename")),
		CompanyName: strings.TrimSpace(c.Query("company")),
		Limit:       limit,
		Offset:      offset,
	}
	if f.DateFrom, err = parseDate(c.Query("date_from"), false); err != nil {
		return f, common.InvalidInput("date_from must be YYYY-MM-DD or RFC3339")
	}
	if f.DateTo, err = parseDate(c.Query("date_to"), true); err != nil {
		return f, common.InvalidInput("date_to must be YYYY-MM-DD or RFC3339")
	}
	return f, nil
}

// paging reads limit (1-200, default 50) and offset (>= 0).
func paging(c *gin.Context) (int, int, error) {
	limit := repository.DefaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > repository.MaxListLimit {
			return 0, 0, common.InvalidInput(fmt.Sprintf("limit must be between 1 and %d", repository.MaxListLimit))
		}
		limit = n
	}
	offset := 0
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, common.InvalidInput("offset must be >= 0")
		}
		offset = n
	}
	return limit, offset, nil
}

// parseDate accepts a date or an RFC3339 timestamp. A bare date used as an
// upper bound covers the whole day.
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return &t, nil
}

func attachment(c *gin.Context, filename, contentType string, body []byte) {
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, body)
}
