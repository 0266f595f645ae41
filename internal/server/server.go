package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/export"
	"github.com/joseph-ayodele/order-parser/internal/pipeline"
	"github.com/joseph-ayodele/order-parser/internal/repository"
	"github.com/joseph-ayodele/order-parser/internal/salesorder"
	"github.com/joseph-ayodele/order-parser/internal/services/inbox"
	"github.com/joseph-ayodele/order-parser/internal/services/models"
)

const requestIDHeader = "X-Request-ID"

// ParseRunner is the part of *pipeline.Runner the handlers call.
type ParseRunner interface {
	Run(ctx context.Context, in pipeline.Input) (pipeline.Output, error)
	Detect(ctx context.Context, in pipeline.Input) (pipeline.Detection, *pipeline.Context, error)
	Preview(ctx context.Context, in pipeline.Input) (pipeline.Preview, error)
}

// Deps wires the HTTP handlers. Inbox is optional.
type Deps struct {
	Runner         ParseRunner
	Models         *models.Service
	Logs           repository.ProcessingLogRepository
	Documents      repository.ParsedDocumentRepository
	SalesOrders    *salesorder.Service
	Export         *export.Service
	Inbox          *inbox.Service
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type handler struct {
	Deps
	logger *slog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 20 << 20
	}
	h := &handler{Deps: d, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(logger), cors())
	r.MaxMultipartMemory = d.MaxUploadBytes

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.POST("/parse", h.parse)
	r.POST("/parse/text", h.parseText)

	m := r.Group("/models")
	m.GET("", h.listModels)
	m.POST("", h.createModel)
	m.POST("/detect", h.detect)
	m.POST("/detect/text", h.detectText)
	m.POST("/preview", h.preview)
	m.POST("/preview/text", h.previewText)
	m.GET("/:name", h.getModel)
	m.PUT("/:name", h.updateModel)
	m.POST("/:name/activate", h.activateModel)
	m.POST("/:name/deactivate", h.deactivateModel)

	l := r.Group("/logs")
	l.GET("", h.listLogs)
	l.GET("/export.xlsx", h.exportLogs)
	l.GET("/:id", h.getLog)

	docs := r.Group("/documents")
	docs.GET("", h.listDocuments)
	docs.GET("/export.xlsx", h.exportDocuments)
	docs.GET("/:id/parsed", h.getParsedDocument)
	docs.GET("/:id/parsed/download", h.downloadParsedDocument)

	so := r.Group("/sales-orders")
	so.POST("", h.createSalesOrder)
	so.GET("", h.listSalesOrders)
	so.GET("/:id", h.getSalesOrder)
	so.POST("/:id/submit", h.submitSalesOrder)
	so.POST("/:id/approve", h.approveSalesOrder)
	so.POST("/:id/reject", h.rejectSalesOrder)
	so.POST("/:id/reopen", h.reopenSalesOrder)

	if d.Inbox != nil {
		r.POST("/inbox/scan", h.scanInbox)
	}
	return r
}

// respondError writes {"detail": ...} with the status mapped from err.
func (h *handler) respondError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("http.request.failed", "path", c.FullPath(), "request_id", c.GetString("request_id"), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": common.PublicMessage(err)})
}

func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		ctx := common.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(common.WithCorrelationID(ctx, id))
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http.request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString("request_id"),
		)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")
		c.Header("Access-Control-Expose-Headers", "Content-Disposition, "+requestIDHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
