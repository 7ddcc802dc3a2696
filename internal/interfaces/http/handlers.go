package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/application/service"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/garyjia/eak-connector/internal/domain/fault"
	"github.com/garyjia/eak-connector/internal/infrastructure/worker"
)

// SyncRunner runs the named sync job on demand and reports worker state
type SyncRunner interface {
	RunNow(ctx context.Context, name string) (*service.RunReport, error)
	Statuses() []worker.Status
}

// LogExporter renders sync log entries as a workbook
type LogExporter interface {
	Write(w io.Writer, entries []*entity.SyncLogEntry) error
}

// HandlerDeps groups the collaborators of the HTTP handlers
type HandlerDeps struct {
	Runner      SyncRunner
	Invoices    service.InvoiceExportService
	Attachments service.AttachmentSyncService
	Logs        port.SyncLogReader
	Exporter    LogExporter
	Version     string
	Logger      Logger
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	HandlerDeps
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps HandlerDeps) *Handlers {
	return &Handlers{HandlerDeps: deps}
}

const (
	defaultLogLimit = 200
	maxLogLimit     = 5000
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Version   string          `json:"version"`
	Workers   []worker.Status `json:"workers"`
}

// SyncResponse is returned by interactive sync triggers
type SyncResponse struct {
	Report        *service.RunReport     `json:"report"`
	Notifications []service.Notification `json:"notifications"`
}

// SyncLogQuery represents query parameters for listing sync log entries
type SyncLogQuery struct {
	Since string `form:"since"`
	Limit int    `form:"limit"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   h.Version,
			Workers:   h.Runner.Statuses(),
		},
	})
}

// TriggerSync handles POST /api/sync/:job
func (h *Handlers) TriggerSync(c *gin.Context) {
	job := c.Param("job")
	report, err := h.Runner.RunNow(c.Request.Context(), job)
	if err != nil {
		h.Logger.Error("Sync trigger failed", "job", job, "error", err)
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    SyncResponse{Report: report, Notifications: report.Notifications()},
	})
}

// SubmitInvoice handles POST /api/invoices/:id/submit
func (h *Handlers) SubmitInvoice(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	result, err := h.Invoices.Submit(c.Request.Context(), id)
	if err != nil {
		h.Logger.Error("Invoice submission failed", "invoice_id", id, "error", err)
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// FetchAttachment handles POST /api/vendor-bills/:id/attachment
func (h *Handlers) FetchAttachment(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	outcome, err := h.Attachments.FetchForBill(c.Request.Context(), id)
	if err != nil {
		h.Logger.Error("Attachment fetch failed", "bill_id", id, "error", err)
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"outcome":      outcome,
			"notification": outcome.Notification(entity.JobAttachmentSync),
		},
	})
}

// ListSyncLogs handles GET /api/sync-logs
func (h *Handlers) ListSyncLogs(c *gin.Context) {
	entries, ok := h.querySyncLogs(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// ExportSyncLogs handles GET /api/sync-logs/export.xlsx
func (h *Handlers) ExportSyncLogs(c *gin.Context) {
	entries, ok := h.querySyncLogs(c)
	if !ok {
		return
	}

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="eak_sync_log_%s.xlsx"`, time.Now().UTC().Format("20060102_150405")))
	c.Status(http.StatusOK)
	if err := h.Exporter.Write(c.Writer, entries); err != nil {
		h.Logger.Error("Sync log export failed", "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}

func (h *Handlers) querySyncLogs(c *gin.Context) ([]*entity.SyncLogEntry, bool) {
	var q SyncLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return nil, false
	}

	var since time.Time
	if q.Since != "" {
		t, err := time.Parse(time.RFC3339, q.Since)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "since must be an RFC3339 timestamp"})
			return nil, false
		}
		since = t
	}
	if q.Limit <= 0 {
		q.Limit = defaultLogLimit
	}
	if q.Limit > maxLogLimit {
		q.Limit = maxLogLimit
	}

	entries, err := h.Logs.List(c.Request.Context(), since, q.Limit)
	if err != nil {
		h.Logger.Error("Failed to list sync logs", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to retrieve sync logs"})
		return nil, false
	}
	return entries, true
}

func (h *Handlers) parseID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid id"})
		return 0, false
	}
	return id, true
}

// respondError maps application errors to HTTP status codes
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()

	switch {
	case errors.Is(err, port.ErrNotFound), errors.Is(err, worker.ErrUnknownWorker):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNotEAKInvoice), errors.Is(err, service.ErrNotEAKBill):
		status = http.StatusConflict
	case errors.Is(err, fault.ErrValidation):
		status = http.StatusUnprocessableEntity
		msg = fault.Message(err)
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		if f, ok := fault.As(err); ok {
			status = http.StatusBadGateway
			msg = f.UserMessage()
		}
	}

	c.JSON(status, Response{Success: false, Error: msg})
}
