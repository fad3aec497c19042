package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/pharmacy-workflow/internal/application/service"
	appwf "github.com/garyjia/pharmacy-workflow/internal/application/workflow"
	domainwf "github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

// HealthChecker reports the health of each wired component; a nil error means healthy
type HealthChecker interface {
	HealthCheck(ctx context.Context) map[string]error
}

// HandlerConfig holds request limits and export settings
type HandlerConfig struct {
	MaxNoteLength     int
	ExportContentType string
	ExportExtension   string
}

// DefaultHandlerConfig returns default handler configuration
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		MaxNoteLength:     2000,
		ExportContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		ExportExtension:   "xlsx",
	}
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine appwf.Engine
	bridge service.NotificationBridge
	query  service.CaseQueryService
	intake service.IntakeService
	health HealthChecker
	config HandlerConfig
	logger Logger
}

// NewHandlers creates a new Handlers instance; health may be nil
func NewHandlers(
	engine appwf.Engine,
	bridge service.NotificationBridge,
	query service.CaseQueryService,
	intake service.IntakeService,
	health HealthChecker,
	config HandlerConfig,
	logger Logger,
) *Handlers {
	return &Handlers{
		engine: engine,
		bridge: bridge,
		query:  query,
		intake: intake,
		health: health,
		config: config,
		logger: logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

// ListData wraps collections so empty results serialize as []
type ListData[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newListData[T any](items []T) ListData[T] {
	if items == nil {
		items = []T{}
	}
	return ListData[T]{Items: items, Count: len(items)}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if h.health != nil {
		resp.Components = make(map[string]string)
		for name, err := range h.health.HealthCheck(c.Request.Context()) {
			if err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	c.JSON(code, Response{Success: code == http.StatusOK, Data: resp})
}

// CreateCase handles POST /api/cases
func (h *Handlers) CreateCase(c *gin.Context) {
	var req CreateCaseRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if !h.checkNoteLength(c, req.Note) {
		return
	}

	created, err := h.intake.CreateCase(c.Request.Context(), service.CaseDraft{
		Kind:               req.Kind,
		Patient:            req.Patient,
		Insurance:          req.Insurance,
		Prescription:       req.Prescription,
		VaccineAppointment: req.VaccineAppointment,
		Priority:           req.Priority,
		Note:               req.Note,
		CreatedBy:          req.CreatedBy,
	})
	if err != nil {
		h.respondError(c, "create case", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: created})
}

// GetCase handles GET /api/cases/:id
func (h *Handlers) GetCase(c *gin.Context) {
	found, err := h.engine.GetCase(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get case", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: found})
}

// CaseHistory handles GET /api/cases/:id/history
func (h *Handlers) CaseHistory(c *gin.Context) {
	entries, err := h.engine.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "case history", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: newListData(entries)})
}

// ListCases handles GET /api/cases
func (h *Handlers) ListCases(c *gin.Context) {
	var q ListCasesQuery
	if !h.bindQuery(c, &q) {
		return
	}

	cases, err := h.query.Search(c.Request.Context(), q.Filter())
	if err != nil {
		h.respondError(c, "list cases", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: newListData(cases)})
}

// StageQueue handles GET /api/cases/queue/:stage
func (h *Handlers) StageQueue(c *gin.Context) {
	stage := domainwf.Stage(strings.ToUpper(c.Param("stage")))
	if !stage.IsValid() {
		h.respondError(c, "stage queue", fmt.Errorf("%w: unknown stage %q", domainwf.ErrValidation, c.Param("stage")))
		return
	}

	cases, err := h.query.PendingQueue(c.Request.Context(), stage)
	if err != nil {
		h.respondError(c, "stage queue", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: newListData(cases)})
}

// ExportCases handles GET /api/cases/export
func (h *Handlers) ExportCases(c *gin.Context) {
	var q ListCasesQuery
	if !h.bindQuery(c, &q) {
		return
	}

	var buf bytes.Buffer
	if err := h.query.ExportQueue(c.Request.Context(), q.Filter(), &buf); err != nil {
		h.respondError(c, "export cases", err)
		return
	}

	fileName := fmt.Sprintf("work-queue-%s.%s", time.Now().UTC().Format("20060102-150405"), h.config.ExportExtension)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, h.config.ExportContentType, buf.Bytes())
}

// AdvanceCase handles PUT /api/cases/:id/advance
func (h *Handlers) AdvanceCase(c *gin.Context) {
	var req ActorRequest
	if !h.bindJSON(c, &req) {
		return
	}
	updated, err := h.engine.Advance(c.Request.Context(), c.Param("id"), req.ActorID)
	h.respondCase(c, "advance case", updated, err)
}

// RejectCase handles PUT /api/cases/:id/reject
func (h *Handlers) RejectCase(c *gin.Context) {
	var req ReasonRequest
	if !h.bindJSON(c, &req) || !h.checkNoteLength(c, req.Reason) {
		return
	}
	updated, err := h.engine.RejectToPreviousStage(c.Request.Context(), c.Param("id"), req.Reason, req.ActorID)
	h.respondCase(c, "reject case", updated, err)
}

// ApplyDecision handles PUT /api/cases/:id/decision
func (h *Handlers) ApplyDecision(c *gin.Context) {
	var req DecisionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	trigger := domainwf.Trigger(strings.ToUpper(strings.TrimSpace(req.Trigger)))
	updated, err := h.engine.ApplyDecision(c.Request.Context(), c.Param("id"), trigger, req.ActorID)
	h.respondCase(c, "apply decision", updated, err)
}

// CancelCase handles PUT /api/cases/:id/cancel
func (h *Handlers) CancelCase(c *gin.Context) {
	var req ReasonRequest
	if !h.bindJSON(c, &req) || !h.checkNoteLength(c, req.Reason) {
		return
	}
	updated, err := h.engine.Cancel(c.Request.Context(), c.Param("id"), req.Reason, req.ActorID)
	h.respondCase(c, "cancel case", updated, err)
}

// AssignCase handles PUT /api/cases/:id/assign
func (h *Handlers) AssignCase(c *gin.Context) {
	var req AssignRequest
	if !h.bindJSON(c, &req) {
		return
	}
	updated, err := h.engine.AssignToUser(c.Request.Context(), c.Param("id"), req.AssignedTo, req.AssignedBy)
	h.respondCase(c, "assign case", updated, err)
}

// AddNotes handles PUT /api/cases/:id/notes
func (h *Handlers) AddNotes(c *gin.Context) {
	var req NotesRequest
	if !h.bindJSON(c, &req) || !h.checkNoteLength(c, req.Note) {
		return
	}
	updated, err := h.engine.AddNotes(c.Request.Context(), c.Param("id"), req.Note, req.ActorID)
	h.respondCase(c, "add notes", updated, err)
}

// MarkPriority handles PUT /api/cases/:id/priority
func (h *Handlers) MarkPriority(c *gin.Context) {
	var req PriorityRequest
	if !h.bindJSON(c, &req) {
		return
	}
	updated, err := h.engine.MarkAsPriority(c.Request.Context(), c.Param("id"), *req.Priority, req.ActorID)
	h.respondCase(c, "mark priority", updated, err)
}

// RetryNotification handles PUT /api/cases/:id/retry-notification
func (h *Handlers) RetryNotification(c *gin.Context) {
	var req ActorRequest
	if !h.bindJSON(c, &req) {
		return
	}
	updated, err := h.engine.RetryNotification(c.Request.Context(), c.Param("id"), req.ActorID)
	h.respondCase(c, "retry notification", updated, err)
}

func (h *Handlers) respondCase(c *gin.Context, op string, data interface{}, err error) {
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// respondError maps a domain error onto its status code. Storage failure
// details stay in the log.
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	kind := domainwf.Classify(err)
	resp := Response{
		Success:   false,
		Error:     err.Error(),
		ErrorKind: string(kind),
		Retryable: kind == domainwf.KindConcurrentModification,
	}

	if kind.IsClientError() {
		h.logger.Info("Request rejected", "operation", op, "kind", kind, "error", err)
	} else {
		h.logger.Error("Request failed", "operation", op, "error", err)
		resp.Error = "internal storage failure"
	}

	c.JSON(kind.HTTPStatus(), resp)
}

func (h *Handlers) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.respondError(c, "bind request", fmt.Errorf("%w: invalid request body: %v", domainwf.ErrValidation, err))
		return false
	}
	return true
}

func (h *Handlers) bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		h.respondError(c, "bind query", fmt.Errorf("%w: invalid query parameters: %v", domainwf.ErrValidation, err))
		return false
	}
	return true
}

func (h *Handlers) checkNoteLength(c *gin.Context, text string) bool {
	if h.config.MaxNoteLength > 0 && utf8.RuneCountInString(text) > h.config.MaxNoteLength {
		h.respondError(c, "check note", fmt.Errorf("%w: note exceeds %d characters", domainwf.ErrValidation, h.config.MaxNoteLength))
		return false
	}
	return true
}
