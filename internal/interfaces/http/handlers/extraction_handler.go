package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/NeuroChart-Intelligence/internal/application/extraction"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/common"
)

// ExtractionHandler serves the extraction API.
type ExtractionHandler struct {
	service extraction.Service
	logger  logging.Logger
}

// NewExtractionHandler constructs the handler.  logger may be nil.
func NewExtractionHandler(service extraction.Service, logger logging.Logger) *ExtractionHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ExtractionHandler{service: service, logger: logger.Named("extraction_handler")}
}

// RegisterRoutes mounts the extraction endpoints on the given group.
func (h *ExtractionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/extractions", h.Create)
	rg.POST("/extractions/async", h.CreateAsync)
	rg.GET("/extractions", h.List)
	rg.GET("/extractions/search", h.Search)
	rg.GET("/extractions/:id", h.Get)
	rg.DELETE("/extractions/:id", h.Delete)
}

// Create runs an extraction synchronously and returns the full session.
func (h *ExtractionHandler) Create(c *gin.Context) {
	var req clinical.ExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeValidation, "malformed request body"))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeValidation, "invalid extraction request"))
		return
	}

	session, err := h.service.Extract(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// asyncAccepted is the response body for queued extractions.
type asyncAccepted struct {
	JobID string `json:"job_id"`
}

// CreateAsync enqueues the extraction and returns a job ID immediately.
func (h *ExtractionHandler) CreateAsync(c *gin.Context) {
	var req clinical.ExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeValidation, "malformed request body"))
		return
	}

	jobID, err := h.service.Enqueue(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, asyncAccepted{JobID: jobID})
}

// Get returns one archived session by ID.
func (h *ExtractionHandler) Get(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// List returns archived session summaries, newest first.
func (h *ExtractionHandler) List(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	summaries, err := h.service.ListSessions(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": summaries, "count": len(summaries)})
}

// Search runs a full-text query over deduplicated note text.
func (h *ExtractionHandler) Search(c *gin.Context) {
	text := c.Query("q")
	if text == "" {
		respondError(c, errors.New(errors.ErrCodeValidation, "query parameter q is required"))
		return
	}

	hits, err := h.service.SearchSessions(c.Request.Context(), text, queryInt(c, "limit", 20))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits, "count": len(hits)})
}

// Delete removes a session from every backend.
func (h *ExtractionHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteSession(c.Request.Context(), common.ID(c.Param("id"))); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
