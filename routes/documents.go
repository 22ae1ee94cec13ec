package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"document-summarizer/internal/logger"
	"document-summarizer/models"
	"document-summarizer/services"
	"document-summarizer/utils"
)

type documentAPI interface {
	Create(ctx context.Context, up services.Upload) (*models.Document, error)
	List(ctx context.Context, skip, limit int64) ([]models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	Delete(ctx context.Context, id string) error
	Status(ctx context.Context, id string) (*models.ProcessingStatusResponse, error)
	Stats(ctx context.Context) (*models.ProcessingStats, error)
	Jobs(ctx context.Context, id string) ([]models.ProcessingJob, error)
	Highlights(ctx context.Context, id string) ([]models.Highlight, error)
	DownloadURL(ctx context.Context, id string) (string, error)
}

type summaryAPI interface {
	Get(ctx context.Context, documentID string) (*models.Summary, error)
}

type searchAPI interface {
	Search(ctx context.Context, documentID, query string, topK int) ([]models.SearchResult, error)
	FindInDocument(ctx context.Context, documentID, query string) ([]models.TextMatch, error)
}

type taskEnqueuer interface {
	EnqueueProcessDocument(ctx context.Context, documentID, filePath string) (*models.ProcessingJob, error)
	EnqueueGenerateSummary(ctx context.Context, documentID string) (*models.ProcessingJob, error)
	EnqueueGenerateEmbeddings(ctx context.Context, documentID string) (*models.ProcessingJob, error)
}

// DocumentHandler serves the document API
type DocumentHandler struct {
	documents documentAPI
	summaries summaryAPI
	search    searchAPI
	tasks     taskEnqueuer
}

func NewDocumentHandler(documents documentAPI, summaries summaryAPI, search searchAPI, tasks taskEnqueuer) *DocumentHandler {
	return &DocumentHandler{documents: documents, summaries: summaries, search: search, tasks: tasks}
}

// SetupDocumentRoutes mounts the document API under /api/v1. upload guards the
// routes that accept files or start work.
func SetupDocumentRoutes(router *gin.Engine, h *DocumentHandler, upload ...gin.HandlerFunc) {
	api := router.Group("/api/v1")
	guarded := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, upload...), handler)
	}

	api.GET("/stats", h.Stats)

	docs := api.Group("/documents")
	docs.GET("", h.List)
	docs.POST("", guarded(h.Upload)...)
	docs.GET("/:id", h.Get)
	docs.DELETE("/:id", h.Delete)
	docs.GET("/:id/status", h.Status)
	docs.POST("/:id/process", guarded(h.Process)...)
	docs.GET("/:id/summary", h.GetSummary)
	docs.POST("/:id/summary", guarded(h.GenerateSummary)...)
	docs.POST("/:id/embeddings", guarded(h.GenerateEmbeddings)...)
	docs.GET("/:id/highlights", h.Highlights)
	docs.POST("/:id/search", h.Search)
	docs.GET("/:id/find", h.Find)
	docs.GET("/:id/jobs", h.Jobs)
	docs.GET("/:id/download", h.Download)
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "no_file", "No PDF file provided", nil)
		return
	}
	defer file.Close()

	ctx, cancel := utils.WithLongTimeout(c.Request.Context())
	defer cancel()

	doc, err := h.documents.Create(ctx, services.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		respondError(c, err, "Failed to save document")
		return
	}

	job, err := h.tasks.EnqueueProcessDocument(ctx, doc.ID, doc.FilePath)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to enqueue processing", "document_id", doc.ID, "error", err)
		utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_error", "Document saved but processing could not be scheduled",
			gin.H{"document_id": doc.ID})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":  "Document accepted for processing",
		"document": doc,
		"job":      job,
	})
}

func (h *DocumentHandler) List(c *gin.Context) {
	skip, _ := strconv.ParseInt(c.DefaultQuery("skip", "0"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)

	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	docs, err := h.documents.List(ctx, skip, limit)
	if err != nil {
		respondError(c, err, "Failed to list documents")
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "skip": skip, "limit": limit})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	doc, err := h.documents.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load document")
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	ctx, cancel := utils.WithLongTimeout(c.Request.Context())
	defer cancel()

	if err := h.documents.Delete(ctx, c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete document")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
}

func (h *DocumentHandler) Status(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	status, err := h.documents.Status(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load status")
		return
	}
	c.JSON(http.StatusOK, status)
}

// Process schedules a pipeline run. A completed document is not reprocessed,
// and a document with a pending or running extraction job gets that job back
// with 409 instead of a second one.
func (h *DocumentHandler) Process(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	doc, err := h.documents.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load document")
		return
	}

	switch doc.Status {
	case models.StatusCompleted:
		c.JSON(http.StatusOK, gin.H{"message": "Document already processed", "document_id": doc.ID, "status": doc.Status})
		return
	case models.StatusUploading, models.StatusProcessing:
		job, err := h.activeJob(ctx, doc.ID, models.JobTypeTextExtraction)
		if err != nil {
			respondError(c, err, "Failed to load jobs")
			return
		}
		if job != nil {
			utils.RespondWithError(c, http.StatusConflict, "conflict", "Document is already queued for processing", gin.H{"job": job})
			return
		}
		// No live job left: the previous one failed or was lost
	}

	h.enqueue(c, doc.ID, func(ctx context.Context) (*models.ProcessingJob, error) {
		return h.tasks.EnqueueProcessDocument(ctx, doc.ID, doc.FilePath)
	})
}

func (h *DocumentHandler) GetSummary(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	summary, err := h.summaries.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GenerateSummary returns the existing summary or schedules generation.
func (h *DocumentHandler) GenerateSummary(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	summary, err := h.summaries.Get(ctx, id)
	if err == nil {
		c.JSON(http.StatusOK, summary)
		return
	}
	if !errors.Is(err, services.ErrNotFound) {
		respondError(c, err, "Failed to load summary")
		return
	}

	if !h.hasText(ctx, c, id) {
		return
	}
	h.enqueue(c, id, func(ctx context.Context) (*models.ProcessingJob, error) {
		return h.tasks.EnqueueGenerateSummary(ctx, id)
	})
}

func (h *DocumentHandler) GenerateEmbeddings(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	if !h.hasText(ctx, c, id) {
		return
	}
	h.enqueue(c, id, func(ctx context.Context) (*models.ProcessingJob, error) {
		return h.tasks.EnqueueGenerateEmbeddings(ctx, id)
	})
}

func (h *DocumentHandler) Highlights(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	highlights, err := h.documents.Highlights(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load highlights")
		return
	}
	c.JSON(http.StatusOK, gin.H{"highlights": highlights})
}

type searchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

func (h *DocumentHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := utils.WithLongTimeout(c.Request.Context())
	defer cancel()

	results, err := h.search.Search(ctx, c.Param("id"), req.Query, req.TopK)
	if err != nil {
		respondError(c, err, "Search failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": req.Query, "results": results})
}

func (h *DocumentHandler) Find(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		utils.RespondWithBadRequest(c, "Query parameter q is required", nil)
		return
	}

	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	matches, err := h.search.FindInDocument(ctx, c.Param("id"), query)
	if err != nil {
		respondError(c, err, "Search failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "matches": matches})
}

func (h *DocumentHandler) Jobs(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	jobs, err := h.documents.Jobs(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load jobs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *DocumentHandler) Download(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	url, err := h.documents.DownloadURL(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to create download URL")
		return
	}
	if url == "" {
		utils.RespondWithNotFound(c, "Document is not available in object storage")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *DocumentHandler) Stats(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	stats, err := h.documents.Stats(ctx)
	if err != nil {
		respondError(c, err, "Failed to compute stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *DocumentHandler) hasText(ctx context.Context, c *gin.Context, id string) bool {
	doc, err := h.documents.Get(ctx, id)
	if err != nil {
		respondError(c, err, "Failed to load document")
		return false
	}
	if doc.Text() == "" {
		utils.RespondWithConflict(c, "Document has no extracted text yet")
		return false
	}
	return true
}

// activeJob returns the newest pending or running job of jobType, or nil.
func (h *DocumentHandler) activeJob(ctx context.Context, documentID, jobType string) (*models.ProcessingJob, error) {
	jobs, err := h.documents.Jobs(ctx, documentID)
	if err != nil {
		return nil, err
	}
	var active *models.ProcessingJob
	for i := range jobs {
		job := &jobs[i]
		if job.JobType != jobType || (job.Status != models.JobPending && job.Status != models.JobRunning) {
			continue
		}
		if active == nil || job.CreatedAt.After(active.CreatedAt) {
			active = job
		}
	}
	return active, nil
}

func (h *DocumentHandler) enqueue(c *gin.Context, documentID string, fn func(context.Context) (*models.ProcessingJob, error)) {
	job, err := fn(c.Request.Context())
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("Failed to enqueue task", "document_id", documentID, "error", err)
		utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_error", "Task could not be scheduled", nil)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"document_id": documentID, "job": job})
}

// respondError maps service errors to status codes. Only validation messages
// reach the client.
func respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.RespondWithNotFound(c, "Resource not found")
	case errors.Is(err, services.ErrValidation):
		utils.RespondWithBadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrNoText):
		utils.RespondWithConflict(c, "Document has no extracted text yet")
	default:
		logger.FromContext(c.Request.Context()).Error(message, "error", err)
		utils.RespondWithInternalError(c, message, nil)
	}
}
