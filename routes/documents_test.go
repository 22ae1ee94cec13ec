package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"document-summarizer/models"
	"document-summarizer/services"
)

type fakeDocuments struct {
	docs    map[string]*models.Document
	jobs    map[string][]models.ProcessingJob
	created *models.Document
	deleted []string
}

func (f *fakeDocuments) Create(ctx context.Context, up services.Upload) (*models.Document, error) {
	body, _ := io.ReadAll(up.Body)
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		return nil, fmt.Errorf("not a pdf: %w", services.ErrValidation)
	}
	f.created = &models.Document{ID: "new-doc", OriginalName: up.Filename, FilePath: "uploads/new-doc.pdf", Status: models.StatusUploading}
	return f.created, nil
}

func (f *fakeDocuments) List(ctx context.Context, skip, limit int64) ([]models.Document, error) {
	var out []models.Document
	for _, d := range f.docs {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeDocuments) Get(ctx context.Context, id string) (*models.Document, error) {
	if d, ok := f.docs[id]; ok {
		return d, nil
	}
	return nil, services.ErrNotFound
}

func (f *fakeDocuments) Delete(ctx context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return services.ErrNotFound
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDocuments) Status(ctx context.Context, id string) (*models.ProcessingStatusResponse, error) {
	d, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ProcessingStatusResponse{DocumentID: d.ID, Status: d.Status, Progress: d.ProcessingProgress, ErrorMessage: d.ErrorMessage}, nil
}

func (f *fakeDocuments) Stats(ctx context.Context) (*models.ProcessingStats, error) {
	return &models.ProcessingStats{Total: int64(len(f.docs))}, nil
}

func (f *fakeDocuments) Jobs(ctx context.Context, id string) ([]models.ProcessingJob, error) {
	return append([]models.ProcessingJob{}, f.jobs[id]...), nil
}

func (f *fakeDocuments) Highlights(ctx context.Context, id string) ([]models.Highlight, error) {
	return []models.Highlight{}, nil
}

func (f *fakeDocuments) DownloadURL(ctx context.Context, id string) (string, error) {
	return "", nil
}

type fakeSummaries struct {
	summary *models.Summary
}

func (f *fakeSummaries) Get(ctx context.Context, documentID string) (*models.Summary, error) {
	if f.summary == nil {
		return nil, services.ErrNotFound
	}
	return f.summary, nil
}

type fakeSearch struct{}

func (fakeSearch) Search(ctx context.Context, documentID, query string, topK int) ([]models.SearchResult, error) {
	return []models.SearchResult{{ChunkIndex: 0, Text: "alpha", SimilarityScore: 0.9}}, nil
}

func (fakeSearch) FindInDocument(ctx context.Context, documentID, query string) ([]models.TextMatch, error) {
	return services.FindMatches("alpha beta alpha", query, 10), nil
}

type fakeTasks struct {
	enqueued []string
}

func (f *fakeTasks) record(kind, id string) (*models.ProcessingJob, error) {
	f.enqueued = append(f.enqueued, kind+":"+id)
	return &models.ProcessingJob{ID: "job-1", DocumentID: id, Status: models.JobPending}, nil
}

func (f *fakeTasks) EnqueueProcessDocument(ctx context.Context, documentID, filePath string) (*models.ProcessingJob, error) {
	return f.record("process", documentID)
}

func (f *fakeTasks) EnqueueGenerateSummary(ctx context.Context, documentID string) (*models.ProcessingJob, error) {
	return f.record("summarize", documentID)
}

func (f *fakeTasks) EnqueueGenerateEmbeddings(ctx context.Context, documentID string) (*models.ProcessingJob, error) {
	return f.record("embed", documentID)
}

func strPtr(s string) *string { return &s }

func setupRouter() (*gin.Engine, *fakeDocuments, *fakeTasks) {
	gin.SetMode(gin.TestMode)
	docs := &fakeDocuments{
		docs: map[string]*models.Document{
			"done":    {ID: "done", Status: models.StatusCompleted, ProcessingProgress: 100, TextContent: strPtr("alpha beta")},
			"busy":    {ID: "busy", Status: models.StatusProcessing, ProcessingProgress: 40},
			"failed":  {ID: "failed", Status: models.StatusError, ErrorMessage: strPtr("text extraction failed")},
			"no-text": {ID: "no-text", Status: models.StatusUploading},
			"queued":  {ID: "queued", Status: models.StatusUploading},
			"stuck":   {ID: "stuck", Status: models.StatusProcessing, ProcessingProgress: 10},
		},
		jobs: map[string][]models.ProcessingJob{
			"busy": {
				{ID: "busy-job", DocumentID: "busy", JobType: models.JobTypeTextExtraction, Status: models.JobRunning},
			},
			"queued": {
				{ID: "queued-summary", DocumentID: "queued", JobType: models.JobTypeSummarization, Status: models.JobPending},
				{ID: "queued-job", DocumentID: "queued", JobType: models.JobTypeTextExtraction, Status: models.JobPending},
			},
			"stuck": {
				{ID: "stuck-job", DocumentID: "stuck", JobType: models.JobTypeTextExtraction, Status: models.JobFailed},
			},
		},
	}
	tasks := &fakeTasks{}
	router := gin.New()
	SetupDocumentRoutes(router, NewDocumentHandler(docs, &fakeSummaries{}, fakeSearch{}, tasks))
	return router, docs, tasks
}

func do(router *gin.Engine, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestDocumentRoutes(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		path         string
		body         string
		wantStatus   int
		wantEnqueued string
	}{
		{name: "status", method: http.MethodGet, path: "/api/v1/documents/failed/status", wantStatus: http.StatusOK},
		{name: "missing document", method: http.MethodGet, path: "/api/v1/documents/nope", wantStatus: http.StatusNotFound},
		{name: "process completed is a no-op", method: http.MethodPost, path: "/api/v1/documents/done/process", wantStatus: http.StatusOK},
		{name: "process busy conflicts", method: http.MethodPost, path: "/api/v1/documents/busy/process", wantStatus: http.StatusConflict},
		{name: "process uploading with queued job conflicts", method: http.MethodPost, path: "/api/v1/documents/queued/process", wantStatus: http.StatusConflict},
		{name: "process uploading without job", method: http.MethodPost, path: "/api/v1/documents/no-text/process", wantStatus: http.StatusAccepted, wantEnqueued: "process:no-text"},
		{name: "process stuck document requeues", method: http.MethodPost, path: "/api/v1/documents/stuck/process", wantStatus: http.StatusAccepted, wantEnqueued: "process:stuck"},
		{name: "process failed retries", method: http.MethodPost, path: "/api/v1/documents/failed/process", wantStatus: http.StatusAccepted, wantEnqueued: "process:failed"},
		{name: "summary missing", method: http.MethodGet, path: "/api/v1/documents/done/summary", wantStatus: http.StatusNotFound},
		{name: "summary generation", method: http.MethodPost, path: "/api/v1/documents/done/summary", wantStatus: http.StatusAccepted, wantEnqueued: "summarize:done"},
		{name: "summary without text", method: http.MethodPost, path: "/api/v1/documents/no-text/summary", wantStatus: http.StatusConflict},
		{name: "embeddings", method: http.MethodPost, path: "/api/v1/documents/done/embeddings", wantStatus: http.StatusAccepted, wantEnqueued: "embed:done"},
		{name: "search", method: http.MethodPost, path: "/api/v1/documents/done/search", body: `{"query":"alpha"}`, wantStatus: http.StatusOK},
		{name: "search without query", method: http.MethodPost, path: "/api/v1/documents/done/search", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "find", method: http.MethodGet, path: "/api/v1/documents/done/find?q=alpha", wantStatus: http.StatusOK},
		{name: "find without query", method: http.MethodGet, path: "/api/v1/documents/done/find", wantStatus: http.StatusBadRequest},
		{name: "download not mirrored", method: http.MethodGet, path: "/api/v1/documents/done/download", wantStatus: http.StatusNotFound},
		{name: "delete", method: http.MethodDelete, path: "/api/v1/documents/done", wantStatus: http.StatusOK},
		{name: "stats", method: http.MethodGet, path: "/api/v1/stats", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, tasks := setupRouter()
			var body io.Reader
			contentType := ""
			if tt.body != "" {
				body = strings.NewReader(tt.body)
				contentType = "application/json"
			}

			w := do(router, tt.method, tt.path, body, contentType)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantEnqueued != "" && (len(tasks.enqueued) != 1 || tasks.enqueued[0] != tt.wantEnqueued) {
				t.Errorf("enqueued = %v, want %s", tasks.enqueued, tt.wantEnqueued)
			}
			if tt.wantEnqueued == "" && len(tasks.enqueued) != 0 {
				t.Errorf("unexpected tasks %v", tasks.enqueued)
			}
		})
	}
}

func TestStatusExposesErrorMessage(t *testing.T) {
	router, _, _ := setupRouter()
	w := do(router, http.MethodGet, "/api/v1/documents/failed/status", nil, "")

	var resp models.ProcessingStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ErrorMessage == nil || *resp.ErrorMessage != "text extraction failed" {
		t.Errorf("error_message = %v", resp.ErrorMessage)
	}
}

func TestProcessReturnsQueuedJob(t *testing.T) {
	router, _, tasks := setupRouter()
	w := do(router, http.MethodPost, "/api/v1/documents/queued/process", nil, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"queued-job"`) || strings.Contains(w.Body.String(), `"queued-summary"`) {
		t.Errorf("body %s should carry the extraction job only", w.Body.String())
	}
	if len(tasks.enqueued) != 0 {
		t.Errorf("unexpected tasks %v", tasks.enqueued)
	}
}

func TestUpload(t *testing.T) {
	router, docs, tasks := setupRouter()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("%PDF-1.4 test"))
	mw.Close()

	w := do(router, http.MethodPost, "/api/v1/documents", &buf, mw.FormDataContentType())
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if docs.created == nil || docs.created.OriginalName != "report.pdf" {
		t.Errorf("created = %+v", docs.created)
	}
	if len(tasks.enqueued) != 1 || tasks.enqueued[0] != "process:new-doc" {
		t.Errorf("enqueued = %v", tasks.enqueued)
	}
}

func TestUploadWithoutFile(t *testing.T) {
	router, _, tasks := setupRouter()
	w := do(router, http.MethodPost, "/api/v1/documents", strings.NewReader("{}"), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
	if len(tasks.enqueued) != 0 {
		t.Errorf("unexpected tasks %v", tasks.enqueued)
	}
}
