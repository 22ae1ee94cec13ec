package services

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"document-summarizer/internal/ai"
	"document-summarizer/models"
)

// System prompt fragments that identify each LLM call
const (
	promptDirect     = "expert document summarizer"
	promptSection    = "summarizing document sections"
	promptReduce     = "from multiple sections"
	promptKeyPoints  = "extracting key points"
	promptHighlights = "identifying important passages"
)

type fakeLLM struct {
	mu       sync.Mutex
	calls    []ai.CompletionRequest
	errs     map[string]error
	respond  func(req ai.CompletionRequest) string
	override map[string]string
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{errs: map[string]error{}, override: map[string]string{}}
}

func (f *fakeLLM) Model() string { return "fake-model" }

func (f *fakeLLM) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	for fragment, err := range f.errs {
		if strings.Contains(req.SystemPrompt, fragment) {
			return nil, err
		}
	}
	for fragment, text := range f.override {
		if strings.Contains(req.SystemPrompt, fragment) {
			return &ai.Completion{Text: text, Model: f.Model()}, nil
		}
	}
	if f.respond != nil {
		return &ai.Completion{Text: f.respond(req), Model: f.Model()}, nil
	}
	return &ai.Completion{Text: defaultResponse(req), Model: f.Model()}, nil
}

func (f *fakeLLM) count(fragment string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.Contains(c.SystemPrompt, fragment) {
			n++
		}
	}
	return n
}

func (f *fakeLLM) find(fragment string) (ai.CompletionRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if strings.Contains(c.SystemPrompt, fragment) {
			return c, true
		}
	}
	return ai.CompletionRequest{}, false
}

func (f *fakeLLM) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func defaultResponse(req ai.CompletionRequest) string {
	switch {
	case strings.Contains(req.SystemPrompt, promptKeyPoints):
		return "1. First point\n2. Second point\n- Third point"
	case strings.Contains(req.SystemPrompt, promptHighlights):
		return `[{"text":"quick brown fox","type":"key-point","confidence":0.9},{"text":"lazy dog","type":"definition","confidence":0.7}]`
	case strings.Contains(req.SystemPrompt, promptSection):
		// Echo the part label so ordering is visible in the reduce prompt
		start := strings.Index(req.UserPrompt, "(part ")
		end := strings.Index(req.UserPrompt, ")")
		if start >= 0 && end > start {
			return "summary of " + req.UserPrompt[start+1:end]
		}
		return "section summary"
	default:
		return "A concise summary."
	}
}

type fakeEmbedder struct {
	mu      sync.Mutex
	calls   int
	err     error
	vectors map[string][]float32
	short   bool
}

func (f *fakeEmbedder) Model() string { return "fake-embedding" }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out = append(out, v)
			continue
		}
		out = append(out, []float32{float32(len(t)), 1})
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

type fakeExtractor struct {
	calls  int
	result *ExtractionResult
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) (*ExtractionResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}
	return f.result, nil
}

type fakeStorage struct {
	enabled   bool
	uploadErr error
	content   []byte
	uploads   []string
	downloads []string
	deletes   []string
}

func (f *fakeStorage) Enabled() bool { return f.enabled }

func (f *fakeStorage) Upload(ctx context.Context, localPath, key, contentType string) (bool, error) {
	f.uploads = append(f.uploads, key)
	if f.uploadErr != nil {
		return false, f.uploadErr
	}
	return f.enabled, nil
}

func (f *fakeStorage) Download(ctx context.Context, key, localPath string) (bool, error) {
	f.downloads = append(f.downloads, key)
	if f.content == nil {
		return false, nil
	}
	return true, os.WriteFile(localPath, f.content, 0600)
}

func (f *fakeStorage) Delete(ctx context.Context, key string) (bool, error) {
	f.deletes = append(f.deletes, key)
	return f.enabled, nil
}

func (f *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	return f.enabled, nil
}

func (f *fakeStorage) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if !f.enabled {
		return "", nil
	}
	return "https://storage.example/" + key + "?expires=" + expiry.String(), nil
}

type fakeLock struct {
	held     map[string]bool
	released int
}

func (f *fakeLock) Acquire(ctx context.Context, documentID string) (string, bool, error) {
	if f.held[documentID] {
		return "", false, nil
	}
	if f.held == nil {
		f.held = map[string]bool{}
	}
	f.held[documentID] = true
	return "token", true, nil
}

func (f *fakeLock) Release(ctx context.Context, documentID, token string) error {
	delete(f.held, documentID)
	f.released++
	return nil
}

// memStore is an in-memory Store that records every progress checkpoint
type memStore struct {
	mu         sync.Mutex
	docs       map[string]*models.Document
	summaries  map[string]*models.Summary
	highlights map[string][]models.Highlight
	chunks     map[string][]models.EmbeddingChunk
	jobs       map[string]*models.ProcessingJob
	progress   map[string][]int
	updateErr  error
}

func newMemStore(docs ...*models.Document) *memStore {
	s := &memStore{
		docs:       map[string]*models.Document{},
		summaries:  map[string]*models.Summary{},
		highlights: map[string][]models.Highlight{},
		chunks:     map[string][]models.EmbeddingChunk{},
		jobs:       map[string]*models.ProcessingJob{},
		progress:   map[string][]int{},
	}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *memStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *memStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) ListDocuments(ctx context.Context, skip, limit int64) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Document{}
	for _, d := range s.docs {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpdateDocument(ctx context.Context, id string, update models.DocumentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	d, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	update.Apply(d)
	d.UpdatedAt = time.Now().UTC()
	if update.ProcessingProgress != nil {
		s.progress[id] = append(s.progress[id], *update.ProcessingProgress)
	}
	return nil
}

func (s *memStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	delete(s.summaries, id)
	delete(s.highlights, id)
	delete(s.chunks, id)
	for jid, j := range s.jobs {
		if j.DocumentID == id {
			delete(s.jobs, jid)
		}
	}
	return nil
}

func (s *memStore) ListDocumentsByStatusBefore(ctx context.Context, status string, before time.Time) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Document
	for _, d := range s.docs {
		if d.Status == status && d.UpdatedAt.Before(before) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *memStore) CountDocumentsByStatus(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int64{}
	for _, d := range s.docs {
		counts[d.Status]++
	}
	return counts, nil
}

func (s *memStore) GetSummaryByDocumentID(ctx context.Context, documentID string) (*models.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.summaries[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	return sum, nil
}

func (s *memStore) CreateSummary(ctx context.Context, sum *models.Summary) (*models.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.summaries[sum.DocumentID]; ok {
		return existing, nil
	}
	s.summaries[sum.DocumentID] = sum
	return sum, nil
}

func (s *memStore) ReplaceHighlights(ctx context.Context, documentID string, highlights []models.Highlight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highlights[documentID] = highlights
	return nil
}

func (s *memStore) ListHighlights(ctx context.Context, documentID string) ([]models.Highlight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highlights[documentID], nil
}

func (s *memStore) ReplaceEmbeddingChunks(ctx context.Context, documentID string, chunks []models.EmbeddingChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[documentID] = chunks
	return nil
}

func (s *memStore) ListEmbeddingChunks(ctx context.Context, documentID string) ([]models.EmbeddingChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks[documentID], nil
}

func (s *memStore) CreateJob(ctx context.Context, job *models.ProcessingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memStore) GetJob(ctx context.Context, id string) (*models.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *memStore) UpdateJob(ctx context.Context, id string, u models.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return errors.New("job not found")
	}
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Progress != nil {
		j.Progress = *u.Progress
	}
	if u.Stage != nil {
		j.Stage = *u.Stage
	}
	if u.ErrorMessage != nil {
		j.ErrorMessage = *u.ErrorMessage
	}
	return nil
}

func (s *memStore) ListJobs(ctx context.Context, documentID string) ([]models.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ProcessingJob
	for _, j := range s.jobs {
		if j.DocumentID == documentID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *memStore) doc(id string) *models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id]
}

var _ Store = (*memStore)(nil)
var _ ObjectStorage = (*fakeStorage)(nil)
var _ RunLock = (*fakeLock)(nil)

func strPtr(s string) *string { return &s }
