package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"document-summarizer/models"
)

func TestSummarizeDirect(t *testing.T) {
	llm := newFakeLLM()
	s := NewSummarizer(llm, nil, SummarizerOptions{})

	result, err := s.Summarize(context.Background(), "A short document about foxes.", "foxes.pdf", 0)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if result.Method != MethodDirect || result.ChunksProcessed != 0 {
		t.Errorf("method %s chunks %d", result.Method, result.ChunksProcessed)
	}
	if result.Summary != "A concise summary." || result.Model != "fake-model" {
		t.Errorf("unexpected result %+v", result)
	}
	want := []string{"First point", "Second point", "Third point"}
	if !reflect.DeepEqual(result.KeyPoints, want) {
		t.Errorf("key points = %q, want %q", result.KeyPoints, want)
	}
	if llm.total() != 2 {
		t.Errorf("made %d LLM calls, want 2", llm.total())
	}

	req, _ := llm.find(promptDirect)
	if req.MaxTokens != 1000 || req.Temperature != 0.3 {
		t.Errorf("direct request max_tokens %d temperature %v", req.MaxTokens, req.Temperature)
	}
	if !strings.Contains(req.UserPrompt, `"foxes.pdf"`) || !strings.Contains(req.UserPrompt, "Maximum 500 words") {
		t.Error("direct prompt missing title or word limit")
	}
	kp, _ := llm.find(promptKeyPoints)
	if kp.MaxTokens != 400 || kp.Temperature != 0.2 || !strings.Contains(kp.UserPrompt, "A concise summary.") {
		t.Errorf("unexpected key point request %+v", kp)
	}
}

func TestSummarizeChunked(t *testing.T) {
	llm := newFakeLLM()
	splitter := NewTextSplitter(4000, 200)
	s := NewSummarizer(llm, splitter, SummarizerOptions{Concurrency: 3})

	text := words(5000)
	wantChunks := len(splitter.Split(text))
	if wantChunks < 2 {
		t.Fatalf("test text should need several chunks, got %d", wantChunks)
	}

	result, err := s.Summarize(context.Background(), text, "long.pdf", 200)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if result.Method != MethodChunked || result.ChunksProcessed != wantChunks {
		t.Errorf("method %s chunks %d, want chunked %d", result.Method, result.ChunksProcessed, wantChunks)
	}
	if got := llm.count(promptSection); got != wantChunks {
		t.Errorf("section calls = %d, want %d", got, wantChunks)
	}
	if llm.count(promptReduce) != 1 || llm.count(promptKeyPoints) != 1 || llm.count(promptDirect) != 0 {
		t.Error("expected one reduce and one key point call and no direct call")
	}

	reduce, _ := llm.find(promptReduce)
	if reduce.MaxTokens != 400 || !strings.Contains(reduce.UserPrompt, "maximum 200 words") {
		t.Errorf("reduce request max_tokens %d", reduce.MaxTokens)
	}
	last := -1
	for i := 1; i <= wantChunks; i++ {
		pos := strings.Index(reduce.UserPrompt, fmt.Sprintf("summary of part %d of %d", i, wantChunks))
		if pos < 0 {
			t.Fatalf("reduce prompt missing section %d", i)
		}
		if pos < last {
			t.Errorf("section %d out of order in reduce prompt", i)
		}
		last = pos
	}
}

func TestSummarizeThresholdBoundary(t *testing.T) {
	tests := []struct {
		chars int
		want  string
	}{
		{12000, MethodDirect},
		{12001, MethodChunked},
	}
	for _, tt := range tests {
		llm := newFakeLLM()
		s := NewSummarizer(llm, nil, SummarizerOptions{DirectTokenThreshold: 3000})
		result, err := s.Summarize(context.Background(), strings.Repeat("x", tt.chars), "doc", 0)
		if err != nil {
			t.Fatalf("Summarize(%d chars): %v", tt.chars, err)
		}
		if result.Method != tt.want {
			t.Errorf("Summarize(%d chars) method = %s, want %s", tt.chars, result.Method, tt.want)
		}
	}
}

func TestSummarizeErrors(t *testing.T) {
	boom := errors.New("model unavailable")
	tests := []struct {
		name     string
		failOn   string
		text     string
		wantStep string
	}{
		{"direct", promptDirect, "short text", MethodDirect},
		{"chunk", promptSection, words(5000), "chunk"},
		{"reduce", promptReduce, words(5000), "reduce"},
		{"key points", promptKeyPoints, "short text", "key points"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := newFakeLLM()
			llm.errs[tt.failOn] = boom
			s := NewSummarizer(llm, nil, SummarizerOptions{})

			result, err := s.Summarize(context.Background(), tt.text, "doc", 0)
			if result != nil {
				t.Error("expected no partial result")
			}
			var summaryErr *SummarizationError
			if !errors.As(err, &summaryErr) {
				t.Fatalf("expected SummarizationError, got %v", err)
			}
			if !strings.HasPrefix(summaryErr.Step, tt.wantStep) {
				t.Errorf("step = %q, want prefix %q", summaryErr.Step, tt.wantStep)
			}
			if !errors.Is(err, boom) {
				t.Error("cause not preserved")
			}
		})
	}
}

func TestSummaryServiceGenerate(t *testing.T) {
	text := "Some extracted text."
	doc := &models.Document{ID: "doc-1", OriginalName: "report.pdf", TextContent: &text}
	store := newMemStore(doc)
	llm := newFakeLLM()
	svc := NewSummaryService(store, NewSummarizer(llm, nil, SummarizerOptions{}))

	first, created, err := svc.Generate(context.Background(), doc)
	if err != nil || !created {
		t.Fatalf("Generate = %v, created %v", err, created)
	}
	if first.Method != MethodDirect || first.ModelUsed != "fake-model" || len(first.KeyPoints) != 3 {
		t.Errorf("unexpected summary %+v", first)
	}
	calls := llm.total()

	second, created, err := svc.Generate(context.Background(), doc)
	if err != nil || created {
		t.Fatalf("second Generate = %v, created %v", err, created)
	}
	if second.ID != first.ID {
		t.Error("existing summary should be returned")
	}
	if llm.total() != calls {
		t.Error("existing summary should not call the model")
	}
}

func TestSummaryServiceNoText(t *testing.T) {
	store := newMemStore(&models.Document{ID: "doc-1"})
	svc := NewSummaryService(store, NewSummarizer(newFakeLLM(), nil, SummarizerOptions{}))

	if _, _, err := svc.GenerateByID(context.Background(), "doc-1"); !errors.Is(err, ErrNoText) {
		t.Errorf("err = %v, want ErrNoText", err)
	}
	if _, _, err := svc.GenerateByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
