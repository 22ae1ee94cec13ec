package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"document-summarizer/internal/ai"
	"document-summarizer/internal/logger"
)

const (
	MethodDirect  = "direct"
	MethodChunked = "chunked"
)

// SummaryResult is the output of one summarization.
type SummaryResult struct {
	Summary         string
	KeyPoints       []string
	Model           string
	Method          string
	ChunksProcessed int
	ProcessingTime  time.Duration
}

type SummarizerOptions struct {
	MaxWords             int
	DirectTokenThreshold int
	MaxKeyPoints         int
	Concurrency          int
}

// Summarizer picks direct or map-reduce summarization by token estimate and
// then extracts key points from the final summary.
type Summarizer struct {
	llm      ai.Completer
	splitter *TextSplitter
	tokens   TokenCounter
	opts     SummarizerOptions
}

func NewSummarizer(llm ai.Completer, splitter *TextSplitter, opts SummarizerOptions) *Summarizer {
	if opts.MaxWords <= 0 {
		opts.MaxWords = 500
	}
	if opts.DirectTokenThreshold <= 0 {
		opts.DirectTokenThreshold = 3000
	}
	if opts.MaxKeyPoints <= 0 {
		opts.MaxKeyPoints = 8
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if splitter == nil {
		splitter = NewTextSplitter(4000, 200)
	}
	return &Summarizer{llm: llm, splitter: splitter, opts: opts}
}

// Summarize runs the full summary + key point flow. maxWords <= 0 uses the default.
func (s *Summarizer) Summarize(ctx context.Context, text, title string, maxWords int) (*SummaryResult, error) {
	if maxWords <= 0 {
		maxWords = s.opts.MaxWords
	}

	ctx, span := otel.Tracer("summarizer").Start(ctx, "summarizer.summarize")
	defer span.End()

	start := time.Now()
	estimated := s.tokens.Count(text)
	span.SetAttributes(attribute.Int("summary.estimated_tokens", estimated))

	var result *SummaryResult
	var err error
	if estimated <= s.opts.DirectTokenThreshold {
		result, err = s.summarizeDirect(ctx, text, title, maxWords)
	} else {
		result, err = s.summarizeChunked(ctx, text, title, maxWords)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	keyPoints, err := s.ExtractKeyPoints(ctx, result.Summary)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	result.KeyPoints = keyPoints
	result.ProcessingTime = time.Since(start)

	span.SetAttributes(
		attribute.String("summary.method", result.Method),
		attribute.Int("summary.chunks", result.ChunksProcessed),
		attribute.Int("summary.key_points", len(keyPoints)),
	)
	logger.FromContext(ctx).Info("Summary generated",
		"method", result.Method,
		"chunks", result.ChunksProcessed,
		"estimated_tokens", estimated,
		"duration", result.ProcessingTime.String(),
	)

	return result, nil
}

func (s *Summarizer) summarizeDirect(ctx context.Context, text, title string, maxWords int) (*SummaryResult, error) {
	resp, err := s.llm.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: "You are an expert document summarizer. Provide clear, concise, and comprehensive summaries.",
		UserPrompt:   directPrompt(text, title, maxWords),
		MaxTokens:    maxWords * 2,
		Temperature:  0.3,
	})
	if err != nil {
		return nil, &SummarizationError{Step: MethodDirect, Err: err}
	}

	return &SummaryResult{
		Summary: strings.TrimSpace(resp.Text),
		Model:   resp.Model,
		Method:  MethodDirect,
	}, nil
}

func (s *Summarizer) summarizeChunked(ctx context.Context, text, title string, maxWords int) (*SummaryResult, error) {
	chunks := s.splitter.Split(text)
	summaries := make([]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			resp, err := s.llm.Complete(gctx, ai.CompletionRequest{
				SystemPrompt: "You are an expert at summarizing document sections. Focus on key information and main ideas.",
				UserPrompt:   sectionPrompt(chunk, title, i+1, len(chunks)),
				MaxTokens:    300,
				Temperature:  0.3,
			})
			if err != nil {
				return &SummarizationError{Step: fmt.Sprintf("chunk %d of %d", i+1, len(chunks)), Err: err}
			}
			summaries[i] = strings.TrimSpace(resp.Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp, err := s.llm.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: "You are an expert at creating comprehensive summaries from multiple sections. Ensure coherence and completeness.",
		UserPrompt:   reducePrompt(strings.Join(summaries, "\n\n"), title, maxWords),
		MaxTokens:    maxWords * 2,
		Temperature:  0.3,
	})
	if err != nil {
		return nil, &SummarizationError{Step: "reduce", Err: err}
	}

	return &SummaryResult{
		Summary:         strings.TrimSpace(resp.Text),
		Model:           resp.Model,
		Method:          MethodChunked,
		ChunksProcessed: len(chunks),
	}, nil
}

// ExtractKeyPoints asks for an enumerated list and parses it leniently.
func (s *Summarizer) ExtractKeyPoints(ctx context.Context, summary string) ([]string, error) {
	resp, err := s.llm.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: "You are an expert at extracting key points from document summaries. Focus on the most important and actionable information.",
		UserPrompt:   keyPointsPrompt(summary),
		MaxTokens:    400,
		Temperature:  0.2,
	})
	if err != nil {
		return nil, &SummarizationError{Step: "key points", Err: err}
	}
	return ParseKeyPoints(resp.Text, s.opts.MaxKeyPoints), nil
}

func directPrompt(text, title string, maxWords int) string {
	return fmt.Sprintf(`Please provide a comprehensive summary of the following document titled "%s".

Requirements:
- Maximum %d words
- Focus on main ideas and key information
- Use clear, professional language
- Maintain the document's tone and context

Document text:
%s

Summary:`, title, maxWords, text)
}

func sectionPrompt(chunk, title string, part, total int) string {
	return fmt.Sprintf(`Summarize this section (part %d of %d) of the document "%s":

%s

Provide a concise summary focusing on the main points:`, part, total, title, chunk)
}

func reducePrompt(combined, title string, maxWords int) string {
	return fmt.Sprintf(`Based on the following section summaries from the document "%s",
create a comprehensive final summary of maximum %d words:

Section Summaries:
%s

Final Summary:`, title, maxWords, combined)
}

func keyPointsPrompt(summary string) string {
	return fmt.Sprintf(`Based on the following document summary, extract 5-8 key points that capture the most important information:

Summary:
%s

Please provide key points as a numbered list, with each point being a concise statement (1-2 sentences max).
Focus on actionable insights, main conclusions, and critical information.

Key Points:`, summary)
}
