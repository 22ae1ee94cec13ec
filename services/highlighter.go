package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"document-summarizer/internal/ai"
	"document-summarizer/internal/logger"
	"document-summarizer/models"
)

// HighlightCandidate is a passage the model flagged, before page placement.
type HighlightCandidate struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

type Highlighter struct {
	llm          ai.Completer
	contextChars int
}

func NewHighlighter(llm ai.Completer, contextChars int) *Highlighter {
	if contextChars <= 0 {
		contextChars = 2000
	}
	return &Highlighter{llm: llm, contextChars: contextChars}
}

// ExtractHighlights asks the model for 5-10 classified passages. Output that is
// not a JSON array yields an empty list; only the call itself can fail.
func (h *Highlighter) ExtractHighlights(ctx context.Context, text, summary string) ([]HighlightCandidate, error) {
	resp, err := h.llm.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: "You are an expert at identifying important passages in documents. Respond with valid JSON only.",
		UserPrompt:   highlightPrompt(truncateRunes(text, h.contextChars), summary),
		MaxTokens:    800,
		Temperature:  0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("highlight extraction: %w", err)
	}

	candidates, ok := ParseHighlights(resp.Text)
	if !ok {
		logger.FromContext(ctx).Warn("Highlight response was not a JSON array", "response_chars", len(resp.Text))
	}
	return candidates, nil
}

// ParseHighlights decodes a JSON array of highlights, tolerating a markdown
// code fence around it. Unknown types become "important", confidence is
// clamped to [0,1] and entries without text are dropped.
func ParseHighlights(raw string) ([]HighlightCandidate, bool) {
	raw = stripCodeFence(strings.TrimSpace(raw))

	var candidates []HighlightCandidate
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		return []HighlightCandidate{}, false
	}

	out := make([]HighlightCandidate, 0, len(candidates))
	for _, c := range candidates {
		c.Text = strings.TrimSpace(c.Text)
		if c.Text == "" {
			continue
		}
		switch c.Type {
		case models.HighlightKeyPoint, models.HighlightImportant, models.HighlightDefinition:
		default:
			c.Type = models.HighlightImportant
		}
		if c.Confidence < 0 {
			c.Confidence = 0
		} else if c.Confidence > 1 {
			c.Confidence = 1
		}
		out = append(out, c)
	}
	return out, true
}

// PlaceHighlights resolves each passage to the page that contains it
// (case-insensitive), falling back to page 1. Bounding boxes stay zero since
// the extractor exposes no layout.
func PlaceHighlights(documentID string, candidates []HighlightCandidate, pageTexts map[int]string) []models.Highlight {
	lowered := make(map[int]string, len(pageTexts))
	pages := make([]int, 0, len(pageTexts))
	for page, text := range pageTexts {
		lowered[page] = strings.ToLower(text)
		pages = append(pages, page)
	}
	slices.Sort(pages)

	out := make([]models.Highlight, 0, len(candidates))
	for _, c := range candidates {
		needle := strings.ToLower(c.Text)
		page := 1
		for _, p := range pages {
			if strings.Contains(lowered[p], needle) {
				page = p
				break
			}
		}
		out = append(out, models.Highlight{
			DocumentID:    documentID,
			PageNumber:    page,
			Text:          c.Text,
			HighlightType: c.Type,
			Confidence:    c.Confidence,
		})
	}
	return out
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language tag such as ```json
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func highlightPrompt(excerpt, summary string) string {
	return fmt.Sprintf(`Based on the document text and its summary, identify 5-10 important text passages that should be highlighted.
Focus on:
- Key definitions or concepts
- Important conclusions or findings
- Critical data or statistics
- Main arguments or points

Document Summary:
%s

Document Text (first 2000 characters):
%s

Please identify important passages and classify them as:
- "key-point": Main arguments or conclusions
- "important": Critical information or data
- "definition": Key terms or concepts

Format your response as a JSON array with objects containing:
- "text": the exact text passage
- "type": classification (key-point, important, or definition)
- "confidence": confidence score (0.0-1.0)`, summary, excerpt)
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
