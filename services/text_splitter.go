package services

import (
	"strings"
	"unicode/utf8"
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// TextSplitter splits text on the coarsest separator that keeps pieces under
// ChunkSize characters, then merges pieces back with ChunkOverlap characters
// of trailing context. Used only for LLM input.
type TextSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

func NewTextSplitter(chunkSize, overlap int) *TextSplitter {
	if chunkSize <= 0 {
		chunkSize = 4000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &TextSplitter{ChunkSize: chunkSize, ChunkOverlap: overlap, Separators: defaultSeparators}
}

func (s *TextSplitter) Split(text string) []string {
	return s.split(text, s.Separators)
}

func (s *TextSplitter) split(text string, separators []string) []string {
	// Pick the first separator present in the text
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if separator == "" {
		pieces = splitRunes(text)
	} else {
		pieces = strings.Split(text, separator)
	}

	var out []string
	var good []string
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if runeLen(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good, separator)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good, separator)...)
	}
	return out
}

// merge packs pieces into chunks up to ChunkSize, carrying the tail of each
// chunk (at most ChunkOverlap characters) into the next.
func (s *TextSplitter) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)
	var chunks []string
	var current []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		joined := 0
		if len(current) > 0 {
			joined = sepLen
		}

		if total+n+joined > s.ChunkSize && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
				chunks = append(chunks, chunk)
			}
			// Drop from the front until the carried tail fits the overlap
			for len(current) > 0 && (total > s.ChunkOverlap || total+n+sepLen > s.ChunkSize) {
				head := runeLen(current[0])
				if len(current) > 1 {
					head += sepLen
				}
				total -= head
				current = current[1:]
			}
		}

		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, piece)
		total += n
	}

	if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func splitRunes(text string) []string {
	out := make([]string, 0, len(text))
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
