package services

import "strings"

// TextChunk is a word-aligned slice of a document. Word ranges are half-open.
type TextChunk struct {
	Text       string
	ChunkIndex int
	StartWord  int
	EndWord    int
	WordCount  int
}

// WordChunker splits text into overlapping word windows. Used for embeddings.
type WordChunker struct {
	ChunkSize int
	Overlap   int
}

func NewWordChunker(chunkSize, overlap int) *WordChunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &WordChunker{ChunkSize: chunkSize, Overlap: overlap}
}

// Split returns ceil((W-O)/(C-O)) chunks for W > C words, otherwise one chunk.
func (c *WordChunker) Split(text string) []TextChunk {
	words := strings.Fields(text)
	total := len(words)

	if total <= c.ChunkSize {
		return []TextChunk{{
			Text:      strings.Join(words, " "),
			StartWord: 0,
			EndWord:   total,
			WordCount: total,
		}}
	}

	var chunks []TextChunk
	start := 0
	for start < total {
		end := start + c.ChunkSize
		if end > total {
			end = total
		}

		chunks = append(chunks, TextChunk{
			Text:       strings.Join(words[start:end], " "),
			ChunkIndex: len(chunks),
			StartWord:  start,
			EndWord:    end,
			WordCount:  end - start,
		})

		if end == total {
			break
		}
		start = end - c.Overlap
	}

	return chunks
}
