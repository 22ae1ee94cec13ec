package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"document-summarizer/internal/logger"
)

// ExtractionResult is the text and layout-free metadata of one PDF.
type ExtractionResult struct {
	Text           string
	PageCount      int
	PageTexts      map[int]string
	Metadata       map[string]string
	WordCount      int
	CharacterCount int
}

// Extractor turns a local file into text.
type Extractor interface {
	Extract(ctx context.Context, path string) (*ExtractionResult, error)
}

// PDFExtractor reads page text with ledongthuc/pdf and uses pdfcpu for page
// counting and structural validation.
type PDFExtractor struct {
	maxFileSize int64
}

func NewPDFExtractor(maxFileSize int64) *PDFExtractor {
	if maxFileSize <= 0 {
		maxFileSize = 200 << 20
	}
	return &PDFExtractor{maxFileSize: maxFileSize}
}

var infoKeys = map[string]string{
	"Title":        "title",
	"Author":       "author",
	"Subject":      "subject",
	"Creator":      "creator",
	"Producer":     "producer",
	"CreationDate": "creation_date",
	"ModDate":      "modification_date",
}

// Extract fails as a whole only when the file cannot be opened or yields no
// text at all. A page that fails to parse contributes empty text.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (*ExtractionResult, error) {
	log := logger.FromContext(ctx)

	stat, err := os.Stat(path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}
	if stat.Size() > e.maxFileSize {
		return nil, &ExtractionError{Path: path, Err: fmt.Errorf("file size %d exceeds limit %d: %w", stat.Size(), e.maxFileSize, ErrValidation)}
	}

	if err := e.validate(path); err != nil {
		log.Warn("PDF failed structural validation, extracting anyway", "path", path, "error", err)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}
	defer f.Close()

	pageCount := reader.NumPage()
	if n, err := api.PageCountFile(path); err == nil && n > 0 {
		pageCount = n
	}

	pageTexts := make(map[int]string, pageCount)
	var parts []string
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, &ExtractionError{Path: path, Err: err}
		}

		text, err := pageText(reader, i)
		if err != nil {
			log.Warn("Failed to extract page text", "path", path, "page", i, "error", err)
		}
		text = CleanText(text)
		pageTexts[i] = text
		if text != "" {
			parts = append(parts, text)
		}
	}

	fullText := strings.Join(parts, "\n\n")
	if fullText == "" {
		return nil, &ExtractionError{Path: path, Err: errors.New("no extractable text")}
	}

	return &ExtractionResult{
		Text:           fullText,
		PageCount:      pageCount,
		PageTexts:      pageTexts,
		Metadata:       readMetadata(reader),
		WordCount:      len(strings.Fields(fullText)),
		CharacterCount: len([]rune(fullText)),
	}, nil
}

func (e *PDFExtractor) validate(path string) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.ValidateFile(path, conf)
}

// pageText converts parser panics on malformed content streams into errors.
func pageText(reader *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", n, r)
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func readMetadata(reader *pdf.Reader) (meta map[string]string) {
	meta = map[string]string{}
	defer func() {
		if r := recover(); r != nil {
			meta = map[string]string{}
		}
	}()

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return meta
	}
	for pdfKey, key := range infoKeys {
		if v := strings.TrimSpace(info.Key(pdfKey).Text()); v != "" {
			meta[key] = v
		}
	}
	return meta
}

// CleanText collapses whitespace runs to single spaces, drops replacement
// characters and trims.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\uFFFD", "")
	return strings.Join(strings.Fields(text), " ")
}
