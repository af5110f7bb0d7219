package services

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

// TextExtractor yields page-tagged plain text for a PDF on disk.
type TextExtractor interface {
	ExtractText(path string) (text string, pages int, err error)
}

// ExtractText reads every page of the PDF in order and returns the
// newline-joined concatenation of page blocks, each wrapped in start/end
// markers carrying the 1-based page number. A page whose extraction fails
// contributes an empty block instead of aborting the document.
func (s *PDFService) ExtractText(path string) (string, int, error) {
	if _, err := os.Stat(path); err != nil {
		return "", 0, fmt.Errorf("pdf not found: %s: %w", path, err)
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	numPages := reader.NumPage()
	blocks := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		blocks = append(blocks, pageBlock(i, extractPage(reader, i)))
	}

	return strings.TrimSpace(strings.Join(blocks, "\n")), numPages, nil
}

// extractPage never fails: the pdf library can error or panic on malformed
// content streams, and one corrupt page must not block the others.
func extractPage(reader *pdf.Reader, number int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	page := reader.Page(number)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}

func pageBlock(number int, text string) string {
	return fmt.Sprintf("\n\n===== PAGE %d START =====\n%s\n===== PAGE %d END =====", number, text, number)
}
