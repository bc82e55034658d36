package textconv

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PageSeparator joins extracted PDF pages, preserving page boundaries in a
// way downstream prompts can ignore.
const PageSeparator = "\f"

// PDFToText extracts the text of a base64-encoded PDF, one page at a time,
// joined with PageSeparator. Both standard and URL-safe alphabets are
// accepted, with or without padding; mail attachments commonly arrive as
// unpadded URL-safe base64. Pages that yield no text, such as scanned
// images, are skipped rather than failing the whole document.
func PDFToText(content []byte, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	raw, err := decodeBase64Lenient(string(content))
	if err != nil {
		return "", fmt.Errorf("decode pdf base64: %w", err)
	}

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Debug("pdf page extraction failed, skipping", "page", i, "reason", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, PageSeparator), nil
}
