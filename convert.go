package llmparse

import "llmparse/internal/textconv"

// HTML2Text converts HTML, raw or base64-encoded, to whitespace-normalized
// plain text. Markup and images are dropped; link targets stay inline after
// their anchor text.
func HTML2Text(content []byte) (string, error) {
	text, err := textconv.HTMLToText(content, nil)
	if err != nil {
		return "", &ConversionError{Format: "html", Err: err}
	}
	return text, nil
}

// PDF2Text extracts the text of a base64-encoded PDF, pages joined with a
// form feed. Standard and URL-safe base64 are both accepted, padded or not.
func PDF2Text(content []byte) (string, error) {
	text, err := textconv.PDFToText(content, nil)
	if err != nil {
		return "", &ConversionError{Format: "pdf", Err: err}
	}
	return text, nil
}
