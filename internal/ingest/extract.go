package ingest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// supportedExtensions is the ingestible format allow-list. The value is
// the content-type label stored on every point derived from the file.
var supportedExtensions = map[string]string{
	".pdf":      "pdf",
	".txt":      "text",
	".md":       "markdown",
	".markdown": "markdown",
	".py":       "python",
	".go":       "go",
	".js":       "javascript",
	".ts":       "typescript",
	".java":     "java",
	".c":        "c",
	".cpp":      "cpp",
	".h":        "c",
	".json":     "json",
	".csv":      "csv",
	".sql":      "sql",
	".html":     "html",
	".css":      "css",
	".yaml":     "yaml",
	".yml":      "yaml",
}

// SupportedExtensions returns the allow-list, sorted, for error messages
// and API responses.
func SupportedExtensions() []string {
	out := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// contentTypeFor resolves a filename against the allow-list.
func contentTypeFor(filename string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	label, ok := supportedExtensions[ext]
	return label, ok
}

// extractText pulls raw text out of the uploaded bytes. PDF goes through
// structured page extraction; everything else is decoded as UTF-8 text.
func extractText(filename string, raw []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".pdf" {
		return extractPDF(raw)
	}
	return decodeText(raw), nil
}

// extractPDF extracts page text in order, pages separated by blank lines.
// The upload is staged to a temporary file for the reader; the file is
// removed on every exit path.
func extractPDF(raw []byte) (string, error) {
	tmp, err := os.CreateTemp("", "knowd-upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("staging upload: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("staging upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("staging upload: %w", err)
	}

	f, reader, err := pdf.Open(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// decodeText decodes plain text, dropping a UTF-8 BOM and replacing
// invalid byte sequences.
func decodeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	return string(bytes.ToValidUTF8(raw, []byte("")))
}
