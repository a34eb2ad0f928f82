package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		filename string
		label    string
		ok       bool
	}{
		{"report.PDF", "pdf", true},
		{"notes.txt", "text", true},
		{"README.md", "markdown", true},
		{"main.go", "go", true},
		{"header.h", "c", true},
		{"archive.zip", "", false},
		{"noextension", "", false},
	}
	for _, tt := range tests {
		label, ok := contentTypeFor(tt.filename)
		assert.Equal(t, tt.ok, ok, "filename %s", tt.filename)
		assert.Equal(t, tt.label, label, "filename %s", tt.filename)
	}
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "hello", decodeText([]byte{0xEF, 0xBB, 0xBF, 'h', 'e', 'l', 'l', 'o'}))
	assert.Equal(t, "ab", decodeText([]byte{'a', 0xFF, 'b'}))
	assert.Equal(t, "", decodeText(nil))
}

func TestExtractPDF_InvalidBytes(t *testing.T) {
	_, err := extractPDF([]byte("definitely not a pdf"))
	assert.Error(t, err)
}
