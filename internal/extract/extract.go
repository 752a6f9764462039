// Package extract turns uploaded assistant attachments into plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupported = errors.New("Unsupported file type. Please upload PDF, Text, Markdown, or JSON.")
	ErrUnreadable  = errors.New("Failed to read PDF file. It might be corrupted or password protected.")
)

type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindPDF
)

// File is an uploaded attachment.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Detect resolves the kind from the declared content type, falling back to
// the file extension.
func Detect(name, contentType string) Kind {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mt {
	case "application/pdf":
		return KindPDF
	case "text/plain", "application/json", "text/markdown", "text/x-markdown":
		return KindText
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF
	case ".txt", ".json", ".md", ".markdown":
		return KindText
	}
	return KindUnknown
}

type Extractor struct{}

func New() *Extractor { return &Extractor{} }

// Text extracts the text of f. Unsupported kinds fail with ErrUnsupported,
// unparseable PDFs with ErrUnreadable.
func (e *Extractor) Text(ctx context.Context, f File) (string, error) {
	switch Detect(f.Name, f.ContentType) {
	case KindText:
		if !utf8.Valid(f.Data) {
			return strings.ToValidUTF8(string(f.Data), ""), nil
		}
		return string(f.Data), nil
	case KindPDF:
		return pdfText(ctx, f.Data)
	default:
		return "", fmt.Errorf("%w (%s)", ErrUnsupported, f.ContentType)
	}
}

func pdfText(ctx context.Context, data []byte) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %w", ErrUnreadable, i, err)
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return b.String(), nil
}
