package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name, contentType string
		want              Kind
	}{
		{"notes.txt", "text/plain; charset=utf-8", KindText},
		{"data.json", "application/json", KindText},
		{"README.md", "text/markdown", KindText},
		{"README.md", "application/octet-stream", KindText},
		{"spec.pdf", "application/pdf", KindPDF},
		{"scan.PDF", "", KindPDF},
		{"photo.png", "image/png", KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Detect(tt.name, tt.contentType), tt.name)
	}
}

func TestExtractor_Text(t *testing.T) {
	e := New()
	ctx := context.Background()

	text, err := e.Text(ctx, File{Name: "a.md", ContentType: "text/markdown", Data: []byte("# Plan\n- ship it")})
	require.NoError(t, err)
	assert.Equal(t, "# Plan\n- ship it", text)

	_, err = e.Text(ctx, File{Name: "a.png", ContentType: "image/png", Data: []byte{0x89}})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = e.Text(ctx, File{Name: "a.pdf", ContentType: "application/pdf", Data: []byte("not a pdf")})
	assert.ErrorIs(t, err, ErrUnreadable)
}
