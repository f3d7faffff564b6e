package extract

import (
	"context"
	"strings"
)

// minRunLen filters out the short printable runs that occur by chance in
// compressed image data.
const minRunLen = 6

// ImageTextExtractor recovers embedded readable text (metadata, text chunks,
// EXIF comments) from image bytes by collecting printable ASCII runs. It is
// not OCR: rendered pixel text is caught by output validation after the model
// call instead.
type ImageTextExtractor struct{}

func NewImageTextExtractor() *ImageTextExtractor { return &ImageTextExtractor{} }

func (e *ImageTextExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var out strings.Builder
	var run []byte
	flush := func() {
		if len(run) >= minRunLen {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.Write(run)
		}
		run = run[:0]
	}

	for _, b := range data {
		if b == '\n' || b == '\t' || (b >= 0x20 && b < 0x7f) {
			run = append(run, b)
			continue
		}
		flush()
	}
	flush()

	return out.String(), nil
}
