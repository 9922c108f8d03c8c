package document

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StubRenderer is a PDFRenderer for tests and environments without a
// Chrome binary. It emits a minimal single-page PDF whose content
// stream embeds the document title, enough for storage round-trips and
// attachment plumbing.
type StubRenderer struct{}

// NewStubRenderer creates a stub PDF renderer
func NewStubRenderer() *StubRenderer {
	return &StubRenderer{}
}

// Render produces a placeholder PDF
func (r *StubRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	if req == nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "render request is nil", nil)
	}
	if strings.TrimSpace(req.HTML) == "" {
		return nil, NewRenderError(ErrCodeInvalidHTML, "HTML content is empty", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeRenderTimeout, "render cancelled", err)
	}

	start := time.Now()
	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", req.Title)
	pdf := fmt.Sprintf(`%%PDF-1.4
1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj
2 0 obj << /Type /Pages /Kids [3 0 R] /Count 1 >> endobj
3 0 obj << /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Contents 4 0 R >> endobj
4 0 obj << /Length %d >> stream
%s
endstream endobj
trailer << /Root 1 0 R >>
%%%%EOF
`, len(stream), stream)

	return &RenderResult{
		PDFData:        []byte(pdf),
		RenderDuration: time.Since(start),
	}, nil
}

// Close is a no-op
func (r *StubRenderer) Close() error {
	return nil
}

var _ PDFRenderer = (*StubRenderer)(nil)
