package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const pdfContentType = "application/pdf"

// Service ties the template engine, PDF renderer and storage together.
// It is the single entry point other layers use to obtain an invoice
// document.
type Service struct {
	engine   *TemplateEngine
	renderer PDFRenderer
	storage  Storage
	logger   *zap.Logger
}

// NewService creates a document service
func NewService(engine *TemplateEngine, renderer PDFRenderer, storage Storage, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		engine:   engine,
		renderer: renderer,
		storage:  storage,
		logger:   logger,
	}
}

// StorageKey returns the object path for an invoice's PDF
func StorageKey(inv *billing.Invoice) string {
	return fmt.Sprintf("invoices/%s.pdf", inv.Number)
}

// Render produces the PDF for an invoice without touching storage
func (s *Service) Render(ctx context.Context, inv *billing.Invoice) ([]byte, error) {
	html, err := s.engine.RenderInvoiceHTML(inv)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrDocumentUnavailable, err.Error())
	}
	result, err := s.renderer.Render(ctx, &RenderRequest{
		HTML:  html,
		Title: documentTitle(inv),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrDocumentUnavailable, err.Error())
	}
	return result.PDFData, nil
}

// Ensure returns the stored PDF for an invoice, rendering and storing
// it when missing. A storage write failure after a successful render
// degrades to returning the fresh bytes.
func (s *Service) Ensure(ctx context.Context, inv *billing.Invoice) ([]byte, error) {
	key := StorageKey(inv)

	data, err := s.storage.Fetch(ctx, key)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		s.logger.Warn("Failed to fetch stored document, regenerating",
			zap.String("key", key), zap.Error(err))
	}

	data, err = s.Render(ctx, inv)
	if err != nil {
		return nil, err
	}
	if err := s.storage.Store(ctx, key, data, pdfContentType); err != nil {
		s.logger.Warn("Failed to store rendered document",
			zap.String("key", key), zap.Error(err))
	}
	return data, nil
}
