package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db               *gorm.DB
	invoicePrefix    string
	creditNotePrefix string
	clock            shared.Clock
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository.
// Empty prefixes fall back to INV and CN.
func NewGormInvoiceRepository(db *gorm.DB, invoicePrefix, creditNotePrefix string, clock shared.Clock) *GormInvoiceRepository {
	if invoicePrefix == "" {
		invoicePrefix = "INV"
	}
	if creditNotePrefix == "" {
		creditNotePrefix = "CN"
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &GormInvoiceRepository{
		db:               db,
		invoicePrefix:    invoicePrefix,
		creditNotePrefix: creditNotePrefix,
		clock:            clock,
	}
}

// FindByID finds an invoice by ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByNumber finds an invoice by its document number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "number = ?", number).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindAll finds invoices with filtering
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{})
	query = r.applyFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, InvoiceSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", sortField, sortOrder))

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	var invoiceModels []models.InvoiceModel
	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, 0, err
	}
	invoices, err := r.toDomainSlice(invoiceModels)
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// FindOpen finds all unpaid and overdue invoices (credit notes excluded)
func (r *GormInvoiceRepository) FindOpen(ctx context.Context) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND document_type = ?",
			[]billing.InvoiceStatus{billing.InvoiceStatusUnpaid, billing.InvoiceStatusOverdue},
			billing.DocumentTypeInvoice).
		Order("due_date ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return r.toDomainSlice(invoiceModels)
}

// FindCreditNotesFor finds the credit notes referencing an invoice
func (r *GormInvoiceRepository) FindCreditNotesFor(ctx context.Context, invoiceID uuid.UUID) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("document_type = ? AND related_invoice_id = ?",
			billing.DocumentTypeCreditNote, invoiceID).
		Order("issue_date ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return r.toDomainSlice(invoiceModels)
}

// FindByQuote finds every document issued from a quote
func (r *GormInvoiceRepository) FindByQuote(ctx context.Context, quoteID uuid.UUID) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Order("issue_date ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return r.toDomainSlice(invoiceModels)
}

// Save creates or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The invoice has been modified by another transaction")
	}
	return nil
}

// NextNumber generates the next document number for the given type.
// Numbers follow the PREFIX-YYYY-NNNN scheme with a sequence that
// restarts each year. The unique index on the number column catches
// the rare concurrent allocation of the same sequence value.
func (r *GormInvoiceRepository) NextNumber(ctx context.Context, docType billing.DocumentType) (string, error) {
	prefix := r.invoicePrefix
	if docType == billing.DocumentTypeCreditNote {
		prefix = r.creditNotePrefix
	}
	return nextDocumentNumber(ctx, r.db, &models.InvoiceModel{}, prefix, r.clock.Now())
}

// applyFilter translates the domain filter into query conditions
func (r *GormInvoiceRepository) applyFilter(query *gorm.DB, filter billing.InvoiceFilter) *gorm.DB {
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.DocumentType != nil {
		query = query.Where("document_type = ?", *filter.DocumentType)
	}
	if filter.DueFrom != nil {
		query = query.Where("due_date >= ?", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		query = query.Where("due_date <= ?", *filter.DueTo)
	}
	if filter.Overdue != nil && *filter.Overdue {
		query = query.Where("status = ?", billing.InvoiceStatusOverdue)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("number ILIKE ? OR client_name ILIKE ?", like, like)
	}
	return query
}

func (r *GormInvoiceRepository) toDomainSlice(invoiceModels []models.InvoiceModel) ([]billing.Invoice, error) {
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		inv, err := invoiceModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		invoices[i] = *inv
	}
	return invoices, nil
}

// nextDocumentNumber scans the highest number carrying the prefix for
// the current year and increments its sequence part.
func nextDocumentNumber(ctx context.Context, db *gorm.DB, model interface{}, prefix string, now time.Time) (string, error) {
	yearPrefix := fmt.Sprintf("%s-%d-", prefix, now.Year())

	var maxNumber string
	if err := db.WithContext(ctx).
		Model(model).
		Select("number").
		Where("number LIKE ?", yearPrefix+"%").
		Order("number DESC").
		Limit(1).
		Scan(&maxNumber).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	nextSeq := 1
	if len(maxNumber) >= 4 {
		var seq int
		if _, err := fmt.Sscanf(maxNumber[len(maxNumber)-4:], "%04d", &seq); err == nil {
			nextSeq = seq + 1
		}
	}

	return fmt.Sprintf("%s%04d", yearPrefix, nextSeq), nil
}

// Ensure GormInvoiceRepository implements the interface
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
