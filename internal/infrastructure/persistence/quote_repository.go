package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormQuoteRepository implements QuoteRepository using GORM
type GormQuoteRepository struct {
	db     *gorm.DB
	prefix string
	clock  shared.Clock
}

// NewGormQuoteRepository creates a new GormQuoteRepository.
// An empty prefix falls back to QUO.
func NewGormQuoteRepository(db *gorm.DB, prefix string, clock shared.Clock) *GormQuoteRepository {
	if prefix == "" {
		prefix = "QUO"
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &GormQuoteRepository{db: db, prefix: prefix, clock: clock}
}

// FindByID finds a quote by ID
func (r *GormQuoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Quote, error) {
	var model models.QuoteModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds a quote by its document number
func (r *GormQuoteRepository) FindByNumber(ctx context.Context, number string) (*billing.Quote, error) {
	var model models.QuoteModel
	if err := r.db.WithContext(ctx).
		First(&model, "number = ?", number).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds quotes with filtering
func (r *GormQuoteRepository) FindAll(ctx context.Context, filter billing.QuoteFilter) ([]billing.Quote, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.QuoteModel{})

	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("number ILIKE ? OR client_name ILIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, QuoteSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", sortField, sortOrder))

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	var quoteModels []models.QuoteModel
	if err := query.Find(&quoteModels).Error; err != nil {
		return nil, 0, err
	}
	quotes := make([]billing.Quote, len(quoteModels))
	for i := range quoteModels {
		quotes[i] = *quoteModels[i].ToDomain()
	}
	return quotes, total, nil
}

// Save creates or updates a quote
func (r *GormQuoteRepository) Save(ctx context.Context, quote *billing.Quote) error {
	model := models.QuoteModelFromDomain(quote)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// NextNumber generates the next quote number
func (r *GormQuoteRepository) NextNumber(ctx context.Context) (string, error) {
	return nextDocumentNumber(ctx, r.db, &models.QuoteModel{}, r.prefix, r.clock.Now())
}

// Ensure GormQuoteRepository implements the interface
var _ billing.QuoteRepository = (*GormQuoteRepository)(nil)
