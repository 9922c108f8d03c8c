package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facturio/backend/internal/domain/followup"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// activeStatuses are the statuses counted against the one-active-per-invoice
// limit. They must match the predicate of the idx_followups_one_active index.
var activeStatuses = []followup.Status{
	followup.StatusPending,
	followup.StatusScheduled,
	followup.StatusReadyForDispatch,
}

// GormFollowUpRepository implements followup.Repository using GORM
type GormFollowUpRepository struct {
	db *gorm.DB
}

// NewGormFollowUpRepository creates a new GormFollowUpRepository
func NewGormFollowUpRepository(db *gorm.DB) *GormFollowUpRepository {
	return &GormFollowUpRepository{db: db}
}

// FindByID finds a follow-up by ID
func (r *GormFollowUpRepository) FindByID(ctx context.Context, id uuid.UUID) (*followup.FollowUp, error) {
	var model models.FollowUpModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByInvoice finds all follow-ups for an invoice, newest first
func (r *GormFollowUpRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]followup.FollowUp, error) {
	var followUpModels []models.FollowUpModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at DESC").
		Find(&followUpModels).Error; err != nil {
		return nil, err
	}
	return toFollowUpSlice(followUpModels), nil
}

// FindActiveByInvoice finds the non-terminal follow-up for an invoice,
// or nil when none exists
func (r *GormFollowUpRepository) FindActiveByInvoice(ctx context.Context, invoiceID uuid.UUID) (*followup.FollowUp, error) {
	var model models.FollowUpModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ? AND status IN ?", invoiceID, activeStatuses).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDue finds active follow-ups whose dispatch time has passed
func (r *GormFollowUpRepository) FindDue(ctx context.Context, now time.Time) ([]followup.FollowUp, error) {
	var followUpModels []models.FollowUpModel
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND scheduled_at <= ?", activeStatuses, now).
		Order("scheduled_at ASC").
		Find(&followUpModels).Error; err != nil {
		return nil, err
	}
	return toFollowUpSlice(followUpModels), nil
}

// FindActive finds every non-terminal follow-up
func (r *GormFollowUpRepository) FindActive(ctx context.Context) ([]followup.FollowUp, error) {
	var followUpModels []models.FollowUpModel
	if err := r.db.WithContext(ctx).
		Where("status IN ?", activeStatuses).
		Order("scheduled_at ASC").
		Find(&followUpModels).Error; err != nil {
		return nil, err
	}
	return toFollowUpSlice(followUpModels), nil
}

// FindAll finds follow-ups with filtering
func (r *GormFollowUpRepository) FindAll(ctx context.Context, filter followup.Filter) ([]followup.FollowUp, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.FollowUpModel{})

	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Stage != nil {
		query = query.Where("stage = ?", *filter.Stage)
	}
	if filter.Search != "" {
		query = query.Where("invoice_number ILIKE ?", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, FollowUpSortFields, "scheduled_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", sortField, sortOrder))

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	var followUpModels []models.FollowUpModel
	if err := query.Find(&followUpModels).Error; err != nil {
		return nil, 0, err
	}
	return toFollowUpSlice(followUpModels), total, nil
}

// Save creates or updates a follow-up. The partial unique index on
// invoice_id rejects a second active follow-up for the same invoice;
// that collision surfaces as shared.ErrAlreadyExists.
func (r *GormFollowUpRepository) Save(ctx context.Context, f *followup.FollowUp) error {
	model := models.FollowUpModelFromDomain(f)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormFollowUpRepository) SaveWithLock(ctx context.Context, f *followup.FollowUp) error {
	model := models.FollowUpModelFromDomain(f)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", f.ID, f.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The follow-up has been modified by another transaction")
	}
	return nil
}

func toFollowUpSlice(followUpModels []models.FollowUpModel) []followup.FollowUp {
	followUps := make([]followup.FollowUp, len(followUpModels))
	for i := range followUpModels {
		followUps[i] = *followUpModels[i].ToDomain()
	}
	return followUps
}

// Ensure GormFollowUpRepository implements the interface
var _ followup.Repository = (*GormFollowUpRepository)(nil)

// GormFollowUpLogRepository implements followup.LogRepository using GORM
type GormFollowUpLogRepository struct {
	db *gorm.DB
}

// NewGormFollowUpLogRepository creates a new GormFollowUpLogRepository
func NewGormFollowUpLogRepository(db *gorm.DB) *GormFollowUpLogRepository {
	return &GormFollowUpLogRepository{db: db}
}

// Append stores a log entry
func (r *GormFollowUpLogRepository) Append(ctx context.Context, entry *followup.LogEntry) error {
	model := &models.FollowUpLogModel{}
	model.FromDomain(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByInvoice returns the audit trail for an invoice, newest first
func (r *GormFollowUpLogRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]followup.LogEntry, error) {
	var logModels []models.FollowUpLogModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("occurred_at DESC").
		Find(&logModels).Error; err != nil {
		return nil, err
	}
	entries := make([]followup.LogEntry, len(logModels))
	for i := range logModels {
		entries[i] = *logModels[i].ToDomain()
	}
	return entries, nil
}

// Ensure GormFollowUpLogRepository implements the interface
var _ followup.LogRepository = (*GormFollowUpLogRepository)(nil)
