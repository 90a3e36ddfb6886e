package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thairide/service-booking/internal/domain/dispute"
	"github.com/thairide/service-booking/internal/platform/domain"
)

// GormDisputeRepository is the GORM-based implementation of dispute.Repository.
type GormDisputeRepository struct {
	db *gorm.DB
}

// NewGormDisputeRepository creates a new GormDisputeRepository.
func NewGormDisputeRepository(db *gorm.DB) *GormDisputeRepository {
	return &GormDisputeRepository{db: db}
}

// FindByID retrieves a dispute by its unique identifier.
func (r *GormDisputeRepository) FindByID(ctx context.Context, id uuid.UUID) (*dispute.Dispute, error) {
	var model DisputeModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Dispute", id.String())
		}
		return nil, fmt.Errorf("failed to find dispute by ID: %w", err)
	}
	return toDomainDispute(&model), nil
}

// FindByBookingID retrieves the dispute raised against a booking.
func (r *GormDisputeRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*dispute.Dispute, error) {
	var model DisputeModel
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Dispute", "for booking "+bookingID.String())
		}
		return nil, fmt.Errorf("failed to find dispute by booking ID: %w", err)
	}
	return toDomainDispute(&model), nil
}

// List retrieves disputes, optionally filtered by status, with pagination.
func (r *GormDisputeRepository) List(ctx context.Context, status dispute.Status, page, limit int) ([]*dispute.Dispute, int64, error) {
	page, limit = normalizePage(page, limit)

	q := r.db.WithContext(ctx).Model(&DisputeModel{})
	if status != "" {
		q = q.Where("status = ?", string(status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count disputes: %w", err)
	}

	var models []DisputeModel
	if err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list disputes: %w", err)
	}

	disputes := make([]*dispute.Dispute, len(models))
	for i := range models {
		disputes[i] = toDomainDispute(&models[i])
	}
	return disputes, total, nil
}

// Save persists a new dispute. The unique booking_id index allows one dispute per booking.
func (r *GormDisputeRepository) Save(ctx context.Context, d *dispute.Dispute) error {
	if err := r.db.WithContext(ctx).Create(toDisputeModel(d)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("a dispute already exists for this booking")
		}
		return fmt.Errorf("failed to save dispute: %w", err)
	}
	return nil
}

// Update persists changes to an existing dispute with optimistic locking.
func (r *GormDisputeRepository) Update(ctx context.Context, d *dispute.Dispute) error {
	model := toDisputeModel(d)

	result := r.db.WithContext(ctx).
		Model(&DisputeModel{}).
		Where("id = ? AND version = ?", model.ID, d.Version()-1).
		Updates(map[string]interface{}{
			"status":      model.Status,
			"resolution":  model.Resolution,
			"reviewer_id": model.ReviewerID,
			"resolved_at": model.ResolvedAt,
			"version":     model.Version,
			"updated_at":  model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update dispute: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("dispute was modified by another transaction")
	}
	return nil
}

func toDisputeModel(d *dispute.Dispute) *DisputeModel {
	return &DisputeModel{
		ID:          d.ID(),
		BookingID:   d.BookingID(),
		RaisedBy:    d.RaisedBy(),
		RaisedByID:  d.RaisedByID(),
		Reason:      d.Reason(),
		Description: d.Description(),
		Status:      string(d.Status()),
		Resolution:  d.Resolution(),
		ReviewerID:  d.ReviewerID(),
		ResolvedAt:  d.ResolvedAt(),
		Version:     d.Version(),
		CreatedAt:   d.CreatedAt(),
		UpdatedAt:   d.UpdatedAt(),
	}
}

func toDomainDispute(m *DisputeModel) *dispute.Dispute {
	return dispute.Reconstruct(
		m.ID, m.BookingID,
		m.RaisedBy, m.RaisedByID,
		m.Reason, m.Description,
		dispute.Status(m.Status),
		m.Resolution,
		m.ReviewerID,
		utcPtr(m.ResolvedAt),
		m.Version,
		m.CreatedAt.UTC(), m.UpdatedAt.UTC(),
	)
}
