package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thairide/service-booking/internal/domain/driver"
	"github.com/thairide/service-booking/internal/platform/domain"
)

// GormDriverRepository is the GORM-based implementation of driver.Repository.
// Status changes made for bookings are single conditional UPDATEs, never read-modify-write.
type GormDriverRepository struct {
	db *gorm.DB
}

// NewGormDriverRepository creates a new GormDriverRepository.
func NewGormDriverRepository(db *gorm.DB) *GormDriverRepository {
	return &GormDriverRepository{db: db}
}

// FindByID retrieves a driver by its unique identifier.
func (r *GormDriverRepository) FindByID(ctx context.Context, id uuid.UUID) (*driver.Driver, error) {
	var model DriverModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Driver", id.String())
		}
		return nil, fmt.Errorf("failed to find driver by ID: %w", err)
	}
	return toDomainDriver(&model), nil
}

// FindByUserID retrieves the driver profile owned by a user.
func (r *GormDriverRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*driver.Driver, error) {
	var model DriverModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Driver", "for user "+userID.String())
		}
		return nil, fmt.Errorf("failed to find driver by user ID: %w", err)
	}
	return toDomainDriver(&model), nil
}

// List retrieves drivers, optionally filtered by status, with pagination.
func (r *GormDriverRepository) List(ctx context.Context, status driver.Status, page, limit int) ([]*driver.Driver, int64, error) {
	page, limit = normalizePage(page, limit)

	q := r.db.WithContext(ctx).Model(&DriverModel{})
	if status != "" {
		q = q.Where("status = ?", string(status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count drivers: %w", err)
	}

	var models []DriverModel
	if err := q.Order("created_at ASC").Offset((page - 1) * limit).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list drivers: %w", err)
	}

	drivers := make([]*driver.Driver, len(models))
	for i := range models {
		drivers[i] = toDomainDriver(&models[i])
	}
	return drivers, total, nil
}

// Save persists a newly registered driver.
func (r *GormDriverRepository) Save(ctx context.Context, d *driver.Driver) error {
	model := toDriverModel(d)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("a driver profile already exists for this user")
		}
		return fmt.Errorf("failed to save driver: %w", err)
	}
	return nil
}

// SetAvailability moves a non-busy driver between available and offline.
func (r *GormDriverRepository) SetAvailability(ctx context.Context, id uuid.UUID, status driver.Status) error {
	if status != driver.StatusAvailable && status != driver.StatusOffline {
		return domain.NewValidationError("availability must be available or offline")
	}
	result := r.db.WithContext(ctx).
		Model(&DriverModel{}).
		Where("id = ? AND status <> ?", id, string(driver.StatusBusy)).
		Updates(map[string]interface{}{
			"status":     string(status),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set driver availability: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if err := r.mustExist(ctx, id); err != nil {
			return err
		}
		return domain.NewPolicyViolationError(driver.CodeDriverBusy, "driver is serving a booking")
	}
	return nil
}

// Claim marks an available driver busy for bookingID in a single conditional update.
func (r *GormDriverRepository) Claim(ctx context.Context, driverID, bookingID uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&DriverModel{}).
		Where("id = ? AND status = ?", driverID, string(driver.StatusAvailable)).
		Updates(map[string]interface{}{
			"status":             string(driver.StatusBusy),
			"claimed_booking_id": bookingID,
			"claimed_at":         at.UTC(),
			"version":            gorm.Expr("version + 1"),
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to claim driver: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if err := r.mustExist(ctx, driverID); err != nil {
			return err
		}
		return domain.NewDriverUnavailableError(driverID.String())
	}
	return nil
}

// Release marks the driver available and clears the claim.
func (r *GormDriverRepository) Release(ctx context.Context, driverID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&DriverModel{}).
		Where("id = ?", driverID).
		Updates(map[string]interface{}{
			"status":             string(driver.StatusAvailable),
			"claimed_booking_id": nil,
			"claimed_at":         nil,
			"version":            gorm.Expr("version + 1"),
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to release driver: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Driver", driverID.String())
	}
	return nil
}

// Credit adds to the driver's counters using in-database increments.
func (r *GormDriverRepository) Credit(ctx context.Context, driverID uuid.UUID, c driver.Credit) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.IsZero() {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&DriverModel{}).
		Where("id = ?", driverID).
		Updates(map[string]interface{}{
			"total_trips":           gorm.Expr("total_trips + ?", c.Trips),
			"total_earnings_satang": gorm.Expr("total_earnings_satang + ?", c.EarningsSatang),
			"total_tips_satang":     gorm.Expr("total_tips_satang + ?", c.TipsSatang),
			"version":               gorm.Expr("version + 1"),
			"updated_at":            time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to credit driver: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Driver", driverID.String())
	}
	return nil
}

// UpdateRating stores the new rating if the rating count is still prevCount.
func (r *GormDriverRepository) UpdateRating(ctx context.Context, driverID uuid.UUID, prevCount int, rating float64, count int) error {
	result := r.db.WithContext(ctx).
		Model(&DriverModel{}).
		Where("id = ? AND rating_count = ?", driverID, prevCount).
		Updates(map[string]interface{}{
			"rating":       rating,
			"rating_count": count,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update driver rating: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if err := r.mustExist(ctx, driverID); err != nil {
			return err
		}
		return domain.NewConflictError("driver rating was updated concurrently")
	}
	return nil
}

func (r *GormDriverRepository) mustExist(ctx context.Context, id uuid.UUID) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&DriverModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check driver: %w", err)
	}
	if n == 0 {
		return domain.NewNotFoundError("Driver", id.String())
	}
	return nil
}

func toDriverModel(d *driver.Driver) *DriverModel {
	s := d.State()
	return &DriverModel{
		ID:                  s.ID,
		UserID:              s.UserID,
		Name:                s.Name,
		Phone:               s.Phone,
		VehiclePlate:        s.VehiclePlate,
		VehicleModel:        s.VehicleModel,
		VehicleType:         s.VehicleType,
		Status:              string(s.Status),
		ClaimedBookingID:    s.ClaimedBookingID,
		ClaimedAt:           s.ClaimedAt,
		Rating:              s.Rating,
		RatingCount:         s.RatingCount,
		TotalTrips:          s.TotalTrips,
		TotalEarningsSatang: s.TotalEarningsSatang,
		TotalTipsSatang:     s.TotalTipsSatang,
		Version:             s.Version,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

func toDomainDriver(m *DriverModel) *driver.Driver {
	return driver.Reconstruct(driver.State{
		ID:                  m.ID,
		UserID:              m.UserID,
		Name:                m.Name,
		Phone:               m.Phone,
		VehiclePlate:        m.VehiclePlate,
		VehicleModel:        m.VehicleModel,
		VehicleType:         m.VehicleType,
		Status:              driver.Status(m.Status),
		ClaimedBookingID:    m.ClaimedBookingID,
		ClaimedAt:           utcPtr(m.ClaimedAt),
		Rating:              m.Rating,
		RatingCount:         m.RatingCount,
		TotalTrips:          m.TotalTrips,
		TotalEarningsSatang: m.TotalEarningsSatang,
		TotalTipsSatang:     m.TotalTipsSatang,
		Version:             m.Version,
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
	})
}
