package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/domain/driver"
	"github.com/thairide/service-booking/internal/domain/policy"
	"github.com/thairide/service-booking/internal/platform/domain"
)

// RegisterDriverRequest holds the data needed to register a driver profile.
type RegisterDriverRequest struct {
	UserID       *uuid.UUID `json:"user_id"`
	Name         string     `json:"name" binding:"required"`
	Phone        string     `json:"phone" binding:"required"`
	VehiclePlate string     `json:"vehicle_plate" binding:"required"`
	VehicleModel string     `json:"vehicle_model"`
	VehicleType  string     `json:"vehicle_type" binding:"required"`
}

// DriverService manages driver profiles and availability.
// It never claims or releases drivers; that belongs to booking transitions.
type DriverService struct {
	uow      UnitOfWork
	reader   Repositories
	policies policy.Provider
	logger   *zap.Logger
}

// NewDriverService creates a new DriverService.
func NewDriverService(uow UnitOfWork, reader Repositories, policies policy.Provider, logger *zap.Logger) *DriverService {
	return &DriverService{uow: uow, reader: reader, policies: policies, logger: logger}
}

// Register creates an offline driver profile. Drivers register themselves; admins may register on behalf of a user.
func (s *DriverService) Register(ctx context.Context, caller Caller, req RegisterDriverRequest) (*DriverDTO, error) {
	userID := caller.UserID
	if caller.Actor == bookingDomain.ActorAdmin && req.UserID != nil {
		userID = *req.UserID
	} else if caller.Actor != bookingDomain.ActorDriver && caller.Actor != bookingDomain.ActorAdmin {
		return nil, domain.NewForbiddenError("only drivers or admins can register a driver profile")
	}
	if _, err := bookingDomain.ParseVehicleType(req.VehicleType); err != nil {
		return nil, err
	}

	cfg, err := s.policies.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	d, err := driver.NewDriver(userID, req.Name, req.Phone, req.VehiclePlate, req.VehicleModel, req.VehicleType, cfg.RatingPriorMean)
	if err != nil {
		return nil, err
	}

	err = s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.Drivers.FindByUserID(ctx, userID); err == nil {
			return domain.NewConflictError("user already has a driver profile")
		} else if !domain.IsKind(err, domain.KindNotFound) {
			return err
		}
		return repos.Drivers.Save(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("driver registered",
		zap.String("driver_id", d.ID().String()),
		zap.String("user_id", userID.String()),
	)
	result := toDriverDTO(d)
	return &result, nil
}

// GetDriver retrieves a driver by ID.
func (s *DriverService) GetDriver(ctx context.Context, driverID uuid.UUID) (*DriverDTO, error) {
	d, err := s.reader.Drivers.FindByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	result := toDriverDTO(d)
	return &result, nil
}

// GetMyProfile retrieves the driver profile owned by userID.
func (s *DriverService) GetMyProfile(ctx context.Context, userID uuid.UUID) (*DriverDTO, error) {
	d, err := s.reader.Drivers.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := toDriverDTO(d)
	return &result, nil
}

// ListDrivers returns drivers, optionally filtered by status.
func (s *DriverService) ListDrivers(ctx context.Context, status driver.Status, page, limit int) ([]DriverDTO, int64, error) {
	if status != "" && !status.IsValid() {
		return nil, 0, domain.NewValidationError(fmt.Sprintf("invalid driver status: %s", status))
	}
	items, total, err := s.reader.Drivers.List(ctx, status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list drivers: %w", err)
	}
	dtos := make([]DriverDTO, len(items))
	for i, d := range items {
		dtos[i] = toDriverDTO(d)
	}
	return dtos, total, nil
}

// SetOnline moves the caller's driver profile in or out of the assignment pool.
// A busy driver stays busy either way.
func (s *DriverService) SetOnline(ctx context.Context, caller Caller, driverID uuid.UUID, online bool) (*DriverDTO, error) {
	var out *driver.Driver
	err := s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		d, err := repos.Drivers.FindByID(ctx, driverID)
		if err != nil {
			return err
		}
		if caller.Actor != bookingDomain.ActorAdmin && d.UserID() != caller.UserID {
			return domain.NewForbiddenError("driver profile does not belong to this user")
		}

		if online {
			err = d.GoOnline()
		} else {
			err = d.GoOffline()
		}
		if err != nil {
			return err
		}
		if d.Status() != driver.StatusBusy {
			if err := repos.Drivers.SetAvailability(ctx, driverID, d.Status()); err != nil {
				return err
			}
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("driver availability changed",
		zap.String("driver_id", driverID.String()),
		zap.String("status", string(out.Status())),
	)
	result := toDriverDTO(out)
	return &result, nil
}
