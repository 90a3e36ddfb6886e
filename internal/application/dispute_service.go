package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thairide/service-booking/internal/contracts"
	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/domain/dispute"
	"github.com/thairide/service-booking/internal/domain/policy"
	"github.com/thairide/service-booking/internal/platform/domain"
)

// SubmitDisputeRequest is a customer's contest of a completed trip.
type SubmitDisputeRequest struct {
	Reason      string `json:"reason" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
}

// ResolveDisputeRequest closes a dispute.
type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" binding:"required,max=2000"`
}

// DisputeService handles dispute submission and admin review.
type DisputeService struct {
	uow       UnitOfWork
	reader    Repositories
	policies  policy.Provider
	publisher EventPublisher
	clock     Clock
	logger    *zap.Logger
}

// NewDisputeService creates a new DisputeService.
func NewDisputeService(uow UnitOfWork, reader Repositories, policies policy.Provider, publisher EventPublisher, clock Clock, logger *zap.Logger) *DisputeService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &DisputeService{
		uow:       uow,
		reader:    reader,
		policies:  policies,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// SubmitDispute opens a dispute if the booking completed within the dispute window.
// A booking carries at most one dispute.
func (s *DisputeService) SubmitDispute(ctx context.Context, bookingID uuid.UUID, caller Caller, req SubmitDisputeRequest) (*DisputeDTO, error) {
	if caller.Actor != bookingDomain.ActorCustomer && caller.Actor != bookingDomain.ActorAdmin {
		return nil, domain.NewForbiddenError("only the customer or an admin can raise a dispute")
	}
	cfg, err := s.policies.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	now := s.clock.Now()

	var d *dispute.Dispute
	err = s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		bk, err := repos.Bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := authorizeBooking(ctx, repos.Drivers, bk, caller); err != nil {
			return err
		}
		if bk.Status() != bookingDomain.StatusCompleted || bk.CompletedAt() == nil {
			return domain.NewPolicyViolationError(bookingDomain.CodeNotCompleted, "disputes can only be raised on completed bookings")
		}
		if ok, reason := policy.DisputeWindow(cfg, *bk.CompletedAt(), now); !ok {
			return domain.NewPolicyViolationError(string(reason),
				fmt.Sprintf("disputes must be raised within %s of completion", cfg.DisputeWindow))
		}

		d, err = dispute.NewDispute(bookingID, string(caller.Actor), caller.UserID, req.Reason, req.Description, now)
		if err != nil {
			return err
		}
		if err := bk.AttachDispute(d.ID(), now); err != nil {
			return err
		}
		if err := repos.Disputes.Save(ctx, d); err != nil {
			return err
		}
		bk.IncrementVersion()
		return repos.Bookings.Update(ctx, bk)
	})
	if err != nil {
		s.logger.Warn("dispute rejected",
			zap.String("booking_id", bookingID.String()),
			zap.String("code", domain.CodeOf(err)),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("dispute opened",
		zap.String("dispute_id", d.ID().String()),
		zap.String("booking_id", bookingID.String()),
	)
	s.publish(ctx, contracts.DisputeOpened, d)

	result := toDisputeDTO(d)
	return &result, nil
}

// StartReview moves an open dispute under review by the calling admin.
func (s *DisputeService) StartReview(ctx context.Context, disputeID uuid.UUID, adminID uuid.UUID) (*DisputeDTO, error) {
	now := s.clock.Now()
	d, err := s.update(ctx, disputeID, func(d *dispute.Dispute) error {
		return d.StartReview(adminID, now)
	})
	if err != nil {
		return nil, err
	}
	result := toDisputeDTO(d)
	return &result, nil
}

// Resolve closes a dispute in the customer's favour.
func (s *DisputeService) Resolve(ctx context.Context, disputeID uuid.UUID, adminID uuid.UUID, req ResolveDisputeRequest) (*DisputeDTO, error) {
	now := s.clock.Now()
	d, err := s.update(ctx, disputeID, func(d *dispute.Dispute) error {
		return d.Resolve(adminID, req.Resolution, now)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, contracts.DisputeResolved, d)
	result := toDisputeDTO(d)
	return &result, nil
}

// Reject closes a dispute without action.
func (s *DisputeService) Reject(ctx context.Context, disputeID uuid.UUID, adminID uuid.UUID, req ResolveDisputeRequest) (*DisputeDTO, error) {
	now := s.clock.Now()
	d, err := s.update(ctx, disputeID, func(d *dispute.Dispute) error {
		return d.Reject(adminID, req.Resolution, now)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, contracts.DisputeResolved, d)
	result := toDisputeDTO(d)
	return &result, nil
}

// GetDispute retrieves a dispute. Customers only see their own.
func (s *DisputeService) GetDispute(ctx context.Context, disputeID uuid.UUID, caller Caller) (*DisputeDTO, error) {
	d, err := s.reader.Disputes.FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if caller.Actor != bookingDomain.ActorAdmin && d.RaisedByID() != caller.UserID {
		return nil, domain.NewForbiddenError("dispute does not belong to this user")
	}
	result := toDisputeDTO(d)
	return &result, nil
}

// ListDisputes returns disputes for admin review.
func (s *DisputeService) ListDisputes(ctx context.Context, status dispute.Status, page, limit int) ([]DisputeDTO, int64, error) {
	items, total, err := s.reader.Disputes.List(ctx, status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list disputes: %w", err)
	}
	dtos := make([]DisputeDTO, len(items))
	for i, d := range items {
		dtos[i] = toDisputeDTO(d)
	}
	return dtos, total, nil
}

func (s *DisputeService) update(ctx context.Context, disputeID uuid.UUID, fn func(d *dispute.Dispute) error) (*dispute.Dispute, error) {
	var out *dispute.Dispute
	err := s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		d, err := repos.Disputes.FindByID(ctx, disputeID)
		if err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
		d.IncrementVersion()
		if err := repos.Disputes.Update(ctx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("dispute updated",
		zap.String("dispute_id", disputeID.String()),
		zap.String("status", string(out.Status())),
	)
	return out, nil
}

func (s *DisputeService) publish(ctx context.Context, eventType string, d *dispute.Dispute) {
	if s.publisher == nil {
		return
	}
	evt := contracts.DisputeEvent{
		DisputeID:  d.ID(),
		BookingID:  d.BookingID(),
		Status:     string(d.Status()),
		Reason:     d.Reason(),
		Resolution: d.Resolution(),
		OccurredAt: d.UpdatedAt(),
	}
	if err := s.publisher.Publish(ctx, contracts.TopicBookingEvents, eventType, d.BookingID().String(), evt); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
