package application

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thairide/service-booking/internal/contracts"
	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/domain/driver"
	"github.com/thairide/service-booking/internal/domain/policy"
	"github.com/thairide/service-booking/internal/domain/rating"
	"github.com/thairide/service-booking/internal/platform/domain"
)

// Policy violation codes raised by booking use cases.
const (
	CodeActiveBookingLimit     = "active_booking_limit"
	CodeDailyCancellationLimit = "daily_cancellation_limit"
	CodeNoShowNotEligible      = string(policy.ReasonNoShowNotEligible)
	CodeAssignmentWindowOpen   = "assignment_window_open"
)

// TransitionRequest asks the state machine to move a booking to Target.
type TransitionRequest struct {
	BookingID uuid.UUID
	Target    bookingDomain.BookingStatus
	Caller    Caller
	// DriverID is required when Target is driver_assigned.
	DriverID *uuid.UUID
	Reason   string
	// ExpectedStatus is the status the caller acted on. A booking that has moved on since is reported
	// as a stale-state conflict instead of an invalid transition. When empty, the status read at
	// request entry is used, so the loser of any race learns it lost.
	ExpectedStatus bookingDomain.BookingStatus

	expiry bool
}

// RatingRequest is the customer's score for a completed trip.
type RatingRequest struct {
	Score     int    `json:"score" binding:"required,min=1,max=5"`
	TipSatang int64  `json:"tip_satang" binding:"min=0"`
	Comment   string `json:"comment" binding:"max=1000"`
}

// BookingService is the booking state machine. Every state change runs in one unit of work
// against exactly one policy snapshot.
type BookingService struct {
	uow         UnitOfWork
	reader      Repositories
	policies    policy.Provider
	coordinator *AssignmentCoordinator
	pricing     bookingDomain.PricingStrategy
	publisher   EventPublisher
	clock       Clock
	logger      *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	uow UnitOfWork,
	reader Repositories,
	policies policy.Provider,
	coordinator *AssignmentCoordinator,
	pricing bookingDomain.PricingStrategy,
	publisher EventPublisher,
	clock Clock,
	logger *zap.Logger,
) *BookingService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &BookingService{
		uow:         uow,
		reader:      reader,
		policies:    policies,
		coordinator: coordinator,
		pricing:     pricing,
		publisher:   publisher,
		clock:       clock,
		logger:      logger,
	}
}

// transitionOutcome carries what a committed transition needs for post-commit work.
type transitionOutcome struct {
	booking *bookingDomain.Booking
	from    bookingDomain.BookingStatus
	entries []bookingDomain.StatusEntry
	fee     *policy.FeeDecision
}

// RequestTransition validates and applies one status change.
func (s *BookingService) RequestTransition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if !req.Target.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid target status: %s", req.Target))
	}
	if !req.Caller.Actor.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid actor: %s", req.Caller.Actor))
	}

	// A request without an expected status acted on the status the booking had when it arrived.
	if req.ExpectedStatus == "" {
		seen, err := s.reader.Bookings.FindByID(ctx, req.BookingID)
		if err != nil {
			s.logRejected("transition", req.BookingID, err, zap.String("target", string(req.Target)))
			return nil, err
		}
		req.ExpectedStatus = seen.Status()
	}

	cfg, err := s.policies.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	now := s.clock.Now()

	var out transitionOutcome
	err = s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		bk, err := repos.Bookings.FindByID(ctx, req.BookingID)
		if err != nil {
			return err
		}

		from := bk.Status()
		if req.ExpectedStatus != "" && from != req.ExpectedStatus {
			return domain.NewConflictError(fmt.Sprintf("booking is %s, expected %s", from, req.ExpectedStatus))
		}
		if !from.CanTransitionTo(req.Target) {
			return domain.NewInvalidStateError(string(from), string(req.Target))
		}
		if !actorMayTransition(from, req.Target, req.Caller.Actor) {
			return domain.NewForbiddenError(fmt.Sprintf("%s may not move a booking from %s to %s", req.Caller.Actor, from, req.Target))
		}
		if err := authorizeBooking(ctx, repos.Drivers, bk, req.Caller); err != nil {
			return err
		}
		if req.expiry {
			if bk.DriverAssignedAt() == nil || now.Before(AcceptanceDeadline(*bk.DriverAssignedAt(), cfg)) {
				return domain.NewPolicyViolationError(CodeAssignmentWindowOpen, "the driver's acceptance window has not elapsed")
			}
		}

		out = transitionOutcome{booking: bk, from: from}
		if err := s.apply(ctx, repos, bk, req, cfg, now, &out); err != nil {
			return err
		}

		out.entries = bk.UncommittedHistory()
		bk.IncrementVersion()
		return repos.Bookings.Update(ctx, bk)
	})
	if err != nil {
		s.logRejected("transition", req.BookingID, err,
			zap.String("target", string(req.Target)),
			zap.String("actor", string(req.Caller.Actor)),
		)
		return nil, err
	}

	s.afterTransition(ctx, out, req.Caller, cfg)

	result := TransitionResult{
		Booking: toBookingDTO(out.booking),
		From:    string(out.from),
		To:      string(out.booking.Status()),
		Fee:     out.fee,
	}
	return &result, nil
}

// apply performs the side effects of entering req.Target. It runs inside the unit of work.
func (s *BookingService) apply(
	ctx context.Context,
	repos Repositories,
	bk *bookingDomain.Booking,
	req TransitionRequest,
	cfg policy.Config,
	now time.Time,
	out *transitionOutcome,
) error {
	actor := req.Caller.Actor
	actorID := req.Caller.userIDPtr()

	switch req.Target {
	case bookingDomain.StatusConfirmed:
		if out.from != bookingDomain.StatusDriverAssigned {
			return bk.Confirm(actor, actorID, now)
		}
		// Rejection and timeout are fee-exempt: the driver, not the customer, caused them.
		released, err := bk.RevertAssignment(actor, actorID, req.Reason, now)
		if err != nil {
			return err
		}
		return s.coordinator.Release(ctx, repos.Drivers, released)

	case bookingDomain.StatusDriverAssigned:
		if req.DriverID == nil || *req.DriverID == uuid.Nil {
			return domain.NewValidationError("driver ID is required")
		}
		snap, err := s.coordinator.Claim(ctx, repos.Drivers, *req.DriverID, bk.ID(), now)
		if err != nil {
			return err
		}
		return bk.AssignDriver(snap, actor, actorID, now)

	case bookingDomain.StatusDriverEnRoute:
		return bk.MarkEnRoute(actor, actorID, now)

	case bookingDomain.StatusInProgress:
		return bk.StartTrip(actor, actorID, now)

	case bookingDomain.StatusCompleted:
		if err := bk.Complete(actor, actorID, now); err != nil {
			return err
		}
		driverID := bk.Driver().DriverID
		if err := s.coordinator.Release(ctx, repos.Drivers, driverID); err != nil {
			return err
		}
		return repos.Drivers.Credit(ctx, driverID, driver.Credit{Trips: 1, EarningsSatang: bk.FareSatang()})

	case bookingDomain.StatusCancelled:
		return s.applyCancel(ctx, repos, bk, req, cfg, now, out)
	}

	return domain.NewInvalidStateError(string(out.from), string(req.Target))
}

func (s *BookingService) applyCancel(
	ctx context.Context,
	repos Repositories,
	bk *bookingDomain.Booking,
	req TransitionRequest,
	cfg policy.Config,
	now time.Time,
	out *transitionOutcome,
) error {
	if req.Caller.Actor == bookingDomain.ActorCustomer && cfg.CancellationLimitEnabled {
		if err := repos.Bookings.LockCustomer(ctx, bk.CustomerID()); err != nil {
			return err
		}
		n, err := repos.Bookings.CountCancellationsByCustomerSince(ctx, bk.CustomerID(), cfg.StartOfDay(now))
		if err != nil {
			return fmt.Errorf("failed to count cancellations: %w", err)
		}
		if n >= int64(cfg.MaxCancellationsPerDay) {
			return domain.NewPolicyViolationError(CodeDailyCancellationLimit,
				fmt.Sprintf("customer has reached the limit of %d cancellations per day", cfg.MaxCancellationsPerDay))
		}
	}

	fee := policy.CancellationFee(bk.FeeSnapshot(), cfg, now)
	var heldBy *uuid.UUID
	if bk.Status().HoldsDriver() && bk.Driver() != nil {
		id := bk.Driver().DriverID
		heldBy = &id
	}

	if err := bk.Cancel(req.Caller.Actor, req.Caller.userIDPtr(), req.Reason, fee, cfg.Version, now); err != nil {
		return err
	}
	out.fee = &fee

	if heldBy == nil {
		return nil
	}
	if err := s.coordinator.Release(ctx, repos.Drivers, *heldBy); err != nil {
		return err
	}
	if fee.DriverShareSatang > 0 {
		return repos.Drivers.Credit(ctx, *heldBy, driver.Credit{EarningsSatang: fee.DriverShareSatang})
	}
	return nil
}

func (s *BookingService) afterTransition(ctx context.Context, out transitionOutcome, caller Caller, cfg policy.Config) {
	bk := out.booking
	to := bk.Status()

	if to == bookingDomain.StatusDriverAssigned && bk.DriverAssignedAt() != nil {
		s.coordinator.ScheduleTimeout(ctx, bk.ID(), AcceptanceDeadline(*bk.DriverAssignedAt(), cfg))
	}
	if out.from == bookingDomain.StatusDriverAssigned {
		s.coordinator.ClearTimeout(ctx, bk.ID())
	}

	s.logger.Info("booking transitioned",
		zap.String("booking_id", bk.ID().String()),
		zap.String("from", string(out.from)),
		zap.String("to", string(to)),
		zap.String("actor", string(caller.Actor)),
		zap.Int64("policy_version", cfg.Version),
	)

	s.publishTransitions(ctx, bk, out.from, out.entries, caller.Actor)
	if to == bookingDomain.StatusCancelled {
		s.publishCancelled(ctx, bk)
	}
}

// --- Operations ---

// CreateBooking creates a new booking in pending for the given customer.
func (s *BookingService) CreateBooking(ctx context.Context, customerID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	vehicle, err := bookingDomain.ParseVehicleType(req.VehicleType)
	if err != nil {
		return nil, err
	}

	fare := req.FareSatang
	if fare <= 0 {
		fare, err = s.pricing.Calculate(bookingDomain.PricingParams{
			Pickup:      req.Pickup,
			Dropoff:     req.Dropoff,
			VehicleType: vehicle,
			Passengers:  req.Passengers,
		})
		if err != nil {
			return nil, domain.NewValidationError(fmt.Sprintf("pricing error: %v", err))
		}
	}

	now := s.clock.Now()
	scheduledAt := now
	if req.ScheduledAt != nil {
		if req.ScheduledAt.Before(now.Add(-time.Minute)) {
			return nil, domain.NewValidationError("scheduled pickup time is in the past")
		}
		scheduledAt = *req.ScheduledAt
	}

	cfg, err := s.policies.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	bk, err := bookingDomain.NewBooking(bookingDomain.NewBookingParams{
		CustomerID:  customerID,
		Pickup:      req.Pickup,
		Dropoff:     req.Dropoff,
		ScheduledAt: scheduledAt,
		VehicleType: vehicle,
		Passengers:  req.Passengers,
		FareSatang:  fare,
		Notes:       req.Notes,
	}, now)
	if err != nil {
		return nil, err
	}

	err = s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		if cfg.ActiveBookingLimitEnabled {
			if err := repos.Bookings.LockCustomer(ctx, customerID); err != nil {
				return err
			}
			active, err := repos.Bookings.CountActiveByCustomer(ctx, customerID)
			if err != nil {
				return fmt.Errorf("failed to count active bookings: %w", err)
			}
			if active >= int64(cfg.MaxActiveBookingsPerCustomer) {
				return domain.NewPolicyViolationError(CodeActiveBookingLimit,
					fmt.Sprintf("customer already has %d active bookings", active))
			}
		}
		return repos.Bookings.Save(ctx, bk)
	})
	if err != nil {
		s.logRejected("create", bk.ID(), err, zap.String("customer_id", customerID.String()))
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("booking_number", bk.BookingNumber()),
		zap.Int64("fare_satang", bk.FareSatang()),
	)
	s.publishEvent(ctx, contracts.TopicBookingEvents, contracts.BookingCreated, bk.ID().String(), contracts.BookingCreatedEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		CustomerID:    bk.CustomerID(),
		VehicleType:   string(bk.VehicleType()),
		FareSatang:    bk.FareSatang(),
		Currency:      bk.Currency(),
		ScheduledAt:   bk.ScheduledAt(),
		OccurredAt:    now,
	})

	result := toBookingDTO(bk)
	return &result, nil
}

// QuoteFare prices a trip without creating a booking.
func (s *BookingService) QuoteFare(req CreateBookingRequest) (int64, error) {
	vehicle, err := bookingDomain.ParseVehicleType(req.VehicleType)
	if err != nil {
		return 0, err
	}
	fare, err := s.pricing.Calculate(bookingDomain.PricingParams{
		Pickup:      req.Pickup,
		Dropoff:     req.Dropoff,
		VehicleType: vehicle,
		Passengers:  req.Passengers,
	})
	if err != nil {
		return 0, domain.NewValidationError(fmt.Sprintf("pricing error: %v", err))
	}
	return fare, nil
}

// ConfirmBooking moves a pending booking to confirmed.
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID uuid.UUID, caller Caller) (*TransitionResult, error) {
	return s.RequestTransition(ctx, TransitionRequest{
		BookingID: bookingID,
		Target:    bookingDomain.StatusConfirmed,
		Caller:    caller,
	})
}

// AssignDriver claims driverID for the booking. A busy driver leaves the booking confirmed.
func (s *BookingService) AssignDriver(ctx context.Context, bookingID, driverID uuid.UUID, caller Caller) (*TransitionResult, error) {
	return s.RequestTransition(ctx, TransitionRequest{
		BookingID: bookingID,
		Target:    bookingDomain.StatusDriverAssigned,
		Caller:    caller,
		DriverID:  &driverID,
	})
}

// AcceptAssignment is the assigned driver setting off to the pickup.
func (s *BookingService) AcceptAssignment(ctx context.Context, bookingID uuid.UUID, caller Caller) (*TransitionResult, error) {
	return s.RequestTransition(ctx, TransitionRequest{
		BookingID:      bookingID,
		Target:         bookingDomain.StatusDriverEnRoute,
		Caller:         caller,
		ExpectedStatus: bookingDomain.StatusDriverAssigned,
	})
}

// RejectAssignment releases the driver and returns the booking to confirmed.
func (s *BookingService) RejectAssignment(ctx context.Context, bookingID uuid.UUID, caller Caller, reason string) (*TransitionResult, error) {
	if err := bookingDomain.ValidateReason(reason); err != nil {
		return nil, err
	}
	note := "assignment rejected"
	if reason != "" {
		note += ": " + reason
	}
	return s.RequestTransition(ctx, TransitionRequest{
		BookingID:      bookingID,
		Target:         bookingDomain.StatusConfirmed,
		Caller:         caller,
		Reason:         note,
		ExpectedStatus: bookingDomain.StatusDriverAssigned,
	})
}

// ExpireAssignment reverts an assignment the driver did not accept in time.
// It loses to a concurrent accept with a stale-state conflict.
func (s *BookingService) ExpireAssignment(ctx context.Context, bookingID uuid.UUID) (*TransitionResult, error) {
	return s.RequestTransition(ctx, TransitionRequest{
		BookingID:      bookingID,
		Target:         bookingDomain.StatusConfirmed,
		Caller:         SystemCaller,
		Reason:         string(policy.ReasonAssignmentExpiry),
		ExpectedStatus: bookingDomain.StatusDriverAssigned,
		expiry:         true,
	})
}

// StartTrip moves an en-route booking to in_progress.
func (s *BookingService) StartTrip(ctx context.Context, bookingID uuid.UUID, caller Caller) (*TransitionResult, error) {
	return s.RequestTransition(ctx, TransitionRequest{
		BookingID: bookingID,
		Target:    bookingDomain.StatusInProgress,
		Caller:    caller,
	})
}

// CompleteTrip finishes the trip, frees the driver and credits the fare.
func (s *BookingService) CompleteTrip(ctx context.Context, bookingID uuid.UUID, caller Caller) (*TransitionResult, error) {
	return s.RequestTransition(ctx, TransitionRequest{
		BookingID: bookingID,
		Target:    bookingDomain.StatusCompleted,
		Caller:    caller,
	})
}

// CancelBooking cancels the booking and returns the fee decision.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID uuid.UUID, caller Caller, reason string) (*TransitionResult, error) {
	if err := bookingDomain.ValidateReason(reason); err != nil {
		return nil, err
	}
	return s.RequestTransition(ctx, TransitionRequest{
		BookingID: bookingID,
		Target:    bookingDomain.StatusCancelled,
		Caller:    caller,
		Reason:    reason,
	})
}

// MarkDriverArrived records the arrival time the no-show wait is measured from.
func (s *BookingService) MarkDriverArrived(ctx context.Context, bookingID uuid.UUID, caller Caller, at *time.Time) (*BookingDTO, error) {
	if caller.Actor != bookingDomain.ActorDriver && caller.Actor != bookingDomain.ActorAdmin {
		return nil, domain.NewForbiddenError("only the driver or an admin can record arrival")
	}
	now := s.clock.Now()
	arrivedAt := now
	if at != nil {
		if at.After(now) {
			return nil, domain.NewValidationError("arrival time cannot be in the future")
		}
		arrivedAt = *at
	}

	bk, _, err := s.mutate(ctx, bookingID, func(ctx context.Context, repos Repositories, bk *bookingDomain.Booking) error {
		if err := authorizeBooking(ctx, repos.Drivers, bk, caller); err != nil {
			return err
		}
		return bk.MarkArrived(arrivedAt)
	})
	if err != nil {
		s.logRejected("mark_arrived", bookingID, err)
		return nil, err
	}

	s.logger.Info("driver arrival recorded",
		zap.String("booking_id", bookingID.String()),
		zap.Time("arrived_at", *bk.DriverArrivedAt()),
	)
	result := toBookingDTO(bk)
	return &result, nil
}

// ReportNoShow closes the booking when the driver has waited long enough, charging the no-show fee.
// When arrival was recorded the wait is measured from it and waited is ignored.
func (s *BookingService) ReportNoShow(ctx context.Context, bookingID uuid.UUID, caller Caller, waited *time.Duration) (*NoShowResult, error) {
	if caller.Actor != bookingDomain.ActorDriver && caller.Actor != bookingDomain.ActorAdmin {
		return nil, domain.NewForbiddenError("only the driver or an admin can report a no-show")
	}
	cfg, err := s.policies.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	now := s.clock.Now()

	var (
		decision policy.NoShowDecision
		wait     time.Duration
		from     bookingDomain.BookingStatus
	)
	bk, entries, err := s.mutate(ctx, bookingID, func(ctx context.Context, repos Repositories, bk *bookingDomain.Booking) error {
		from = bk.Status()
		if from != bookingDomain.StatusDriverEnRoute {
			return domain.NewInvalidStateError(string(from), string(bookingDomain.StatusCancelled))
		}
		if err := authorizeBooking(ctx, repos.Drivers, bk, caller); err != nil {
			return err
		}

		switch {
		case bk.DriverArrivedAt() != nil:
			wait = now.Sub(*bk.DriverArrivedAt())
		case waited != nil && *waited >= 0:
			wait = *waited
		default:
			return domain.NewValidationError("driver arrival has not been recorded and no wait duration was given")
		}

		decision = policy.NoShow(cfg, wait)
		if !decision.Eligible {
			remaining := int64(math.Ceil(decision.RemainingWait.Seconds()))
			return domain.NewPolicyViolationError(CodeNoShowNotEligible,
				fmt.Sprintf("driver must wait %ds more before reporting a no-show", remaining)).
				WithDetail("remaining_wait_seconds", remaining).
				WithDetail("waited_seconds", int64(wait/time.Second))
		}

		driverID := bk.Driver().DriverID
		if err := bk.CloseAsNoShow(caller.Actor, caller.userIDPtr(), wait, decision.FeeDecision, cfg.Version, now); err != nil {
			return err
		}
		if err := s.coordinator.Release(ctx, repos.Drivers, driverID); err != nil {
			return err
		}
		if decision.DriverShareSatang > 0 {
			return repos.Drivers.Credit(ctx, driverID, driver.Credit{EarningsSatang: decision.DriverShareSatang})
		}
		return nil
	})
	if err != nil {
		s.logRejected("no_show", bookingID, err)
		return nil, err
	}

	s.logger.Info("no-show settled",
		zap.String("booking_id", bookingID.String()),
		zap.Duration("waited", wait),
		zap.Int64("fee_satang", decision.FeeSatang),
		zap.String("reason", string(decision.Reason)),
	)
	s.publishTransitions(ctx, bk, from, entries, caller.Actor)
	s.publishCancelled(ctx, bk)

	return &NoShowResult{
		Booking:       toBookingDTO(bk),
		WaitedSeconds: int64(wait / time.Second),
		Fee:           decision.FeeDecision,
	}, nil
}

// SubmitRating applies the customer's score to the driver's smoothed rating exactly once.
func (s *BookingService) SubmitRating(ctx context.Context, bookingID uuid.UUID, caller Caller, req RatingRequest) (*RatingResult, error) {
	if caller.Actor != bookingDomain.ActorCustomer {
		return nil, domain.NewForbiddenError("only the customer can rate a trip")
	}
	if req.Score < rating.MinScore || req.Score > rating.MaxScore {
		return nil, domain.NewValidationError(fmt.Sprintf("score must be between %d and %d", rating.MinScore, rating.MaxScore))
	}
	cfg, err := s.policies.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	now := s.clock.Now()
	params := rating.Params{PriorMean: cfg.RatingPriorMean, MinReviews: cfg.RatingMinReviews}

	var (
		driverID  uuid.UUID
		newRating float64
		newCount  int
	)
	bk, _, err := s.mutate(ctx, bookingID, func(ctx context.Context, repos Repositories, bk *bookingDomain.Booking) error {
		if err := authorizeBooking(ctx, repos.Drivers, bk, caller); err != nil {
			return err
		}
		if err := bk.Rate(req.Score, req.TipSatang, req.Comment, now); err != nil {
			return err
		}

		driverID = bk.Driver().DriverID
		d, err := repos.Drivers.FindByID(ctx, driverID)
		if err != nil {
			return err
		}
		newRating, newCount, err = rating.Aggregate(params, d.Rating(), d.RatingCount(), req.Score)
		if err != nil {
			return err
		}
		if err := repos.Drivers.UpdateRating(ctx, driverID, d.RatingCount(), newRating, newCount); err != nil {
			return err
		}
		if req.TipSatang > 0 {
			return repos.Drivers.Credit(ctx, driverID, driver.Credit{EarningsSatang: req.TipSatang, TipsSatang: req.TipSatang})
		}
		return nil
	})
	if err != nil {
		s.logRejected("rate", bookingID, err)
		return nil, err
	}

	s.logger.Info("booking rated",
		zap.String("booking_id", bookingID.String()),
		zap.String("driver_id", driverID.String()),
		zap.Int("score", req.Score),
		zap.Float64("new_rating", newRating),
	)
	s.publishEvent(ctx, contracts.TopicBookingEvents, contracts.BookingRated, bookingID.String(), contracts.BookingRatedEvent{
		BookingID:      bookingID,
		DriverID:       driverID,
		Score:          req.Score,
		TipSatang:      req.TipSatang,
		NewRating:      newRating,
		NewRatingCount: newCount,
		OccurredAt:     now,
	})

	return &RatingResult{
		Booking:        toBookingDTO(bk),
		DriverID:       driverID,
		NewRating:      newRating,
		NewRatingCount: newCount,
	}, nil
}

// MarkPaid settles whatever the booking owes. Repeated captures for a paid booking are ignored.
func (s *BookingService) MarkPaid(ctx context.Context, bookingID uuid.UUID, paymentID string) (*BookingDTO, error) {
	now := s.clock.Now()
	var (
		bk      *bookingDomain.Booking
		changed bool
	)
	err := s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		bk, err = repos.Bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		changed, err = bk.MarkPaid(now)
		if err != nil || !changed {
			return err
		}
		bk.IncrementVersion()
		return repos.Bookings.Update(ctx, bk)
	})
	if err != nil {
		s.logRejected("mark_paid", bookingID, err, zap.String("payment_id", paymentID))
		return nil, err
	}

	if changed {
		s.logger.Info("booking paid",
			zap.String("booking_id", bookingID.String()),
			zap.String("payment_id", paymentID),
		)
		s.publishEvent(ctx, contracts.TopicBookingEvents, contracts.BookingPaid, bookingID.String(), contracts.BookingPaidEvent{
			BookingID:  bookingID,
			PaymentID:  paymentID,
			OccurredAt: now,
		})
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// --- Queries ---

// GetBooking retrieves a single booking with its full history.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID, caller Caller) (*BookingDTO, error) {
	bk, err := s.reader.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(ctx, s.reader.Drivers, bk, caller); err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetCustomerBookings retrieves paginated bookings for a customer.
func (s *BookingService) GetCustomerBookings(ctx context.Context, customerID uuid.UUID, f bookingDomain.ListFilter) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.reader.Bookings.FindByCustomerID(ctx, customerID, f)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, f.Page, f.Limit)
	return &result, nil
}

// GetDriverBookings retrieves paginated bookings for the driver profile owned by userID.
func (s *BookingService) GetDriverBookings(ctx context.Context, userID uuid.UUID, f bookingDomain.ListFilter) (*domain.PaginatedResult[BookingDTO], error) {
	d, err := s.reader.Drivers.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	bookings, total, err := s.reader.Bookings.FindByDriverID(ctx, d.ID(), f)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, f.Page, f.Limit)
	return &result, nil
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, f bookingDomain.ListFilter) ([]BookingDTO, int64, error) {
	bookings, total, err := s.reader.Bookings.ListAll(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return toBookingDTOs(bookings), total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.reader.Bookings.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// --- Helpers ---

// mutate loads a booking, applies fn and saves it with optimistic locking in one unit of work.
// It returns the history entries fn appended.
func (s *BookingService) mutate(
	ctx context.Context,
	bookingID uuid.UUID,
	fn func(ctx context.Context, repos Repositories, bk *bookingDomain.Booking) error,
) (*bookingDomain.Booking, []bookingDomain.StatusEntry, error) {
	var (
		out     *bookingDomain.Booking
		entries []bookingDomain.StatusEntry
	)
	err := s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		bk, err := repos.Bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := fn(ctx, repos, bk); err != nil {
			return err
		}
		entries = bk.UncommittedHistory()
		bk.IncrementVersion()
		if err := repos.Bookings.Update(ctx, bk); err != nil {
			return err
		}
		out = bk
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, entries, nil
}

func (s *BookingService) logRejected(op string, bookingID uuid.UUID, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("op", op),
		zap.String("booking_id", bookingID.String()),
		zap.Error(err),
	)
	if kind, ok := domain.KindOf(err); ok {
		s.logger.Warn("booking request rejected", append(fields, zap.String("kind", string(kind)))...)
		return
	}
	s.logger.Error("booking request failed", fields...)
}

func (s *BookingService) publishTransitions(ctx context.Context, bk *bookingDomain.Booking, from bookingDomain.BookingStatus, entries []bookingDomain.StatusEntry, actor bookingDomain.Actor) {
	var driverID *uuid.UUID
	if bk.Driver() != nil {
		id := bk.Driver().DriverID
		driverID = &id
	}
	prev := from
	for _, e := range entries {
		s.publishEvent(ctx, contracts.TopicBookingEvents, contracts.BookingStatusChanged, bk.ID().String(), contracts.BookingStatusChangedEvent{
			BookingID:     bk.ID(),
			BookingNumber: bk.BookingNumber(),
			CustomerID:    bk.CustomerID(),
			DriverID:      driverID,
			From:          string(prev),
			To:            string(e.Status),
			Actor:         string(actor),
			Seq:           e.Seq,
			Note:          e.Note,
			OccurredAt:    e.At,
		})
		prev = e.Status
	}
}

func (s *BookingService) publishCancelled(ctx context.Context, bk *bookingDomain.Booking) {
	c := bk.Cancellation()
	if c == nil {
		return
	}
	var driverID *uuid.UUID
	if bk.Driver() != nil {
		id := bk.Driver().DriverID
		driverID = &id
	}
	eventType := contracts.BookingCancelled
	if c.NoShow {
		eventType = contracts.BookingNoShow
	}
	s.publishEvent(ctx, contracts.TopicBookingEvents, eventType, bk.ID().String(), contracts.BookingCancelledEvent{
		BookingID:           bk.ID(),
		BookingNumber:       bk.BookingNumber(),
		CustomerID:          bk.CustomerID(),
		DriverID:            driverID,
		CancelledBy:         string(c.By),
		NoShow:              c.NoShow,
		Reason:              c.Reason,
		FeeSatang:           c.FeeSatang,
		DriverShareSatang:   c.DriverShareSatang,
		PlatformShareSatang: c.PlatformShareSatang,
		FeeReason:           c.FeeReason,
		PolicyVersion:       c.PolicyVersion,
		OccurredAt:          c.At,
	})
}

func (s *BookingService) publishEvent(ctx context.Context, topic, eventType, key string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, eventType, key, data); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
