package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/domain/policy"
	"github.com/thairide/service-booking/internal/platform/domain"
)

// TimeoutMonitor reverts assignments the driver did not accept within the acceptance window.
// It runs outside request handling; a driver accepting at the same moment wins or loses on the
// booking's version check like any other racing transition.
type TimeoutMonitor struct {
	bookings  *BookingService
	deadlines DeadlineStore
	reader    bookingDomain.BookingRepository
	policies  policy.Provider
	clock     Clock
	interval  time.Duration
	batch     int
	logger    *zap.Logger
}

// NewTimeoutMonitor creates a new TimeoutMonitor.
func NewTimeoutMonitor(
	bookings *BookingService,
	deadlines DeadlineStore,
	reader bookingDomain.BookingRepository,
	policies policy.Provider,
	clock Clock,
	interval time.Duration,
	batch int,
	logger *zap.Logger,
) *TimeoutMonitor {
	if clock == nil {
		clock = SystemClock{}
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &TimeoutMonitor{
		bookings:  bookings,
		deadlines: deadlines,
		reader:    reader,
		policies:  policies,
		clock:     clock,
		interval:  interval,
		batch:     batch,
		logger:    logger,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (m *TimeoutMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("assignment timeout monitor started", zap.Duration("interval", m.interval))
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("assignment timeout monitor stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep expires every overdue assignment it can find and returns how many it reverted.
// Due deadlines come from the deadline store; the database sweep catches any the store missed.
func (m *TimeoutMonitor) Sweep(ctx context.Context) int {
	now := m.clock.Now()
	candidates := make(map[uuid.UUID]struct{})

	if m.deadlines != nil {
		ids, err := m.deadlines.Due(ctx, now, m.batch)
		if err != nil {
			m.logger.Error("failed to read due assignment deadlines", zap.Error(err))
		}
		for _, id := range ids {
			candidates[id] = struct{}{}
		}
	}

	if cfg, err := m.policies.Current(ctx); err != nil {
		m.logger.Error("failed to load policy for timeout sweep", zap.Error(err))
	} else {
		overdue, err := m.reader.FindAssignedBefore(ctx, now.Add(-cfg.AssignmentAcceptanceWindow), m.batch)
		if err != nil {
			m.logger.Error("failed to find overdue assignments", zap.Error(err))
		}
		for _, bk := range overdue {
			candidates[bk.ID()] = struct{}{}
		}
	}

	expired := 0
	for id := range candidates {
		_, err := m.bookings.ExpireAssignment(ctx, id)
		switch {
		case err == nil:
			expired++
		case isLostRace(err):
			m.logger.Debug("assignment timeout dropped",
				zap.String("booking_id", id.String()),
				zap.Error(err),
			)
		default:
			m.logger.Warn("failed to expire assignment",
				zap.String("booking_id", id.String()),
				zap.Error(err),
			)
		}
	}
	if expired > 0 {
		m.logger.Info("expired driver assignments", zap.Int("count", expired))
	}
	return expired
}

// isLostRace reports errors meaning the booking moved on before the timeout landed.
func isLostRace(err error) bool {
	switch domain.CodeOf(err) {
	case domain.CodeStaleState, domain.CodeInvalidTransition, domain.CodeNotFound, CodeAssignmentWindowOpen:
		return true
	}
	return false
}
