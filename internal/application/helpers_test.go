package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thairide/service-booking/internal/application"
	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/domain/policy"
	"github.com/thairide/service-booking/internal/repository/memory"
	"github.com/thairide/service-booking/internal/scheduler"
)

// T is the instant every test starts at.
var T = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type publishedEvent struct {
	Topic, Type, Subject string
	Data                 interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, topic, eventType, subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Type: eventType, Subject: subject, Data: data})
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	ctx       context.Context
	store     *memory.Store
	policies  *memory.PolicyRepository
	clock     *fakeClock
	deadlines *scheduler.MemoryDeadlineStore
	events    *recordingPublisher

	bookings *application.BookingService
	drivers  *application.DriverService
	disputes *application.DisputeService
	policy   *application.PolicyService
	monitor  *application.TimeoutMonitor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()

	h := &harness{
		ctx:       context.Background(),
		store:     memory.NewStore(),
		policies:  memory.NewPolicyRepository(policy.Defaults()),
		clock:     &fakeClock{now: T},
		deadlines: scheduler.NewMemoryDeadlineStore(),
		events:    &recordingPublisher{},
	}
	reader := h.store.Repositories()
	coordinator := application.NewAssignmentCoordinator(h.deadlines, logger)

	h.bookings = application.NewBookingService(h.store, reader, h.policies, coordinator,
		bookingDomain.NewStandardPricingStrategy(), h.events, h.clock, logger)
	h.drivers = application.NewDriverService(h.store, reader, h.policies, logger)
	h.disputes = application.NewDisputeService(h.store, reader, h.policies, h.events, h.clock, logger)
	h.policy = application.NewPolicyService(h.policies, logger)
	h.monitor = application.NewTimeoutMonitor(h.bookings, h.deadlines, reader.Bookings, h.policies,
		h.clock, time.Second, 50, logger)
	return h
}

func customer() application.Caller {
	return application.Caller{Actor: bookingDomain.ActorCustomer, UserID: uuid.New()}
}

func admin() application.Caller {
	return application.Caller{Actor: bookingDomain.ActorAdmin, UserID: uuid.New()}
}

// onlineDriver registers a driver and puts it in the assignment pool.
func (h *harness) onlineDriver(t *testing.T) (uuid.UUID, application.Caller) {
	t.Helper()
	caller := application.Caller{Actor: bookingDomain.ActorDriver, UserID: uuid.New()}
	d, err := h.drivers.Register(h.ctx, caller, application.RegisterDriverRequest{
		Name:         "Somchai",
		Phone:        "+66811111111",
		VehiclePlate: "1กข-" + caller.UserID.String()[:4],
		VehicleModel: "Toyota Vios",
		VehicleType:  "sedan",
	})
	require.NoError(t, err)
	_, err = h.drivers.SetOnline(h.ctx, caller, d.ID, true)
	require.NoError(t, err)
	return d.ID, caller
}

func (h *harness) createBooking(t *testing.T, c application.Caller) uuid.UUID {
	t.Helper()
	bk, err := h.bookings.CreateBooking(h.ctx, c.UserID, application.CreateBookingRequest{
		Pickup:      bookingDomain.Location{Address: "Siam Paragon", Latitude: 13.7462, Longitude: 100.5347},
		Dropoff:     bookingDomain.Location{Address: "Chatuchak Market", Latitude: 13.7999, Longitude: 100.5500},
		VehicleType: "sedan",
		Passengers:  1,
	})
	require.NoError(t, err)
	return bk.ID
}

func (h *harness) confirmedBooking(t *testing.T, c application.Caller) uuid.UUID {
	t.Helper()
	id := h.createBooking(t, c)
	_, err := h.bookings.ConfirmBooking(h.ctx, id, admin())
	require.NoError(t, err)
	return id
}

// assignedBooking returns a booking assigned to a fresh driver at the current clock time.
func (h *harness) assignedBooking(t *testing.T, c application.Caller) (uuid.UUID, uuid.UUID, application.Caller) {
	t.Helper()
	driverID, driverCaller := h.onlineDriver(t)
	id := h.confirmedBooking(t, c)
	_, err := h.bookings.AssignDriver(h.ctx, id, driverID, admin())
	require.NoError(t, err)
	return id, driverID, driverCaller
}

// completedBooking drives a booking through the whole trip, completing it at the current clock time.
func (h *harness) completedBooking(t *testing.T, c application.Caller) (uuid.UUID, uuid.UUID) {
	t.Helper()
	id, driverID, driverCaller := h.assignedBooking(t, c)
	_, err := h.bookings.AcceptAssignment(h.ctx, id, driverCaller)
	require.NoError(t, err)
	_, err = h.bookings.StartTrip(h.ctx, id, driverCaller)
	require.NoError(t, err)
	_, err = h.bookings.CompleteTrip(h.ctx, id, driverCaller)
	require.NoError(t, err)
	return id, driverID
}

func (h *harness) booking(t *testing.T, id uuid.UUID) *application.BookingDTO {
	t.Helper()
	bk, err := h.bookings.GetBooking(h.ctx, id, application.SystemCaller)
	require.NoError(t, err)
	return bk
}

func (h *harness) driver(t *testing.T, id uuid.UUID) *application.DriverDTO {
	t.Helper()
	d, err := h.drivers.GetDriver(h.ctx, id)
	require.NoError(t, err)
	return d
}
