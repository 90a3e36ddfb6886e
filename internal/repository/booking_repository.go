package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/platform/domain"
)

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking and its history.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	bookings, err := r.withHistory(ctx, []BookingModel{model})
	if err != nil {
		return nil, err
	}
	return bookings[0], nil
}

// FindByNumber retrieves a booking by its booking number.
func (r *GormBookingRepository) FindByNumber(ctx context.Context, number string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("booking_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", number)
		}
		return nil, fmt.Errorf("failed to find booking by number: %w", err)
	}
	bookings, err := r.withHistory(ctx, []BookingModel{model})
	if err != nil {
		return nil, err
	}
	return bookings[0], nil
}

// FindByCustomerID retrieves bookings for a customer with pagination.
func (r *GormBookingRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID, f bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	return r.list(ctx, f, func(q *gorm.DB) *gorm.DB { return q.Where("customer_id = ?", customerID) })
}

// FindByDriverID retrieves bookings assigned to a driver with pagination.
func (r *GormBookingRepository) FindByDriverID(ctx context.Context, driverID uuid.UUID, f bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	return r.list(ctx, f, func(q *gorm.DB) *gorm.DB { return q.Where("driver_id = ?", driverID) })
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, f bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	return r.list(ctx, f, func(q *gorm.DB) *gorm.DB { return q })
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// customerLockSpace keeps customer advisory locks apart from any other two-key locks on the database.
const customerLockSpace = 0x7452

// LockCustomer takes a transaction-scoped advisory lock on the customer. Outside a transaction
// the lock is released as soon as the statement ends.
func (r *GormBookingRepository) LockCustomer(ctx context.Context, customerID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(?, hashtext(?))", customerLockSpace, customerID.String()).Error; err != nil {
		return fmt.Errorf("failed to lock customer: %w", err)
	}
	return nil
}

// CountActiveByCustomer counts a customer's non-terminal bookings.
func (r *GormBookingRepository) CountActiveByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	statuses := make([]string, 0)
	for _, s := range bookingDomain.ActiveStatuses() {
		statuses = append(statuses, string(s))
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Where("customer_id = ? AND status IN ?", customerID, statuses).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count active bookings: %w", err)
	}
	return n, nil
}

// CountCancellationsByCustomerSince counts cancellations the customer requested at or after since.
func (r *GormBookingRepository) CountCancellationsByCustomerSince(ctx context.Context, customerID uuid.UUID, since time.Time) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Where("customer_id = ? AND cancelled_by = ? AND cancelled_at >= ?", customerID, string(bookingDomain.ActorCustomer), since).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count cancellations: %w", err)
	}
	return n, nil
}

// FindAssignedBefore returns driver_assigned bookings whose assignment is at or before cutoff.
func (r *GormBookingRepository) FindAssignedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	q := r.db.WithContext(ctx).
		Where("status = ? AND driver_assigned_at <= ?", string(bookingDomain.StatusDriverAssigned), cutoff).
		Order("driver_assigned_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find overdue assignments: %w", err)
	}
	return r.withHistory(ctx, models)
}

// Save persists a new booking and its initial history rows.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	db := r.db.WithContext(ctx)
	if err := db.Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("booking already exists")
		}
		return fmt.Errorf("failed to save booking: %w", err)
	}
	if err := insertHistory(db, bk.ID(), bk.UncommittedHistory()); err != nil {
		return err
	}
	bk.MarkCommitted()
	return nil
}

// Update persists changes to an existing booking with optimistic locking and appends its new history rows.
// Callers run it inside a transaction so the row and its history commit together.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	// Optimistic locking: only update if the version matches (current version - 1 since IncrementVersion was called)
	expectedVersion := bk.Version() - 1
	db := r.db.WithContext(ctx)
	result := db.
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"driver_id":          model.DriverID,
			"driver_snapshot":    model.DriverSnapshot,
			"status":             model.Status,
			"notes":              model.Notes,
			"payment_status":     model.PaymentStatus,
			"driver_assigned_at": model.DriverAssignedAt,
			"driver_en_route_at": model.DriverEnRouteAt,
			"driver_arrived_at":  model.DriverArrivedAt,
			"trip_started_at":    model.TripStartedAt,
			"completed_at":       model.CompletedAt,
			"cancelled_at":       model.CancelledAt,
			"cancelled_by":       model.CancelledBy,
			"paid_at":            model.PaidAt,
			"cancellation":       model.Cancellation,
			"rating":             model.Rating,
			"dispute_id":         model.DisputeID,
			"version":            model.Version,
			"updated_at":         model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}

	if err := insertHistory(db, bk.ID(), bk.UncommittedHistory()); err != nil {
		return err
	}
	bk.MarkCommitted()
	return nil
}

func (r *GormBookingRepository) list(ctx context.Context, f bookingDomain.ListFilter, scope func(*gorm.DB) *gorm.DB) ([]*bookingDomain.Booking, int64, error) {
	page, limit := normalizePage(f.Page, f.Limit)

	base := func() *gorm.DB {
		q := scope(r.db.WithContext(ctx).Model(&BookingModel{}))
		if f.Status != "" {
			q = q.Where("status = ?", string(f.Status))
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	if err := base().
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings, err := r.withHistory(ctx, models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// withHistory loads the history of every model in one query and rebuilds the aggregates.
func (r *GormBookingRepository) withHistory(ctx context.Context, models []BookingModel) ([]*bookingDomain.Booking, error) {
	if len(models) == 0 {
		return []*bookingDomain.Booking{}, nil
	}
	ids := make([]uuid.UUID, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}

	var rows []StatusHistoryModel
	if err := r.db.WithContext(ctx).
		Where("booking_id IN ?", ids).
		Order("booking_id, seq").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}
	byBooking := make(map[uuid.UUID][]bookingDomain.StatusEntry, len(models))
	for _, row := range rows {
		byBooking[row.BookingID] = append(byBooking[row.BookingID], toStatusEntry(row))
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i], byBooking[models[i].ID])
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}

func insertHistory(db *gorm.DB, bookingID uuid.UUID, entries []bookingDomain.StatusEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]StatusHistoryModel, len(entries))
	for i, e := range entries {
		rows[i] = StatusHistoryModel{
			BookingID: bookingID,
			Seq:       e.Seq,
			Status:    string(e.Status),
			At:        e.At,
			Note:      e.Note,
			Actor:     string(e.Actor),
			ActorID:   e.ActorID,
		}
	}
	if err := db.Create(&rows).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("status history was appended by another transaction")
		}
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// --- Conversion Helpers ---

func toStatusEntry(row StatusHistoryModel) bookingDomain.StatusEntry {
	return bookingDomain.StatusEntry{
		Seq:     row.Seq,
		Status:  bookingDomain.BookingStatus(row.Status),
		At:      row.At.UTC(),
		Note:    row.Note,
		Actor:   bookingDomain.Actor(row.Actor),
		ActorID: row.ActorID,
	}
}

func marshalOptional(v interface{}, present bool) (json.RawMessage, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	s := bk.State()

	pickupJSON, err := json.Marshal(s.Pickup)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pickup: %w", err)
	}
	dropoffJSON, err := json.Marshal(s.Dropoff)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dropoff: %w", err)
	}
	driverJSON, err := marshalOptional(s.Driver, s.Driver != nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal driver snapshot: %w", err)
	}
	cancellationJSON, err := marshalOptional(s.Cancellation, s.Cancellation != nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cancellation: %w", err)
	}
	ratingJSON, err := marshalOptional(s.Rating, s.Rating != nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rating: %w", err)
	}

	var driverID *uuid.UUID
	if s.Driver != nil {
		id := s.Driver.DriverID
		driverID = &id
	}
	var cancelledBy *string
	if s.Cancellation != nil {
		by := string(s.Cancellation.By)
		cancelledBy = &by
	}

	return &BookingModel{
		ID:               s.ID,
		BookingNumber:    s.BookingNumber,
		CustomerID:       s.CustomerID,
		DriverID:         driverID,
		DriverSnapshot:   driverJSON,
		Status:           string(s.Status),
		Pickup:           pickupJSON,
		Dropoff:          dropoffJSON,
		ScheduledAt:      s.ScheduledAt,
		VehicleType:      string(s.VehicleType),
		Passengers:       s.Passengers,
		FareSatang:       s.FareSatang,
		Currency:         s.Currency,
		Notes:            s.Notes,
		PaymentStatus:    string(s.PaymentStatus),
		DriverAssignedAt: s.DriverAssignedAt,
		DriverEnRouteAt:  s.DriverEnRouteAt,
		DriverArrivedAt:  s.DriverArrivedAt,
		TripStartedAt:    s.TripStartedAt,
		CompletedAt:      s.CompletedAt,
		CancelledAt:      s.CancelledAt,
		CancelledBy:      cancelledBy,
		PaidAt:           s.PaidAt,
		Cancellation:     cancellationJSON,
		Rating:           ratingJSON,
		DisputeID:        s.DisputeID,
		Version:          s.Version,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}, nil
}

func toDomainBooking(m *BookingModel, history []bookingDomain.StatusEntry) (*bookingDomain.Booking, error) {
	var pickup, dropoff bookingDomain.Location
	if err := json.Unmarshal(m.Pickup, &pickup); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pickup: %w", err)
	}
	if err := json.Unmarshal(m.Dropoff, &dropoff); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dropoff: %w", err)
	}

	var drv *bookingDomain.DriverSnapshot
	if len(m.DriverSnapshot) > 0 {
		drv = &bookingDomain.DriverSnapshot{}
		if err := json.Unmarshal(m.DriverSnapshot, drv); err != nil {
			return nil, fmt.Errorf("failed to unmarshal driver snapshot: %w", err)
		}
	}
	var cancellation *bookingDomain.Cancellation
	if len(m.Cancellation) > 0 {
		cancellation = &bookingDomain.Cancellation{}
		if err := json.Unmarshal(m.Cancellation, cancellation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cancellation: %w", err)
		}
	}
	var rt *bookingDomain.CustomerRating
	if len(m.Rating) > 0 {
		rt = &bookingDomain.CustomerRating{}
		if err := json.Unmarshal(m.Rating, rt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rating: %w", err)
		}
	}

	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		// A stored value that no longer parses is a server fault, not a client error.
		return nil, fmt.Errorf("booking %s has unreadable status %q", m.ID, m.Status)
	}

	return bookingDomain.ReconstructBooking(bookingDomain.State{
		ID:               m.ID,
		BookingNumber:    m.BookingNumber,
		CustomerID:       m.CustomerID,
		Pickup:           pickup,
		Dropoff:          dropoff,
		ScheduledAt:      m.ScheduledAt.UTC(),
		VehicleType:      bookingDomain.VehicleType(m.VehicleType),
		Passengers:       m.Passengers,
		FareSatang:       m.FareSatang,
		Currency:         m.Currency,
		Notes:            m.Notes,
		Status:           status,
		Driver:           drv,
		History:          history,
		PaymentStatus:    bookingDomain.PaymentStatus(m.PaymentStatus),
		DriverAssignedAt: utcPtr(m.DriverAssignedAt),
		DriverEnRouteAt:  utcPtr(m.DriverEnRouteAt),
		DriverArrivedAt:  utcPtr(m.DriverArrivedAt),
		TripStartedAt:    utcPtr(m.TripStartedAt),
		CompletedAt:      utcPtr(m.CompletedAt),
		CancelledAt:      utcPtr(m.CancelledAt),
		PaidAt:           utcPtr(m.PaidAt),
		Cancellation:     cancellation,
		Rating:           rt,
		DisputeID:        m.DisputeID,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}), nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
