package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/thairide/service-booking/internal/application"
)

// NewRepositories returns GORM repositories bound to db, which may be a transaction handle.
func NewRepositories(db *gorm.DB) application.Repositories {
	return application.Repositories{
		Bookings: NewGormBookingRepository(db),
		Drivers:  NewGormDriverRepository(db),
		Disputes: NewGormDisputeRepository(db),
	}
}

// GormUnitOfWork runs each unit of work in one database transaction.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a new GormUnitOfWork.
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Do commits when fn returns nil and rolls back otherwise.
func (u *GormUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos application.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewRepositories(tx))
	})
}
