// Package domain defines the persistence models for the registrar booking
// system: the service catalog, availability slots, appointments, users, and
// the global queue counter. These types are mapped with GORM and form the
// core data layer of the application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Appointment lifecycle states.
const (
	StatusPending   = "pending"
	StatusCancelled = "cancelled"
)

// User roles.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// Service is a registrar service citizens can book (e.g. "Birth Certificate").
// Reference data: created and edited by administrators, read by booking flows.
// Appointments reference a service by name, not by foreign key, so renaming a
// service does not rewrite history.
type Service struct {
	ID           string     `json:"id"           gorm:"type:char(36);primaryKey"`
	Name         string     `json:"name"         gorm:"type:varchar(255);not null;index"`
	Requirements StringList `json:"requirements" gorm:"type:text"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Service.
func (Service) TableName() string { return "services" }

// Availability is the remaining booking capacity for one (date, time) slot.
// The pair is unique for write purposes; the Slots counter is decremented by
// the queue allocator and never goes negative. A (date, time) with no row
// means unconstrained capacity, not zero.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Date: calendar day, stored as "2006-01-02".
//   - Time: opaque slot label (e.g. "10:00"); may be empty for "any time".
//   - Slots: remaining capacity, >= 0.
type Availability struct {
	ID        string    `json:"id"    gorm:"type:char(36);primaryKey"`
	Date      string    `json:"date"  gorm:"type:varchar(10);not null;uniqueIndex:ux_avail_date_time,priority:1"`
	Time      string    `json:"time"  gorm:"type:varchar(16);not null;uniqueIndex:ux_avail_date_time,priority:2"`
	Slots     int       `json:"slots" gorm:"not null;check:slots >= 0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Availability.
func (Availability) TableName() string { return "availabilities" }

// Appointment is a citizen's booking. Each appointment is owned by exactly
// one user and carries a globally unique queue number assigned once at
// creation, in creation order. The number is never reassigned or reused, even
// after cancellation, so the queue is a sparse monotonic sequence over time.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: owner reference; indexed for per-owner listing.
//   - Name / Email / Service: applicant details captured at booking time.
//   - Date / Time: booked slot.
//   - QueueNumber: positive, globally unique, monotonically assigned.
//   - Status: "pending" or "cancelled".
//   - DeletedAt: soft deletion marker; cancelled rows keep their queue
//     number on record for audit while live queries exclude them.
type Appointment struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID      string         `json:"user_id"      gorm:"type:char(36);not null;index:idx_user_appts"`
	Name        string         `json:"name"         gorm:"type:varchar(255);not null"`
	Email       string         `json:"email"        gorm:"type:varchar(255);not null"`
	Service     string         `json:"service"      gorm:"type:varchar(255);not null"`
	Date        string         `json:"date"         gorm:"type:varchar(10);not null;index:idx_appt_slot,priority:1"`
	Time        string         `json:"time"         gorm:"type:varchar(16);not null;index:idx_appt_slot,priority:2"`
	QueueNumber int64          `json:"queue_number" gorm:"not null;uniqueIndex:ux_appt_queue_number"`
	Status      string         `json:"status"       gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','cancelled')"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for Appointment.
func (Appointment) TableName() string { return "appointments" }

// User is an account that owns appointments. Email is unique; the password
// column holds a bcrypt hash and is never serialized.
type User struct {
	ID        string    `json:"id"    gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name"  gorm:"type:varchar(255);not null"`
	Email     string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	Password  string    `json:"-"     gorm:"type:varchar(255);not null"`
	Role      string    `json:"role"  gorm:"type:varchar(16);not null;default:'client';check:role IN ('client','admin')"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// QueueCounter is the single-row source of queue numbers. The booking
// allocator increments Value inside its transaction; computing a new number
// from a plain read of existing rows would race under concurrent bookings.
type QueueCounter struct {
	ID        int       `gorm:"primaryKey"`
	Value     int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:""`
}

// TableName returns the database table name for QueueCounter.
func (QueueCounter) TableName() string { return "queue_counters" }

// QueueCounterID is the primary key of the only queue_counters row; it is
// seeded at migration time.
const QueueCounterID = 1
