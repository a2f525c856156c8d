// Package services defines the business logic for bookings, the service
// catalog, availability, and identity. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrValidation is returned when a required field is missing or malformed.
	// Requests failing validation are rejected before any store write.
	ErrValidation = errors.New("invalid request")

	// ErrAppointmentNotFound indicates that the requested appointment does not
	// exist or is not accessible to the current user. Ownership mismatches
	// deliberately surface as not-found to avoid leaking record existence.
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrServiceNotFound indicates that the requested catalog entry does not exist.
	ErrServiceNotFound = errors.New("service not found")

	// ErrAvailabilityNotFound indicates that the requested availability record
	// does not exist.
	ErrAvailabilityNotFound = errors.New("availability not found")

	// ErrSlotExhausted is returned when the booked (date, time) has an
	// availability record with zero remaining slots — including when a
	// concurrent booking consumed the last slot first.
	ErrSlotExhausted = errors.New("no slots available for the selected date and time")

	// ErrContention is returned when the booking transaction kept conflicting
	// with concurrent bookings and the bounded retry budget ran out. Unlike
	// ErrSlotExhausted this is transient; the caller may simply retry.
	ErrContention = errors.New("booking conflicted with concurrent requests, try again")

	// ErrTimeout is returned when a store operation exceeded its deadline.
	ErrTimeout = errors.New("storage operation timed out")

	// ErrEmailTaken is returned on signup when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned on login when the email is unknown or
	// the password does not match. The two cases are indistinguishable on
	// purpose.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
