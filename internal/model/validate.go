package model

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func checkCoordinates(ve *ValidationError, lat, lng float64) {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		ve.add("latitude", "must be between -90 and 90, got %v", lat)
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		ve.add("longitude", "must be between -180 and 180, got %v", lng)
	}
}

// ValidateLocationUpdate checks that a ping is structurally sound. It says
// nothing about whether the ping is trustworthy; that is the classifier's job.
func ValidateLocationUpdate(u *LocationUpdate) error {
	var ve ValidationError

	checkCoordinates(&ve, u.Latitude, u.Longitude)
	if u.Accuracy != nil && (math.IsNaN(*u.Accuracy) || *u.Accuracy < 0) {
		ve.add("accuracy", "must be a non-negative number, got %v", *u.Accuracy)
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateSite checks a Site's geofence and schedule.
func ValidateSite(s *Site) error {
	var ve ValidationError

	checkCoordinates(&ve, s.Latitude, s.Longitude)
	if !(s.RadiusMeters > 0) {
		ve.add("radius_m", "must be positive, got %v", s.RadiusMeters)
	}
	for _, f := range []struct {
		name string
		ct   ClockTime
	}{
		{"expected_check_in", s.ExpectedCheckIn},
		{"expected_check_out", s.ExpectedCheckOut},
	} {
		if f.ct.Hour < 0 || f.ct.Hour > 23 || f.ct.Minute < 0 || f.ct.Minute > 59 {
			ve.add(f.name, "invalid clock time %02d:%02d", f.ct.Hour, f.ct.Minute)
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
