package model

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the canonical user record, addressable by email and/or phone.
// Exactly one of Email/Phone is set at creation; both may coexist after a
// profile update, and each non-nil value is globally unique.
type Identity struct {
	ID           uuid.UUID
	Email        *string
	Phone        *string
	PasswordHash *string
	FirstName    string
	LastName     string
	Avatar       *string
	IsOnboarded  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OtpChallenge is an ephemeral one-time-passcode challenge for a phone
// number. At most one live (unconsumed, unexpired) challenge exists per
// phone; issuing a new one consumes the previous.
type OtpChallenge struct {
	ID                uuid.UUID
	Phone             string
	CodeHash          []byte
	IssuedAt          time.Time
	ExpiresAt         time.Time
	AttemptsRemaining int
	ConsumedAt        *time.Time
	VerifiedAt        *time.Time
}

// Enrollment grants a user access to a course; unique on (UserID, CourseID),
// immutable after creation.
type Enrollment struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	CourseID   uuid.UUID
	EnrolledAt time.Time
}

// LessonProgress is the per-user, per-lesson completion fact; unique on
// (UserID, LessonID). CompletedAt is set iff Completed.
type LessonProgress struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	LessonID    uuid.UUID
	Completed   bool
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// Course is read-only input owned by the content-authoring system.
type Course struct {
	ID    uuid.UUID
	Title string
}

// Lesson belongs to exactly one course and has a unique order within it.
type Lesson struct {
	ID       uuid.UUID
	CourseID uuid.UUID
	Title    string
	Order    int
}

// CourseProgress is the derived per-course summary; Percent is computed on
// read from the completion facts, never stored.
type CourseProgress struct {
	CourseID         uuid.UUID
	CompletedLessons int
	TotalLessons     int
	Percent          int
}
