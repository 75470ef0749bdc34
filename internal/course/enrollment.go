// Package course holds the enrollment gate and the progress aggregator:
// every write to lesson-completion state passes the enrollment check, and
// course-level progress is derived from the completion facts on read.
package course

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stellr/server/internal/errs"
	"github.com/stellr/server/internal/model"
	"github.com/stellr/server/internal/repo"
)

// EnrollmentService is the authorization boundary for progress mutation
type EnrollmentService struct {
	enrollments repo.EnrollmentRepo
	courses     repo.CourseRepo
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(enrollments repo.EnrollmentRepo, courses repo.CourseRepo) *EnrollmentService {
	return &EnrollmentService{
		enrollments: enrollments,
		courses:     courses,
	}
}

// Enroll records the user-course relation. Concurrent double-submission
// resolves at the storage constraint: one success, one conflict, never two
// rows. An unknown course is not-found.
func (s *EnrollmentService) Enroll(ctx context.Context, userID, courseID uuid.UUID) (model.Enrollment, error) {
	exists, err := s.courses.CourseExists(ctx, courseID)
	if err != nil {
		return model.Enrollment{}, err
	}
	if !exists {
		return model.Enrollment{}, fmt.Errorf("%w: course", errs.ErrNotFound)
	}
	return s.enrollments.Create(ctx, userID, courseID)
}

// IsEnrolled is the precondition gate used before any progress read/write
func (s *EnrollmentService) IsEnrolled(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	return s.enrollments.Exists(ctx, userID, courseID)
}

// ListEnrollments returns the user's enrollments
func (s *EnrollmentService) ListEnrollments(ctx context.Context, userID uuid.UUID) ([]model.Enrollment, error) {
	return s.enrollments.ListByUser(ctx, userID)
}
