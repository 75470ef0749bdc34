package course

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/stellr/server/internal/errs"
	"github.com/stellr/server/internal/model"
	"github.com/stellr/server/internal/repo"
)

// ProgressService owns the lesson-completion facts and derives course
// progress from them on read. Percentages are never stored, so they cannot
// drift from the facts.
type ProgressService struct {
	progress    repo.ProgressRepo
	courses     repo.CourseRepo
	enrollments *EnrollmentService
}

// NewProgressService creates a new progress service
func NewProgressService(progress repo.ProgressRepo, courses repo.CourseRepo, enrollments *EnrollmentService) *ProgressService {
	return &ProgressService{
		progress:    progress,
		courses:     courses,
		enrollments: enrollments,
	}
}

// MarkLessonComplete upserts the completion fact for the lesson, gated on
// enrollment in the lesson's course. Idempotent: repeating completed=true
// leaves the row unchanged and completedAt keeps its first value. An
// unknown lesson has no course the caller could be enrolled in, so it
// fails the gate rather than leaking lesson existence.
func (s *ProgressService) MarkLessonComplete(ctx context.Context, userID, lessonID uuid.UUID, completed bool) (model.LessonProgress, error) {
	courseID, err := s.courses.CourseIDForLesson(ctx, lessonID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.LessonProgress{}, fmt.Errorf("%w: not enrolled", errs.ErrAuthorization)
		}
		return model.LessonProgress{}, err
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return model.LessonProgress{}, err
	}
	if !enrolled {
		return model.LessonProgress{}, fmt.Errorf("%w: not enrolled", errs.ErrAuthorization)
	}

	return s.progress.Upsert(ctx, userID, lessonID, completed)
}

// CourseProgress derives the user's summary for one course from the
// current completion facts. Requires enrollment.
func (s *ProgressService) CourseProgress(ctx context.Context, userID, courseID uuid.UUID) (model.CourseProgress, error) {
	exists, err := s.courses.CourseExists(ctx, courseID)
	if err != nil {
		return model.CourseProgress{}, err
	}
	if !exists {
		return model.CourseProgress{}, fmt.Errorf("%w: course", errs.ErrNotFound)
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return model.CourseProgress{}, err
	}
	if !enrolled {
		return model.CourseProgress{}, fmt.Errorf("%w: not enrolled", errs.ErrAuthorization)
	}

	return s.summarize(ctx, userID, courseID)
}

// UserProgress returns one summary per course the user is enrolled in
func (s *ProgressService) UserProgress(ctx context.Context, userID uuid.UUID) ([]model.CourseProgress, error) {
	enrollments, err := s.enrollments.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.CourseProgress, 0, len(enrollments))
	for _, e := range enrollments {
		summary, err := s.summarize(ctx, userID, e.CourseID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *ProgressService) summarize(ctx context.Context, userID, courseID uuid.UUID) (model.CourseProgress, error) {
	total, err := s.courses.TotalLessons(ctx, courseID)
	if err != nil {
		return model.CourseProgress{}, err
	}
	completed, err := s.progress.CountCompleted(ctx, userID, courseID)
	if err != nil {
		return model.CourseProgress{}, err
	}

	percent := 0
	if total > 0 {
		percent = int(math.Round(float64(completed) / float64(total) * 100))
	}
	return model.CourseProgress{
		CourseID:         courseID,
		CompletedLessons: completed,
		TotalLessons:     total,
		Percent:          percent,
	}, nil
}
