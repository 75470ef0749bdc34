package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/stellr/server/internal/errs"
)

// CourseRepo is the read-only view of course content this service needs.
// Authoring happens elsewhere; progress only resolves lessons to courses
// and counts lessons.
type CourseRepo interface {
	CourseExists(ctx context.Context, courseID uuid.UUID) (bool, error)
	CourseIDForLesson(ctx context.Context, lessonID uuid.UUID) (uuid.UUID, error)
	TotalLessons(ctx context.Context, courseID uuid.UUID) (int, error)
}

type courseRepo struct {
	db *sql.DB
}

// NewCourseRepo creates a new CourseRepo instance
func NewCourseRepo(db *sql.DB) CourseRepo {
	return &courseRepo{db: db}
}

// CourseExists reports whether the course is present
func (r *courseRepo) CourseExists(ctx context.Context, courseID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)
	`, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query course: %w", err)
	}
	return exists, nil
}

// CourseIDForLesson resolves the course a lesson belongs to
func (r *courseRepo) CourseIDForLesson(ctx context.Context, lessonID uuid.UUID) (uuid.UUID, error) {
	var courseIDStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT course_id FROM lessons WHERE id = $1
	`, lessonID).Scan(&courseIDStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return uuid.Nil, fmt.Errorf("%w: lesson", errs.ErrNotFound)
		}
		return uuid.Nil, fmt.Errorf("query lesson: %w", err)
	}
	courseID, err := uuid.Parse(courseIDStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse course ID: %w", err)
	}
	return courseID, nil
}

// TotalLessons returns the number of lessons in the course
func (r *courseRepo) TotalLessons(ctx context.Context, courseID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM lessons WHERE course_id = $1
	`, courseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count lessons: %w", err)
	}
	return count, nil
}
