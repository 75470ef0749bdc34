package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/stellr/server/internal/model"
)

// EnrollmentRepo defines the storage capability for enrollments
type EnrollmentRepo interface {
	Create(ctx context.Context, userID, courseID uuid.UUID) (model.Enrollment, error)
	Exists(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Enrollment, error)
}

type enrollmentRepo struct {
	db *sql.DB
}

// NewEnrollmentRepo creates a new EnrollmentRepo instance
func NewEnrollmentRepo(db *sql.DB) EnrollmentRepo {
	return &enrollmentRepo{db: db}
}

// Create inserts the enrollment in a single statement. The (user_id,
// course_id) unique constraint decides concurrent double-submissions: one
// caller gets the row, the other gets a conflict. An unknown course fails
// the FK and maps to not-found.
func (r *enrollmentRepo) Create(ctx context.Context, userID, courseID uuid.UUID) (model.Enrollment, error) {
	var e model.Enrollment
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO enrollments (user_id, course_id)
		VALUES ($1, $2)
		RETURNING id, enrolled_at
	`, userID, courseID).Scan(&idStr, &e.EnrolledAt)
	if err != nil {
		return model.Enrollment{}, mapPqError(fmt.Errorf("insert enrollment: %w", err))
	}
	e.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Enrollment{}, fmt.Errorf("parse enrollment ID: %w", err)
	}
	e.UserID = userID
	e.CourseID = courseID
	return e, nil
}

// Exists reports whether the user is enrolled in the course
func (r *enrollmentRepo) Exists(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2
		)
	`, userID, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query enrollment: %w", err)
	}
	return exists, nil
}

// ListByUser returns the user's enrollments ordered by enrollment time
func (r *enrollmentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, course_id, enrolled_at
		FROM enrollments
		WHERE user_id = $1
		ORDER BY enrolled_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []model.Enrollment
	for rows.Next() {
		var e model.Enrollment
		var idStr, courseIDStr string
		if err := rows.Scan(&idStr, &courseIDStr, &e.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		e.ID, _ = uuid.Parse(idStr)
		e.CourseID, _ = uuid.Parse(courseIDStr)
		e.UserID = userID
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return enrollments, nil
}
