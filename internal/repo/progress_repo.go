package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/stellr/server/internal/model"
)

// ProgressRepo defines the storage capability for lesson-completion facts
type ProgressRepo interface {
	Upsert(ctx context.Context, userID, lessonID uuid.UUID, completed bool) (model.LessonProgress, error)
	CountCompleted(ctx context.Context, userID, courseID uuid.UUID) (int, error)
}

type progressRepo struct {
	db *sql.DB
}

// NewProgressRepo creates a new ProgressRepo instance
func NewProgressRepo(db *sql.DB) ProgressRepo {
	return &progressRepo{db: db}
}

// Upsert writes the completion fact in a single statement, so two
// concurrent identical calls converge on one row. completed_at keeps the
// first completion time across repeats and is cleared when completed is
// toggled off.
func (r *progressRepo) Upsert(ctx context.Context, userID, lessonID uuid.UUID, completed bool) (model.LessonProgress, error) {
	var p model.LessonProgress
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO lesson_progress (user_id, lesson_id, completed, completed_at)
		VALUES ($1, $2, $3, CASE WHEN $3 THEN now() END)
		ON CONFLICT (user_id, lesson_id) DO UPDATE
		SET completed = EXCLUDED.completed,
		    completed_at = CASE
		        WHEN EXCLUDED.completed THEN COALESCE(lesson_progress.completed_at, now())
		        ELSE NULL
		    END,
		    updated_at = now()
		RETURNING id, completed, completed_at, updated_at
	`, userID, lessonID, completed).Scan(&idStr, &p.Completed, &p.CompletedAt, &p.UpdatedAt)
	if err != nil {
		return model.LessonProgress{}, mapPqError(fmt.Errorf("upsert lesson progress: %w", err))
	}
	p.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.LessonProgress{}, fmt.Errorf("parse progress ID: %w", err)
	}
	p.UserID = userID
	p.LessonID = lessonID
	return p, nil
}

// CountCompleted returns the number of completed lessons the user has in
// the course, joined against the lesson table so stale facts for removed
// lessons never inflate the count.
func (r *progressRepo) CountCompleted(ctx context.Context, userID, courseID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM lesson_progress p
		JOIN lessons l ON l.id = p.lesson_id
		WHERE p.user_id = $1 AND l.course_id = $2 AND p.completed
	`, userID, courseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed lessons: %w", err)
	}
	return count, nil
}
