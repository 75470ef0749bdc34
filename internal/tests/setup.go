package tests

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
)

const (
	// MigrationDir is the path to migrations relative to the module root.
	MigrationDir = "internal/db/migrations"
	// MigrationDirFromInternalTests is used when go test ./... runs tests from internal/tests.
	MigrationDirFromInternalTests = "../../internal/db/migrations"
)

// ResolveMigrationDir returns the first existing migration directory, or
// empty string if none exists.
func ResolveMigrationDir() string {
	for _, dir := range []string{MigrationDir, MigrationDirFromInternalTests} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			abs, _ := filepath.Abs(dir)
			return abs
		}
	}
	return ""
}

// RunMigrations runs goose Up using the resolved migration directory.
func RunMigrations(db *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	dir := ResolveMigrationDir()
	if dir == "" {
		return fmt.Errorf("migrations directory not found (tried %q, %q); run tests from the module root", MigrationDir, MigrationDirFromInternalTests)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// TruncateAll truncates the mutable tables for a clean test state.
func TruncateAll(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "TRUNCATE TABLE lesson_progress, enrollments, lessons, courses, otp_challenges, users RESTART IDENTITY CASCADE")
	if err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

// SeedCourse inserts a course with the given number of lessons and returns
// the course ID and the lesson IDs in order.
func SeedCourse(ctx context.Context, db *sql.DB, title string, lessonCount int) (uuid.UUID, []uuid.UUID, error) {
	var courseIDStr string
	err := db.QueryRowContext(ctx, `
		INSERT INTO courses (title) VALUES ($1) RETURNING id
	`, title).Scan(&courseIDStr)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("insert course: %w", err)
	}
	courseID, err := uuid.Parse(courseIDStr)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("parse course ID: %w", err)
	}

	lessonIDs := make([]uuid.UUID, 0, lessonCount)
	for i := 0; i < lessonCount; i++ {
		var lessonIDStr string
		err := db.QueryRowContext(ctx, `
			INSERT INTO lessons (course_id, title, lesson_order)
			VALUES ($1, $2, $3) RETURNING id
		`, courseID, fmt.Sprintf("%s lesson %d", title, i+1), i+1).Scan(&lessonIDStr)
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("insert lesson: %w", err)
		}
		lessonID, err := uuid.Parse(lessonIDStr)
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("parse lesson ID: %w", err)
		}
		lessonIDs = append(lessonIDs, lessonID)
	}
	return courseID, lessonIDs, nil
}
