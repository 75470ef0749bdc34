package course

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stellr/server/internal/errs"
	"github.com/stellr/server/internal/model"
)

type pair struct {
	a, b uuid.UUID
}

// fakeEnrollmentRepo enforces (user, course) uniqueness in memory.
type fakeEnrollmentRepo struct {
	mu   sync.Mutex
	rows map[pair]model.Enrollment
}

func newFakeEnrollmentRepo() *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{rows: make(map[pair]model.Enrollment)}
}

func (f *fakeEnrollmentRepo) Create(ctx context.Context, userID, courseID uuid.UUID) (model.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pair{userID, courseID}
	if _, exists := f.rows[key]; exists {
		return model.Enrollment{}, fmt.Errorf("%w: enrollments_user_id_course_id_key", errs.ErrConflict)
	}
	e := model.Enrollment{ID: uuid.New(), UserID: userID, CourseID: courseID, EnrolledAt: time.Now()}
	f.rows[key] = e
	return e, nil
}

func (f *fakeEnrollmentRepo) Exists(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, exists := f.rows[pair{userID, courseID}]
	return exists, nil
}

func (f *fakeEnrollmentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Enrollment
	for key, e := range f.rows {
		if key.a == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeProgressRepo upserts completion facts keyed by (user, lesson),
// preserving the first completed_at like the SQL CASE does.
type fakeProgressRepo struct {
	mu      sync.Mutex
	rows    map[pair]model.LessonProgress
	courses *fakeCourseRepo
}

func newFakeProgressRepo(courses *fakeCourseRepo) *fakeProgressRepo {
	return &fakeProgressRepo{rows: make(map[pair]model.LessonProgress), courses: courses}
}

func (f *fakeProgressRepo) Upsert(ctx context.Context, userID, lessonID uuid.UUID, completed bool) (model.LessonProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pair{userID, lessonID}
	now := time.Now()
	p, exists := f.rows[key]
	if !exists {
		p = model.LessonProgress{ID: uuid.New(), UserID: userID, LessonID: lessonID}
	}
	p.Completed = completed
	switch {
	case completed && p.CompletedAt == nil:
		t := now
		p.CompletedAt = &t
	case !completed:
		p.CompletedAt = nil
	}
	p.UpdatedAt = now
	f.rows[key] = p
	return p, nil
}

func (f *fakeProgressRepo) CountCompleted(ctx context.Context, userID, courseID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for key, p := range f.rows {
		if key.a != userID || !p.Completed {
			continue
		}
		if f.courses.lessons[p.LessonID] == courseID {
			count++
		}
	}
	return count, nil
}

// fakeCourseRepo is the read-only content view.
type fakeCourseRepo struct {
	courses map[uuid.UUID]bool
	lessons map[uuid.UUID]uuid.UUID // lesson -> course
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{
		courses: make(map[uuid.UUID]bool),
		lessons: make(map[uuid.UUID]uuid.UUID),
	}
}

func (f *fakeCourseRepo) addCourse(lessonCount int) (uuid.UUID, []uuid.UUID) {
	courseID := uuid.New()
	f.courses[courseID] = true
	lessonIDs := make([]uuid.UUID, lessonCount)
	for i := range lessonIDs {
		lessonIDs[i] = uuid.New()
		f.lessons[lessonIDs[i]] = courseID
	}
	return courseID, lessonIDs
}

func (f *fakeCourseRepo) CourseExists(ctx context.Context, courseID uuid.UUID) (bool, error) {
	return f.courses[courseID], nil
}

func (f *fakeCourseRepo) CourseIDForLesson(ctx context.Context, lessonID uuid.UUID) (uuid.UUID, error) {
	courseID, ok := f.lessons[lessonID]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: lesson", errs.ErrNotFound)
	}
	return courseID, nil
}

func (f *fakeCourseRepo) TotalLessons(ctx context.Context, courseID uuid.UUID) (int, error) {
	count := 0
	for _, c := range f.lessons {
		if c == courseID {
			count++
		}
	}
	return count, nil
}
