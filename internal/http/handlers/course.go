package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stellr/server/internal/course"
	"github.com/stellr/server/internal/metrics"
	"github.com/stellr/server/internal/middleware"
	"github.com/stellr/server/internal/model"
)

// CourseHandler handles enrollment and progress endpoints
type CourseHandler struct {
	enrollments *course.EnrollmentService
	progress    *course.ProgressService
	recorder    metrics.Recorder
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(enrollments *course.EnrollmentService, progress *course.ProgressService, recorder metrics.Recorder) *CourseHandler {
	return &CourseHandler{
		enrollments: enrollments,
		progress:    progress,
		recorder:    recorder,
	}
}

// HandleEnroll handles POST /courses/{id}/enroll
func (h *CourseHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	courseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	if _, err := h.enrollments.Enroll(r.Context(), userID, courseID); err != nil {
		respondTaxonomyError(w, err)
		return
	}

	h.recorder.RecordEnrollment()
	respondJSON(w, http.StatusOK, map[string]bool{"enrolled": true})
}

type completeLessonRequest struct {
	Completed bool `json:"completed"`
}

// lessonProgressResponse is the completion fact in API responses
type lessonProgressResponse struct {
	LessonID    string     `json:"lesson_id"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// HandleCompleteLesson handles POST /progress/lessons/{id}/complete.
// An absent body defaults to completed=true; {"completed":false} toggles
// the lesson back off.
func (h *CourseHandler) HandleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	lessonID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid lesson id")
		return
	}

	req := completeLessonRequest{Completed: true}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	progress, err := h.progress.MarkLessonComplete(r.Context(), userID, lessonID, req.Completed)
	if err != nil {
		respondTaxonomyError(w, err)
		return
	}

	if progress.Completed {
		h.recorder.RecordLessonCompleted()
	}
	respondJSON(w, http.StatusOK, lessonProgressResponse{
		LessonID:    progress.LessonID.String(),
		Completed:   progress.Completed,
		CompletedAt: progress.CompletedAt,
	})
}

// courseProgressResponse is the derived per-course summary
type courseProgressResponse struct {
	CourseID         string `json:"course_id"`
	Progress         int    `json:"progress"`
	CompletedLessons int    `json:"completed_lessons"`
	TotalLessons     int    `json:"total_lessons"`
}

func toCourseProgressResponse(p model.CourseProgress) courseProgressResponse {
	return courseProgressResponse{
		CourseID:         p.CourseID.String(),
		Progress:         p.Percent,
		CompletedLessons: p.CompletedLessons,
		TotalLessons:     p.TotalLessons,
	}
}

// HandleCourseProgress handles GET /progress/courses/{id}
func (h *CourseHandler) HandleCourseProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	courseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	summary, err := h.progress.CourseProgress(r.Context(), userID, courseID)
	if err != nil {
		respondTaxonomyError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toCourseProgressResponse(summary))
}

// HandleUserProgress handles GET /progress (one summary per enrollment)
func (h *CourseHandler) HandleUserProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summaries, err := h.progress.UserProgress(r.Context(), userID)
	if err != nil {
		respondTaxonomyError(w, err)
		return
	}

	out := make([]courseProgressResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toCourseProgressResponse(s))
	}
	respondJSON(w, http.StatusOK, out)
}
