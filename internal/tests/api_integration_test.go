package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stellr/server/internal/auth"
	"github.com/stellr/server/internal/config"
	"github.com/stellr/server/internal/course"
	"github.com/stellr/server/internal/db"
	httphandler "github.com/stellr/server/internal/http"
	"github.com/stellr/server/internal/http/handlers"
	"github.com/stellr/server/internal/metrics"
	"github.com/stellr/server/internal/repo"
)

func TestMain(m *testing.M) {
	// Set env if unset. Do NOT set DATABASE_URL; integration tests skip if missing.
	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "test-jwt-secret-at-least-32-characters-long")
	}
	if os.Getenv("OTP_SALT") == "" {
		os.Setenv("OTP_SALT", "test-otp-salt")
	}
	os.Exit(m.Run())
}

// capturingSender records the OTP codes that would go out via SMS.
type capturingSender struct {
	mu    sync.Mutex
	codes map[string]string // phone -> last code
}

func (s *capturingSender) SendOtp(ctx context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = code
	return nil
}

func (s *capturingSender) codeFor(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[phone]
}

// testServer holds the server, DB, and OTP capture for integration tests
type testServer struct {
	Server *httptest.Server
	DB     *sql.DB
	Sender *capturingSender
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err, "config load must succeed for integration test")

	ctx := context.Background()
	database, err := db.Open(ctx, cfg.DatabaseURL)
	require.NoError(t, err, "database open must succeed; check DATABASE_URL and that test DB exists")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, RunMigrations(database), "migrations must run successfully")
	require.NoError(t, TruncateAll(ctx, database), "truncate tables")

	identityRepo := repo.NewIdentityRepo(database)
	otpRepo := repo.NewOtpRepo(database)
	enrollmentRepo := repo.NewEnrollmentRepo(database)
	progressRepo := repo.NewProgressRepo(database)
	courseRepo := repo.NewCourseRepo(database)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	sender := &capturingSender{codes: make(map[string]string)}
	otpManager := auth.NewOtpManager(otpRepo, sender, cfg.OTPSalt, cfg.OtpTTL)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.SessionTTL)
	authService := auth.NewAuthService(identityRepo, otpManager, jwtService)
	enrollmentService := course.NewEnrollmentService(enrollmentRepo, courseRepo)
	progressService := course.NewProgressService(progressRepo, courseRepo, enrollmentService)

	authHandler := handlers.NewAuthHandler(authService, collector)
	courseHandler := handlers.NewCourseHandler(enrollmentService, progressService, collector)

	router := httphandler.NewRouter(authHandler, courseHandler, jwtService, identityRepo, registry)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, DB: database, Sender: sender}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, s.Server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

type sessionResponse struct {
	User struct {
		ID          string  `json:"id"`
		Email       *string `json:"email"`
		Phone       *string `json:"phone"`
		IsOnboarded bool    `json:"is_onboarded"`
	} `json:"user"`
	Token string `json:"token"`
}

type progressResponse struct {
	CourseID         string `json:"course_id"`
	Progress         int    `json:"progress"`
	CompletedLessons int    `json:"completed_lessons"`
	TotalLessons     int    `json:"total_lessons"`
}

func (s *testServer) register(t *testing.T, email, password string) sessionResponse {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":      email,
		"password":   password,
		"first_name": "Test",
		"last_name":  "User",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var session sessionResponse
	decode(t, resp, &session)
	return session
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t)

	session := s.register(t, "ada@example.com", "correct-horse")
	require.NotEmpty(t, session.Token)
	require.NotNil(t, session.User.Email)
	assert.Equal(t, "ada@example.com", *session.User.Email)

	// duplicate registration conflicts
	resp := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "ada@example.com", "password": "other",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// password login
	resp = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"credential": "Ada@Example.com", "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login sessionResponse
	decode(t, resp, &login)
	assert.Equal(t, session.User.ID, login.User.ID)

	// wrong password
	resp = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"credential": "ada@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// me
	resp = s.do(t, http.MethodGet, "/me", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOtpLoginFlow(t *testing.T) {
	s := newTestServer(t)
	phone := "+15551230001"

	resp := s.do(t, http.MethodPost, "/auth/send-otp", "", map[string]string{"phone": phone})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	code := s.Sender.codeFor(phone)
	require.NotEmpty(t, code, "sender should have captured the code")

	// wrong code is a 400
	resp = s.do(t, http.MethodPost, "/auth/verify-otp", "", map[string]string{"phone": phone, "code": "000000"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// correct code creates the identity and issues a session
	resp = s.do(t, http.MethodPost, "/auth/verify-otp", "", map[string]string{"phone": phone, "code": code})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var session sessionResponse
	decode(t, resp, &session)
	require.NotNil(t, session.User.Phone)
	assert.Equal(t, phone, *session.User.Phone)
	assert.False(t, session.User.IsOnboarded)

	// replaying the consumed code fails
	resp = s.do(t, http.MethodPost, "/auth/verify-otp", "", map[string]string{"phone": phone, "code": code})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// refresh with the issued session
	resp = s.do(t, http.MethodPost, "/auth/refresh", session.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// immediate resend hits the cooldown
	resp = s.do(t, http.MethodPost, "/auth/send-otp", "", map[string]string{"phone": phone})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestEnrollAndProgress(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	session := s.register(t, "grace@example.com", "hopper123")
	courseID, lessons, err := SeedCourse(ctx, s.DB, "Compilers", 3)
	require.NoError(t, err)

	enrollPath := fmt.Sprintf("/courses/%s/enroll", courseID)

	// progress before enrolling is forbidden
	resp := s.do(t, http.MethodGet, fmt.Sprintf("/progress/courses/%s", courseID), session.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = s.do(t, http.MethodPost, fmt.Sprintf("/progress/lessons/%s/complete", lessons[0]), session.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodPost, enrollPath, session.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// double enrollment conflicts
	resp = s.do(t, http.MethodPost, enrollPath, session.Token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// complete one lesson twice; idempotent
	for i := 0; i < 2; i++ {
		resp = s.do(t, http.MethodPost, fmt.Sprintf("/progress/lessons/%s/complete", lessons[0]), session.Token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp = s.do(t, http.MethodGet, fmt.Sprintf("/progress/courses/%s", courseID), session.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var progress progressResponse
	decode(t, resp, &progress)
	assert.Equal(t, 1, progress.CompletedLessons)
	assert.Equal(t, 3, progress.TotalLessons)
	assert.Equal(t, 33, progress.Progress)

	// toggle the lesson back off
	resp = s.do(t, http.MethodPost, fmt.Sprintf("/progress/lessons/%s/complete", lessons[0]), session.Token,
		map[string]bool{"completed": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, fmt.Sprintf("/progress/courses/%s", courseID), session.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &progress)
	assert.Equal(t, 0, progress.CompletedLessons)
	assert.Equal(t, 0, progress.Progress)

	// unknown course is a 404
	resp = s.do(t, http.MethodPost, "/courses/5f0d9f8a-4c4e-4a3e-9f5a-50c0a2f5d9aa/enroll", session.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConcurrentEnrollment(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	session := s.register(t, "race@example.com", "pass12345")
	courseID, _, err := SeedCourse(ctx, s.DB, "Race", 1)
	require.NoError(t, err)

	enrollPath := fmt.Sprintf("/courses/%s/enroll", courseID)

	const callers = 2
	statuses := make(chan int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, s.Server.URL+enrollPath, nil)
			if err != nil {
				statuses <- 0
				return
			}
			req.Header.Set("Authorization", "Bearer "+session.Token)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				statuses <- 0
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	counts := make(map[int]int)
	for status := range statuses {
		counts[status]++
	}
	assert.Equal(t, 1, counts[http.StatusOK], "exactly one enroll must succeed")
	assert.Equal(t, 1, counts[http.StatusConflict], "exactly one enroll must conflict")

	var rows int
	require.NoError(t, s.DB.QueryRow(
		"SELECT COUNT(*) FROM enrollments WHERE course_id = $1", courseID,
	).Scan(&rows))
	assert.Equal(t, 1, rows, "exactly one enrollment row")
}

func TestProtectedRoutesRejectBadTokens(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/progress", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/progress", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
