package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/stellr/server/internal/auth"
	"github.com/stellr/server/internal/errs"
	"github.com/stellr/server/internal/metrics"
	"github.com/stellr/server/internal/middleware"
	"github.com/stellr/server/internal/model"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *auth.AuthService
	recorder    metrics.Recorder

	// per-IP limits on the OTP endpoints; the phone cooldown enforces the
	// 60s resend spacing the challenge manager itself does not apply
	ipLimiter       *middleware.RateLimiter
	verifyIPLimiter *middleware.RateLimiter
	phoneCooldown   *middleware.RateLimiter
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.AuthService, recorder metrics.Recorder) *AuthHandler {
	return &AuthHandler{
		authService:     authService,
		recorder:        recorder,
		ipLimiter:       middleware.NewRateLimiter(10*time.Minute, 10),
		verifyIPLimiter: middleware.NewRateLimiter(10*time.Minute, 20),
		phoneCooldown:   middleware.NewRateLimiter(60*time.Second, 1),
	}
}

// userResponse is the identity object in API responses
type userResponse struct {
	ID          string  `json:"id"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Avatar      *string `json:"avatar,omitempty"`
	IsOnboarded bool    `json:"is_onboarded"`
}

func toUserResponse(ident model.Identity) userResponse {
	return userResponse{
		ID:          ident.ID.String(),
		Email:       ident.Email,
		Phone:       ident.Phone,
		FirstName:   ident.FirstName,
		LastName:    ident.LastName,
		Avatar:      ident.Avatar,
		IsOnboarded: ident.IsOnboarded,
	}
}

// sessionResponse carries an identity plus its session token
type sessionResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ident, token, err := h.authService.Register(r.Context(), auth.RegisterAttrs{
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	})
	if err != nil {
		respondTaxonomyError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse{User: toUserResponse(ident), Token: token})
}

type loginRequest struct {
	Credential string `json:"credential"`
	Password   string `json:"password"`
}

// HandleLogin handles POST /auth/login (password login by email or phone)
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Credential) == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "credential and password are required")
		return
	}

	ident, token, err := h.authService.LoginWithPassword(r.Context(), req.Credential, req.Password)
	if err != nil {
		h.recorder.RecordLogin("password", "failure")
		respondTaxonomyError(w, err)
		return
	}

	h.recorder.RecordLogin("password", "success")
	respondJSON(w, http.StatusOK, sessionResponse{User: toUserResponse(ident), Token: token})
}

type sendOtpRequest struct {
	Phone string `json:"phone"`
}

// HandleSendOtp handles POST /auth/send-otp. A repeat request inside the
// 60s cooldown is rejected here; the challenge manager does not rate-limit
// issuance itself.
func (h *AuthHandler) HandleSendOtp(w http.ResponseWriter, r *http.Request) {
	var req sendOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	phone, err := auth.NormalizePhone(req.Phone)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid phone")
		return
	}

	if !h.ipLimiter.Allow(middleware.IPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	if !h.phoneCooldown.Allow(middleware.PhoneKey(phone)) {
		respondWithError(w, http.StatusTooManyRequests, "resend cooldown active")
		return
	}

	if err := h.authService.StartPhoneLogin(r.Context(), phone); err != nil {
		log.Printf("send OTP to %s failed: %v", auth.MaskPhone(phone), err)
		respondTaxonomyError(w, err)
		return
	}

	h.recorder.RecordOtpIssued()
	respondJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

type verifyOtpRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// HandleVerifyOtp handles POST /auth/verify-otp
func (h *AuthHandler) HandleVerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req verifyOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Phone = strings.TrimSpace(req.Phone)
	req.Code = strings.TrimSpace(req.Code)
	if req.Phone == "" || req.Code == "" {
		respondWithError(w, http.StatusBadRequest, "phone and code are required")
		return
	}

	if !h.verifyIPLimiter.Allow(middleware.IPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	ident, token, err := h.authService.CompleteOtpLogin(r.Context(), req.Phone, req.Code)
	if err != nil {
		h.recorder.RecordOtpVerify(otpResult(err))
		h.recorder.RecordLogin("otp", "failure")
		log.Printf("OTP verification for %s failed: %v", auth.MaskPhone(req.Phone), err)
		respondTaxonomyError(w, err)
		return
	}

	h.recorder.RecordOtpVerify("verified")
	h.recorder.RecordLogin("otp", "success")
	respondJSON(w, http.StatusOK, sessionResponse{User: toUserResponse(ident), Token: token})
}

func otpResult(err error) string {
	switch {
	case errors.Is(err, errs.ErrOtpExpired):
		return "expired"
	case errors.Is(err, errs.ErrOtpLocked):
		return "locked"
	case errors.Is(err, errs.ErrOtpConsumed):
		return "consumed"
	case errors.Is(err, errs.ErrOtpInvalidCode):
		return "invalid_code"
	default:
		return "not_found"
	}
}

// HandleRefresh handles POST /auth/refresh. Takes the bearer token itself;
// no re-authentication is required to extend a valid session.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	tokenString := bearerToken(r)
	if tokenString == "" {
		respondWithError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	token, err := h.authService.Refresh(tokenString)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// HandleLogout handles POST /auth/logout. Sessions are stateless, so
// logout is a client-side token discard; the server only acknowledges.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe handles GET /me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.GetIdentity(r.Context())
	if !ok || ident == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(*ident))
}

type updateMeRequest struct {
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Avatar    *string `json:"avatar"`
}

// HandleUpdateMe handles PATCH /me (profile update, marks onboarded)
func (h *AuthHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req updateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ident, err := h.authService.UpdateProfile(r.Context(), userID, auth.ProfilePatch{
		Email:     req.Email,
		Phone:     req.Phone,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Avatar:    req.Avatar,
	})
	if err != nil {
		respondTaxonomyError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toUserResponse(ident))
}

// bearerToken extracts the bearer token from the Authorization header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
