package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/http/response"
	"github.com/sandeepkv93/step-leaderboard-service/internal/observability"
	"github.com/sandeepkv93/step-leaderboard-service/internal/repository"
	"github.com/sandeepkv93/step-leaderboard-service/internal/service"
)

type AuthHandler struct {
	authSvc service.AuthServiceInterface
}

func NewAuthHandler(authSvc service.AuthServiceInterface) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAPIRequestDuration(r.Context(), "signup", status, time.Since(start))
	}()

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	result, err := h.authSvc.Register(r.Context(), req.Name, req.Email, req.Phone, req.Password)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.signup.failed", "reason", err.Error())
		h.writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.signup.success", "email", result.User.Email)
	response.JSON(w, r, http.StatusCreated, loginPayload(result))
}

type signinRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAPIRequestDuration(r.Context(), "signin", status, time.Since(start))
	}()

	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	result, err := h.authSvc.LoginWithPassword(r.Context(), identifier, req.Password)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.signin.failed", "reason", err.Error())
		h.writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.signin.success", "email", result.User.Email)
	response.JSON(w, r, http.StatusOK, loginPayload(result))
}

type googleProfileRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Picture     string `json:"picture"`
	AccessToken string `json:"accessToken"`
}

// GoogleProfile handles the client-side Google login: the browser already
// holds a profile and, at most, an access token. No refresh token can arrive
// on this path, so the stored one is never touched.
func (h *AuthHandler) GoogleProfile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAPIRequestDuration(r.Context(), "google_profile", status, time.Since(start))
	}()

	var req googleProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	result, err := h.authSvc.LoginWithGoogleProfile(r.Context(), req.Email, req.Name, req.Picture, req.AccessToken)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.google.failed", "reason", err.Error())
		h.writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.google.success", "email", result.User.Email)
	response.JSON(w, r, http.StatusOK, loginPayload(result))
}

type googleCodeRequest struct {
	Code string `json:"code"`
}

// GoogleCallback exchanges an authorization code for tokens. This is the only
// path that can store a refresh token and enable offline sync for the user.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAPIRequestDuration(r.Context(), "google_callback", status, time.Since(start))
	}()

	var req googleCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	if req.Code == "" {
		status = "failure"
		observability.RecordAuthLogin(r.Context(), "google", "failure")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing authorization code", nil)
		return
	}
	result, err := h.authSvc.LoginWithGoogleCode(r.Context(), req.Code)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.google.callback.failed", "reason", err.Error())
		h.writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.google.callback.success",
		"email", result.User.Email,
		"has_refresh_token", result.HasRefreshToken,
	)
	response.JSON(w, r, http.StatusOK, loginPayload(result))
}

// GoogleLoginURL returns the consent-prompting offline-access authorization
// URL for clients that drive the code flow themselves.
func (h *AuthHandler) GoogleLoginURL(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	response.JSON(w, r, http.StatusOK, map[string]string{"url": h.authSvc.GoogleLoginURL(state)})
}

func loginPayload(result *service.LoginResult) map[string]any {
	return map[string]any{
		"user":            result.User,
		"token":           result.AccessToken,
		"expiresAt":       result.ExpiresAt,
		"isFirstLogin":    result.IsFirstLogin,
		"hasRefreshToken": result.HasRefreshToken,
	}
}

func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrMissingFields),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidPhone):
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, service.ErrEmailExists),
		errors.Is(err, service.ErrPhoneExists):
		response.Error(w, r, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials", nil)
	case errors.Is(err, service.ErrEmailNotVerified):
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil)
	case errors.Is(err, repository.ErrStoreUnavailable):
		response.Error(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "credential store unavailable", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
