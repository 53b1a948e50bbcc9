// ABOUTME: HTTP handlers for the OTP sign-in flow and session endpoints
// ABOUTME: Mounts /auth routes on a chi router; sets and clears the session cookie

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler serves the auth HTTP surface
type Handler struct {
	otp     *OTPService
	cookies *Cookies
	logger  *slog.Logger
}

// NewHandler creates the auth handler. Pass nil logger for default.
func NewHandler(otp *OTPService, cookies *Cookies, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		otp:     otp,
		cookies: cookies,
		logger:  logger.With("component", "auth"),
	}
}

// Routes mounts the auth endpoints
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/otp/request", h.handleOTPRequest)
	r.Post("/auth/otp/verify", h.handleOTPVerify)
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/auth/me", h.handleMe)
}

type otpRequestBody struct {
	Email string `json:"email"`
}

func (h *Handler) handleOTPRequest(w http.ResponseWriter, r *http.Request) {
	var body otpRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		writeJSONError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.otp.Issue(r.Context(), body.Email); err != nil {
		if errors.Is(err, ErrRateLimited) {
			writeJSONError(w, http.StatusTooManyRequests, "too many code requests")
			return
		}
		h.logger.Error("otp issue failed", "email", body.Email, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "could not issue code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type otpVerifyBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *Handler) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	var body otpVerifyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Code == "" {
		writeJSONError(w, http.StatusBadRequest, "email and code are required")
		return
	}

	principal, err := h.otp.Redeem(r.Context(), body.Email, body.Code)
	if err != nil {
		// Deliberately indistinguishable from an unknown address
		writeJSONError(w, http.StatusUnauthorized, "invalid or expired code")
		return
	}

	if err := h.cookies.Write(w, r, principal); err != nil {
		h.logger.Error("failed to set session cookie", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"userId":   principal.ID,
		"tenantId": principal.TenantID,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleMe returns the current session's principal. This is the server-side
// counterpart of the client session store's initial fetch.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, err := h.cookies.Read(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":   principal.ID,
		"email":    principal.Email,
		"role":     principal.Role,
		"tenantId": principal.TenantID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
