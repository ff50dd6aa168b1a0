package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/crmforge/authcore"
)

type server struct {
	engine *authcore.Engine
	logger *zap.Logger
}

type ctxKey int

const identityKey ctxKey = 0

func (s *server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)
	r.Post("/auth/logout", s.handleLogout)
	r.Post("/auth/password/reset", s.handleResetRequest)
	r.Post("/auth/password/reset/confirm", s.handleResetConfirm)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/auth/me", s.handleMe)
		r.Get("/auth/sessions", s.handleListSessions)
		r.Delete("/auth/sessions/{sessionID}", s.handleEndSession)
		r.Post("/auth/password/change", s.handleChangePassword)
	})

	return r
}

// requestContext threads the caller's network details into the engine so
// login attempts and sessions record them.
func requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ctx = authcore.WithClientIP(ctx, host)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = authcore.WithUserAgent(ctx, ua)
	}
	if tenant := r.Header.Get("X-Tenant-ID"); tenant != "" {
		ctx = authcore.WithTenantID(ctx, tenant)
	}
	return ctx
}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		ident, err := s.engine.DecodeUser(requestContext(r), raw)
		if err != nil {
			// Token and account problems all read the same from outside.
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(r *http.Request) *authcore.Identity {
	ident, _ := r.Context().Value(identityKey).(*authcore.Identity)
	return ident
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.engine.Login(requestContext(r), req.Identifier, req.Password)
	if err != nil {
		// Credential, lockout, and disabled-account failures are collapsed
		// so the response does not leak account state.
		s.logger.Info("login refused", zap.String("identifier", req.Identifier), zap.Error(err))
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"expires_at":    result.ExpiresAt.UTC().Format(time.RFC3339),
		"session_key":   result.SessionKey,
		"roles":         result.Roles,
	})
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pair, err := s.engine.Refresh(requestContext(r), req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "refresh refused")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.engine.Logout(requestContext(r), req.RefreshToken); err != nil {
		writeError(w, http.StatusUnauthorized, "logout refused")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    ident.UserID,
		"tenant_id":  ident.TenantID,
		"handle":     ident.Handle,
		"email":      ident.Email,
		"first_name": ident.FirstName,
		"last_name":  ident.LastName,
		"roles":      ident.Roles,
	})
}

func (s *server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	ctx := authcore.WithTenantID(r.Context(), ident.TenantID)

	list, err := s.engine.ListSessions(ctx, ident.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	out := make([]map[string]any, 0, len(list))
	for _, sess := range list {
		out = append(out, map[string]any{
			"id":            sess.ID,
			"device_type":   sess.DeviceType,
			"client_ip":     sess.ClientIP,
			"created_at":    sess.CreatedAt.UTC().Format(time.RFC3339),
			"last_activity": sess.LastActivity.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	err := s.engine.EndSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, authcore.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "end session failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
		SessionKey  string `json:"session_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := authcore.WithTenantID(requestContext(r), ident.TenantID)
	err := s.engine.ChangePassword(ctx, ident.UserID, req.OldPassword, req.NewPassword, req.SessionKey)
	switch {
	case errors.Is(err, authcore.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "authentication failed")
	case errors.Is(err, authcore.ErrPolicyViolation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "password change failed")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The response never reveals whether the address exists: both
	// outcomes produce the same body. The uid/token pair goes to the log
	// as the demo's stand-in for the email delivery.
	pr, err := s.engine.RequestPasswordReset(requestContext(r), req.Email)
	if err != nil {
		s.logger.Info("reset request refused", zap.Error(err))
	} else {
		s.logger.Info("password reset issued",
			zap.String("uid", pr.UID),
			zap.String("token", pr.Token))
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID         string `json:"uid"`
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.engine.ConfirmPasswordReset(requestContext(r), req.UID, req.Token, req.NewPassword)
	switch {
	case errors.Is(err, authcore.ErrPolicyViolation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		writeError(w, http.StatusUnauthorized, "reset refused")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
