package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/ShoppingBoT/internal/auth"
	"github.com/Kerhoff/ShoppingBoT/internal/models"
	"github.com/Kerhoff/ShoppingBoT/internal/service"
	"github.com/Kerhoff/ShoppingBoT/internal/summary"
)

// Server provides the HTTP API for the web client.
type Server struct {
	svc      *service.Service
	verifier *auth.Verifier
	listID   string
	logger   *logrus.Logger
	mux      *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, verifier *auth.Verifier, listID string, logger *logrus.Logger) *Server {
	s := &Server{
		svc:      svc,
		verifier: verifier,
		listID:   listID,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	// Session
	s.mux.HandleFunc("POST /api/session", s.withSession(s.handleLogin))
	s.mux.HandleFunc("DELETE /api/session", s.withSession(s.handleLogout))

	// Items
	s.mux.HandleFunc("GET /api/items", s.withSession(s.handleGetItems))
	s.mux.HandleFunc("GET /api/items/stream", s.withSession(s.handleStreamItems))
	s.mux.HandleFunc("POST /api/items", s.withSession(s.handleCreateItem))
	s.mux.HandleFunc("DELETE /api/items/purchased", s.withSession(s.handleClearPurchased))
	s.mux.HandleFunc("PATCH /api/items/{id}", s.withSession(s.handleUpdateItem))
	s.mux.HandleFunc("DELETE /api/items/{id}", s.withSession(s.handleDeleteItem))
	s.mux.HandleFunc("PUT /api/items/{id}/purchased", s.withSession(s.handleTogglePurchased))
	s.mux.HandleFunc("PUT /api/items/{id}/fields/{field}", s.withSession(s.handleEditField))

	// Purchase confirmation
	s.mux.HandleFunc("POST /api/items/{id}/purchase", s.withSession(s.handleBeginPurchase))
	s.mux.HandleFunc("POST /api/items/{id}/purchase/confirm", s.withSession(s.handleConfirmPurchase))
	s.mux.HandleFunc("DELETE /api/items/{id}/purchase", s.withSession(s.handleCancelPurchase))

	// Summary
	s.mux.HandleFunc("GET /api/summary", s.withSession(s.handleGetSummary))

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

type ctxKey int

const (
	sessionKey ctxKey = iota
	claimsKey
	tokenKey
)

// withSession verifies the bearer token and stores the session in the
// request context. Requests without a valid token get 401.
func (s *Server) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			s.respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := s.verifier.Verify(raw)
		if err != nil {
			s.logger.WithError(err).Debug("rejected identity token")
			s.respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, claims.Session(s.listID))
		ctx = context.WithValue(ctx, claimsKey, claims)
		ctx = context.WithValue(ctx, tokenKey, raw)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token), true
	}
	// EventSource cannot set headers, so the stream also accepts a query token.
	if token := r.URL.Query().Get("access_token"); token != "" {
		return token, true
	}
	return "", false
}

func sessionFrom(r *http.Request) models.Session {
	sess, _ := r.Context().Value(sessionKey).(models.Session)
	return sess
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps controller errors onto status codes. Store
// failures are logged and reported as a transient failure.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	var fieldErr *service.FieldError
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		s.respondError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrItemNotFound):
		s.respondError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, service.ErrUnknownField):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAlreadyPurchased),
		errors.Is(err, service.ErrNoPendingConfirmation),
		errors.Is(err, service.ErrPurchaseInProgress):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &fieldErr):
		s.respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": []*service.FieldError{fieldErr},
		})
	default:
		sess := sessionFrom(r)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"action":  action,
			"user_id": sess.UserID,
		}).Error("store operation failed")
		s.respondError(w, http.StatusBadGateway, "could not complete action")
	}
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil || r.Body == http.NoBody {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// ---------------------------------------------------------------------------
// Session
// ---------------------------------------------------------------------------

type loginRequest struct {
	DisplayName string `json:"display_name"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if r.Body != nil && r.Body != http.NoBody {
		if ok, msg := s.decodeJSON(r, &req); !ok {
			s.respondError(w, http.StatusBadRequest, msg)
			return
		}
	}

	sess := sessionFrom(r)
	user, err := s.svc.EnsureUser(r.Context(), sess.UserID, sess.Email, req.DisplayName, models.ProviderToken)
	if err != nil {
		s.respondServiceError(w, r, "login", err)
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	raw, _ := r.Context().Value(tokenKey).(string)
	if claims != nil {
		s.verifier.Revoke(claims, raw)
	}

	s.logger.WithField("user_id", sessionFrom(r).UserID).Info("User logged out")
	s.respondJSON(w, http.StatusNoContent, nil)
}

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

type toggleRequest struct {
	Purchased   bool     `json:"purchased"`
	ActualValue *float64 `json:"actual_value"`
}

type editFieldRequest struct {
	Value json.RawMessage `json:"value"`
}

type confirmRequest struct {
	ActualValue *float64 `json:"actual_value"`
}

func (s *Server) handleGetItems(w http.ResponseWriter, r *http.Request) {
	overview, err := s.svc.Overview(r.Context(), sessionFrom(r))
	if err != nil {
		s.respondServiceError(w, r, "list items", err)
		return
	}
	s.respondJSON(w, http.StatusOK, overview)
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	overview, err := s.svc.Overview(r.Context(), sessionFrom(r))
	if err != nil {
		s.respondServiceError(w, r, "summary", err)
		return
	}
	s.respondJSON(w, http.StatusOK, overview.Summary)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req service.NewItemInput
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := req.Validate(); err != nil {
		s.respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": service.FieldErrors(err),
		})
		return
	}

	created, err := s.svc.CreateItem(r.Context(), sessionFrom(r), req)
	if err != nil {
		s.respondServiceError(w, r, "create item", err)
		return
	}

	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var patch models.ItemFields
	if ok, msg := s.decodeJSON(r, &patch); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	updated, err := s.svc.UpdateItem(r.Context(), sessionFrom(r), r.PathValue("id"), patch)
	if err != nil {
		s.respondServiceError(w, r, "update item", err)
		return
	}

	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleTogglePurchased(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := s.svc.TogglePurchased(r.Context(), sessionFrom(r), r.PathValue("id"), req.Purchased, req.ActualValue); err != nil {
		s.respondServiceError(w, r, "toggle purchased", err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{"purchased": req.Purchased})
}

func (s *Server) handleEditField(w http.ResponseWriter, r *http.Request) {
	var req editFieldRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	field := models.ItemField(r.PathValue("field"))
	changed, err := s.svc.EditField(r.Context(), sessionFrom(r), r.PathValue("id"), field, rawValue(req.Value))
	if err != nil {
		s.respondServiceError(w, r, "edit field", err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

// rawValue accepts both JSON numbers and strings as typed input.
func rawValue(msg json.RawMessage) string {
	var str string
	if err := json.Unmarshal(msg, &str); err == nil {
		return str
	}
	return string(msg)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteItem(r.Context(), sessionFrom(r), r.PathValue("id")); err != nil {
		s.respondServiceError(w, r, "delete item", err)
		return
	}

	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleClearPurchased(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.ClearPurchased(r.Context(), sessionFrom(r))
	if err != nil {
		s.respondServiceError(w, r, "clear purchased", err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// ---------------------------------------------------------------------------
// Purchase confirmation
// ---------------------------------------------------------------------------

func (s *Server) handleBeginPurchase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	prefill, err := s.svc.BeginPurchase(r.Context(), sessionFrom(r), id)
	if err != nil {
		s.respondServiceError(w, r, "begin purchase", err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"item_id":      id,
		"state":        service.PurchaseConfirming.String(),
		"actual_value": prefill,
	})
}

func (s *Server) handleConfirmPurchase(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if r.Body != nil && r.Body != http.NoBody {
		if ok, msg := s.decodeJSON(r, &req); !ok {
			s.respondError(w, http.StatusBadRequest, msg)
			return
		}
	}

	value, err := s.svc.ConfirmPurchase(r.Context(), sessionFrom(r), r.PathValue("id"), req.ActualValue)
	if err != nil {
		s.respondServiceError(w, r, "confirm purchase", err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{"purchased": true, "actual_value": value})
}

func (s *Server) handleCancelPurchase(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.CancelPurchase(r.Context(), sessionFrom(r), r.PathValue("id")); err != nil {
		s.respondServiceError(w, r, "cancel purchase", err)
		return
	}

	s.respondJSON(w, http.StatusNoContent, nil)
}

// overviewOf is shared by the stream handler.
func (s *Server) overviewOf(items []*models.ShoppingItem) summary.Overview {
	return summary.NewOverview(items, s.svc.Language())
}
