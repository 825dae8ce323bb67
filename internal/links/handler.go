package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sundayezeilo/filelinks/internal/errx"
	"github.com/sundayezeilo/filelinks/internal/httpx"
	"github.com/sundayezeilo/filelinks/internal/users"
)

// HTTPCreateLinkRequest represents the JSON request body for creating a link.
type HTTPCreateLinkRequest struct {
	UserID *int64 `json:"user_id"`
	FileID *int64 `json:"file_id"`
	TTL    string `json:"ttl,omitempty"` // Go duration, e.g. "36h"
}

// LinkResponse represents a link in JSON responses.
type LinkResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	FileID   int64  `json:"file_id"`
	URL      string `json:"url"`
	ExpireAt string `json:"expire_at"`
}

// HTTPAttachSessionRequest represents the JSON request body announcing a terminal session.
type HTTPAttachSessionRequest struct {
	Username string `json:"username"`
}

// SessionRegistry is told when users connect to and leave the terminal side.
// Each terminal connection is named by the caller, so both calls are idempotent.
type SessionRegistry interface {
	Attach(connID string, u users.User)
	Detach(userID int64, connID string) bool
	Count() int
}

const maxConnIDLen = 64

// Handler serves the operator API used by the terminal side.
type Handler struct {
	service  Service
	sessions SessionRegistry
	logger   *slog.Logger
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service  Service
	Sessions SessionRegistry // optional; session routes answer 503 without it
	Logger   *slog.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service:  cfg.Service,
		sessions: cfg.Sessions,
		logger:   logger,
	}
}

func toLinkResponse(l Link) LinkResponse {
	return LinkResponse{
		Token:    l.Token,
		UserID:   l.UserID,
		FileID:   l.FileID,
		URL:      l.URL,
		ExpireAt: l.ExpireAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// CreateLink handles POST requests to mint or refresh a download link.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	createReq, err := validateCreateRequest(req)
	if err != nil {
		logger.WarnContext(ctx, "request validation failed", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	link, err := h.service.Create(ctx, createReq)
	if err != nil {
		h.handleServiceError(ctx, w, err, "create")
		return
	}

	logger.InfoContext(ctx, "link issued",
		"token", link.Token,
		"user_id", link.UserID,
		"file_id", link.FileID,
	)

	httpx.WriteJSON(w, http.StatusCreated, toLinkResponse(link))
}

// GetLink handles GET requests for a single link by token.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := r.PathValue("token")
	link, err := h.service.Resolve(ctx, token)
	if err != nil {
		// An unknown or expired token is simply absent to the operator.
		if errx.Is(err, errx.Invalid) {
			err = errx.E("links.handler.GetLink", errx.NotFound, err)
		}
		h.handleServiceError(ctx, w, err, "get")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toLinkResponse(link))
}

// LookupLink handles GET requests for the existing link of a user/file pair.
func (h *Handler) LookupLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	userID, err := parseID(r.PathValue("userID"))
	if err != nil {
		logger.WarnContext(ctx, "invalid user id", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user id must be a non-negative integer", nil)
		return
	}
	fileID, err := parseID(r.PathValue("fileID"))
	if err != nil {
		logger.WarnContext(ctx, "invalid file id", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "file id must be a non-negative integer", nil)
		return
	}

	link, err := h.service.Lookup(ctx, userID, fileID)
	if err != nil {
		h.handleServiceError(ctx, w, err, "lookup")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toLinkResponse(link))
}

// DeleteLink handles DELETE requests that revoke a link immediately.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	token := r.PathValue("token")
	if err := h.service.Remove(ctx, token); err != nil {
		h.handleServiceError(ctx, w, err, "delete")
		return
	}

	logger.InfoContext(ctx, "link revoked", "token", token)
	w.WriteHeader(http.StatusNoContent)
}

// AttachSession handles PUT requests announcing a connected terminal user.
// Repeating the request for the same connection is harmless.
func (h *Handler) AttachSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	userID, connID, ok := h.sessionTarget(w, r)
	if !ok {
		return
	}

	req, err := httpx.DecodeJSON[HTTPAttachSessionRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	h.sessions.Attach(connID, users.User{ID: userID, Username: req.Username})
	logger.InfoContext(ctx, "session attached",
		"user_id", userID,
		"conn_id", connID,
		"active_users", h.sessions.Count(),
	)
	w.WriteHeader(http.StatusNoContent)
}

// DetachSession handles DELETE requests announcing a terminal connection closed.
func (h *Handler) DetachSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	userID, connID, ok := h.sessionTarget(w, r)
	if !ok {
		return
	}

	stillConnected := h.sessions.Detach(userID, connID)
	logger.InfoContext(ctx, "session detached",
		"user_id", userID,
		"conn_id", connID,
		"still_connected", stillConnected,
		"active_users", h.sessions.Count(),
	)
	w.WriteHeader(http.StatusNoContent)
}

// sessionTarget reads the user and connection ids of a session route.
// It writes the error response itself and reports false on failure.
func (h *Handler) sessionTarget(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	if h.sessions == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "not_enabled", "session tracking is not enabled", nil)
		return 0, "", false
	}

	userID, err := parseID(r.PathValue("userID"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user id must be a non-negative integer", nil)
		return 0, "", false
	}

	connID := r.PathValue("connID")
	if connID == "" || len(connID) > maxConnIDLen {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			fmt.Sprintf("connection id must be 1 to %d characters", maxConnIDLen), nil)
		return 0, "", false
	}
	return userID, connID, true
}

// handleServiceError maps service errors onto JSON error responses.
func (h *Handler) handleServiceError(ctx context.Context, w http.ResponseWriter, err error, action string) {
	kind := errx.KindOf(err)
	status, code := httpx.KindStatus(kind)

	logAttrs := []any{
		"action", action,
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	var message string
	switch kind {
	case errx.NotFound:
		h.logger.InfoContext(ctx, "link not found", logAttrs...)
		message = "no active link for this request"
	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid link request", logAttrs...)
		message = err.Error()
	case errx.NotEnabled:
		h.logger.WarnContext(ctx, "web downloads not enabled", logAttrs...)
		message = "Web downloads are not enabled on this board"
	case errx.Unavailable:
		h.logger.ErrorContext(ctx, "service unavailable", logAttrs...)
		message = "Link storage is unavailable. Please try again."
	default:
		h.logger.ErrorContext(ctx, "unexpected link service error", logAttrs...)
		message = "Unable to process this link at this time"
	}

	httpx.WriteError(w, status, code, message, nil)
}

// validateCreateRequest checks the JSON body and converts it to a service request.
func validateCreateRequest(req HTTPCreateLinkRequest) (CreateLinkRequest, error) {
	if req.UserID == nil {
		return CreateLinkRequest{}, errors.New("user_id is required")
	}
	if req.FileID == nil {
		return CreateLinkRequest{}, errors.New("file_id is required")
	}

	out := CreateLinkRequest{UserID: *req.UserID, FileID: *req.FileID}
	if req.TTL != "" {
		ttl, err := time.ParseDuration(req.TTL)
		if err != nil {
			return CreateLinkRequest{}, errors.New("ttl must be a duration such as \"48h\"")
		}
		out.TTL = &ttl
	}
	return out, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id < 0 {
		return 0, errors.New("negative id")
	}
	return id, nil
}
