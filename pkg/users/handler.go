package users

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/vignesh-goutham/coinledger/pkg/apperrors"
)

// Transport-level messages of the user handlers.
const (
	MsgGetOnly       = "Method Not Allowed. Only GET method is accepted."
	MsgPostOnly      = "Method Not Allowed. Only POST method is accepted."
	MsgMissingBody   = "Missing request body"
	MsgInvalidJSON   = "Invalid JSON in request body"
	MsgUserCreated   = "User created successfully"
	maxRequestBodyKB = 64
)

// Handler exposes the lookup and create operations over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler serves svc over HTTP.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	User any `json:"user"`
}

type createdResponse struct {
	Message string `json:"message"`
	User    any    `json:"user"`
}

// GetUser handles GET ?id=... or GET ?email=...
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("get user request",
		zap.String("method", r.Method), zap.String("query", r.URL.RawQuery))

	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, messageResponse{Message: MsgGetOnly})
		return
	}

	params := r.URL.Query()
	user, err := h.svc.Lookup(r.Context(), LookupQuery{
		ID:       params.Get("id"),
		HasID:    params.Has("id"),
		Email:    params.Get("email"),
		HasEmail: params.Has("email"),
	})
	if err != nil {
		h.writeError(w, err, MsgInternal)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// SaveUser handles POST with a {"name", "email"} body.
func (h *Handler) SaveUser(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("save user request", zap.String("method", r.Method))

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, messageResponse{Message: MsgPostOnly})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyKB<<10))
	if err != nil || len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: MsgMissingBody})
		return
	}

	var req CreateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: MsgInvalidJSON})
		return
	}

	user, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err, MsgDatabaseFailed)
		return
	}

	writeJSON(w, http.StatusOK, createdResponse{Message: MsgUserCreated, User: user})
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	status := apperrors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, messageResponse{Message: apperrors.Message(err, fallback)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
