// Package httptransport is the thin HTTP layer. It delegates to the session
// service and the route guard without embedding reconciliation logic.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"concord/internal/guard"
	"concord/internal/session"
	"concord/internal/session/service"
	"concord/internal/session/store"
	domainerrors "concord/pkg/domain-errors"
	"concord/pkg/platform/httputil"
)

// Service is the session intent surface the handlers call.
type Service interface {
	Login(ctx context.Context, email, password string) (*session.Session, error)
	Register(ctx context.Context, in service.RegistrationInput) (*session.Session, error)
	Logout(ctx context.Context) error
}

type Handler struct {
	svc  Service
	cell *store.Store
	log  *slog.Logger
}

func NewHandler(svc Service, cell *store.Store, log *slog.Logger) *Handler {
	return &Handler{svc: svc, cell: cell, log: log}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	DisplayName  string `json:"display_name"`
	Phone        string `json:"phone"`
	BusinessName string `json:"business_name"`
	Address      string `json:"address"`
	NationalID   string `json:"national_id"`
	AgentCode    string `json:"agent_code"`
}

// sessionView is the cell state as rendered to clients. A null session with
// loading=false means signed out.
type sessionView struct {
	Session     *session.Session `json:"session"`
	Loading     bool             `json:"loading"`
	Provisional bool             `json:"provisional"`
	Error       string           `json:"error,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "email and password are required"))
		return
	}

	sess, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.log.WarnContext(r.Context(), "login rejected",
			"email", req.Email,
			"code", string(domainerrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "email and password are required"))
		return
	}

	sess, err := h.svc.Register(r.Context(), service.RegistrationInput{
		Email:        req.Email,
		Password:     req.Password,
		DisplayName:  req.DisplayName,
		Phone:        req.Phone,
		BusinessName: req.BusinessName,
		Address:      req.Address,
		NationalID:   req.NationalID,
		AgentCode:    req.AgentCode,
	})
	if err != nil {
		h.log.WarnContext(r.Context(), "registration rejected",
			"email", req.Email,
			"code", string(domainerrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSession exposes the live cell view so clients can poll resolution
// progress without holding a protected route open.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	v := h.cell.View()
	view := sessionView{
		Session:     v.Session,
		Loading:     v.Loading,
		Provisional: v.Provisional,
	}
	if v.Err != nil {
		view.Error = string(domainerrors.CodeOf(v.Err))
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// handleAccount serves the protected region. The guard middleware has
// already authorized the request and attached the session.
func (h *Handler) handleAccount(w http.ResponseWriter, r *http.Request) {
	sess := guard.SessionFrom(r.Context())
	if sess == nil {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeUnexpected, "session missing from context"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess)
}
