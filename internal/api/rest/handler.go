// Package rest обслуживает JSON API заметок и аккаунтов поверх runtime.ServeMux.
package rest

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"notekeeper/internal/api/http/middleware"
	"notekeeper/internal/apperr"
	"notekeeper/internal/config"
	"notekeeper/internal/model"
	svc "notekeeper/internal/service"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Handler реализует HTTP маршруты API
type Handler struct {
	notes      svc.NoteService
	accounts   svc.AccountService
	sessions   *middleware.Sessions
	bcryptCost int
	marshaler  runtime.Marshaler
	logger     *zap.Logger
}

// NewHandler создает новый HTTP handler. sessions выпускает токены при входе.
func NewHandler(notes svc.NoteService, accounts svc.AccountService, sessions *middleware.Sessions, cfg *config.ConfigAuth, logger *zap.Logger) *Handler {
	cost := bcrypt.DefaultCost
	if cfg != nil && cfg.BcryptCost != 0 {
		cost = cfg.BcryptCost
	}

	return &Handler{
		notes:      notes,
		accounts:   accounts,
		sessions:   sessions,
		bcryptCost: cost,
		marshaler:  &runtime.JSONBuiltin{},
		logger:     logger,
	}
}

// Register регистрирует маршруты на mux
func (h *Handler) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodPost, "/v1/accounts", h.register},
		{http.MethodPost, "/v1/sessions", h.login},
		{http.MethodGet, "/v1/accounts/me", h.getAccount},
		{http.MethodPatch, "/v1/accounts/me", h.patchAccount},
		{http.MethodDelete, "/v1/accounts/me", h.deleteAccount},
		{http.MethodGet, "/v1/notes", h.listNotes},
		{http.MethodPost, "/v1/notes", h.createNote},
		{http.MethodDelete, "/v1/notes", h.deleteAllNotes},
		{http.MethodGet, "/v1/notes/{id}", h.getNote},
		{http.MethodPut, "/v1/notes/{id}", h.updateNote},
		{http.MethodDelete, "/v1/notes/{id}", h.deleteNote},
	}

	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, rt.handler); err != nil {
			return fmt.Errorf("mux.HandlePath %s %s: %w", rt.method, rt.pattern, err)
		}
	}

	return nil
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}

	hash, err := h.hashPassword(req.Password)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	account, err := h.accounts.Register(r.Context(), req.Email, hash)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.write(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.accounts.FindByEmail(r.Context(), req.Email)
	if errors.Is(err, apperr.ErrNotFound) {
		h.handleError(w, r, fmt.Errorf("%w: invalid email or password", errUnauthenticated))
		return
	}
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		h.handleError(w, r, fmt.Errorf("%w: invalid email or password", errUnauthenticated))
		return
	}

	token, expiresAt, err := h.sessions.Issue(account.ID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.write(w, http.StatusOK, sessionResponse{
		AccountID: account.ID,
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.Get(r.Context(), accountID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.write(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) patchAccount(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req accountPatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.Password != nil {
		hash, err := h.hashPassword(*req.Password)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		if err := h.accounts.ChangePasswordHash(r.Context(), accountID, hash); err != nil {
			h.handleError(w, r, err)
			return
		}
	}

	var (
		account model.Account
		err     error
	)
	if req.Email != nil {
		account, err = h.accounts.ChangeEmail(r.Context(), accountID, *req.Email)
	} else {
		account, err = h.accounts.Get(r.Context(), accountID)
	}
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.write(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	if err := h.accounts.Delete(r.Context(), accountID); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listNotes(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	ownerID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("view") == "names" {
		summaries, err := h.notes.Names(r.Context(), ownerID)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		h.write(w, http.StatusOK, toNamesResponse(summaries))
		return
	}

	notes, err := h.notes.List(r.Context(), ownerID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.write(w, http.StatusOK, toNotesResponse(notes))
}

func (h *Handler) createNote(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	ownerID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if !h.decode(w, r, &req) {
		return
	}

	note, err := h.notes.Create(r.Context(), ownerID, req.Name, req.Body)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.write(w, http.StatusCreated, toNoteResponse(note))
}

func (h *Handler) deleteAllNotes(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	ownerID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	removed, err := h.notes.DeleteAll(r.Context(), ownerID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.write(w, http.StatusOK, removedResponse{Removed: removed})
}

func (h *Handler) getNote(w http.ResponseWriter, r *http.Request, params map[string]string) {
	ownerID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	note, err := h.notes.Get(r.Context(), ownerID, params["id"])
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.write(w, http.StatusOK, toNoteResponse(note))
}

func (h *Handler) updateNote(w http.ResponseWriter, r *http.Request, params map[string]string) {
	ownerID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if !h.decode(w, r, &req) {
		return
	}

	note, err := h.notes.Update(r.Context(), ownerID, params["id"], req.Name, req.Body)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.write(w, http.StatusOK, toNoteResponse(note))
}

func (h *Handler) deleteNote(w http.ResponseWriter, r *http.Request, params map[string]string) {
	ownerID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	if err := h.notes.Delete(r.Context(), ownerID, params["id"]); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// accountID достает ID аккаунта из проверенной middleware.Auth сессии
func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.AccountID(r.Context())
	if !ok {
		h.handleError(w, r, fmt.Errorf("%w: session token not provided", errUnauthenticated))
		return "", false
	}
	return id, true
}

func (h *Handler) hashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password cannot be empty", apperr.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	if err != nil {
		return "", fmt.Errorf("bcrypt.GenerateFromPassword: %w", err)
	}

	return string(hash), nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := h.marshaler.NewDecoder(r.Body).Decode(v); err != nil {
		h.handleError(w, r, fmt.Errorf("%w: malformed request body: %w", apperr.ErrValidation, err))
		return false
	}
	return true
}

func (h *Handler) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", h.marshaler.ContentType(v))
	w.WriteHeader(status)
	if err := h.marshaler.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to write response", zap.Error(err))
	}
}
