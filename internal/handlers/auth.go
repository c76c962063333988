package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/worldview-app/apiserver/internal/services"
	"github.com/worldview-app/apiserver/types"
)

// AuthHandler provides account and session endpoints.
type AuthHandler struct {
	accounts *services.AccountService
	tokens   TokenCodec
	cookie   SessionCookie
	logger   *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(accounts *services.AccountService, tokens TokenCodec, cookie SessionCookie, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		accounts: accounts,
		tokens:   tokens,
		cookie:   cookie,
		logger:   logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, accounts *services.AccountService, tokens TokenCodec, cookie SessionCookie, logger *slog.Logger) {
	handler := NewAuthHandler(accounts, tokens, cookie, logger)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	r.With(RequireSession(tokens, cookie.Name)).Get("/me", handler.Me)
}

// Register creates a new account, starts a session and returns the token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "all fields required")
		return
	}

	account, err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			writeError(w, http.StatusBadRequest, "all fields required")
		case errors.Is(err, services.ErrConflict):
			writeError(w, http.StatusBadRequest, "user already exists")
		default:
			h.logger.ErrorContext(r.Context(), "register failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to create account")
		}
		return
	}

	h.startSession(w, r, account)
}

// Login verifies credentials, starts a session and returns the token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "all fields required")
		return
	}

	account, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			writeError(w, http.StatusBadRequest, "all fields required")
		case errors.Is(err, services.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "invalid credentials")
		default:
			h.logger.ErrorContext(r.Context(), "login failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to authenticate")
		}
		return
	}

	h.startSession(w, r, account)
}

// Logout clears the session cookie. Tokens already handed out stay valid
// until they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookie.clear(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID, err := accountIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "load account failed", slog.Int("account_id", accountID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}

	writeJSON(w, http.StatusOK, AccountResponse{User: account})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, account types.Account) {
	token, err := h.tokens.Issue(account.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "issue token failed", slog.Int("account_id", account.ID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	h.cookie.set(w, token)
	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: account})
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string        `json:"token"`
	User  types.Account `json:"user"`
}

type AccountResponse struct {
	User types.Account `json:"user"`
}
