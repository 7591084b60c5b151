package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"meowchat/auth"
	apperr "meowchat/errors"
	"meowchat/services"
)

// Handler serves the account endpoints and the static frontend.
type Handler struct {
	log         *slog.Logger
	authService services.IAuthService
	staticDir   string
}

func NewHandler(log *slog.Logger, authService services.IAuthService, staticDir string) *Handler {
	return &Handler{log: log, authService: authService, staticDir: staticDir}
}

// Routes registers the REST endpoints. The static file server must be
// mounted last: mux matches the catch-all prefix after the API routes.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/signup", h.Signup).Methods(http.MethodPost)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	if h.staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(h.staticDir)))
	}
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type authResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
	Token   string       `json:"token"`
}

// Signup handles POST /signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req auth.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, identity, err := h.authService.Register(req.Username, req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrUserAlreadyExists):
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	default:
		h.log.Error("Signup failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.respondJSON(w, http.StatusCreated, authResponse{
		Message: "Sign up successful",
		User:    userResponse{ID: identity.ID, Username: identity.Username},
		Token:   string(token),
	})
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := auth.ValidateLogin(req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, identity, err := h.authService.Login(req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrInvalidCredentials):
		h.respondError(w, http.StatusUnauthorized, err.Error())
		return
	default:
		h.log.Error("Login failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.respondJSON(w, http.StatusOK, authResponse{
		Message: "Login successful",
		User:    userResponse{ID: identity.ID, Username: identity.Username},
		Token:   string(token),
	})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Response encoding failed", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"message": message})
}
