package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/qaiserfcc/helpDesk-sub001/internal/adapters/primary/validation"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
)

// AuthHandler serves the credential endpoints
type AuthHandler struct {
	authService  ports.AuthService
	errorHandler *ErrorHandler
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService ports.AuthService, errorHandler *ErrorHandler) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		errorHandler: errorHandler,
	}
}

// RegisterRoutes registers the auth routes. They are public; callers wrap
// them with the stricter auth rate limiter.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.HandleRegister)
	r.Post("/login", h.HandleLogin)
	r.Post("/refresh", h.HandleRefresh)
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate validates the login request
func (r *LoginRequest) Validate() error {
	return validation.NewValidator().
		Required("email", r.Email).
		Email("email", r.Email).
		Required("password", r.Password).
		Err()
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate validates the register request
func (r *RegisterRequest) Validate() error {
	return validation.NewValidator().
		Required("fullName", r.FullName).
		MaxLength("fullName", r.FullName, domain.MaxFullNameLength).
		Required("email", r.Email).
		Email("email", r.Email).
		Required("password", r.Password).
		Err()
}

// RefreshRequest is the body of POST /auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// UserDTO is the public view of an account
type UserDTO struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// TokensDTO carries a credential pair
type TokensDTO struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by login and refresh
type AuthResponse struct {
	User   UserDTO   `json:"user"`
	Tokens TokensDTO `json:"tokens"`
}

// HandleRegister creates a customer account
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, err := decodeValid[RegisterRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	user, err := h.authService.Register(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteCreated(w, toUserDTO(user))
}

// HandleLogin exchanges email and password for a credential pair
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := decodeValid[LoginRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toAuthResponse(result))
}

// HandleRefresh rotates a refresh credential. Each refresh token is
// accepted once.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	req, err := validation.Decode[RefreshRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toAuthResponse(result))
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:        u.ID.String(),
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toAuthResponse(result *ports.AuthResult) AuthResponse {
	return AuthResponse{
		User: toUserDTO(result.User),
		Tokens: TokensDTO{
			AccessToken:  result.Tokens.AccessToken,
			RefreshToken: result.Tokens.RefreshToken,
		},
	}
}
