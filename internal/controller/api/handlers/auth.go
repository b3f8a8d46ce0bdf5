package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/fleetkeeper/fleetkeeper/internal/controller/api/middleware"
)

// AuthHandler authenticates the single configured operator account.
type AuthHandler struct {
	username     string
	passwordHash []byte
	jwtSecret    string
	jwtExpiry    time.Duration
}

func NewAuthHandler(username string, passwordHash []byte, jwtSecret string, jwtExpiry time.Duration) *AuthHandler {
	return &AuthHandler{
		username:     username,
		passwordHash: passwordHash,
		jwtSecret:    jwtSecret,
		jwtExpiry:    jwtExpiry,
	}
}

type LoginInput struct {
	Body struct {
		Username string `json:"username" minLength:"1" doc:"Username"`
		Password string `json:"password" minLength:"1" doc:"Password"`
	}
}

type LoginDTO struct {
	Token     string `json:"token" doc:"JWT token"`
	ExpiresIn int    `json:"expires_in" doc:"Token lifetime in seconds"`
	Username  string `json:"username" doc:"Authenticated user"`
}

func (h *AuthHandler) Login(ctx context.Context, input *LoginInput) (*Reply[LoginDTO], error) {
	if input.Body.Username != h.username {
		return nil, huma.Error401Unauthorized("invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword(h.passwordHash, []byte(input.Body.Password)); err != nil {
		return nil, huma.Error401Unauthorized("invalid username or password")
	}

	token, err := middleware.GenerateJWT(h.username, "admin", h.jwtSecret, h.jwtExpiry)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to generate token")
	}

	return OK(LoginDTO{
		Token:     token,
		ExpiresIn: int(h.jwtExpiry.Seconds()),
		Username:  h.username,
	}), nil
}
