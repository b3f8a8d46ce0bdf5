package handlers

import (
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/fleetkeeper/fleetkeeper/internal/controller/api/middleware"
)

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	h := NewAuthHandler("admin", hash, "test-secret", time.Hour)

	t.Run("valid credentials", func(t *testing.T) {
		input := &LoginInput{}
		input.Body.Username = "admin"
		input.Body.Password = "hunter2"

		out, err := h.Login(context.Background(), input)
		if err != nil {
			t.Fatal(err)
		}
		if !out.Body.OK || out.Body.Data.Token == "" {
			t.Errorf("login response = %+v", out.Body)
		}
		if out.Body.Data.ExpiresIn != 3600 {
			t.Errorf("expires_in = %d, want 3600", out.Body.Data.ExpiresIn)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		input := &LoginInput{}
		input.Body.Username = "admin"
		input.Body.Password = "wrong"

		if _, err := h.Login(context.Background(), input); err == nil {
			t.Error("expected an error for a wrong password")
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		input := &LoginInput{}
		input.Body.Username = "nobody"
		input.Body.Password = "hunter2"

		if _, err := h.Login(context.Background(), input); err == nil {
			t.Error("expected an error for an unknown user")
		}
	})
}

func TestGenerateJWTRoundtrip(t *testing.T) {
	token, err := middleware.GenerateJWT("admin", "admin", "test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q is not a JWT", token)
	}
}
