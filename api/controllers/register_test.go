package controllers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocerymart-backend/api/middleware"
	"github.com/angelmondragon/grocerymart-backend/internal/auth"
	"github.com/angelmondragon/grocerymart-backend/internal/users"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
)

type stubRegisterService struct {
	err error
}

func (s stubRegisterService) Register(ctx context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &users.UserDTO{ID: uuid.New(), Email: req.Email}, nil
}

func TestAuthRegisterSuccess(t *testing.T) {
	svc := stubAuthService{loginFn: func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
		if req.Password != "longenough" {
			t.Fatalf("unexpected password passthrough")
		}
		return loginResponse("fresh-token"), nil
	}}

	body := bytes.NewBufferString(`{"name":"Asha","email":"asha@example.com","password":"longenough"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
	resp := httptest.NewRecorder()
	AuthRegister(stubRegisterService{}, svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if resp.Header().Get(middleware.TokenHeader) != "fresh-token" {
		t.Fatal("expected token header")
	}
}

func TestAuthRegisterRejectsShortPassword(t *testing.T) {
	body := bytes.NewBufferString(`{"name":"Asha","email":"asha@example.com","password":"short"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
	resp := httptest.NewRecorder()
	AuthRegister(stubRegisterService{}, stubAuthService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAuthRegisterPropagatesConflict(t *testing.T) {
	body := bytes.NewBufferString(`{"name":"Asha","email":"asha@example.com","password":"longenough"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
	resp := httptest.NewRecorder()
	reg := stubRegisterService{err: pkgerrors.New(pkgerrors.CodeConflict, "email already registered")}
	AuthRegister(reg, stubAuthService{}, testLogger())(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}
