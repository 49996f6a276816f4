package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/h2hthailand/h2h-backend/internal/auth"
	"github.com/h2hthailand/h2h-backend/pkg/enums"
	pkgerrors "github.com/h2hthailand/h2h-backend/pkg/errors"
)

type testAuthService struct {
	registerFn func(ctx context.Context, req auth.RegisterRequest) (*auth.AuthResponse, error)
	loginFn    func(ctx context.Context, req auth.LoginRequest) (*auth.AuthResponse, error)
	forgotFn   func(ctx context.Context, req auth.ForgotPasswordRequest) (string, error)
	resetFn    func(ctx context.Context, req auth.ResetPasswordRequest) error
	meFn       func(ctx context.Context, userID uuid.UUID) (*auth.UserSummary, error)
}

func (s *testAuthService) Register(ctx context.Context, req auth.RegisterRequest) (*auth.AuthResponse, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, req)
	}
	return &auth.AuthResponse{}, nil
}

func (s *testAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.AuthResponse, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, req)
	}
	return &auth.AuthResponse{}, nil
}

func (s *testAuthService) ForgotPassword(ctx context.Context, req auth.ForgotPasswordRequest) (string, error) {
	if s.forgotFn != nil {
		return s.forgotFn(ctx, req)
	}
	return "", nil
}

func (s *testAuthService) ResetPassword(ctx context.Context, req auth.ResetPasswordRequest) error {
	if s.resetFn != nil {
		return s.resetFn(ctx, req)
	}
	return nil
}

func (s *testAuthService) Me(ctx context.Context, userID uuid.UUID) (*auth.UserSummary, error) {
	if s.meFn != nil {
		return s.meFn(ctx, userID)
	}
	return &auth.UserSummary{}, nil
}

func TestAuthRegisterCreated(t *testing.T) {
	svc := &testAuthService{
		registerFn: func(ctx context.Context, req auth.RegisterRequest) (*auth.AuthResponse, error) {
			if req.Email != "buyer@example.com" {
				t.Fatalf("unexpected email %q", req.Email)
			}
			return &auth.AuthResponse{AccessToken: "token"}, nil
		},
	}

	body := `{"email":"buyer@example.com","password":"supersecret","displayName":"Buyer"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	resp := httptest.NewRecorder()

	AuthRegister(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data auth.AuthResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.AccessToken != "token" {
		t.Fatal("response missing access token")
	}
}

func TestAuthRegisterRejectsInvalidBody(t *testing.T) {
	body := `{"email":"not-an-email","password":"short","displayName":""}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	resp := httptest.NewRecorder()

	AuthRegister(&testAuthService{}, testLogger(t))(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAuthLoginMapsUnauthorized(t *testing.T) {
	svc := &testAuthService{
		loginFn: func(ctx context.Context, req auth.LoginRequest) (*auth.AuthResponse, error) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		},
	}

	body := `{"email":"buyer@example.com","password":"wrongpass"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	resp := httptest.NewRecorder()

	AuthLogin(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthForgotPasswordAlwaysGeneric(t *testing.T) {
	svc := &testAuthService{
		forgotFn: func(ctx context.Context, req auth.ForgotPasswordRequest) (string, error) {
			return "If that email is registered, a reset link has been sent.", nil
		},
	}

	body := `{"email":"unknown@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/forgot-password", strings.NewReader(body))
	resp := httptest.NewRecorder()

	AuthForgotPassword(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "reset link") {
		t.Fatalf("expected generic message, got %s", resp.Body.String())
	}
}

func TestAuthMeRequiresActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	resp := httptest.NewRecorder()

	AuthMe(&testAuthService{}, testLogger(t))(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthMeReturnsProfile(t *testing.T) {
	userID := uuid.New()
	svc := &testAuthService{
		meFn: func(ctx context.Context, id uuid.UUID) (*auth.UserSummary, error) {
			if id != userID {
				t.Fatalf("unexpected user id %s", id)
			}
			return &auth.UserSummary{ID: id, Email: "buyer@example.com"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req = withActor(req, userID, enums.UserRoleUser)
	resp := httptest.NewRecorder()

	AuthMe(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
