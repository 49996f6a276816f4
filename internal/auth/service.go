package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgauth "github.com/h2hthailand/h2h-backend/pkg/auth"
	"github.com/h2hthailand/h2h-backend/pkg/config"
	"github.com/h2hthailand/h2h-backend/pkg/db"
	"github.com/h2hthailand/h2h-backend/pkg/db/models"
	"github.com/h2hthailand/h2h-backend/pkg/enums"
	pkgerrors "github.com/h2hthailand/h2h-backend/pkg/errors"
	"github.com/h2hthailand/h2h-backend/pkg/logger"
	"github.com/h2hthailand/h2h-backend/pkg/mailer"
	"github.com/h2hthailand/h2h-backend/pkg/security"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	// forgotPasswordMessage never reveals whether the address exists.
	forgotPasswordMessage = "If that email is registered, a reset link has been sent."
)

// Service defines the behavior needed by the auth controllers.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (string, error)
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	Me(ctx context.Context, userID uuid.UUID) (*UserSummary, error)
}

type service struct {
	users  UserRepository
	resets ResetRepository
	mail   mailer.Sender
	jwtCfg config.JWTConfig
	pwCfg  config.PasswordConfig
	logger *logger.Logger
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo   UserRepository
	ResetRepo  ResetRepository
	Mailer     mailer.Sender
	JWTConfig  config.JWTConfig
	PasswordCf config.PasswordConfig
	Logger     *logger.Logger
}

// NewService constructs an auth service with the provided dependencies.
// Mailer is optional; without it, reset emails are silently skipped.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user repository required")
	}
	if params.ResetRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reset repository required")
	}
	if params.JWTConfig.Secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "jwt secret required")
	}
	return &service{
		users:  params.UserRepo,
		resets: params.ResetRepo,
		mail:   params.Mailer,
		jwtCfg: params.JWTConfig,
		pwCfg:  params.PasswordCf,
		logger: params.Logger,
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}

	hash, err := security.HashPassword(req.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Phone:        req.Phone,
		Role:         enums.UserRoleUser,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}

	return s.issueToken(user)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find user")
	}
	if !user.IsActive || user.PasswordHash == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	ok, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil && s.logger != nil {
		s.logger.Warn(s.logger.WithUserID(ctx, user.ID.String()), "failed to record login time")
	}

	return s.issueToken(user)
}

// ForgotPassword always reports success so the endpoint cannot be used to
// probe which addresses exist.
func (s *service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (string, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) && s.logger != nil {
			s.logger.Error(ctx, "forgot password lookup failed", err)
		}
		return forgotPasswordMessage, nil
	}

	token, digest, err := security.GenerateResetToken()
	if err != nil {
		if s.logger != nil {
			s.logger.Error(ctx, "reset token generation failed", err)
		}
		return forgotPasswordMessage, nil
	}

	reset := &models.PasswordReset{
		UserID:    user.ID,
		TokenHash: digest,
		ExpiresAt: time.Now().UTC().Add(s.pwCfg.ResetTokenTTL()),
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		if s.logger != nil {
			s.logger.Error(ctx, "reset token persistence failed", err)
		}
		return forgotPasswordMessage, nil
	}

	s.sendResetMail(ctx, user, token)
	return forgotPasswordMessage, nil
}

func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	digest := security.HashResetToken(strings.TrimSpace(req.Token))
	now := time.Now().UTC()

	reset, err := s.resets.FindActiveByTokenHash(ctx, digest, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid or expired reset token")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find reset token")
	}

	hash, err := security.HashPassword(req.NewPassword, s.pwCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.users.UpdatePassword(ctx, reset.UserID, hash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update password")
	}
	if err := s.resets.MarkUsed(ctx, reset.ID, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume reset token")
	}
	return nil
}

func (s *service) Me(ctx context.Context, userID uuid.UUID) (*UserSummary, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	summary := summarize(user)
	return &summary, nil
}

func (s *service) issueToken(user *models.User) (*AuthResponse, error) {
	now := time.Now().UTC()
	token, err := pkgauth.MintAccessToken(s.jwtCfg, now, pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	return &AuthResponse{
		AccessToken: token,
		ExpiresAt:   now.Add(time.Duration(s.jwtCfg.ExpirationMinutes) * time.Minute),
		User:        summarize(user),
	}, nil
}

func (s *service) sendResetMail(ctx context.Context, user *models.User, token string) {
	if s.mail == nil {
		return
	}
	body := fmt.Sprintf(
		"Hello %s,\n\nUse the token below to reset your H2H Thailand password. It expires in %s.\n\n%s\n\nIf you did not request this, ignore this email.",
		user.DisplayName, s.pwCfg.ResetTokenTTL(), token,
	)
	if err := s.mail.Send(ctx, user.Email, "Reset your password", body); err != nil && s.logger != nil {
		s.logger.Warn(s.logger.WithUserID(ctx, user.ID.String()), "reset email delivery failed")
	}
}

func summarize(user *models.User) UserSummary {
	return UserSummary{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Phone:       user.Phone,
		Role:        user.Role,
		CreatedAt:   user.CreatedAt,
	}
}
