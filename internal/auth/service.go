package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkutano/hotspot/internal/api"
)

var (
	ErrMissingCredentials = errors.New("auth: email and password are required")
	ErrBadTwoFactorCode   = errors.New("auth: two-factor code must be 6 digits")
	ErrTwoFactorRequired  = errors.New("auth: two-factor code required")
)

// LoginResult is the backend's answer to a login attempt.
type LoginResult struct {
	Token       string `json:"token"`
	Admin       *Admin `json:"admin"`
	Requires2FA bool   `json:"requires2FA"`
}

// Service drives the admin login, logout, and password-reset flows
// against the backend, persisting the outcome in the token store.
type Service struct {
	client *api.Client
	store  TokenStore
	logger *slog.Logger
}

// NewService creates an auth service.
func NewService(client *api.Client, store TokenStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, store: store, logger: logger}
}

// Login authenticates against the backend. When the account has 2FA
// enabled and no code is given, it returns ErrTwoFactorRequired so the
// UI can prompt for the code and call again.
//
// Validation failures are caught locally and never reach the backend.
func (s *Service) Login(ctx context.Context, email, password, twoFactorCode string) (*Admin, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if twoFactorCode != "" && !validCode(twoFactorCode) {
		return nil, ErrBadTwoFactorCode
	}

	body := map[string]string{"email": email, "password": password}
	if twoFactorCode != "" {
		body["twoFactorCode"] = twoFactorCode
	}

	var res LoginResult
	if err := s.client.Post(ctx, "/auth/login", body, &res); err != nil {
		return nil, err
	}

	if res.Requires2FA {
		return nil, ErrTwoFactorRequired
	}
	if res.Token == "" {
		return nil, fmt.Errorf("auth: backend returned no token")
	}

	if err := s.store.SetToken(res.Token); err != nil {
		return nil, fmt.Errorf("auth: persist token: %w", err)
	}
	if res.Admin != nil {
		if err := s.store.SetAdmin(res.Admin); err != nil {
			// The cached profile is a convenience; losing it is not fatal.
			s.logger.Warn("failed to cache admin profile", "error", err)
		}
	}

	s.logger.Info("admin logged in", "email", email)
	return res.Admin, nil
}

// Logout discards the local token and cached profile. Purely local: the
// backend token is stateless and expires on its own.
func (s *Service) Logout() error {
	return s.store.Clear()
}

// RequestReset asks the backend to send a password-reset email.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrMissingCredentials
	}
	return s.client.Post(ctx, "/auth/reset-request", map[string]string{"email": email}, nil)
}

// ConfirmReset completes a password reset with the emailed token.
func (s *Service) ConfirmReset(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" || newPassword == "" {
		return ErrMissingCredentials
	}
	return s.client.Post(ctx, "/auth/reset-confirm", map[string]string{
		"token":    resetToken,
		"password": newPassword,
	}, nil)
}

// CachedAdmin returns the locally cached profile, if any. Used to skip a
// refetch on reload; never treated as authoritative.
func (s *Service) CachedAdmin() (*Admin, bool) {
	return s.store.Admin()
}

func validCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
