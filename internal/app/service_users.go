package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"pauta/api/internal/credential"
	"pauta/api/internal/directory"
	"pauta/api/internal/provider"
	"pauta/api/internal/rbac"
	"pauta/api/internal/store"
)

func (s *Service) ListUsers(ctx context.Context) ([]directory.User, error) {
	users, err := s.directory.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []directory.User{}
	}
	return users, nil
}

// RoleUpdateResult reports the canonical write plus the state of the
// best-effort profile mirror.
type RoleUpdateResult struct {
	Role    string `json:"role"`
	Warning string `json:"warning,omitempty"`
}

// UpdateUserRole writes the role to the auth provider's metadata (canonical,
// hard fail) and mirrors it into the profile cache (best effort).
func (s *Service) UpdateUserRole(ctx context.Context, userID, role string) (RoleUpdateResult, error) {
	if !rbac.Valid(rbac.Role(role)) {
		return RoleUpdateResult{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "invalid role", map[string]any{"allowed": rbac.All()})
	}

	if err := s.auth.UpdateUserRole(ctx, userID, role); err != nil {
		return RoleUpdateResult{}, mapProviderError(err, "user")
	}

	result := RoleUpdateResult{Role: role}
	if err := s.store.UpsertProfileRole(ctx, userID, role); err != nil {
		if store.MissingTable(err) {
			log.Printf("app: profile mirror skipped, table absent")
		} else {
			log.Printf("app: profile mirror for %s: %v", userID, err)
			result.Warning = "role saved, but the profile cache could not be updated"
		}
	}
	s.dropCachedSessions(ctx, userID)
	s.notify("profiles", "update", userID)
	return result, nil
}

// PasswordResetResult carries the one-time plaintext back to the admin.
// It is never logged.
type PasswordResetResult struct {
	Password   string `json:"password"`
	EmailSent  bool   `json:"emailSent"`
	EmailError string `json:"emailError,omitempty"`
}

func (s *Service) ResetUserPassword(ctx context.Context, userID string) (PasswordResetResult, error) {
	user, err := s.auth.GetUser(ctx, userID)
	if err != nil {
		return PasswordResetResult{}, mapProviderError(err, "user")
	}

	password, err := credential.NewPassword()
	if err != nil {
		return PasswordResetResult{}, err
	}

	if err := s.auth.UpdateUserPassword(ctx, userID, password); err != nil {
		return PasswordResetResult{}, mapProviderError(err, "user")
	}

	result := PasswordResetResult{Password: password}
	if s.email != nil && s.email.IsConfigured() && user.Email != "" {
		if err := s.email.SendCredentialsEmail(user.Email, user.Name(), user.Email, password); err != nil {
			result.EmailError = err.Error()
		} else {
			result.EmailSent = true
		}
	}
	return result, nil
}

// DeleteUser removes the profile mirror (best effort) and then the provider
// record (hard fail).
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domainError(http.StatusBadRequest, "VALIDATION_ERROR", "userId is required", nil)
	}

	if err := s.store.DeleteProfile(ctx, userID); err != nil && !store.MissingTable(err) {
		log.Printf("app: delete profile %s: %v", userID, err)
	}

	if err := s.auth.DeleteUser(ctx, userID); err != nil {
		return mapProviderError(err, "user")
	}

	s.dropCachedSessions(ctx, userID)
	s.notify("profiles", "delete", userID)
	return nil
}

// dropCachedSessions evicts a user's cached identities so a role change or
// deletion does not linger for the remainder of the cache TTL.
func (s *Service) dropCachedSessions(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DropUser(ctx, userID); err != nil {
		log.Printf("app: evict cached sessions for %s: %v", userID, err)
	}
}

type SendEmailInput struct {
	To       string `json:"to"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SendCredentials delivers the fixed credentials template to one recipient.
func (s *Service) SendCredentials(ctx context.Context, input SendEmailInput) error {
	var missing []string
	if strings.TrimSpace(input.To) == "" {
		missing = append(missing, "to")
	}
	if strings.TrimSpace(input.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(input.Email) == "" {
		missing = append(missing, "email")
	}
	if input.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return domainError(http.StatusBadRequest, "VALIDATION_ERROR", "missing required fields", map[string]any{"fields": missing})
	}

	if s.email == nil || !s.email.IsConfigured() {
		return domainError(http.StatusInternalServerError, "EMAIL_NOT_CONFIGURED", "email service not configured", nil)
	}

	if err := s.email.SendCredentialsEmail(input.To, input.Name, input.Email, input.Password); err != nil {
		return domainError(http.StatusBadGateway, "UPSTREAM_FAILURE", "email delivery failed", nil)
	}
	return nil
}

func mapProviderError(err error, entity string) error {
	switch {
	case errors.Is(err, provider.ErrNotConfigured):
		return domainError(http.StatusInternalServerError, "BACKEND_UNAVAILABLE", "auth provider not configured", nil)
	case errors.Is(err, provider.ErrNotFound):
		return notFound(entity + " not found")
	case errors.Is(err, provider.ErrUnauthorized):
		return domainError(http.StatusBadGateway, "UPSTREAM_FAILURE", "auth provider rejected the request", nil)
	default:
		return err
	}
}
