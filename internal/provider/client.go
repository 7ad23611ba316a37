// Package provider is the client for the managed auth backend. The provider
// owns the canonical user records; this service only reads identities from
// bearer tokens and drives the admin user-management endpoints.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrNotConfigured = errors.New("auth provider not configured")
	ErrUnauthorized  = errors.New("auth provider rejected token")
	ErrNotFound      = errors.New("auth provider user not found")
)

// User is the provider's canonical user record.
type User struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Metadata  map[string]any `json:"user_metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// Name resolves a display name from metadata, falling back to the email
// local part.
func (u User) Name() string {
	if name, ok := u.Metadata["name"].(string); ok && strings.TrimSpace(name) != "" {
		return name
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

// Role reads the role mirrored into metadata; empty when never assigned.
func (u User) Role() string {
	role, _ := u.Metadata["role"].(string)
	return role
}

type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

// New creates a provider client. Returns nil when no base URL is configured;
// callers treat a nil client as "backend unavailable".
func New(baseURL, serviceKey string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		return nil
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

// UserFromToken exchanges a bearer token for the identity it belongs to.
func (c *Client) UserFromToken(ctx context.Context, token string) (User, error) {
	if c == nil {
		return User{}, ErrNotConfigured
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var user User
	if err := c.do(req, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// ListUsers enumerates all provider accounts via the service-role API.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/admin/users", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	var payload struct {
		Users []User `json:"users"`
	}
	if err := c.do(req, &payload); err != nil {
		return nil, err
	}
	return payload.Users, nil
}

func (c *Client) GetUser(ctx context.Context, userID string) (User, error) {
	if c == nil {
		return User{}, ErrNotConfigured
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/admin/users/"+userID, nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	var user User
	if err := c.do(req, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateUserRole writes the role into the provider's user metadata. This is
// the canonical copy; the profile table only caches it.
func (c *Client) UpdateUserRole(ctx context.Context, userID, role string) error {
	body := map[string]any{"user_metadata": map[string]any{"role": role}}
	return c.adminPut(ctx, userID, body)
}

// UpdateUserPassword replaces the account password with a fresh credential.
func (c *Client) UpdateUserPassword(ctx context.Context, userID, password string) error {
	return c.adminPut(ctx, userID, map[string]any{"password": password})
}

func (c *Client) adminPut(ctx context.Context, userID string, body map[string]any) error {
	if c == nil {
		return ErrNotConfigured
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal admin update: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPut, "/auth/v1/admin/users/"+userID, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	if c == nil {
		return ErrNotConfigured
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "/auth/v1/admin/users/"+userID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	return c.do(req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("apikey", c.serviceKey)
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call auth provider: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("auth provider status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}
