package api

import (
	"context"
	"net/http"

	"github.com/mkartavenko/taskhub/internal/client/models"
)

// AuthResult is the payload of a successful login or registration.
type AuthResult struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

// ProfilePatch carries partial profile fields for updates. Empty fields are
// omitted from the request.
type ProfilePatch struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// userPayload unwraps endpoints that nest the profile under a "user" key.
type userPayload struct {
	User models.User `json:"user"`
}

func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	var res AuthResult
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/auth/register",
		Body:   registerRequest{Name: name, Email: email, Password: password},
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var res AuthResult
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/auth/login",
		Body:   loginRequest{Email: email, Password: password},
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout notifies the server that refreshToken should be revoked. Callers
// treat failures as non-fatal; the local session is cleared regardless.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/auth/logout",
		Body:   logoutRequest{RefreshToken: refreshToken},
	}, nil)
}

func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var payload userPayload
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/users/profile",
	}, &payload)
	if err != nil {
		return nil, err
	}
	return &payload.User, nil
}

func (c *Client) UpdateProfile(ctx context.Context, patch ProfilePatch) (*models.User, error) {
	var payload userPayload
	err := c.Do(ctx, Request{
		Method: http.MethodPut,
		Path:   "/api/users/profile",
		Body:   patch,
	}, &payload)
	if err != nil {
		return nil, err
	}
	return &payload.User, nil
}

func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	return c.Do(ctx, Request{
		Method: http.MethodPut,
		Path:   "/api/users/password",
		Body:   changePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword},
	}, nil)
}
