package api

import (
	"encoding/json"

	"github.com/hearthside/client-go/internal/session"
)

// LoginRequest represents the POST /auth/login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the POST /auth/register request.
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

// AuthResponse is the data member returned by login and registration.
type AuthResponse struct {
	Token        string               `json:"token"`
	RefreshToken string               `json:"refreshToken,omitempty"`
	User         *session.UserSummary `json:"user,omitempty"`
}

// UnmarshalJSON also accepts "accessToken" for the token.
func (r *AuthResponse) UnmarshalJSON(data []byte) error {
	type plain AuthResponse
	var aux struct {
		plain
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = AuthResponse(aux.plain)
	if r.Token == "" {
		r.Token = aux.AccessToken
	}
	return nil
}

// meResponse accepts /auth/me answering either with the user itself or with
// {"user": {...}}.
type meResponse struct {
	User *session.UserSummary
}

func (m *meResponse) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		User *session.UserSummary `json:"user"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	if wrapped.User != nil {
		m.User = wrapped.User
		return nil
	}
	var u session.UserSummary
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	m.User = &u
	return nil
}
