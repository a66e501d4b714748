package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// User is the authenticated user's profile.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	UserName     string    `json:"userName"`
	ProfileImage string    `json:"profileImage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CurrentUser fetches the profile of the stored token's owner.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	env, err := c.do(ctx, http.MethodGet, "/auth/user", nil, nil)
	if err != nil {
		return nil, err
	}
	if len(env.User) == 0 || string(env.User) == "null" {
		return nil, &Error{StatusCode: http.StatusOK, Message: "response has no user"}
	}
	var u User
	if err := json.Unmarshal(env.User, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}
