package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const (
	defaultPage  = 1
	defaultLimit = 20
)

// FollowUser is one entry of a followers or following list.
type FollowUser struct {
	ID           string `json:"id"`
	UserName     string `json:"userName"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	ProfileImage string `json:"profileImage,omitempty"`
	IsFollowing  bool   `json:"isFollowing,omitempty"`
}

// Pagination describes one page of a list.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// HasMore reports whether pages follow this one.
func (p Pagination) HasMore() bool {
	return p.Page < p.TotalPages
}

// FollowPage is one page of followers or followed users.
type FollowPage struct {
	Users      []FollowUser
	Pagination Pagination
}

// Follow makes the current user follow userID.
func (c *Client) Follow(ctx context.Context, userID string) error {
	_, err := c.do(ctx, http.MethodPost, userPath(userID, "follow"), nil, struct{}{})
	return err
}

// Unfollow stops following userID.
func (c *Client) Unfollow(ctx context.Context, userID string) error {
	_, err := c.do(ctx, http.MethodDelete, userPath(userID, "follow"), nil, struct{}{})
	return err
}

// IsFollowing reports whether the current user follows userID.
func (c *Client) IsFollowing(ctx context.Context, userID string) (bool, error) {
	env, err := c.do(ctx, http.MethodGet, userPath(userID, "follow-status"), nil, nil)
	if err != nil {
		return false, err
	}
	raw, err := env.payload("follow status")
	if err != nil {
		return false, err
	}
	var data struct {
		IsFollowing bool `json:"isFollowing"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return false, fmt.Errorf("decode follow status: %w", err)
	}
	return data.IsFollowing, nil
}

// Followers lists who follows userID. page and limit default to 1 and 20.
func (c *Client) Followers(ctx context.Context, userID string, page, limit int) (*FollowPage, error) {
	return c.followList(ctx, userID, "followers", page, limit)
}

// Following lists who userID follows.
func (c *Client) Following(ctx context.Context, userID string, page, limit int) (*FollowPage, error) {
	return c.followList(ctx, userID, "following", page, limit)
}

func (c *Client) followList(ctx context.Context, userID, field string, page, limit int) (*FollowPage, error) {
	if page <= 0 {
		page = defaultPage
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	env, err := c.do(ctx, http.MethodGet, userPath(userID, field), q, nil)
	if err != nil {
		return nil, err
	}

	raw, err := env.payload(field)
	if err != nil {
		return nil, err
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", field, err)
	}
	out := &FollowPage{}
	if raw, ok := data[field]; ok {
		if err := json.Unmarshal(raw, &out.Users); err != nil {
			return nil, fmt.Errorf("decode %s: %w", field, err)
		}
	}
	if raw, ok := data["pagination"]; ok {
		if err := json.Unmarshal(raw, &out.Pagination); err != nil {
			return nil, fmt.Errorf("decode pagination: %w", err)
		}
	}
	return out, nil
}

// RemoveFollower makes followerID stop following userID.
func (c *Client) RemoveFollower(ctx context.Context, userID, followerID string) error {
	body := struct {
		FollowerToRemoveID string `json:"followerToRemoveId"`
	}{followerID}
	_, err := c.do(ctx, http.MethodDelete, userPath(userID, "follower"), nil, body)
	return err
}

func userPath(userID, rest string) string {
	return "/users/" + url.PathEscape(userID) + "/" + rest
}
