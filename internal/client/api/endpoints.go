package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type User struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type AuthResponse struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at"`
	User      *User      `json:"user"`
}

type Thread struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	AuthorID  uint      `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID        uint      `json:"id"`
	ThreadID  uint      `json:"thread_id"`
	AuthorID  uint      `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Client) Register(ctx context.Context, username, email, password string) (*AuthResponse, error) {
	in := map[string]string{"username": username, "email": email, "password": password}
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	in := map[string]string{"username": username, "password": password}
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListThreads(ctx context.Context) ([]Thread, error) {
	var out []Thread
	if err := c.do(ctx, http.MethodGet, "/api/threads", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateThread(ctx context.Context, title string) (*Thread, error) {
	var out Thread
	if err := c.do(ctx, http.MethodPost, "/api/threads", map[string]string{"title": title}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListMessages(ctx context.Context, threadID uint) ([]Message, error) {
	var out []Message
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/threads/%d/messages", threadID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateMessage(ctx context.Context, threadID uint, content string) (*Message, error) {
	var out Message
	path := fmt.Sprintf("/api/threads/%d/messages", threadID)
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"content": content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateMessage(ctx context.Context, id uint, content string) (*Message, error) {
	var out Message
	path := fmt.Sprintf("/api/messages/%d", id)
	if err := c.do(ctx, http.MethodPatch, path, map[string]string{"content": content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteMessage(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/messages/%d", id), nil, nil)
}
