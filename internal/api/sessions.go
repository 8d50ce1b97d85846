package api

import (
	"context"
	"net/http"

	"diffstream/internal/session"
)

// ListSessions returns all sessions owned by the current user.
func (c *Client) ListSessions(ctx context.Context) ([]session.Session, error) {
	u, err := c.endpoint("sessions")
	if err != nil {
		return nil, err
	}
	var sessions []session.Session
	if err := c.do(ctx, http.MethodGet, u, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession fetches one session with its test cases.
func (c *Client) GetSession(ctx context.Context, id string) (*session.Session, error) {
	u, err := c.endpoint("sessions", id)
	if err != nil {
		return nil, err
	}
	var sess session.Session
	if err := c.do(ctx, http.MethodGet, u, nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// createSessionRequest is the create payload: code slots without test cases.
type createSessionRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	UserCode    *session.CodeFile `json:"user_code,omitempty"`
	StdCode     *session.CodeFile `json:"std_code,omitempty"`
	GenCode     *session.CodeFile `json:"gen_code,omitempty"`
}

// CreateSession creates a session and returns the stored document.
func (c *Client) CreateSession(ctx context.Context, sess *session.Session) (*session.Session, error) {
	u, err := c.endpoint("sessions")
	if err != nil {
		return nil, err
	}
	req := createSessionRequest{
		Title:       sess.Title,
		Description: sess.Description,
		UserCode:    sess.UserCode,
		StdCode:     sess.StdCode,
		GenCode:     sess.GenCode,
	}
	var created session.Session
	if err := c.do(ctx, http.MethodPost, u, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateSession persists the editable fields of a session. Test cases are
// server-owned job output and are never written back.
func (c *Client) UpdateSession(ctx context.Context, id string, sess *session.Session) error {
	u, err := c.endpoint("sessions", id)
	if err != nil {
		return err
	}
	req := createSessionRequest{
		Title:       sess.Title,
		Description: sess.Description,
		UserCode:    sess.UserCode,
		StdCode:     sess.StdCode,
		GenCode:     sess.GenCode,
	}
	return c.do(ctx, http.MethodPut, u, req, nil)
}

// DeleteSession removes a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	u, err := c.endpoint("sessions", id)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, u, nil, nil)
}
