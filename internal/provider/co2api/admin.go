package co2api

import (
	"context"
	"net/http"
	"strconv"
)

const adminPrefix = "/api/admin"

// ListTransports returns the transport catalogue.
func (c *Client) ListTransports(ctx context.Context, token string) ([]Transport, error) {
	var out []Transport
	if err := c.do(ctx, "list_transports", http.MethodGet, adminPrefix+"/transports", token, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Transport{}
	}
	return out, nil
}

// CreateTransport adds a catalogue entry.
func (c *Client) CreateTransport(ctx context.Context, token string, t Transport) (*Transport, error) {
	var out Transport
	if err := c.do(ctx, "create_transport", http.MethodPost, adminPrefix+"/transports", token, t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTransport replaces a catalogue entry.
func (c *Client) UpdateTransport(ctx context.Context, token string, id int64, t Transport) (*Transport, error) {
	var out Transport
	if err := c.do(ctx, "update_transport", http.MethodPut, transportPath(id), token, t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTransport removes a catalogue entry.
func (c *Client) DeleteTransport(ctx context.Context, token string, id int64) error {
	return c.do(ctx, "delete_transport", http.MethodDelete, transportPath(id), token, nil, nil)
}

// ListUsers returns every account.
func (c *Client) ListUsers(ctx context.Context, token string) ([]User, error) {
	var out []User
	if err := c.do(ctx, "list_users", http.MethodGet, adminPrefix+"/users", token, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []User{}
	}
	return out, nil
}

// CreateUser creates an account.
func (c *Client) CreateUser(ctx context.Context, token string, in AdminUserInput) (*User, error) {
	var out User
	if err := c.do(ctx, "create_user", http.MethodPost, adminPrefix+"/users", token, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser changes an account's name, email or role.
func (c *Client) UpdateUser(ctx context.Context, token string, id int64, in AdminUserInput) (*User, error) {
	in.Roles = in.Role
	var out User
	if err := c.do(ctx, "update_user", http.MethodPut, userPath(id), token, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, token string, id int64) error {
	return c.do(ctx, "delete_user", http.MethodDelete, userPath(id), token, nil, nil)
}

func transportPath(id int64) string {
	return adminPrefix + "/transports/" + strconv.FormatInt(id, 10)
}

func userPath(id int64) string {
	return adminPrefix + "/users/" + strconv.FormatInt(id, 10)
}
