package co2api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Login exchanges credentials for a backend token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &Error{Op: "login", StatusCode: http.StatusOK, Message: "backend returned no token", Err: ErrUnavailable}
	}
	return &out, nil
}

// Signup creates a new account. The backend answers with a plain message.
func (c *Client) Signup(ctx context.Context, req SignupRequest) error {
	return c.do(ctx, "signup", http.MethodPost, "/auth/signup", "", req, nil)
}

// CurrentUser returns the account the token belongs to.
func (c *Client) CurrentUser(ctx context.Context, token string) (*User, error) {
	var out User
	if err := c.do(ctx, "current_user", http.MethodGet, "/users/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCurrentUser changes the caller's name or password.
func (c *Client) UpdateCurrentUser(ctx context.Context, token string, update ProfileUpdate) (*User, error) {
	var out User
	if err := c.do(ctx, "update_current_user", http.MethodPut, "/users/me", token, update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitSimulation stores a simulation for the token's user.
func (c *Client) SubmitSimulation(ctx context.Context, token string, sim Simulation) error {
	return c.do(ctx, "submit_simulation", http.MethodPost, "/simulations", token, sim, nil)
}

// ListSimulations returns the simulations stored for userID.
func (c *Client) ListSimulations(ctx context.Context, token string, userID int64) ([]Simulation, error) {
	var out []Simulation
	path := "/simulations/" + strconv.FormatInt(userID, 10)
	if err := c.do(ctx, "list_simulations", http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Simulation{}
	}
	return out, nil
}

// SaveSearch records a search and returns it with the ID the backend assigned.
func (c *Client) SaveSearch(ctx context.Context, token string, search SavedSearch) (*SavedSearch, error) {
	var out SavedSearch
	if err := c.do(ctx, "save_search", http.MethodPost, "/transports/search/save", token, search, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, &Error{Op: "save_search", StatusCode: http.StatusOK, Message: "backend returned no trip id", Err: ErrUnavailable}
	}
	return &out, nil
}

// AddToHistory links a saved trip to the user's history.
func (c *Client) AddToHistory(ctx context.Context, token string, tripID int64) error {
	q := url.Values{}
	q.Set("trajetId", strconv.FormatInt(tripID, 10))
	return c.do(ctx, "add_history", http.MethodPost, "/history?"+q.Encode(), token, nil, nil)
}

// ListHistory returns the user's history, newest entries as the backend orders them.
func (c *Client) ListHistory(ctx context.Context, token string) ([]HistoryEntry, error) {
	var out []HistoryEntry
	if err := c.do(ctx, "list_history", http.MethodGet, "/history", token, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []HistoryEntry{}
	}
	return out, nil
}

// DeleteHistory removes one history entry owned by the user.
func (c *Client) DeleteHistory(ctx context.Context, token string, id int64) error {
	return c.do(ctx, "delete_history", http.MethodDelete, "/history/"+strconv.FormatInt(id, 10), token, nil, nil)
}
