// Package client is a Go client for the BiteScout access API. It wraps the
// REST endpoints, keeps a reconciled cache of the caller's access records and
// notifications, and follows the realtime channel to keep that cache fresh.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultTimeout = 15 * time.Second

// Client performs authenticated REST calls. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken sets the bearer token used for authenticated routes.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// New builds a Client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("client: base url must be http or https, got %q", baseURL)
	}
	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, email, password string) (User, error) {
	var out User
	body := map[string]string{"username": username, "email": email, "password": password}
	err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, body, &out)
	return out, err
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, username, password string) (User, error) {
	var out struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &out); err != nil {
		return User{}, err
	}
	c.SetToken(out.Token)
	return out.User, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var out User
	err := c.do(ctx, http.MethodGet, "/api/me", nil, nil, &out)
	return out, err
}

// PublicConfig returns the unauthenticated site configuration.
func (c *Client) PublicConfig(ctx context.Context) (PublicConfig, error) {
	var out PublicConfig
	err := c.do(ctx, http.MethodGet, "/api/config", nil, nil, &out)
	return out, err
}

// CreateRestaurant registers a restaurant owned by the caller.
func (c *Client) CreateRestaurant(ctx context.Context, name string) (Restaurant, error) {
	var out Restaurant
	err := c.do(ctx, http.MethodPost, "/api/restaurants", nil, map[string]string{"name": name}, &out)
	return out, err
}

// ListRestaurants searches restaurants by name keyword.
func (c *Client) ListRestaurants(ctx context.Context, keyword string) ([]Restaurant, error) {
	query := url.Values{}
	if keyword != "" {
		query.Set("keyword", keyword)
	}
	var out struct {
		Restaurants []Restaurant `json:"restaurants"`
	}
	err := c.do(ctx, http.MethodGet, "/api/restaurants", query, nil, &out)
	return out.Restaurants, err
}

// RequestAccess files a pending access request for userID on restaurantID.
// An empty role lets the server choose its default.
func (c *Client) RequestAccess(ctx context.Context, restaurantID, userID string, role Role) (AccessRecord, error) {
	body := map[string]string{"userId": userID}
	if role != "" {
		body["role"] = string(role)
	}
	var out struct {
		RestaurantAccess AccessRecord `json:"restaurantAccess"`
	}
	err := c.do(ctx, http.MethodPost, "/restaurant-access/"+url.PathEscape(restaurantID), nil, body, &out)
	return out.RestaurantAccess, err
}

// ListAccessByUser returns the access records requested by userID.
func (c *Client) ListAccessByUser(ctx context.Context, userID string) ([]AccessRecord, error) {
	return c.listAccess(ctx, "/restaurant-access/user/"+url.PathEscape(userID))
}

// ListAccessByOwner returns the access records on restaurants owned by ownerID.
func (c *Client) ListAccessByOwner(ctx context.Context, ownerID string) ([]AccessRecord, error) {
	return c.listAccess(ctx, "/restaurant-access/owner/"+url.PathEscape(ownerID))
}

func (c *Client) listAccess(ctx context.Context, path string) ([]AccessRecord, error) {
	var out struct {
		RestaurantAccesses []AccessRecord `json:"restaurantAccesses"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, nil, &out)
	return out.RestaurantAccesses, err
}

// GrantAccess approves a pending or suspended record.
func (c *Client) GrantAccess(ctx context.Context, accessID string) (AccessRecord, error) {
	return c.transition(ctx, accessID, "grant", nil)
}

// SuspendAccess suspends an approved record.
func (c *Client) SuspendAccess(ctx context.Context, accessID string) (AccessRecord, error) {
	return c.transition(ctx, accessID, "suspend", nil)
}

// DeleteAccess retires a record.
func (c *Client) DeleteAccess(ctx context.Context, accessID string) (AccessRecord, error) {
	return c.transition(ctx, accessID, "delete", nil)
}

// UpdateRole changes the role on an approved record.
func (c *Client) UpdateRole(ctx context.Context, accessID string, role Role) (AccessRecord, error) {
	return c.transition(ctx, accessID, "update", map[string]string{"role": string(role)})
}

func (c *Client) transition(ctx context.Context, accessID, action string, body any) (AccessRecord, error) {
	var out struct {
		AccessRecord AccessRecord `json:"accessRecord"`
	}
	path := "/restaurant-access/access/" + url.PathEscape(accessID) + "/" + action
	err := c.do(ctx, http.MethodPatch, path, nil, body, &out)
	return out.AccessRecord, err
}

// NotificationQuery filters ListNotifications.
type NotificationQuery struct {
	Limit      int
	UnreadOnly bool
}

// ListNotifications returns userID's notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context, userID string, q NotificationQuery) ([]Notification, error) {
	query := url.Values{}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.UnreadOnly {
		query.Set("unread", "true")
	}
	out := make([]Notification, 0)
	err := c.do(ctx, http.MethodGet, "/notifications/"+url.PathEscape(userID), query, nil, &out)
	return out, err
}

// UnreadCount returns how many of userID's notifications are unread.
func (c *Client) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	err := c.do(ctx, http.MethodGet, "/notifications/"+url.PathEscape(userID)+"/unread-count", nil, nil, &out)
	return out.Count, err
}

// MarkNotificationRead marks one notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, userID, notificationID string) (Notification, error) {
	var out Notification
	path := "/notifications/" + url.PathEscape(userID) + "/" + url.PathEscape(notificationID) + "/read"
	err := c.do(ctx, http.MethodPatch, path, nil, nil, &out)
	return out, err
}

// MarkAllNotificationsRead marks every unread notification of userID and returns how many changed.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	err := c.do(ctx, http.MethodPatch, "/notifications/"+url.PathEscape(userID)+"/read-all", nil, nil, &out)
	return out.Count, err
}

// websocketURL returns the realtime endpoint with the scheme switched to ws/wss.
func (c *Client) websocketURL() string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp.StatusCode, payload)
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err = json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
