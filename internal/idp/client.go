// Package idp wraps the identity provider's management API. It lists
// the users of the application's database connection, edits their role
// assignments and creates invited accounts.
package idp

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const mgmtTimeout = 15 * time.Second

// Config holds the machine-to-machine credentials for the management
// API plus the database connection the application's users live in.
type Config struct {
	Domain       string
	ClientID     string
	ClientSecret string
	Connection   string
	// AppClientID is the regular application's client id, used when
	// triggering the password setup email for invited users.
	AppClientID string
}

// Configured reports whether the management API can be used.
func (c Config) Configured() bool {
	return c.Domain != "" && c.ClientID != "" && c.ClientSecret != "" && c.Connection != ""
}

// User is a management API user record.
type User struct {
	ID            string   `json:"user_id"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	EmailVerified bool     `json:"email_verified"`
	LastLogin     string   `json:"last_login"`
	LoginsCount   int      `json:"logins_count"`
	Invited       bool     `json:"-"`
	Roles         []string `json:"-"`
}

// UnmarshalJSON flattens the provider's app_metadata envelope into the
// Invited and Roles fields.
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	aux := struct {
		*alias
		AppMetadata struct {
			Roles   []string `json:"roles"`
			Invited bool     `json:"invited"`
		} `json:"app_metadata"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	u.Roles = aux.AppMetadata.Roles
	u.Invited = aux.AppMetadata.Invited
	return nil
}

// HasRole reports whether role is assigned to the user.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Client talks to the management API using client-credentials tokens.
// The underlying token source caches tokens until they expire.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client for the configured tenant.
func NewClient(cfg Config) *Client {
	tokenCfg := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://%s/oauth/token", cfg.Domain),
		AuthStyle:    oauth2.AuthStyleInParams,
		EndpointParams: url.Values{
			"audience": {fmt.Sprintf("https://%s/api/v2/", cfg.Domain)},
		},
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: mgmtTimeout})
	return &Client{
		cfg:        cfg,
		baseURL:    "https://" + cfg.Domain,
		httpClient: tokenCfg.Client(ctx),
	}
}

// Connection returns the database connection users are managed in.
func (c *Client) Connection() string {
	return c.cfg.Connection
}

// DashboardURL points at the tenant's user list in the provider's own
// dashboard, for tasks this client does not cover such as deletion.
func (c *Client) DashboardURL() string {
	parts := strings.Split(c.cfg.Domain, ".")
	tenant := ""
	if len(parts) > 0 {
		tenant = parts[0]
	}
	region := "us"
	if len(parts) == 4 {
		region = parts[1]
	}
	return fmt.Sprintf("https://manage.auth0.com/dashboard/%s/%s/users", region, tenant)
}

type listResponse struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
}

// ListUsers fetches the users belonging to the configured connection.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v2/users", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("per_page", "100")
	q.Set("page", "0")
	q.Set("include_totals", "true")
	q.Set("fields", "email,user_id,name,last_login,logins_count,email_verified,app_metadata,identities")
	q.Set("include_fields", "true")
	q.Set("search_engine", "v3")
	q.Set("q", fmt.Sprintf("identities.connection:%q", c.cfg.Connection))
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("list users failed with status %d", resp.StatusCode)
	}

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// UpdateUserRoles replaces the user's role assignments. Passing an
// empty slice clears all roles.
func (c *Client) UpdateUserRoles(ctx context.Context, userID string, roles []string) error {
	if roles == nil {
		roles = []string{}
	}
	payload := map[string]any{
		"app_metadata": map[string]any{"roles": roles},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	target := fmt.Sprintf("%s/api/v2/users/%s", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("update roles failed with status %d", resp.StatusCode)
	}
	return nil
}

// InviteUser creates an account with a random password, marks it as
// invited and triggers the password setup email so the user can pick
// their own credentials.
func (c *Client) InviteUser(ctx context.Context, email string, roles []string) error {
	appMetadata := map[string]any{"invited": true}
	if len(roles) > 0 {
		appMetadata["roles"] = roles
	}
	payload := map[string]any{
		"email":          email,
		"connection":     c.cfg.Connection,
		"password":       randomPassword(),
		"email_verified": false,
		"verify_email":   false,
		"app_metadata":   appMetadata,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/users", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("user %s already exists", email)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("create user failed with status %d", resp.StatusCode)
	}

	if c.cfg.AppClientID == "" {
		return nil
	}
	return c.sendPasswordEmail(ctx, email)
}

func (c *Client) sendPasswordEmail(ctx context.Context, email string) error {
	payload := map[string]string{
		"client_id":  c.cfg.AppClientID,
		"email":      email,
		"connection": c.cfg.Connection,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/dbconnections/change_password", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("password email failed with status %d", resp.StatusCode)
	}
	return nil
}

func randomPassword() string {
	b := make([]byte, 48)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
