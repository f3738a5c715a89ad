package device

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/pquerna/otp/totp"

	"github.com/pingidentity/davincikit/capability"
	"github.com/pingidentity/davincikit/internal/httpx"
)

// Config is the frozen-at-construction device-client configuration.
type Config struct {
	BaseURL    string // e.g. "https://am.example.com"
	Realm      string
	CookieName string // the AM session-cookie name, e.g. "iPlanetDirectoryPro"
	Retry      httpx.RetryConfig
}

// Client is the device-client: REST CRUD over
// /json/realms/{realm}/users/{userId}/devices/*, with the resolved
// userId cached for the client's lifetime.
type Client struct {
	cfg      Config
	http     capability.HTTP
	ssoToken string
	apiKey   string

	mu     sync.Mutex
	userID string
	haveID bool
}

// New builds a device Client.
func New(cfg Config, httpCap capability.HTTP) *Client {
	return &Client{cfg: cfg, http: httpCap}
}

// SetToken sets the SSO session token used to authenticate device
// calls, invalidating the cached userId.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ssoToken = token
	c.haveID = false
	c.userID = ""
}

// SetAPIKey sets an API-key credential, invalidating the cached userId
// the same way SetToken does.
func (c *Client) SetAPIKey(apiKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = apiKey
	c.haveID = false
	c.userID = ""
}

func (c *Client) authHeaders(req *capability.Request) {
	if c.ssoToken != "" && c.cfg.CookieName != "" {
		req.SetHeader(c.cfg.CookieName, c.ssoToken)
	}
	if c.apiKey != "" {
		req.SetHeader("Authorization", "ApiKey "+c.apiKey)
	}
	req.SetHeader("Accept-API-Version", "resource=1.0")
}

// sessionInfoWire is the subset of AM's sessioninfo response this
// client needs.
type sessionInfoWire struct {
	UID string `json:"uid"`
}

// resolveUserID performs the session-info request once per client
// lifetime (or after SetToken/SetAPIKey invalidates the cache) and
// memoizes the result.
func (c *Client) resolveUserID(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.haveID {
		id := c.userID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	if c.ssoToken == "" && c.apiKey == "" {
		return "", missingConfiguration("no session token or API key configured")
	}

	req := capability.Request{Method: http.MethodPost, URL: c.cfg.BaseURL + "/json/realms/" + c.cfg.Realm + "/sessions?_action=getSessionInfo"}
	c.authHeaders(&req)

	resp, err := httpx.Send(ctx, c.http, req, c.cfg.Retry)
	if err != nil {
		return "", networkError(err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", invalidToken()
	}
	if resp.StatusCode >= 400 {
		return "", requestFailed(resp.StatusCode, string(resp.Body))
	}

	var info sessionInfoWire
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return "", decodingFailed(err)
	}
	if info.UID == "" {
		return "", invalidResponse("sessioninfo response carried no uid")
	}

	c.mu.Lock()
	c.userID = info.UID
	c.haveID = true
	c.mu.Unlock()
	return info.UID, nil
}

func (c *Client) devicesURL(userID string, kind Kind, suffix string) (string, error) {
	if c.cfg.BaseURL == "" || c.cfg.Realm == "" {
		return "", invalidURL("baseURL and realm must both be configured")
	}
	path := fmt.Sprintf("/json/realms/%s/users/%s/devices/%s", c.cfg.Realm, url.PathEscape(userID), string(kind))
	if suffix != "" {
		path += "/" + suffix
	}
	return c.cfg.BaseURL + path, nil
}

func (c *Client) do(ctx context.Context, method, targetURL string, body any, out any) error {
	req := capability.Request{Method: method, URL: targetURL}
	c.authHeaders(&req)

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return encodingFailed(err)
		}
		req.Body = data
		req.SetHeader("Content-Type", "application/json")
	}

	resp, err := httpx.Send(ctx, c.http, req, c.cfg.Retry)
	if err != nil {
		return networkError(err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return invalidToken()
	}
	if resp.StatusCode >= 400 {
		return requestFailed(resp.StatusCode, string(resp.Body))
	}
	if method == http.MethodDelete {
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			return invalidResponse(fmt.Sprintf("unexpected delete status %d", resp.StatusCode))
		}
		return nil
	}
	if out != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return decodingFailed(err)
		}
	}
	return nil
}

// List returns every device of the given kind belonging to the current
// user.
func (c *Client) List(ctx context.Context, kind Kind) ([]json.RawMessage, error) {
	userID, err := c.resolveUserID(ctx)
	if err != nil {
		return nil, err
	}
	listURL, err := c.devicesURL(userID, kind, "")
	if err != nil {
		return nil, err
	}
	listURL += "?_queryFilter=true"

	var wire struct {
		Result []json.RawMessage `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, listURL, nil, &wire); err != nil {
		return nil, err
	}
	return wire.Result, nil
}

// Get returns one device by its resource id.
func (c *Client) Get(ctx context.Context, kind Kind, id string, out any) error {
	userID, err := c.resolveUserID(ctx)
	if err != nil {
		return err
	}
	getURL, err := c.devicesURL(userID, kind, id)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodGet, getURL, nil, out)
}

// Update replaces a device record in place.
func (c *Client) Update(ctx context.Context, kind Kind, id string, body any) error {
	userID, err := c.resolveUserID(ctx)
	if err != nil {
		return err
	}
	putURL, err := c.devicesURL(userID, kind, id)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, putURL, body, nil)
}

// Delete removes a device record.
func (c *Client) Delete(ctx context.Context, kind Kind, id string) error {
	userID, err := c.resolveUserID(ctx)
	if err != nil {
		return err
	}
	delURL, err := c.devicesURL(userID, kind, id)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, delURL, nil, nil)
}

// GetProfile returns the resolved device-registration profile record.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	userID, err := c.resolveUserID(ctx)
	if err != nil {
		return nil, err
	}
	profileURL, err := c.devicesURL(userID, KindProfile, "")
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := c.do(ctx, http.MethodGet, profileURL, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GenerateOATHProvisioning builds a new TOTP secret and its otpauth://
// provisioning URI for binding a software OATH token, without performing the bind POST
// itself — callers submit the resulting secret through Update once the
// user confirms enrollment.
func (c *Client) GenerateOATHProvisioning(issuer, accountName string) (*OATHProvisioning, error) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: issuer, AccountName: accountName})
	if err != nil {
		return nil, encodingFailed(err)
	}
	return &OATHProvisioning{Secret: key.Secret(), URI: key.URL()}, nil
}
