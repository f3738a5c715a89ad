package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pingidentity/davincikit/capability"
)

// Client is the OIDC user facade: token()/userinfo()/
// logout()/revoke(), refreshing transparently on read when the stored
// token is within the expiry skew window.
type Client struct {
	cfg       Config
	discovery *discoveryCache
	http      capability.HTTP
	tokens    capability.Storage[Token]
	clock     capability.Clock
	cookies   capability.Storage[[]*http.Cookie]
}

// NewClient builds a Client with its own discovery cache for
// cfg.DiscoveryURL; it does not share the cache of the AuthorizeModule
// it is typically paired with.
func NewClient(cfg Config, httpCap capability.HTTP, tokens capability.Storage[Token], clock capability.Clock, cookies capability.Storage[[]*http.Cookie]) *Client {
	return &Client{
		cfg:       cfg,
		discovery: newDiscoveryCache(httpCap, cfg.DiscoveryURL),
		http:      httpCap,
		tokens:    tokens,
		clock:     clock,
		cookies:   cookies,
	}
}

// Token returns the current token, refreshing first if it is within
// refreshSkewSeconds of expiry. On
// refresh failure the stored token is wiped and the error returned.
func (c *Client) Token(ctx context.Context) (Token, error) {
	tok, ok, err := c.tokens.Get(ctx)
	if err != nil {
		return Token{}, err
	}
	if !ok {
		return Token{}, tokenErrorOf("no token stored")
	}
	if c.clock.Now() < tok.ExpiresAt-refreshSkewSeconds {
		return tok, nil
	}
	return c.refresh(ctx, tok)
}

func (c *Client) refresh(ctx context.Context, current Token) (Token, error) {
	if current.RefreshToken == "" {
		_ = c.tokens.Delete(ctx)
		return Token{}, tokenErrorOf("token expired and no refresh_token available")
	}

	doc, err := c.discovery.get(ctx)
	if err != nil {
		_ = c.tokens.Delete(ctx)
		return Token{}, invalidDiscoveryOf(err.Error())
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", current.RefreshToken)
	form.Set("client_id", c.cfg.ClientID)

	req := capability.Request{Method: http.MethodPost, URL: doc.TokenEndpoint, Body: []byte(form.Encode())}
	req.SetHeader("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Send(ctx, req)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = c.tokens.Delete(ctx)
		if err != nil {
			return Token{}, tokenErrorOf(err.Error())
		}
		return Token{}, apiErrorOf("", resp.Body, resp.StatusCode)
	}

	var wire tokenResponseWire
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		_ = c.tokens.Delete(ctx)
		return Token{}, tokenErrorOf("invalid refresh response: " + err.Error())
	}
	if wire.RefreshToken == "" {
		wire.RefreshToken = current.RefreshToken
	}
	refreshed := wire.toToken(c.clock.Now())
	if err := c.tokens.Set(ctx, refreshed); err != nil {
		return Token{}, tokenErrorOf("persisting refreshed token: " + err.Error())
	}
	return refreshed, nil
}

// UserInfo is the decoded subset of claims an embedding application
// typically needs from the userinfo endpoint and the id_token.
type UserInfo struct {
	Subject       string `json:"sub"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	RawClaims     map[string]any
}

// Userinfo calls the discovery document's userinfo_endpoint with the
// current access token.
func (c *Client) Userinfo(ctx context.Context) (UserInfo, error) {
	tok, err := c.Token(ctx)
	if err != nil {
		return UserInfo{}, err
	}
	doc, err := c.discovery.get(ctx)
	if err != nil {
		return UserInfo{}, invalidDiscoveryOf(err.Error())
	}

	req := capability.Request{Method: http.MethodGet, URL: doc.UserinfoEndpoint}
	req.SetHeader("Authorization", "Bearer "+tok.AccessToken)
	resp, err := c.http.Send(ctx, req)
	if err != nil {
		return UserInfo{}, tokenErrorOf(err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return UserInfo{}, apiErrorOf("", resp.Body, resp.StatusCode)
	}

	var info UserInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return UserInfo{}, tokenErrorOf("invalid userinfo response: " + err.Error())
	}
	_ = json.Unmarshal(resp.Body, &info.RawClaims)
	return info, nil
}

// IDTokenClaims unverified-decodes the stored id_token's claims for
// display purposes.
func (c *Client) IDTokenClaims(ctx context.Context) (jwt.MapClaims, error) {
	tok, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	if tok.IDToken == "" {
		return nil, tokenErrorOf("no id_token present")
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tok.IDToken, claims); err != nil {
		return nil, tokenErrorOf("could not decode id_token: " + err.Error())
	}
	return claims, nil
}

// Revoke posts the refresh (or access) token to the revocation
// endpoint and always clears the local token on success.
// Session cookies are retained; callers must request separate cookie
// clearing.
func (c *Client) Revoke(ctx context.Context) error {
	tok, ok, err := c.tokens.Get(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	doc, err := c.discovery.get(ctx)
	if err != nil {
		return invalidDiscoveryOf(err.Error())
	}

	value := tok.RefreshToken
	if value == "" {
		value = tok.AccessToken
	}
	form := url.Values{}
	form.Set("token", value)
	form.Set("client_id", c.cfg.ClientID)

	req := capability.Request{Method: http.MethodPost, URL: doc.RevocationEndpoint, Body: []byte(form.Encode())}
	req.SetHeader("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Send(ctx, req)
	if err != nil {
		return tokenErrorOf(err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiErrorOf("", resp.Body, resp.StatusCode)
	}
	return c.tokens.Delete(ctx)
}

// EndSession performs the OIDC RP-initiated logout GET with the stored
// id_token and any persisted session cookies attached.
func (c *Client) EndSession(ctx context.Context) error {
	tok, ok, err := c.tokens.Get(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	doc, err := c.discovery.get(ctx)
	if err != nil {
		return invalidDiscoveryOf(err.Error())
	}
	if doc.EndSessionEndpoint == "" {
		return nil
	}

	q := url.Values{}
	q.Set("id_token_hint", tok.IDToken)
	q.Set("client_id", c.cfg.ClientID)

	req := capability.Request{Method: http.MethodGet, URL: doc.EndSessionEndpoint + "?" + q.Encode()}
	if c.cookies != nil {
		if cookies, ok, _ := c.cookies.Get(ctx); ok {
			parts := make([]string, 0, len(cookies))
			for _, ck := range cookies {
				parts = append(parts, ck.String())
			}
			if len(parts) > 0 {
				req.SetHeader("Cookie", strings.Join(parts, "; "))
			}
		}
	}

	resp, err := c.http.Send(ctx, req)
	if err != nil {
		return tokenErrorOf(err.Error())
	}
	if resp.StatusCode >= 400 {
		return apiErrorOf("", resp.Body, resp.StatusCode)
	}
	return nil
}

// Logout revokes the token, ends the server session, and wipes local
// token state regardless of either call's outcome.
func (c *Client) Logout(ctx context.Context) error {
	revokeErr := c.Revoke(ctx)
	endErr := c.EndSession(ctx)
	_ = c.tokens.Delete(ctx)
	if revokeErr != nil {
		return revokeErr
	}
	return endErr
}
