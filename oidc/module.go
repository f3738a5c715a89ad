package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/pingidentity/davincikit/capability"
	"github.com/pingidentity/davincikit/node"
)

// Config is the typed, frozen-at-construction configuration for the
// AuthorizeModule.
type Config struct {
	ClientID     string
	Scopes       []string
	RedirectURI  string
	DiscoveryURL string

	ACRValues string
	Display   string
	LoginHint string
	Nonce     string
	Prompt    string
	UILocales string
}

// AuthorizeModule is itself a workflow module: its `next` hook
// rewrites the very first outgoing request of a flow into the full
// PKCE authorize call, and its `success` hook
// exchanges the authorization code the flow ultimately produces for a
// Token.
type AuthorizeModule struct {
	cfg       Config
	discovery *discoveryCache
	http      capability.HTTP
	tokens    capability.Storage[Token]
	clock     capability.Clock

	// verifier is the PKCE code verifier generated for the in-flight
	// authorize call. One AuthorizeModule drives exactly one flow
	// instance, so a single field is sufficient.
	verifier string
}

// NewAuthorizeModule builds an AuthorizeModule.
func NewAuthorizeModule(cfg Config, http capability.HTTP, tokens capability.Storage[Token], clock capability.Clock) *AuthorizeModule {
	return &AuthorizeModule{
		cfg:       cfg,
		discovery: newDiscoveryCache(http, cfg.DiscoveryURL),
		http:      http,
		tokens:    tokens,
		clock:     clock,
	}
}

func (m *AuthorizeModule) ID() string { return "oidc.authorize" }

// OnNext rewrites only the flow's very first request (current == nil);
// every subsequent collector submission passes through untouched.
func (m *AuthorizeModule) OnNext(ctx context.Context, current node.Node, req *capability.Request) error {
	if current != nil {
		return nil
	}

	doc, err := m.discovery.get(ctx)
	if err != nil {
		return invalidDiscoveryOf(err.Error())
	}
	if doc.AuthorizationEndpoint == "" {
		return invalidDiscoveryOf("discovery document missing authorization_endpoint")
	}

	m.verifier = oauth2.GenerateVerifier()

	conf := &oauth2.Config{
		ClientID:    m.cfg.ClientID,
		RedirectURL: m.cfg.RedirectURI,
		Scopes:      m.cfg.Scopes,
		Endpoint:    oauth2.Endpoint{AuthURL: doc.AuthorizationEndpoint},
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(m.verifier),
		oauth2.SetAuthURLParam("response_mode", "pi.flow"),
	}
	if m.cfg.ACRValues != "" {
		opts = append(opts, oauth2.SetAuthURLParam("acr_values", m.cfg.ACRValues))
	}
	if m.cfg.Display != "" {
		opts = append(opts, oauth2.SetAuthURLParam("display", m.cfg.Display))
	}
	if m.cfg.LoginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", m.cfg.LoginHint))
	}
	if m.cfg.Nonce != "" {
		opts = append(opts, oauth2.SetAuthURLParam("nonce", m.cfg.Nonce))
	}
	if m.cfg.Prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", m.cfg.Prompt))
	}
	if m.cfg.UILocales != "" {
		opts = append(opts, oauth2.SetAuthURLParam("ui_locales", m.cfg.UILocales))
	}

	req.Method = http.MethodGet
	req.URL = conf.AuthCodeURL("", opts...)
	return nil
}

// successWire is the terminal flow body's authorization-code shape;
// DaVinci nests it under authorizeResponse, Journey emits it flat.
type successWire struct {
	Code              string `json:"code"`
	AuthorizeResponse struct {
		Code string `json:"code"`
	} `json:"authorizeResponse"`
}

// OnSuccess exchanges the code embedded in the terminal flow body for
// a Token and persists it.
func (m *AuthorizeModule) OnSuccess(ctx context.Context, success *node.SuccessNode) (*node.SuccessNode, error) {
	var wire successWire
	if err := json.Unmarshal(success.Input, &wire); err != nil {
		return nil, authorizeErrorOf("could not parse authorization code from completion body: " + err.Error())
	}
	code := wire.Code
	if code == "" {
		code = wire.AuthorizeResponse.Code
	}
	if code == "" {
		return nil, authorizeErrorOf("completion body carried no authorization code")
	}

	doc, err := m.discovery.get(ctx)
	if err != nil {
		return nil, invalidDiscoveryOf(err.Error())
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("code_verifier", m.verifier)
	form.Set("redirect_uri", m.cfg.RedirectURI)
	form.Set("client_id", m.cfg.ClientID)

	req := capability.Request{Method: http.MethodPost, URL: doc.TokenEndpoint, Body: []byte(form.Encode())}
	req.SetHeader("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Send(ctx, req)
	if err != nil {
		return nil, tokenErrorOf(err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiErrorOf("", resp.Body, resp.StatusCode)
	}

	var tokenWire tokenResponseWire
	if err := json.Unmarshal(resp.Body, &tokenWire); err != nil {
		return nil, tokenErrorOf("invalid token response: " + err.Error())
	}

	token := tokenWire.toToken(m.clock.Now())
	if err := m.tokens.Set(ctx, token); err != nil {
		return nil, tokenErrorOf("persisting token: " + err.Error())
	}

	return success, nil
}
