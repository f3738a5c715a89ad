package oidc

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingidentity/davincikit/capability"
	"github.com/pingidentity/davincikit/node"
)

func newTestAuthorizeModule(httpCap capability.HTTP, clock capability.Clock) (*AuthorizeModule, capability.Storage[Token]) {
	tokens := capability.NewMemoryStorage[Token]()
	cfg := Config{ClientID: "client-1", RedirectURI: "app://callback", Scopes: []string{"openid", "profile"}, DiscoveryURL: "https://idp.example.com/discovery"}
	return NewAuthorizeModule(cfg, httpCap, tokens, clock), tokens
}

func TestOnNext_RewritesOnlyTheFirstRequest(t *testing.T) {
	fake := &fakeHTTP{send: discoveryHandler(t, func(req capability.Request) (capability.Response, error) {
		t.Fatal("unexpected call: " + req.URL)
		return capability.Response{}, nil
	})}
	mod, _ := newTestAuthorizeModule(fake, &fakeClock{})

	req := capability.Request{Method: "POST", URL: "https://flow.example.com/start"}
	require.NoError(t, mod.OnNext(context.Background(), nil, &req))
	assert.Equal(t, "GET", req.Method)
	assert.True(t, strings.HasPrefix(req.URL, "https://idp.example.com/authorize?"))

	parsed, err := url.Parse(req.URL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "pi.flow", q.Get("response_mode"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
}

func TestOnNext_LeavesSubsequentRequestsAlone(t *testing.T) {
	mod, _ := newTestAuthorizeModule(&fakeHTTP{send: func(capability.Request) (capability.Response, error) {
		t.Fatal("a non-first OnNext must not touch the network")
		return capability.Response{}, nil
	}}, &fakeClock{})

	req := capability.Request{Method: "POST", URL: "https://flow.example.com/step-2", Body: []byte("a=b")}
	origin := &node.ContinueNode{ID: "step-1"}
	require.NoError(t, mod.OnNext(context.Background(), origin, &req))
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "https://flow.example.com/step-2", req.URL)
}

func TestOnNext_ForwardsOptionalAuthorizeParams(t *testing.T) {
	tokens := capability.NewMemoryStorage[Token]()
	cfg := Config{
		ClientID: "client-1", RedirectURI: "app://callback", DiscoveryURL: "https://idp.example.com/discovery",
		ACRValues: "urn:acr:silver", Display: "page", LoginHint: "ada@example.com", Nonce: "nonce-1", Prompt: "login", UILocales: "en",
	}
	fake := &fakeHTTP{send: discoveryHandler(t, func(req capability.Request) (capability.Response, error) {
		return capability.Response{}, nil
	})}
	mod := NewAuthorizeModule(cfg, fake, tokens, &fakeClock{})

	req := capability.Request{}
	require.NoError(t, mod.OnNext(context.Background(), nil, &req))
	parsed, err := url.Parse(req.URL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "urn:acr:silver", q.Get("acr_values"))
	assert.Equal(t, "page", q.Get("display"))
	assert.Equal(t, "ada@example.com", q.Get("login_hint"))
	assert.Equal(t, "nonce-1", q.Get("nonce"))
	assert.Equal(t, "login", q.Get("prompt"))
	assert.Equal(t, "en", q.Get("ui_locales"))
}

func TestOnSuccess_ExchangesFlatCode(t *testing.T) {
	clock := &fakeClock{now: 5000}
	fake := &fakeHTTP{send: discoveryHandler(t, func(req capability.Request) (capability.Response, error) {
		form, err := url.ParseQuery(string(req.Body))
		require.NoError(t, err)
		assert.Equal(t, "authorization_code", form.Get("grant_type"))
		assert.Equal(t, "auth-code-1", form.Get("code"))
		assert.Equal(t, "app://callback", form.Get("redirect_uri"))
		return jsonResponse(200, map[string]any{"access_token": "at-1", "refresh_token": "rt-1", "expires_in": 3600}), nil
	})}
	mod, tokens := newTestAuthorizeModule(fake, clock)

	// OnNext must run first to generate the PKCE verifier OnSuccess sends.
	req := capability.Request{}
	require.NoError(t, mod.OnNext(context.Background(), nil, &req))

	input, _ := json.Marshal(map[string]any{"code": "auth-code-1"})
	success := &node.SuccessNode{Input: input, Session: "sess-1"}
	got, err := mod.OnSuccess(context.Background(), success)
	require.NoError(t, err)
	assert.Same(t, success, got)

	stored, ok, _ := tokens.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, "at-1", stored.AccessToken)
	assert.Equal(t, int64(5000+3600), stored.ExpiresAt)
}

func TestOnSuccess_ExchangesNestedAuthorizeResponseCode(t *testing.T) {
	clock := &fakeClock{now: 5000}
	fake := &fakeHTTP{send: discoveryHandler(t, func(req capability.Request) (capability.Response, error) {
		form, err := url.ParseQuery(string(req.Body))
		require.NoError(t, err)
		assert.Equal(t, "auth-code-2", form.Get("code"))
		return jsonResponse(200, map[string]any{"access_token": "at-2", "expires_in": 3600}), nil
	})}
	mod, _ := newTestAuthorizeModule(fake, clock)
	req := capability.Request{}
	require.NoError(t, mod.OnNext(context.Background(), nil, &req))

	input, _ := json.Marshal(map[string]any{"authorizeResponse": map[string]any{"code": "auth-code-2"}})
	success := &node.SuccessNode{Input: input}
	_, err := mod.OnSuccess(context.Background(), success)
	require.NoError(t, err)
}

func TestOnSuccess_MissingCodeErrors(t *testing.T) {
	mod, _ := newTestAuthorizeModule(&fakeHTTP{send: func(capability.Request) (capability.Response, error) {
		t.Fatal("must not call the token endpoint without a code")
		return capability.Response{}, nil
	}}, &fakeClock{})

	success := &node.SuccessNode{Input: json.RawMessage(`{}`)}
	_, err := mod.OnSuccess(context.Background(), success)
	require.Error(t, err)
	var oidcErr *Error
	require.ErrorAs(t, err, &oidcErr)
	assert.Equal(t, "authorizeError", oidcErr.Kind)
}
