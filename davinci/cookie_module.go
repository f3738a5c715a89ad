package davinci

import (
	"context"
	"net/http"

	"github.com/pingidentity/davincikit/capability"
	"github.com/pingidentity/davincikit/node"
)

// CookieModule captures Set-Cookie headers from every response into the
// Storage capability and replays them on every outgoing request, the
// way an http.CookieJar backs http.Client.Jar — but explicit, since the
// core owns no concrete HTTP client.
type CookieModule struct {
	store capability.Storage[[]*http.Cookie]
}

// NewCookieModule builds a CookieModule that persists cookies through
// store across every exchange of a single flow/OIDC lifetime.
func NewCookieModule(store capability.Storage[[]*http.Cookie]) *CookieModule {
	return &CookieModule{store: store}
}

func (m *CookieModule) ID() string { return "davinci.cookies" }

// OnNext replays any persisted cookies onto the outgoing request.
func (m *CookieModule) OnNext(ctx context.Context, current node.Node, req *capability.Request) error {
	cookies, ok, err := m.store.Get(ctx)
	if err != nil || !ok || len(cookies) == 0 {
		return nil
	}
	for _, c := range cookies {
		req.AddHeader("Cookie", c.String())
	}
	return nil
}

// OnResponse captures Set-Cookie headers into storage, merging by name
// so a later response's values win.
func (m *CookieModule) OnResponse(ctx context.Context, resp *capability.Response) error {
	setCookie := resp.Headers.Values("Set-Cookie")
	if len(setCookie) == 0 {
		return nil
	}
	header := make(http.Header)
	for _, v := range setCookie {
		header.Add("Set-Cookie", v)
	}
	incoming := (&http.Response{Header: header}).Cookies()

	existing, _, err := m.store.Get(ctx)
	if err != nil {
		return err
	}
	merged := mergeCookies(existing, incoming)
	return m.store.Set(ctx, merged)
}

func mergeCookies(existing, incoming []*http.Cookie) []*http.Cookie {
	byName := make(map[string]*http.Cookie, len(existing)+len(incoming))
	order := make([]string, 0, len(existing)+len(incoming))
	for _, c := range existing {
		if _, ok := byName[c.Name]; !ok {
			order = append(order, c.Name)
		}
		byName[c.Name] = c
	}
	for _, c := range incoming {
		if _, ok := byName[c.Name]; !ok {
			order = append(order, c.Name)
		}
		byName[c.Name] = c
	}
	out := make([]*http.Cookie, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}
