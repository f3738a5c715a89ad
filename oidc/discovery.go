package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/pingidentity/davincikit/capability"
)

// Document is the subset of OIDC discovery metadata the core needs.
type Document struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	RevocationEndpoint    string `json:"revocation_endpoint"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
}

// discoveryCache fetches and caches the discovery document for the
// process lifetime once loaded, deduplicating concurrent fetches with
// singleflight so simultaneous authorize() callers collapse into one
// GET.
type discoveryCache struct {
	http capability.HTTP
	url  string

	group singleflight.Group
	mu    sync.RWMutex
	doc   *Document
}

func newDiscoveryCache(http capability.HTTP, url string) *discoveryCache {
	return &discoveryCache{http: http, url: url}
}

func (d *discoveryCache) get(ctx context.Context) (*Document, error) {
	d.mu.RLock()
	if d.doc != nil {
		doc := d.doc
		d.mu.RUnlock()
		return doc, nil
	}
	d.mu.RUnlock()

	v, err, _ := d.group.Do(d.url, func() (any, error) {
		resp, err := d.http.Send(ctx, capability.Request{Method: http.MethodGet, URL: d.url})
		if err != nil {
			return nil, fmt.Errorf("oidc: discovery fetch: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("oidc: discovery returned status %d", resp.StatusCode)
		}
		var doc Document
		if err := json.Unmarshal(resp.Body, &doc); err != nil {
			return nil, fmt.Errorf("oidc: invalid discovery document: %w", err)
		}
		d.mu.Lock()
		d.doc = &doc
		d.mu.Unlock()
		return &doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}
