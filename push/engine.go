package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/pingidentity/davincikit/capability"
	"github.com/pingidentity/davincikit/internal/httpx"
)

// Engine is the push credential/notification client: a
// single-consumer actor serializes credential CRUD, notification
// intake, and approve/deny so callers never observe a half-mutated
// credential.
type Engine struct {
	http          capability.HTTP
	clock         capability.Clock
	logger        capability.Logger
	credentials   capability.Storage[[]*PushCredential]
	notifications capability.Storage[[]*PushNotification]
	deviceToken   capability.Storage[string]

	handlers map[string]PushHandler
	policies []Policy
	cfg      EngineConfig

	cache     map[string]*PushCredential
	mailbox   chan pushJob
	done      chan struct{}
	closeOnce sync.Once
}

// ErrClosed is returned by every Engine method after Close.
var ErrClosed = errors.New("push: engine closed")

type pushJob struct {
	ctx    context.Context
	run    func(ctx context.Context) (any, error)
	result chan pushJobResult
}

type pushJobResult struct {
	value any
	err   error
}

// NewEngine builds a push Engine and starts its mailbox loop. The
// default PingAM handler is registered under "pingam"; additional
// platform handlers and lock policies are added via RegisterHandler
// and RegisterPolicy before first use.
func NewEngine(httpCap capability.HTTP, clock capability.Clock, logger capability.Logger,
	credentials capability.Storage[[]*PushCredential],
	notifications capability.Storage[[]*PushNotification],
	deviceToken capability.Storage[string],
	cfg EngineConfig,
) *Engine {
	e := &Engine{
		http:          httpCap,
		clock:         clock,
		logger:        logger,
		credentials:   credentials,
		notifications: notifications,
		deviceToken:   deviceToken,
		handlers:      map[string]PushHandler{"pingam": NewPingAMHandler()},
		cfg:           cfg,
		mailbox:       make(chan pushJob),
		done:          make(chan struct{}),
	}
	if cfg.CacheEnabled {
		e.cache = make(map[string]*PushCredential)
	}
	go e.loop()
	return e
}

// RegisterHandler adds or replaces a platform's notification codec.
func (e *Engine) RegisterHandler(h PushHandler) { e.handlers[h.Name()] = h }

// RegisterPolicy adds a credential-locking rule consulted on every
// credential read.
func (e *Engine) RegisterPolicy(p Policy) { e.policies = append(e.policies, p) }

func (e *Engine) loop() {
	for {
		select {
		case j := <-e.mailbox:
			n, err := j.run(j.ctx)
			j.result <- pushJobResult{n, err}
		case <-e.done:
			return
		}
	}
}

// Close stops the mailbox loop. In-flight work completes; subsequent
// calls fail with ErrClosed. Close is idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

func (e *Engine) enqueue(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	j := pushJob{ctx: ctx, run: fn, result: make(chan pushJobResult, 1)}
	select {
	case e.mailbox <- j:
	case <-e.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-j.result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) handlerFor(platform string) PushHandler {
	if platform == "" {
		return e.handlers["pingam"]
	}
	return e.handlers[platform]
}

// ---- credential storage/cache plumbing (actor-internal, never called
// outside a mailbox job) ----

func (e *Engine) loadCredentials(ctx context.Context) ([]*PushCredential, error) {
	creds, ok, err := e.credentials.Get(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	if !ok {
		return nil, nil
	}
	return creds, nil
}

func (e *Engine) storeCredentials(ctx context.Context, creds []*PushCredential) error {
	if err := e.credentials.Set(ctx, creds); err != nil {
		return storageError(err)
	}
	if e.cache != nil {
		e.cache = make(map[string]*PushCredential, len(creds))
		for _, c := range creds {
			e.cache[c.ID] = c
		}
	}
	return nil
}

func (e *Engine) findCredential(ctx context.Context, id string) ([]*PushCredential, int, error) {
	creds, err := e.loadCredentials(ctx)
	if err != nil {
		return nil, -1, err
	}
	for i, c := range creds {
		if c.ID == id {
			return creds, i, nil
		}
	}
	return creds, -1, nil
}

// ---- credential CRUD ----

// GetCredentials returns all stored credentials, re-evaluating their
// lock policies in place before returning.
func (e *Engine) GetCredentials(ctx context.Context) ([]*PushCredential, error) {
	v, err := e.enqueue(ctx, func(ctx context.Context) (any, error) {
		creds, err := e.loadCredentials(ctx)
		if err != nil {
			return nil, err
		}
		changed := false
		for _, c := range creds {
			before := c.LockingPolicy
			reevaluatePolicies(c, e.policies)
			if c.LockingPolicy != before {
				changed = true
			}
		}
		if changed {
			if err := e.storeCredentials(ctx, creds); err != nil {
				return nil, err
			}
		} else if e.cache != nil {
			for _, c := range creds {
				e.cache[c.ID] = c
			}
		}
		return creds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*PushCredential), nil
}

// GetCredential returns one credential by id, re-evaluating its lock
// policy first. Returns (nil, nil) if no such credential exists.
func (e *Engine) GetCredential(ctx context.Context, id string) (*PushCredential, error) {
	v, err := e.enqueue(ctx, func(ctx context.Context) (any, error) {
		if c, ok := e.cache[id]; ok {
			reevaluatePolicies(c, e.policies)
			return c, nil
		}
		creds, err := e.loadCredentials(ctx)
		if err != nil {
			return nil, err
		}
		var found *PushCredential
		for _, c := range creds {
			reevaluatePolicies(c, e.policies)
			if c.ID == id {
				found = c
			}
		}
		if err := e.storeCredentials(ctx, creds); err != nil {
			return nil, err
		}
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	found, _ := v.(*PushCredential)
	return found, nil
}

// DeleteCredential removes a credential (and invalidates the cache
// entry) by id.
func (e *Engine) DeleteCredential(ctx context.Context, id string) error {
	_, err := e.enqueue(ctx, func(ctx context.Context) (any, error) {
		creds, idx, err := e.findCredential(ctx, id)
		if err != nil {
			return nil, err
		}
		if idx < 0 {
			return nil, nil
		}
		creds = append(creds[:idx], creds[idx+1:]...)
		return nil, e.storeCredentials(ctx, creds)
	})
	return err
}

// ClearCache discards the in-memory credential cache; the next read
// refills it from storage.
func (e *Engine) ClearCache(ctx context.Context) {
	_, _ = e.enqueue(ctx, func(ctx context.Context) (any, error) {
		if e.cache != nil {
			e.cache = make(map[string]*PushCredential)
		}
		return nil, nil
	})
}

// RegisterCredential signs and submits a registration JWT for a freshly
// parsed credential, persists it on HTTP success, and evaluates its
// lock policy before persistence.
func (e *Engine) RegisterCredential(ctx context.Context, cred *PushCredential, deviceID, challenge, messageID string, platformFields map[string]string) (*PushCredential, error) {
	v, err := e.enqueue(ctx, func(ctx context.Context) (any, error) {
		now := e.clock.Now()
		token, err := signRegistrationJWT(cred, challenge, deviceID, messageID, platformFields, now)
		if err != nil {
			return nil, err
		}

		req := capability.Request{Method: http.MethodPost, URL: cred.RegistrationEndpoint(), Body: []byte(token)}
		if lb, ok := cred.AdditionalData["loadBalancer"]; ok && lb != "" {
			req.SetHeader("Cookie", lb)
		}
		resp, err := httpx.Send(ctx, e.http, req, e.cfg.Retry)
		if err != nil {
			return nil, apiError(err.Error())
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, apiError(fmt.Sprintf("registration failed with status %d", resp.StatusCode))
		}

		reevaluatePolicies(cred, e.policies)

		creds, err := e.loadCredentials(ctx)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
		if err := e.storeCredentials(ctx, creds); err != nil {
			return nil, err
		}
		return cred, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*PushCredential), nil
}

// ---- notification intake ----

func (e *Engine) loadNotifications(ctx context.Context) ([]*PushNotification, error) {
	list, ok, err := e.notifications.Get(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	if !ok {
		return nil, nil
	}
	return list, nil
}

func (e *Engine) storeNotifications(ctx context.Context, list []*PushNotification) error {
	if err := e.notifications.Set(ctx, list); err != nil {
		return storageError(err)
	}
	return nil
}

// Intake parses an inbound platform payload into a PushNotification,
// persists it, and triggers the fire-and-forget cleanup pass. Repeated
// delivery of the same messageId returns the existing record instead
// of creating a duplicate.
func (e *Engine) Intake(ctx context.Context, platform string, payload map[string]any) (*PushNotification, error) {
	flat := ExtractAPNsData(payload)
	v, err := e.enqueue(ctx, func(ctx context.Context) (any, error) {
		credID := flat["credentialId"]
		if credID == "" {
			return nil, invalidParameterValue("notification payload missing credentialId")
		}
		creds, idx, err := e.findCredential(ctx, credID)
		if err != nil {
			return nil, err
		}
		if idx < 0 {
			return nil, notFound("no credential registered for id " + credID)
		}
		cred := creds[idx]

		handler := e.handlerFor(platform)
		if handler == nil {
			return nil, handlerMissing("no handler registered for platform " + platform)
		}

		parsed, err := handler.ParseNotification(cred, flat)
		if err != nil {
			return nil, err
		}

		messageID, _ := parsed["messageId"].(string)
		list, err := e.loadNotifications(ctx)
		if err != nil {
			return nil, err
		}
		for _, n := range list {
			if n.MessageID == messageID && messageID != "" {
				return n, nil
			}
		}

		notif := notificationFromParsed(cred.ID, messageID, parsed, e.clock.Now())
		list = append(list, notif)
		if err := e.storeNotifications(ctx, list); err != nil {
			return nil, err
		}
		return notif, nil
	})
	if err != nil {
		return nil, err
	}
	e.fireAndForgetCleanup()
	return v.(*PushNotification), nil
}

func (e *Engine) fireAndForgetCleanup() {
	if e.cfg.Cleanup.Mode == "" || e.cfg.Cleanup.Mode == CleanupNone {
		return
	}
	go func() {
		ctx := context.Background()
		_, _ = e.enqueue(ctx, func(ctx context.Context) (any, error) {
			return nil, e.doCleanup(ctx)
		})
	}()
}

func (e *Engine) doCleanup(ctx context.Context) error {
	list, err := e.loadNotifications(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt < list[j].CreatedAt })

	cfg := e.cfg.Cleanup
	switch cfg.Mode {
	case CleanupCountBased:
		list = trimByCount(list, cfg.MaxStoredNotifications)
	case CleanupAgeBased:
		list = trimByAge(list, e.clock.Now(), cfg.MaxNotificationAgeDays)
	case CleanupHybrid:
		list = trimByCount(list, cfg.MaxStoredNotifications)
		list = trimByAge(list, e.clock.Now(), cfg.MaxNotificationAgeDays)
	}

	return e.storeNotifications(ctx, list)
}

func trimByCount(list []*PushNotification, max int) []*PushNotification {
	if max <= 0 || len(list) <= max {
		return list
	}
	return list[len(list)-max:]
}

func trimByAge(list []*PushNotification, now int64, maxDays int) []*PushNotification {
	if maxDays <= 0 {
		return list
	}
	cutoff := now - int64(maxDays)*86400
	kept := list[:0:0]
	for _, n := range list {
		if n.CreatedAt >= cutoff {
			kept = append(kept, n)
		}
	}
	return kept
}

// ---- approve / deny ----

// RespondOptions carries the challenge response or authentication
// method required for non-default push types.
type RespondOptions struct {
	ChallengeResponse string
	AuthMethod        string
}

// Approve responds affirmatively to a pending notification.
func (e *Engine) Approve(ctx context.Context, notificationID string, opts RespondOptions) (bool, error) {
	return e.respond(ctx, notificationID, false, opts)
}

// Deny responds negatively to a pending notification.
func (e *Engine) Deny(ctx context.Context, notificationID string, opts RespondOptions) (bool, error) {
	return e.respond(ctx, notificationID, true, opts)
}

func (e *Engine) respond(ctx context.Context, notificationID string, deny bool, opts RespondOptions) (bool, error) {
	v, err := e.enqueue(ctx, func(ctx context.Context) (any, error) {
		list, err := e.loadNotifications(ctx)
		if err != nil {
			return nil, err
		}
		idx := -1
		for i, n := range list {
			if n.ID == notificationID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, notFound("no notification with id " + notificationID)
		}
		notif := list[idx]
		now := e.clock.Now()

		if !notif.Pending {
			return false, nil
		}
		if notif.IsExpired(now) {
			return nil, notificationExpired("notification " + notificationID + " has expired")
		}

		creds, cidx, err := e.findCredential(ctx, notif.CredentialID)
		if err != nil {
			return nil, err
		}
		if cidx < 0 {
			return nil, notFound("no credential registered for id " + notif.CredentialID)
		}
		cred := creds[cidx]
		if cred.IsLocked() {
			return nil, credentialLocked(cred.ID)
		}

		if !deny {
			switch notif.PushType {
			case PushTypeChallenge:
				if strings.TrimSpace(opts.ChallengeResponse) == "" {
					return nil, invalidParameterValue("challenge response is required")
				}
			case PushTypeBiometric:
				if strings.TrimSpace(opts.AuthMethod) == "" {
					return nil, invalidParameterValue("authentication method is required")
				}
			}
		}

		token, err := signAuthenticationJWT(cred, notif.MessageID, strings.TrimSpace(opts.ChallengeResponse), strings.TrimSpace(opts.AuthMethod), deny, now)
		if err != nil {
			return nil, err
		}

		req := capability.Request{Method: http.MethodPost, URL: cred.AuthenticationEndpoint(), Body: []byte(token)}
		if lb, ok := notif.ContextInfo["loadBalancer"]; ok && lb != "" {
			req.SetHeader("Cookie", lb)
		} else if lb, ok := cred.AdditionalData["loadBalancer"]; ok && lb != "" {
			req.SetHeader("Cookie", lb)
		}

		resp, sendErr := httpx.Send(ctx, e.http, req, e.cfg.Retry)
		if sendErr != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// handler failure: notification state is left unchanged.
			return false, nil
		}

		notif.Pending = false
		notif.Approved = !deny
		notif.RespondedAt = &now
		if err := e.storeNotifications(ctx, list); err != nil {
			return nil, err
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// ---- device token management ----

// SetDeviceToken persists the host platform's current push token. If
// unchanged it is a no-op returning true. Otherwise every affected
// credential (all credentials, or only credentialID when non-empty) is
// sent a signed refresh JWT; the new token is persisted regardless of
// individual failures, but the aggregate result is false if any
// credential update failed.
func (e *Engine) SetDeviceToken(ctx context.Context, newToken string, credentialID string) (bool, error) {
	v, err := e.enqueue(ctx, func(ctx context.Context) (any, error) {
		current, _, err := e.deviceToken.Get(ctx)
		if err != nil {
			return nil, storageError(err)
		}
		if current == newToken {
			return true, nil
		}

		creds, err := e.loadCredentials(ctx)
		if err != nil {
			return nil, err
		}

		var failures error
		now := e.clock.Now()
		for _, c := range creds {
			if credentialID != "" && c.ID != credentialID {
				continue
			}
			token, err := signRefreshJWT(c, newToken, now)
			if err != nil {
				failures = multierror.Append(failures, err)
				continue
			}
			req := capability.Request{Method: http.MethodPost, URL: c.UpdateEndpoint(), Body: []byte(token)}
			if lb, ok := c.AdditionalData["loadBalancer"]; ok && lb != "" {
				req.SetHeader("Cookie", lb)
			}
			resp, sendErr := httpx.Send(ctx, e.http, req, e.cfg.Retry)
			if sendErr != nil {
				failures = multierror.Append(failures, sendErr)
				continue
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				failures = multierror.Append(failures, apiError(fmt.Sprintf("device-token refresh failed for credential %s with status %d", c.ID, resp.StatusCode)))
			}
		}

		if err := e.deviceToken.Set(ctx, newToken); err != nil {
			return false, storageError(err)
		}
		return failures == nil, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}
