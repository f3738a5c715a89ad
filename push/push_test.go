package push

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingidentity/davincikit/capability"
)

type fakeClock struct{ now int64 }

func (c *fakeClock) Now() int64 { return c.now }

type fakeHTTP struct {
	mu    sync.Mutex
	calls int
	send  func(req capability.Request) (capability.Response, error)
}

func (h *fakeHTTP) Send(_ context.Context, req capability.Request) (capability.Response, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if h.send != nil {
		return h.send(req)
	}
	return capability.Response{StatusCode: http.StatusOK}, nil
}

func (h *fakeHTTP) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

type noopLogger struct{}

func (noopLogger) Log(capability.Level, string, ...capability.Field) {}

func newTestCredential(rawSecret []byte) *PushCredential {
	return &PushCredential{
		ID:             "cred-1",
		Issuer:         "Acme",
		AccountName:    "alice@example.com",
		ServerEndpoint: "https://push.example.com/push",
		SharedSecret:   []byte(base64.StdEncoding.EncodeToString(rawSecret)),
		AdditionalData: map[string]string{},
	}
}

func signTestNotification(t *testing.T, rawSecret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(rawSecret)
	require.NoError(t, err)
	return signed
}

func newTestEngine(httpCap capability.HTTP, clock capability.Clock, cfg EngineConfig) (
	engine *Engine,
	creds capability.Storage[[]*PushCredential],
	notifs capability.Storage[[]*PushNotification],
	deviceToken capability.Storage[string],
) {
	creds = capability.NewMemoryStorage[[]*PushCredential]()
	notifs = capability.NewMemoryStorage[[]*PushNotification]()
	deviceToken = capability.NewMemoryStorage[string]()
	engine = NewEngine(httpCap, clock, noopLogger{}, creds, notifs, deviceToken, cfg)
	return engine, creds, notifs, deviceToken
}

// ---- URI parse/format round trip ----

func TestURIRoundTrip(t *testing.T) {
	reg := "https://push.example.com/push?_action=register"
	auth := "https://push.example.com/push?_action=authenticate"
	secret := []byte("super-secret-key-0123456789")

	raw := "pushauth://push/" + url.QueryEscape("Acme:alice@example.com") + "?" +
		"r=" + base64.RawURLEncoding.EncodeToString([]byte(reg)) +
		"&a=" + base64.RawURLEncoding.EncodeToString([]byte(auth)) +
		"&s=" + base64.RawURLEncoding.EncodeToString(secret) +
		"&issuer=Acme"

	cred, err := ParseURI(raw)
	require.NoError(t, err)
	assert.Equal(t, "Acme", cred.Issuer)
	assert.Equal(t, "alice@example.com", cred.AccountName)
	assert.Equal(t, "https://push.example.com/push", cred.ServerEndpoint)
	assert.Equal(t, base64.StdEncoding.EncodeToString(secret), string(cred.SharedSecret))

	formatted := FormatURI(cred)
	reparsed, err := ParseURI(formatted)
	require.NoError(t, err)
	assert.Equal(t, cred.Issuer, reparsed.Issuer)
	assert.Equal(t, cred.AccountName, reparsed.AccountName)
	assert.Equal(t, cred.ServerEndpoint, reparsed.ServerEndpoint)
	assert.Equal(t, string(cred.SharedSecret), string(reparsed.SharedSecret))
}

func TestParseURI_RejectsUnknownScheme(t *testing.T) {
	_, err := ParseURI("https://example.com/not-a-push-uri")
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "invalidUri", pe.Kind)
}

func TestParseURI_MissingSecretParam(t *testing.T) {
	raw := "pushauth://push/Acme:alice?" +
		"r=" + base64.RawURLEncoding.EncodeToString([]byte("https://x?_action=register")) +
		"&a=" + base64.RawURLEncoding.EncodeToString([]byte("https://x?_action=authenticate"))
	_, err := ParseURI(raw)
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "invalidUri", pe.Kind)
}

// ---- NumbersChallengeInts ----

func TestNumbersChallengeInts(t *testing.T) {
	n := &PushNotification{NumbersChallenge: "12, 34,56"}
	assert.Equal(t, []int{12, 34, 56}, n.NumbersChallengeInts())

	empty := &PushNotification{}
	assert.Nil(t, empty.NumbersChallengeInts())
}

// ---- policy re-evaluation ----

type fixedPolicy struct {
	name string
	pass bool
}

func (p fixedPolicy) Name() string                      { return p.name }
func (p fixedPolicy) Evaluate(map[string]any) bool { return p.pass }

func TestReevaluatePolicies_LocksOnFailure(t *testing.T) {
	cred := &PushCredential{Policies: []byte(`{"region":"us"}`)}
	reevaluatePolicies(cred, []Policy{fixedPolicy{name: "region-check", pass: false}})
	assert.Equal(t, "region-check", cred.LockingPolicy)
}

func TestReevaluatePolicies_UnlocksWhenOwningPolicyNowPasses(t *testing.T) {
	cred := &PushCredential{Policies: []byte(`{}`), LockingPolicy: "region-check"}
	reevaluatePolicies(cred, []Policy{fixedPolicy{name: "region-check", pass: true}})
	assert.Empty(t, cred.LockingPolicy)
}

func TestReevaluatePolicies_StaysLockedUntilOwningPolicyPasses(t *testing.T) {
	cred := &PushCredential{Policies: []byte(`{}`), LockingPolicy: "region-check"}
	reevaluatePolicies(cred, []Policy{fixedPolicy{name: "region-check", pass: false}, fixedPolicy{name: "other", pass: true}})
	assert.Equal(t, "region-check", cred.LockingPolicy)
}

func TestReevaluatePolicies_NoPoliciesPayloadIsNoop(t *testing.T) {
	cred := &PushCredential{}
	reevaluatePolicies(cred, []Policy{fixedPolicy{name: "x", pass: false}})
	assert.Empty(t, cred.LockingPolicy)
}

// ---- cleanup trimming ----

func TestTrimByCount(t *testing.T) {
	list := make([]*PushNotification, 5)
	for i := range list {
		list[i] = &PushNotification{ID: fmt.Sprintf("n%d", i), CreatedAt: int64(i)}
	}
	trimmed := trimByCount(list, 2)
	require.Len(t, trimmed, 2)
	assert.Equal(t, "n3", trimmed[0].ID)
	assert.Equal(t, "n4", trimmed[1].ID)
	assert.Equal(t, list, trimByCount(list, 0))
}

func TestTrimByAge(t *testing.T) {
	now := int64(1_000_000)
	list := []*PushNotification{
		{ID: "old", CreatedAt: now - 10*86400},
		{ID: "new", CreatedAt: now - 1*86400},
	}
	trimmed := trimByAge(list, now, 5)
	require.Len(t, trimmed, 1)
	assert.Equal(t, "new", trimmed[0].ID)
}

func TestDoCleanup_CountBased(t *testing.T) {
	clock := &fakeClock{now: 1000}
	cfg := EngineConfig{Cleanup: NotificationCleanupConfig{Mode: CleanupCountBased, MaxStoredNotifications: 2}}
	engine, _, notifsStore, _ := newTestEngine(&fakeHTTP{}, clock, cfg)

	seed := []*PushNotification{
		{ID: "n1", CreatedAt: 1},
		{ID: "n2", CreatedAt: 2},
		{ID: "n3", CreatedAt: 3},
	}
	require.NoError(t, notifsStore.Set(context.Background(), seed))
	require.NoError(t, engine.doCleanup(context.Background()))

	stored, has, err := notifsStore.Get(context.Background())
	require.NoError(t, err)
	require.True(t, has)
	require.Len(t, stored, 2)
	assert.Equal(t, "n2", stored[0].ID)
	assert.Equal(t, "n3", stored[1].ID)
}

func TestIntake_TriggersFireAndForgetCleanup(t *testing.T) {
	rawSecret := []byte("cleanup-secret-padding-00000")
	cred := newTestCredential(rawSecret)
	cfg := EngineConfig{Cleanup: NotificationCleanupConfig{Mode: CleanupCountBased, MaxStoredNotifications: 1}}
	clock := &fakeClock{now: 10}
	engine, credsStore, notifsStore, _ := newTestEngine(&fakeHTTP{}, clock, cfg)
	require.NoError(t, credsStore.Set(context.Background(), []*PushCredential{cred}))

	send := func(messageID string) {
		claims := jwt.MapClaims{"ttl": 120, "messageId": messageID}
		token := signTestNotification(t, rawSecret, claims)
		_, err := engine.Intake(context.Background(), "", map[string]any{"credentialId": cred.ID, "message": token})
		require.NoError(t, err)
	}
	send("m1")
	send("m2")

	require.Eventually(t, func() bool {
		list, _, _ := notifsStore.Get(context.Background())
		return len(list) == 1
	}, time.Second, 5*time.Millisecond, "cleanup should trim down to MaxStoredNotifications")
}

// ---- registration, intake, and challenge-gated approve ----

func TestRegisterIntakeApprove_ChallengeFlow(t *testing.T) {
	rawSecret := []byte("super-secret-key-0123456789ab")
	cred := newTestCredential(rawSecret)

	httpCap := &fakeHTTP{}
	clock := &fakeClock{now: 1000}
	engine, _, _, _ := newTestEngine(httpCap, clock, EngineConfig{})

	registered, err := engine.RegisterCredential(context.Background(), cred, "device-1", "chal-xyz", "", nil)
	require.NoError(t, err)
	assert.Same(t, cred, registered)
	assert.Equal(t, 1, httpCap.callCount())

	claims := jwt.MapClaims{
		"ttl":              120,
		"pushType":         "challenge",
		"messageId":        "msg-1",
		"messageText":      "Login attempt",
		"numbersChallenge": "12,34,56",
	}
	token := signTestNotification(t, rawSecret, claims)
	payload := map[string]any{"credentialId": cred.ID, "message": token}

	notif, err := engine.Intake(context.Background(), "", payload)
	require.NoError(t, err)
	require.NotNil(t, notif)
	assert.True(t, notif.Pending)
	assert.Equal(t, PushTypeChallenge, notif.PushType)
	assert.Equal(t, []int{12, 34, 56}, notif.NumbersChallengeInts())

	// Re-delivery of the same messageId returns the existing record
	// rather than creating a duplicate.
	again, err := engine.Intake(context.Background(), "", payload)
	require.NoError(t, err)
	assert.Equal(t, notif.ID, again.ID)

	callsBeforeApprove := httpCap.callCount()
	ok, err := engine.Approve(context.Background(), notif.ID, RespondOptions{})
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "invalidParameterValue", pe.Kind)
	assert.False(t, ok)
	assert.Equal(t, callsBeforeApprove, httpCap.callCount(), "must not touch the network before the challenge response is validated")

	ok, err = engine.Approve(context.Background(), notif.ID, RespondOptions{ChallengeResponse: " 12 "})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, callsBeforeApprove+1, httpCap.callCount())

	// Already responded: further approvals are a no-op.
	ok, err = engine.Approve(context.Background(), notif.ID, RespondOptions{ChallengeResponse: "12"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApprove_CredentialLocked(t *testing.T) {
	rawSecret := []byte("locked-credential-secret-padd")
	cred := newTestCredential(rawSecret)
	cred.LockingPolicy = "suspicious-activity"

	httpCap := &fakeHTTP{}
	clock := &fakeClock{now: 10}
	engine, credsStore, _, _ := newTestEngine(httpCap, clock, EngineConfig{})
	require.NoError(t, credsStore.Set(context.Background(), []*PushCredential{cred}))

	token := signTestNotification(t, rawSecret, jwt.MapClaims{"ttl": 120, "messageId": "msg-2"})
	notif, err := engine.Intake(context.Background(), "", map[string]any{"credentialId": cred.ID, "message": token})
	require.NoError(t, err)

	_, err = engine.Approve(context.Background(), notif.ID, RespondOptions{})
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "credentialLocked", pe.Kind)
	assert.Equal(t, 0, httpCap.callCount())
}

func TestApprove_ExpiredNotification(t *testing.T) {
	rawSecret := []byte("expired-notification-secret-pd")
	cred := newTestCredential(rawSecret)

	clock := &fakeClock{now: 0}
	engine, credsStore, _, _ := newTestEngine(&fakeHTTP{}, clock, EngineConfig{})
	require.NoError(t, credsStore.Set(context.Background(), []*PushCredential{cred}))

	token := signTestNotification(t, rawSecret, jwt.MapClaims{"ttl": 30, "messageId": "msg-3"})
	notif, err := engine.Intake(context.Background(), "", map[string]any{"credentialId": cred.ID, "message": token})
	require.NoError(t, err)

	clock.now = 1000 // well past ttl
	_, err = engine.Approve(context.Background(), notif.ID, RespondOptions{})
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "notificationExpired", pe.Kind)
}

// ---- device-token management ----

func TestSetDeviceToken_AggregatesPerCredentialFailures(t *testing.T) {
	rawSecret1 := []byte("secret-one-with-enough-padding")
	rawSecret2 := []byte("secret-two-with-enough-padding")
	credOK := newTestCredential(rawSecret1)
	credOK.ID = "cred-ok"
	credOK.ServerEndpoint = "https://push.example.com/ok"
	credFail := newTestCredential(rawSecret2)
	credFail.ID = "cred-fail"
	credFail.ServerEndpoint = "https://push.example.com/fail"

	httpCap := &fakeHTTP{send: func(req capability.Request) (capability.Response, error) {
		if strings.Contains(req.URL, "/fail") {
			return capability.Response{StatusCode: http.StatusInternalServerError}, nil
		}
		return capability.Response{StatusCode: http.StatusOK}, nil
	}}
	clock := &fakeClock{now: 500}
	engine, credsStore, _, deviceTokenStore := newTestEngine(httpCap, clock, EngineConfig{})
	require.NoError(t, credsStore.Set(context.Background(), []*PushCredential{credOK, credFail}))

	ok, err := engine.SetDeviceToken(context.Background(), "new-token", "")
	require.NoError(t, err)
	assert.False(t, ok, "aggregate result must reflect the failing credential")

	stored, has, err := deviceTokenStore.Get(context.Background())
	require.NoError(t, err)
	require.True(t, has)
	assert.Equal(t, "new-token", stored, "the new token is persisted regardless of individual failures")
}

func TestSetDeviceToken_NoopWhenUnchanged(t *testing.T) {
	httpCap := &fakeHTTP{}
	clock := &fakeClock{now: 1}
	engine, _, _, deviceTokenStore := newTestEngine(httpCap, clock, EngineConfig{})
	require.NoError(t, deviceTokenStore.Set(context.Background(), "same-token"))

	ok, err := engine.SetDeviceToken(context.Background(), "same-token", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, httpCap.callCount())
}

// ---- credential CRUD ----

func TestGetCredential_UnknownIDReturnsNilNoError(t *testing.T) {
	engine, _, _, _ := newTestEngine(&fakeHTTP{}, &fakeClock{now: 1}, EngineConfig{})
	cred, err := engine.GetCredential(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestDeleteCredential(t *testing.T) {
	rawSecret := []byte("delete-me-secret-with-padding")
	cred := newTestCredential(rawSecret)
	engine, credsStore, _, _ := newTestEngine(&fakeHTTP{}, &fakeClock{now: 1}, EngineConfig{})
	require.NoError(t, credsStore.Set(context.Background(), []*PushCredential{cred}))

	require.NoError(t, engine.DeleteCredential(context.Background(), cred.ID))

	got, err := engine.GetCredential(context.Background(), cred.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
