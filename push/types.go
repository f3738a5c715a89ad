package push

import (
	"strconv"
	"strings"

	"github.com/pingidentity/davincikit/internal/httpx"
)

// PushCredential is a registered push-authentication credential.
// ServerEndpoint never carries a `?_action=...` suffix; the three
// action endpoints are derived from it.
type PushCredential struct {
	ID                  string
	UserID              string
	ResourceID          string
	Issuer              string
	DisplayIssuer       string
	AccountName         string
	DisplayAccountName  string
	ServerEndpoint      string
	SharedSecret        []byte // base64-normalized, stored as opaque bytes
	CreatedAt           int64
	ImageURL            string
	BackgroundColor     string
	Policies            []byte // raw policy JSON, if any
	LockingPolicy       string
	Platform            string
	AdditionalData      map[string]string
}

// IsLocked reports whether a locking policy name is set.
func (c *PushCredential) IsLocked() bool { return c.LockingPolicy != "" }

// RegistrationEndpoint, AuthenticationEndpoint and UpdateEndpoint are
// derived by appending the action query parameter to ServerEndpoint.
func (c *PushCredential) RegistrationEndpoint() string  { return c.ServerEndpoint + "?_action=register" }
func (c *PushCredential) AuthenticationEndpoint() string { return c.ServerEndpoint + "?_action=authenticate" }
func (c *PushCredential) UpdateEndpoint() string        { return c.ServerEndpoint + "?_action=refresh" }

// resourceIDOrID defaults ResourceID to ID if unset.
func (c *PushCredential) resourceIDOrID() string {
	if c.ResourceID != "" {
		return c.ResourceID
	}
	return c.ID
}

// PushType classifies a notification's response requirements.
type PushType string

const (
	PushTypeDefault    PushType = "default"
	PushTypeChallenge  PushType = "challenge"
	PushTypeBiometric  PushType = "biometric"
)

// PushNotification is a received push authentication request.
type PushNotification struct {
	ID               string
	CredentialID     string
	TTL              int64
	MessageID        string
	MessageText      string
	CustomPayload    map[string]string
	Challenge        string
	NumbersChallenge string
	LoadBalancer     string
	ContextInfo      map[string]string
	PushType         PushType
	CreatedAt        int64
	SentAt           *int64
	RespondedAt      *int64
	Approved         bool
	Pending          bool
}

// IsExpired reports whether now is beyond CreatedAt+TTL.
func (n *PushNotification) IsExpired(now int64) bool {
	return now-n.CreatedAt > n.TTL
}

// NumbersChallengeInts parses the comma-separated NumbersChallenge
// string (e.g. "12, 34, 56") into its component integers. Non-numeric segments are skipped.
func (n *PushNotification) NumbersChallengeInts() []int {
	if n.NumbersChallenge == "" {
		return nil
	}
	parts := strings.Split(n.NumbersChallenge, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// CleanupMode selects the notification-retention strategy.
type CleanupMode string

const (
	CleanupNone       CleanupMode = "none"
	CleanupCountBased CleanupMode = "countBased"
	CleanupAgeBased   CleanupMode = "ageBased"
	CleanupHybrid     CleanupMode = "hybrid"
)

// NotificationCleanupConfig configures the background cleanup pass that
// runs after every notification intake.
type NotificationCleanupConfig struct {
	Mode                   CleanupMode
	MaxStoredNotifications int
	MaxNotificationAgeDays int
}

// EngineConfig configures the push actor.
type EngineConfig struct {
	Cleanup      NotificationCleanupConfig
	CacheEnabled bool
	// Retry bounds the registration/authentication/refresh HTTP calls
	// the engine makes to credential endpoints; zero value uses httpx's defaults.
	Retry httpx.RetryConfig
}
