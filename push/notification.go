package push

import (
	"fmt"

	"github.com/rs/xid"
)

// notificationFromParsed builds a PushNotification from the data
// mapping a PushHandler returned.
func notificationFromParsed(credentialID, messageID string, parsed map[string]any, now int64) *PushNotification {
	n := &PushNotification{
		ID:            xid.New().String(),
		CredentialID:  credentialID,
		MessageID:     messageID,
		TTL:           asInt64(parsed["ttl"], 120),
		MessageText:   asString(parsed["messageText"]),
		Challenge:     asString(parsed["challenge"]),
		NumbersChallenge: asString(parsed["numbersChallenge"]),
		LoadBalancer:  asString(parsed["loadBalancer"]),
		PushType:      PushType(stringOr(asString(parsed["pushType"]), string(PushTypeDefault))),
		CreatedAt:     now,
		Pending:       true,
		CustomPayload: asStringMap(parsed["customPayload"]),
		ContextInfo:   asStringMap(parsed["contextInfo"]),
	}
	if n.ContextInfo == nil {
		n.ContextInfo = map[string]string{}
	}
	if n.LoadBalancer != "" {
		n.ContextInfo["loadBalancer"] = n.LoadBalancer
	}
	if uid := asString(parsed["userId"]); uid != "" {
		n.ContextInfo["userId"] = uid
	}
	return n
}

func stringOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func asInt64(v any, fallback int64) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		var out int64
		if _, err := fmt.Sscanf(t, "%d", &out); err == nil {
			return out
		}
	}
	return fallback
}

func asStringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		out[k] = asString(val)
	}
	return out
}
