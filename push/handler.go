package push

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// PushHandler is a per-platform notification codec: it parses the signed message out of an
// already-flattened data mapping and verifies it against the owning
// credential's shared secret. The default registered handler is
// PingAMHandler; embedding applications may register additional
// handlers for other platforms.
type PushHandler interface {
	Name() string
	ParseNotification(cred *PushCredential, data map[string]string) (map[string]any, error)
}

// ExtractAPNsData flattens an APNs-style nested payload
// (`aps{data, messageId, ...}`) into the flat string mapping a
// PushHandler consumes.
func ExtractAPNsData(payload map[string]any) map[string]string {
	flat := make(map[string]string, len(payload))
	if aps, ok := payload["aps"].(map[string]any); ok {
		if data, ok := aps["data"].(map[string]any); ok {
			for k, v := range data {
				flat[k] = fmt.Sprintf("%v", v)
			}
		}
		if mid, ok := aps["messageId"]; ok {
			flat["messageId"] = fmt.Sprintf("%v", mid)
		}
	}
	for k, v := range payload {
		if k == "aps" {
			continue
		}
		if s, ok := v.(string); ok {
			flat[k] = s
		}
	}
	return flat
}

// PingAMHandler is the default PushHandler. It expects the flattened
// data to carry the signed message
// under the "message" key and verifies the JWT's HMAC-SHA256 signature
// against the owning credential's shared secret before trusting any
// claim.
type PingAMHandler struct{}

// NewPingAMHandler constructs the default platform handler.
func NewPingAMHandler() *PingAMHandler { return &PingAMHandler{} }

func (h *PingAMHandler) Name() string { return "pingam" }

func (h *PingAMHandler) ParseNotification(cred *PushCredential, data map[string]string) (map[string]any, error) {
	raw, ok := data["message"]
	if !ok || raw == "" {
		return nil, handlerMissing("notification payload missing signed message")
	}

	key, err := cred.secretKey()
	if err != nil {
		return nil, err
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, invalidParameterValue("invalid notification signature: " + err.Error())
	}

	out := map[string]any{"credentialId": cred.ID}
	for k, v := range claims {
		out[k] = v
	}
	if _, ok := out["messageId"]; !ok {
		if mid, ok := data["messageId"]; ok {
			out["messageId"] = mid
		}
	}
	return out, nil
}
