package push

import (
	"encoding/base64"

	"github.com/golang-jwt/jwt/v5"
)

// secretKey decodes the credential's in-memory shared secret (stored
// as standard base64 text) back into the raw key bytes used for
// HMAC-SHA256 signing.
func (c *PushCredential) secretKey() ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(string(c.SharedSecret))
	if err != nil {
		return nil, invalidParameterValue("shared secret is not valid base64")
	}
	return decoded, nil
}

func sign(cred *PushCredential, claims jwt.MapClaims) (string, error) {
	key, err := cred.secretKey()
	if err != nil {
		return "", err
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", storageError(err)
	}
	return signed, nil
}

// signRegistrationJWT builds the registration claims
// `{challenge, deviceId, messageId, type:"register"}` plus whatever
// platform-specific fields the caller supplies.
func signRegistrationJWT(cred *PushCredential, challenge, deviceID, messageID string, platformFields map[string]string, now int64) (string, error) {
	claims := jwt.MapClaims{
		"challenge": challenge,
		"deviceId":  deviceID,
		"type":      "register",
		"iat":       now,
	}
	if messageID != "" {
		claims["messageId"] = messageID
	}
	for k, v := range platformFields {
		claims[k] = v
	}
	return sign(cred, claims)
}

// signAuthenticationJWT builds the approve/deny claims
// `{messageId, challengeResponse?, authMethod?, deny?, timestamp}`.
func signAuthenticationJWT(cred *PushCredential, messageID, challengeResponse, authMethod string, deny bool, now int64) (string, error) {
	claims := jwt.MapClaims{
		"messageId": messageID,
		"timestamp": now,
		"iat":       now,
	}
	if challengeResponse != "" {
		claims["challengeResponse"] = challengeResponse
	}
	if authMethod != "" {
		claims["authMethod"] = authMethod
	}
	if deny {
		claims["deny"] = true
	}
	return sign(cred, claims)
}

// signRefreshJWT builds the device-token refresh claims posted to
// updateEndpoint.
func signRefreshJWT(cred *PushCredential, newToken string, now int64) (string, error) {
	claims := jwt.MapClaims{
		"deviceToken": newToken,
		"type":        "refresh",
		"iat":         now,
	}
	return sign(cred, claims)
}
