package push

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// ParseURI parses a pushauth://push/<issuer:account>?... or
// mfauth://<type>/<issuer:account>?... registration URI into a
// PushCredential.
func ParseURI(raw string) (*PushCredential, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, invalidURI(err.Error())
	}

	switch u.Scheme {
	case "pushauth":
		if u.Host != "push" {
			return nil, invalidURI("Invalid URI scheme")
		}
	case "mfauth":
		// u.Host carries the mfauth type segment; any value is accepted.
	default:
		return nil, invalidURI("Invalid URI scheme")
	}

	q := u.Query()

	regEndpoint, err := requiredB64(q, "r")
	if err != nil {
		return nil, err
	}
	authEndpointRaw, err := requiredB64(q, "a")
	if err != nil {
		return nil, err
	}
	secretRaw, err := requiredB64(q, "s")
	if err != nil {
		return nil, err
	}

	serverEndpoint := strings.SplitN(authEndpointRaw, "?_action=", 2)[0]
	secret := renormalizeBase64(secretRaw)

	label := strings.TrimPrefix(u.Path, "/")
	label, err = url.QueryUnescape(label)
	if err != nil {
		label = strings.TrimPrefix(u.Path, "/")
	}
	issuer, account := splitLabel(label)
	displayIssuer := issuer
	if v := q.Get("issuer"); v != "" {
		displayIssuer = v
		if issuer == "" {
			issuer = v
		}
	}

	cred := &PushCredential{
		Issuer:             issuer,
		DisplayIssuer:      displayIssuer,
		AccountName:        account,
		DisplayAccountName: account,
		ServerEndpoint:     serverEndpoint,
		SharedSecret:       []byte(secret),
		AdditionalData:     map[string]string{"registrationEndpoint": regEndpoint, "authenticationEndpoint": authEndpointRaw},
	}

	if v, ok := optionalB64(q, "d"); ok {
		cred.UserID = v
	}
	if v, ok := optionalB64(q, "pid"); ok {
		cred.ResourceID = v
	}
	if v, ok := optionalB64(q, "image"); ok {
		cred.ImageURL = v
	}
	if v := q.Get("b"); v != "" {
		cred.BackgroundColor = "#" + strings.TrimPrefix(v, "#")
	}
	if v, ok := optionalB64(q, "policies"); ok {
		cred.Policies = []byte(v)
	}
	if v, ok := optionalB64(q, "c"); ok {
		cred.AdditionalData["challenge"] = v
	}
	if v, ok := optionalB64(q, "l"); ok {
		cred.AdditionalData["loadBalancer"] = v
	}
	if v := q.Get("m"); v != "" {
		cred.AdditionalData["messageId"] = v
	}

	return cred, nil
}

// FormatURI is the inverse of ParseURI: it reconstructs a pushauth://
// URI from the stored (non-display) fields, preserving round-trip
// equality up to parameter order and padding.
func FormatURI(c *PushCredential) string {
	label := c.Issuer + ":" + c.AccountName
	if c.Issuer == "" {
		label = c.AccountName
	}

	q := url.Values{}
	reg := c.AdditionalData["registrationEndpoint"]
	if reg == "" {
		reg = c.RegistrationEndpoint()
	}
	auth := c.AdditionalData["authenticationEndpoint"]
	if auth == "" {
		auth = c.AuthenticationEndpoint()
	}
	q.Set("r", b64(reg))
	q.Set("a", b64(auth))
	// SharedSecret is stored as a standard-base64, padded string; the wire
	// form re-encodes the same underlying bytes as base64url.
	secretBytes, err := base64.StdEncoding.DecodeString(string(c.SharedSecret))
	if err != nil {
		secretBytes = c.SharedSecret
	}
	q.Set("s", base64.RawURLEncoding.EncodeToString(secretBytes))
	if c.UserID != "" {
		q.Set("d", b64(c.UserID))
	}
	if rid := c.resourceIDOrID(); rid != "" && rid != c.ID {
		q.Set("pid", b64(rid))
	}
	if c.ImageURL != "" {
		q.Set("image", b64(c.ImageURL))
	}
	if c.BackgroundColor != "" {
		q.Set("b", strings.TrimPrefix(c.BackgroundColor, "#"))
	}
	if len(c.Policies) > 0 {
		q.Set("policies", b64(string(c.Policies)))
	}
	if v, ok := c.AdditionalData["challenge"]; ok {
		q.Set("c", b64(v))
	}
	if v, ok := c.AdditionalData["loadBalancer"]; ok {
		q.Set("l", b64(v))
	}
	if v, ok := c.AdditionalData["messageId"]; ok {
		q.Set("m", v)
	}
	if c.DisplayIssuer != "" {
		q.Set("issuer", c.DisplayIssuer)
	}

	return fmt.Sprintf("pushauth://push/%s?%s", url.QueryEscape(label), q.Encode())
}

func splitLabel(label string) (issuer, account string) {
	parts := strings.SplitN(label, ":", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", label
}

func requiredB64(q url.Values, name string) (string, error) {
	raw := q.Get(name)
	if raw == "" {
		return "", invalidURI("Missing required parameter " + name)
	}
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(raw)
		if err != nil {
			return "", invalidURI("Missing required parameter " + name)
		}
	}
	return string(decoded), nil
}

func optionalB64(q url.Values, name string) (string, bool) {
	raw := q.Get(name)
	if raw == "" {
		return "", false
	}
	v, err := requiredB64(q, name)
	if err != nil {
		return "", false
	}
	return v, true
}

// renormalizeBase64 re-encodes a base64url-decoded secret as standard
// base64 with `=` padding, as stored in memory.
func renormalizeBase64(decodedSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(decodedSecret))
}

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
