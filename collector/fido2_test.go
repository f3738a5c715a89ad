package collector

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFido2Action(t *testing.T) {
	kind, err := ParseFido2Action("webauthn_registration")
	require.NoError(t, err)
	assert.Equal(t, Fido2Registration, kind)

	kind, err = ParseFido2Action("webauthn_authentication")
	require.NoError(t, err)
	assert.Equal(t, Fido2Authentication, kind)

	_, err = ParseFido2Action("")
	var fe *Fido2Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "invalidAction", fe.Kind)

	_, err = ParseFido2Action("webauthn_attest")
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "unsupportedAction", fe.Kind)
	assert.Equal(t, "webauthn_attest", fe.Action)
}

func TestFido2Challenge(t *testing.T) {
	raw := json.RawMessage(`{"challenge": "Y2hhbGxlbmdl", "rp": {"name": "Example"}}`)
	c := newFido2(RawField{Key: "fido2", Type: "FIDO2_REGISTRATION", Raw: raw}, Fido2Registration)

	challenge, err := c.Challenge()
	require.NoError(t, err)
	assert.NotEmpty(t, challenge)

	empty := newFido2(RawField{Key: "fido2", Type: "FIDO2_AUTHENTICATION"}, Fido2Authentication)
	_, err = empty.Challenge()
	var fe *Fido2Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "invalidChallenge", fe.Kind)
}

func TestFido2SetPlatformResult(t *testing.T) {
	c := newFido2(RawField{Key: "fido2", Type: "FIDO2_AUTHENTICATION"}, Fido2Authentication)

	cause := errors.New("user cancelled")
	err := c.SetPlatformResult(nil, cause)
	var fe *Fido2Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "platformError", fe.Kind)
	assert.ErrorIs(t, err, cause)
	assert.NotEmpty(t, c.Validate(), "a failed ceremony must leave the collector unsatisfied")

	err = c.SetPlatformResult(json.RawMessage(`{not json`), nil)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "platformError", fe.Kind)

	require.NoError(t, c.SetPlatformResult(json.RawMessage(`{"id":"cred","response":{}}`), nil))
	assert.Empty(t, c.Validate())
	payload, ok := c.Payload()
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"cred","response":{}}`, string(payload.(json.RawMessage)))
}
