package collector

import (
	"encoding/json"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
)

// Fido2Kind distinguishes a FIDO2 registration ceremony (creating a new
// credential) from an authentication ceremony (asserting an existing
// one). The server sends a different options shape for each.
type Fido2Kind int

const (
	Fido2Registration Fido2Kind = iota
	Fido2Authentication
)

// Fido2 wraps a WebAuthn ceremony. The core never performs the
// ceremony itself — the platform authenticator is an external
// capability — but it does the typed
// marshal/unmarshal of the options the server sends and the
// attestation/assertion result the platform hands back, using
// go-webauthn/webauthn/protocol's wire types instead of passing opaque
// bytes through untouched.
type Fido2 struct {
	header
	Kind             Fido2Kind
	CreationOptions  *protocol.PublicKeyCredentialCreationOptions
	RequestOptions   *protocol.PublicKeyCredentialRequestOptions
	result           json.RawMessage
}

func newFido2(f RawField, kind Fido2Kind) *Fido2 {
	c := &Fido2{
		header: header{id: f.ID, key: f.Key, typ: f.Type, label: f.Label},
		Kind:   kind,
	}
	switch kind {
	case Fido2Registration:
		var opts protocol.PublicKeyCredentialCreationOptions
		if err := unmarshalLoose(f.Raw, &opts); err == nil {
			c.CreationOptions = &opts
		}
	case Fido2Authentication:
		var opts protocol.PublicKeyCredentialRequestOptions
		if err := unmarshalLoose(f.Raw, &opts); err == nil {
			c.RequestOptions = &opts
		}
	}
	return c
}

func (f *Fido2) Initialize(defaultValue any) {}

// Challenge returns the ceremony challenge the server sent with this
// step's options. A step with no options, or options without a
// challenge, yields an invalidChallenge Fido2Error.
func (f *Fido2) Challenge() (protocol.URLEncodedBase64, error) {
	switch {
	case f.CreationOptions != nil && len(f.CreationOptions.Challenge) > 0:
		return f.CreationOptions.Challenge, nil
	case f.RequestOptions != nil && len(f.RequestOptions.Challenge) > 0:
		return f.RequestOptions.Challenge, nil
	}
	return nil, &Fido2Error{Kind: "invalidChallenge"}
}

// SetResult records the opaque attestation (registration) or assertion
// (authentication) response the platform authenticator capability
// produced, ready to be serialized into the next submission.
func (f *Fido2) SetResult(result json.RawMessage) {
	f.result = result
}

// SetPlatformResult records the outcome of the platform authenticator
// ceremony. A platform failure is wrapped as a platformError
// Fido2Error; a result that is not valid JSON is rejected the same way
// so a malformed assertion never reaches the submission payload.
func (f *Fido2) SetPlatformResult(result json.RawMessage, platformErr error) error {
	if platformErr != nil {
		return &Fido2Error{Kind: "platformError", Cause: platformErr}
	}
	if !json.Valid(result) {
		return &Fido2Error{Kind: "platformError", Cause: fmt.Errorf("authenticator returned malformed JSON")}
	}
	f.result = result
	return nil
}

// Result returns the previously recorded authenticator response, if
// any.
func (f *Fido2) Result() (json.RawMessage, bool) {
	return f.result, len(f.result) > 0
}

func (f *Fido2) Payload() (any, bool) {
	if len(f.result) == 0 {
		return nil, false
	}
	return json.RawMessage(f.result), true
}

func (f *Fido2) Validate() []ValidationError {
	if len(f.result) == 0 {
		return []ValidationError{{Tag: "required"}}
	}
	return nil
}

func (f *Fido2) Close() {
	f.result = nil
}
