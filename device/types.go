package device

import "encoding/json"

// Kind selects which device resource collection a CRUD call targets.
type Kind string

const (
	KindOATH     Kind = "2fa/oath"
	KindPush     Kind = "2fa/push"
	KindBinding  Kind = "2fa/binding"
	KindWebAuthn Kind = "2fa/webauthn"
	KindProfile  Kind = "profile"
)

// OATHDevice is a bound software/hardware OATH (HOTP/TOTP) token.
type OATHDevice struct {
	UUID       string `json:"uuid"`
	DeviceName string `json:"deviceName"`
	SharedSecret string `json:"sharedSecret,omitempty"`
	Checksum   int    `json:"checksum,omitempty"`
	Counter    int    `json:"counter,omitempty"`
	RecoveryCodes []string `json:"recoveryCodes,omitempty"`
}

// PushDevice is a bound push-authentication device.
type PushDevice struct {
	UUID               string `json:"uuid"`
	DeviceName         string `json:"deviceName"`
	Mechanism          string `json:"mechanismUid,omitempty"`
	DeviceId           string `json:"deviceId,omitempty"`
	CommunicationType  string `json:"communicationType,omitempty"`
	DeviceType         string `json:"deviceType,omitempty"`
}

// BoundDevice is a device-binding (non-MFA, trusted-device) record.
type BoundDevice struct {
	UUID        string `json:"uuid"`
	DeviceName  string `json:"deviceName"`
	DeviceId    string `json:"deviceId,omitempty"`
	LastSelected string `json:"lastSelectedDate,omitempty"`
}

// WebAuthnDevice is a bound FIDO2/WebAuthn authenticator.
type WebAuthnDevice struct {
	UUID       string `json:"uuid"`
	DeviceName string `json:"deviceName"`
	CredentialId string `json:"credentialId,omitempty"`
}

// Profile is the user's resolved device-registration profile record.
// The shape of "profile" devices is deployment-specific, so fields
// beyond uuid are kept as a raw attribute map.
type Profile struct {
	UUID       string
	Attributes map[string]any
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if uuid, ok := raw["uuid"].(string); ok {
		p.UUID = uuid
	}
	p.Attributes = raw
	return nil
}

func (p Profile) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Attributes)
}

// OATHProvisioning is the material for binding a new software OATH
// token: the raw secret plus its otpauth:// provisioning URI for QR
// display.
type OATHProvisioning struct {
	Secret string
	URI    string
}
