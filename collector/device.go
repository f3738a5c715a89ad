package collector

// DeviceOption describes one selectable device offered by a
// DeviceRegistration or DeviceAuthentication collector.
type DeviceOption struct {
	ID          string `json:"id,omitempty"`
	Type        string `json:"type"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	IconSrc     string `json:"iconSrc,omitempty"`
}

// DeviceRegistration lets the user pick one device type to register
// for MFA (e.g. choosing between SMS, email, or an authenticator app).
type DeviceRegistration struct {
	header
	Devices  []DeviceOption
	Selected string // DeviceOption.Type of the chosen device
}

func newDeviceRegistration(f RawField) *DeviceRegistration {
	v := struct {
		Devices []DeviceOption `json:"devices"`
	}{}
	_ = unmarshalLoose(f.Raw, &v)
	return &DeviceRegistration{
		header:  header{id: f.ID, key: f.Key, typ: f.Type, label: f.Label},
		Devices: v.Devices,
	}
}

func (d *DeviceRegistration) Initialize(defaultValue any) {
	if s, ok := defaultValue.(string); ok {
		d.Selected = s
	}
}

func (d *DeviceRegistration) Payload() (any, bool) {
	return d.Selected, true
}

func (d *DeviceRegistration) Validate() []ValidationError {
	if d.Selected == "" {
		return []ValidationError{{Tag: "required"}}
	}
	return nil
}

func (d *DeviceRegistration) Close() { d.Selected = "" }

// DeviceAuthentication lets the user pick one previously-registered
// device to authenticate with.
type DeviceAuthentication struct {
	header
	Devices  []DeviceOption
	Selected string // DeviceOption.ID of the chosen device
}

func newDeviceAuthentication(f RawField) *DeviceAuthentication {
	v := struct {
		Devices []DeviceOption `json:"devices"`
	}{}
	_ = unmarshalLoose(f.Raw, &v)
	return &DeviceAuthentication{
		header:  header{id: f.ID, key: f.Key, typ: f.Type, label: f.Label},
		Devices: v.Devices,
	}
}

func (d *DeviceAuthentication) Initialize(defaultValue any) {
	if s, ok := defaultValue.(string); ok {
		d.Selected = s
	}
}

func (d *DeviceAuthentication) Payload() (any, bool) {
	return d.Selected, true
}

func (d *DeviceAuthentication) Validate() []ValidationError {
	if d.Selected == "" {
		return []ValidationError{{Tag: "required"}}
	}
	return nil
}

func (d *DeviceAuthentication) Close() { d.Selected = "" }
