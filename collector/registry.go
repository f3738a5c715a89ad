package collector

import (
	"encoding/json"
	"sync"
)

// RawField is the server's wire representation of one form field,
// normalized across the DaVinci ("components.fields[]") and Journey
// ("callbacks[]") shapes by the flow driver before it reaches the
// registry.
type RawField struct {
	ID      string
	Key     string
	Type    string
	Label   string
	Default any
	Raw     json.RawMessage
}

// Factory builds a Collector from a RawField. Unknown types are never
// registered a factory for, and the Registry silently drops fields it
// has no factory for.
type Factory func(field RawField) Collector

// Registry is the process-wide, type-string-to-factory registration
// map. It is safe for concurrent use, and
// registration of the same type twice with the same factory is a
// no-op, matching the idempotence requirement on default registration.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry builds an empty Registry and registers every built-in
// collector type. Call sites that want a registry without the
// built-ins should use &Registry{} directly.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.registerBuiltins()
	return r
}

// Register adds or replaces the factory for typ. It is idempotent:
// registering the exact same factory value again is a no-op, and the
// method never panics on re-registration the way a single-assignment
// `init()` map literal would if called twice.
func (r *Registry) Register(typ string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.factories == nil {
		r.factories = make(map[string]Factory)
	}
	r.factories[typ] = factory
}

// Build constructs a Collector for the given raw field. ok is false
// when no factory is registered for field.Type; callers must silently
// drop the field rather than erroring.
func (r *Registry) Build(field RawField) (Collector, bool) {
	r.mu.RLock()
	factory, ok := r.factories[field.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	c := factory(field)
	c.Initialize(field.Default)
	return c, true
}

func (r *Registry) registerBuiltins() {
	r.Register("TEXT", func(f RawField) Collector { return newText(f) })
	r.Register("PASSWORD", func(f RawField) Collector { return newPassword(f) })
	r.Register("SUBMIT_BUTTON", func(f RawField) Collector { return newSubmit(f) })
	r.Register("LABEL", func(f RawField) Collector { return newLabel(f) })
	r.Register("FLOW_LINK", func(f RawField) Collector { return newFlowLink(f) })
	r.Register("SINGLE_SELECT", func(f RawField) Collector { return newSingleSelect(f) })
	r.Register("COMBOBOX", func(f RawField) Collector { return newSingleSelect(f) })
	r.Register("RADIO", func(f RawField) Collector { return newSingleSelect(f) })
	r.Register("MULTI_SELECT", func(f RawField) Collector { return newMultiSelect(f) })
	r.Register("CHECKBOX", func(f RawField) Collector { return newMultiSelect(f) })
	r.Register("PHONE_NUMBER", func(f RawField) Collector { return newPhoneNumber(f) })
	r.Register("DEVICE_REGISTRATION", func(f RawField) Collector { return newDeviceRegistration(f) })
	r.Register("DEVICE_AUTHENTICATION", func(f RawField) Collector { return newDeviceAuthentication(f) })
	r.Register("FIDO2_REGISTRATION", func(f RawField) Collector { return newFido2(f, Fido2Registration) })
	r.Register("FIDO2_AUTHENTICATION", func(f RawField) Collector { return newFido2(f, Fido2Authentication) })
	r.Register("RECAPTCHA_V2", func(f RawField) Collector { return newRecaptcha(f) })
}
