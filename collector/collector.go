// Package collector implements the typed field abstraction the
// workflow engine uses to represent every server-defined form
// element. Every collector is created from server JSON, mutated by
// the embedding application, serialized into the next request payload,
// and finally closed so it can be reused for another step.
package collector

// ValidationError is one failed validation rule produced by
// Collector.Validate. Tag is a short machine-checkable name
// ("required", "invalidLength", ...); Message is a human-readable
// rendering when the server or policy supplied one.
type ValidationError struct {
	Tag     string
	Message string
}

// Collector is the capability set every form-field variant implements
//: identity, a JSON-serializable payload, validation, and a
// lifecycle hook pair (Initialize/Close).
type Collector interface {
	// ID is the server-assigned field identifier, when the server
	// supplied one (may be empty for fields addressed only by Key).
	ID() string
	// Key is the field name used as the payload key on submission.
	Key() string
	// Type is the server-supplied collector type string ("TEXT",
	// "PASSWORD", ...), the key the Registry dispatched on.
	Type() string
	// Initialize seeds the collector with the server-supplied default
	// value, if any. Called once at construction.
	Initialize(defaultValue any)
	// Payload returns the value to place under Key() in the outgoing
	// submission body. ok is false when the collector contributes
	// nothing (e.g. an untouched optional field, or a non-submitting
	// Label).
	Payload() (value any, ok bool)
	// Validate runs this collector's validation rules against its
	// current value and returns every failing rule, in a fixed order.
	// Validate is pure: calling it twice in a row without mutating the
	// collector returns identical results.
	Validate() []ValidationError
	// Close clears any stateful contents so the collector can be
	// dropped or reused. Password collectors clear their value here
	// when configured to do so.
	Close()
}

// header is the common identity block every collector variant embeds:
// the shared {id, key, type} fields plus the display label/content.
type header struct {
	id      string
	key     string
	typ     string
	label   string
	content string
}

func (h *header) ID() string  { return h.id }
func (h *header) Key() string { return h.key }
func (h *header) Type() string { return h.typ }

// Label returns the display label/content of the collector, when the
// server supplied one (button text, static label content, link text).
func (h *header) Label() string { return h.label }
