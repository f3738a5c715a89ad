package collector

// FlowLink is a click marker (e.g. "forgot your password?") that, like
// Submit, only contributes an actionKey when activated.
type FlowLink struct {
	header
	activated bool
}

func newFlowLink(f RawField) *FlowLink {
	return &FlowLink{header: header{id: f.ID, key: f.Key, typ: f.Type, label: f.Label}}
}

func (l *FlowLink) Initialize(defaultValue any) {}

// Activate marks this FlowLink as the one the caller clicked.
func (l *FlowLink) Activate(active bool) { l.activated = active }

// Activated reports whether this collector was the clicked action.
func (l *FlowLink) Activated() bool { return l.activated }

func (l *FlowLink) Payload() (any, bool) {
	if !l.activated {
		return nil, false
	}
	return l.header.label, true
}

func (l *FlowLink) Validate() []ValidationError { return nil }
func (l *FlowLink) Close()                      { l.activated = false }
