package collector

// Submit is a submit-button collector. It carries no validation; its
// payload is only contributed when it is the action the caller
// activated (see Activate), matching the flow driver's rule that only
// the clicked Submit/FlowLink contributes an actionKey.
type Submit struct {
	header
	activated bool
}

func newSubmit(f RawField) *Submit {
	return &Submit{header: header{id: f.ID, key: f.Key, typ: f.Type, label: f.Label}}
}

func (s *Submit) Initialize(defaultValue any) {}

// Activate marks this Submit as the one the caller clicked. The flow
// driver's SubmitRequest calls it with whether this collector's key or
// id matches the caller's actionKey.
func (s *Submit) Activate(active bool) { s.activated = active }

// Activated reports whether this collector was the clicked action.
func (s *Submit) Activated() bool { return s.activated }

func (s *Submit) Payload() (any, bool) {
	if !s.activated {
		return nil, false
	}
	return s.header.label, true
}

func (s *Submit) Validate() []ValidationError { return nil }

func (s *Submit) Close() { s.activated = false }
