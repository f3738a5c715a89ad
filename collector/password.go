package collector

// PolicyValidator validates a candidate password against a policy and
// returns the ordered validation-error tags. The flow driver builds one
// as a closure over policy.Validate and a parsed policy; the indirection avoids collector
// importing the policy package (policy has no reason to know about
// collectors) while still letting Password delegate to it.
type PolicyValidator func(password string) []string

// Password is a password-entry field. Its value is cleared on Close
// when ClearOnClose is true, and — by the engine calling
// node.ContinueNode.ClearPasswords — after any submission that
// produces an ErrorNode.
type Password struct {
	header
	Value        string
	ClearOnClose bool
	Validate_    PolicyValidator // optional; nil means "no policy bound"
}

func newPassword(f RawField) *Password {
	v := struct {
		ClearPassword bool `json:"clearPassword"`
	}{ClearPassword: true}
	_ = unmarshalLoose(f.Raw, &v)
	return &Password{
		header:       header{id: f.ID, key: f.Key, typ: f.Type, label: f.Label},
		ClearOnClose: v.ClearPassword,
	}
}

func (p *Password) Initialize(defaultValue any) {
	if s, ok := defaultValue.(string); ok {
		p.Value = s
	}
}

func (p *Password) Payload() (any, bool) {
	return p.Value, true
}

func (p *Password) Validate() []ValidationError {
	if p.Validate_ == nil {
		return nil
	}
	var errs []ValidationError
	for _, tag := range p.Validate_(p.Value) {
		errs = append(errs, ValidationError{Tag: tag})
	}
	return errs
}

func (p *Password) Close() {
	if p.ClearOnClose {
		p.Clear()
	}
}

// Clear empties the password value regardless of ClearOnClose. The
// engine calls this directly when reusing a ContinueNode after an
// ErrorNode, independent of the collector's own
// close-time policy.
func (p *Password) Clear() {
	p.Value = ""
}

// BindPolicy attaches a password-policy validator, invoked as part of
// Validate. The flow driver calls this once it has parsed the
// server-supplied PasswordPolicy for this field.
func (p *Password) BindPolicy(v PolicyValidator) {
	p.Validate_ = v
}
