package collector

import "regexp"

// Text is a free-form string field, optionally required and/or
// constrained by a server-supplied regular expression.
type Text struct {
	header
	Value    string
	Required bool
	Regex    string
}

func newText(f RawField) *Text {
	required, regex := textValidation(f.Raw)
	return &Text{
		header:   header{id: f.ID, key: f.Key, typ: f.Type, label: f.Label},
		Required: required,
		Regex:    regex,
	}
}

func (t *Text) Initialize(defaultValue any) {
	if s, ok := defaultValue.(string); ok {
		t.Value = s
	}
}

func (t *Text) Payload() (any, bool) {
	return t.Value, true
}

func (t *Text) Validate() []ValidationError {
	var errs []ValidationError
	if t.Required && t.Value == "" {
		errs = append(errs, ValidationError{Tag: "required"})
	}
	if t.Regex != "" && t.Value != "" {
		if ok, _ := regexp.MatchString(t.Regex, t.Value); !ok {
			errs = append(errs, ValidationError{Tag: "regex"})
		}
	}
	return errs
}

func (t *Text) Close() {
	t.Value = ""
}

func textValidation(raw []byte) (required bool, regex string) {
	v := struct {
		Required   bool   `json:"required"`
		Validation struct {
			Regex string `json:"regex"`
		} `json:"validation"`
	}{}
	_ = unmarshalLoose(raw, &v)
	return v.Required, v.Validation.Regex
}
