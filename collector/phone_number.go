package collector

import "strings"

// PhoneNumberValue is the country-code/number pair carried by a
// PhoneNumber collector.
type PhoneNumberValue struct {
	CountryCode string `json:"countryCode"`
	Number      string `json:"number"`
}

// PhoneNumber collects a phone number, optionally format-validated.
// The core
// does not embed a full libphonenumber port; when ValidateFormat is set
// it applies a conservative E.164-shape check (leading '+' optional,
// 7-15 digits after the country code) rather than pulling in the whole
// numbering-plan database for one flag.
type PhoneNumber struct {
	header
	Value          PhoneNumberValue
	ValidateFormat bool
	Required       bool
}

func newPhoneNumber(f RawField) *PhoneNumber {
	v := struct {
		ValidateFormat bool `json:"validateFormat"`
		Required       bool `json:"required"`
	}{}
	_ = unmarshalLoose(f.Raw, &v)
	return &PhoneNumber{
		header:         header{id: f.ID, key: f.Key, typ: f.Type, label: f.Label},
		ValidateFormat: v.ValidateFormat,
		Required:       v.Required,
	}
}

func (p *PhoneNumber) Initialize(defaultValue any) {
	switch v := defaultValue.(type) {
	case PhoneNumberValue:
		p.Value = v
	case map[string]any:
		if cc, ok := v["countryCode"].(string); ok {
			p.Value.CountryCode = cc
		}
		if n, ok := v["number"].(string); ok {
			p.Value.Number = n
		}
	}
}

func (p *PhoneNumber) Payload() (any, bool) {
	return map[string]string{
		"countryCode": p.Value.CountryCode,
		"number":      p.Value.Number,
	}, true
}

func (p *PhoneNumber) Validate() []ValidationError {
	var errs []ValidationError
	if p.Required && p.Value.Number == "" {
		errs = append(errs, ValidationError{Tag: "required"})
	}
	if p.ValidateFormat && p.Value.Number != "" && !isPlausiblePhoneNumber(p.Value.Number) {
		errs = append(errs, ValidationError{Tag: "invalidPhoneNumber"})
	}
	return errs
}

func (p *PhoneNumber) Close() {
	p.Value = PhoneNumberValue{}
}

func isPlausiblePhoneNumber(number string) bool {
	digits := strings.TrimPrefix(number, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
