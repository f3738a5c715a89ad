package collector

// Recaptcha carries a reCAPTCHA site key the embedding app must solve
// via its own reCAPTCHA provider binding, and the resulting token.
type Recaptcha struct {
	header
	SiteKey string
	Token   string
}

func newRecaptcha(f RawField) *Recaptcha {
	v := struct {
		SiteKey string `json:"siteKey"`
	}{}
	_ = unmarshalLoose(f.Raw, &v)
	return &Recaptcha{
		header:  header{id: f.ID, key: f.Key, typ: f.Type, label: f.Label},
		SiteKey: v.SiteKey,
	}
}

func (r *Recaptcha) Initialize(defaultValue any) {}

func (r *Recaptcha) Payload() (any, bool) {
	if r.Token == "" {
		return nil, false
	}
	return r.Token, true
}

func (r *Recaptcha) Validate() []ValidationError {
	if r.Token == "" {
		return []ValidationError{{Tag: "required"}}
	}
	return nil
}

func (r *Recaptcha) Close() { r.Token = "" }
