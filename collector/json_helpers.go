package collector

import "encoding/json"

// unmarshalLoose decodes raw into v, treating an empty/nil payload as
// "nothing to decode" rather than an error — server fields frequently
// omit the nested validation/options blocks entirely.
func unmarshalLoose(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
