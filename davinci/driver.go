// Package davinci implements the flow driver: it turns raw
// DaVinci/Journey server JSON into node.Node values, binds collectors
// from the process-wide registry, and builds the follow-up submission
// request from a ContinueNode's collected values.
package davinci

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/xid"

	"github.com/pingidentity/davincikit/capability"
	"github.com/pingidentity/davincikit/collector"
	"github.com/pingidentity/davincikit/node"
	"github.com/pingidentity/davincikit/policy"
)

// recoverableCodes is the set of server codes that, on an HTTP 400
// response, yield a recoverable ErrorNode rather than a terminal
// FailureNode.
var recoverableCodes = map[string]bool{
	"INVALID_REQUEST":  true,
	"INVALID_PASSWORD": true,
	"VALIDATION_ERROR": true,
	"INVALID_DATA":     true,
}

// Config configures a Driver instance.
type Config struct {
	// BaseURL is the DaVinci/Journey flow endpoint, e.g. the authorize
	// URL the OIDC module injects on the first exchange.
	BaseURL string
	// Registry resolves field "type"/"inputType" strings to collector
	// factories. Defaults to collector.NewRegistry() when nil.
	Registry *collector.Registry
}

// Driver implements workflow.Driver for the DaVinci/Journey protocol.
type Driver struct {
	baseURL  string
	registry *collector.Registry
}

// New builds a Driver. Registry defaults to the built-in set.
func New(cfg Config) *Driver {
	reg := cfg.Registry
	if reg == nil {
		reg = collector.NewRegistry()
	}
	return &Driver{baseURL: cfg.BaseURL, registry: reg}
}

// InitialRequest issues a bare GET against BaseURL. The OIDC authorize
// module (package oidc) rewrites this into the full authorize request
// from its own `next` handler on the first exchange of a flow.
func (d *Driver) InitialRequest(ctx context.Context) (capability.Request, error) {
	return capability.Request{Method: http.MethodGet, URL: d.baseURL}, nil
}

// SubmitRequest serializes current's collectors in order into a form
// body, adds the actionKey if it names a Submit/FlowLink collector, and
// POSTs to the node's own submission URL when the server supplied one
// via Input, falling back to BaseURL.
func (d *Driver) SubmitRequest(ctx context.Context, current *node.ContinueNode, actionKey string) (capability.Request, error) {
	values := url.Values{}
	for _, c := range current.Collectors {
		switch t := c.(type) {
		case *collector.Submit:
			t.Activate(t.Key() == actionKey || t.ID() == actionKey)
		case *collector.FlowLink:
			t.Activate(t.Key() == actionKey || t.ID() == actionKey)
		}
		v, ok := c.Payload()
		if !ok || v == nil {
			continue
		}
		switch payload := v.(type) {
		case string:
			values.Set(c.Key(), payload)
		case []string:
			values[c.Key()] = payload
		case json.RawMessage:
			values.Set(c.Key(), string(payload))
		default:
			data, err := json.Marshal(payload)
			if err != nil {
				return capability.Request{}, fmt.Errorf("davinci: encoding payload for %q: %w", c.Key(), err)
			}
			values.Set(c.Key(), string(data))
		}
	}

	req := capability.Request{
		Method: http.MethodPost,
		URL:    submissionURL(d.baseURL, current),
		Body:   []byte(values.Encode()),
	}
	req.SetHeader("Content-Type", "application/x-www-form-urlencoded")
	req.SetHeader("X-Correlation-ID", xid.New().String())
	return req, nil
}

func submissionURL(base string, current *node.ContinueNode) string {
	var wire continueWire
	if current != nil && len(current.Input) > 0 {
		_ = json.Unmarshal(current.Input, &wire)
	}
	if wire.Links.Next.Href != "" {
		return wire.Links.Next.Href
	}
	return base
}

// wire shapes mirror the two server protocols; davinci uses
// form.components.fields, Journey uses callbacks. Both are decoded
// loosely: a field absent in one protocol simply stays zero-valued.
type continueWire struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Code        string          `json:"code"`
	Message     string          `json:"message"`
	Session     string          `json:"session"`
	Error       *wireError      `json:"error"`
	Form        *wireForm       `json:"form"`
	Callbacks   []wireCallback  `json:"callbacks"`
	Details     []wireDetail    `json:"details"`
	Links       struct {
		Next struct {
			Href string `json:"href"`
		} `json:"next"`
	} `json:"_links"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wireForm struct {
	Name       string `json:"name"`
	Components struct {
		Fields []json.RawMessage `json:"fields"`
	} `json:"components"`
}

// wireField is decoded independently from each field's raw bytes so
// the raw bytes themselves survive into collector.RawField.Raw for the
// variant constructors to parse their own type-specific shape from
// (options, required flags, password policy, ...).
type wireField struct {
	ID      string          `json:"id"`
	Key     string          `json:"key"`
	Type    string          `json:"type"`
	Label   string          `json:"label"`
	Default json.RawMessage `json:"defaultValue"`
}

// wireCallback is the Journey equivalent of wireField: callbacks carry
// inputType instead of type and key their outputs by name/value arrays,
// which ParseResponse normalizes into the same RawField shape.
type wireCallback struct {
	Type    string `json:"type"`
	Output  []struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	} `json:"output"`
	Input []struct {
		Name string `json:"name"`
	} `json:"input"`
}

type wireDetail struct {
	Code       string         `json:"code"`
	Target     string         `json:"target"`
	Message    string         `json:"message"`
	InnerError wireInnerError `json:"innerError"`
}

// wireInnerError nests the per-rule message map one level down, under
// "errors", matching the server's password-policy breakdown shape.
type wireInnerError struct {
	Errors map[string]string `json:"errors"`
}

// passwordPolicyWire is the server's password-policy shape, decoded
// from a field's raw JSON when present.
type passwordPolicyWire struct {
	Length struct {
		Min int `json:"min"`
		Max int `json:"max"`
	} `json:"length"`
	MinUniqueCharacters   int             `json:"minUniqueCharacters"`
	MaxRepeatedCharacters int             `json:"maxRepeatedCharacters"`
	MinCharacters         json.RawMessage `json:"minCharacters"`
}

// orderedCharacterClasses decodes a minCharacters object preserving
// source key order, which a plain map[string]int would lose.
func orderedCharacterClasses(raw json.RawMessage) []policy.CharacterClass {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}
	var classes []policy.CharacterClass
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			break
		}
		key, _ := keyTok.(string)
		var min int
		if err := dec.Decode(&min); err != nil {
			break
		}
		classes = append(classes, policy.CharacterClass{Name: key, Min: min})
	}
	return classes
}

// ParseResponse classifies resp into exactly one node.Node variant.
func (d *Driver) ParseResponse(ctx context.Context, resp capability.Response, origin *node.ContinueNode) (node.Node, error) {
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Headers.Get("Location")
		return &node.FailureNode{Cause: fmt.Errorf("davinci: redirect to %s", loc)}, nil
	}

	var wire continueWire
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &wire); err != nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return &node.FailureNode{Cause: fmt.Errorf("davinci: malformed success body: %w", err)}, nil
			}
		}
	}

	if resp.StatusCode >= 400 {
		code := wire.Code
		if code == "" && wire.Error != nil {
			code = wire.Error.Code
		}
		if resp.StatusCode == http.StatusBadRequest && code != "" && (recoverableCodes[code] || hasPasswordDetail(wire.Details)) {
			return &node.ErrorNode{
				Input:        resp.Body,
				Message:      errorMessage(wire, code),
				Details:      toErrorDetails(wire.Details),
				ContinueNode: origin,
				StatusCode:   resp.StatusCode,
			}, nil
		}
		return &node.FailureNode{Cause: fmt.Errorf("davinci: server error %d: %s", resp.StatusCode, errorMessage(wire, code))}, nil
	}

	if wire.Status == "FAILED" || (wire.Error != nil && wire.Error.Code != "") {
		code := ""
		if wire.Error != nil {
			code = wire.Error.Code
		}
		return &node.FailureNode{Cause: fmt.Errorf("davinci: %s", errorMessage(wire, code))}, nil
	}

	if isSuccess(wire.Status) {
		return &node.SuccessNode{Input: resp.Body, Session: wire.Session}, nil
	}

	fields := d.normalizeFields(wire)
	if fields != nil {
		return d.buildContinueNode(wire, fields), nil
	}

	return &node.FailureNode{Cause: fmt.Errorf("davinci: unrecognized response shape")}, nil
}

func isSuccess(status string) bool {
	switch status {
	case "COMPLETED", "SUCCESS":
		return true
	default:
		return false
	}
}

func hasPasswordDetail(details []wireDetail) bool {
	for _, d := range details {
		if len(d.InnerError.Errors) > 0 {
			return true
		}
	}
	return false
}

func errorMessage(wire continueWire, code string) string {
	if wire.Message != "" {
		return wire.Message
	}
	if wire.Error != nil && wire.Error.Message != "" {
		return wire.Error.Message
	}
	return code
}

func toErrorDetails(details []wireDetail) []node.ErrorDetail {
	out := make([]node.ErrorDetail, 0, len(details))
	for _, d := range details {
		out = append(out, node.ErrorDetail{
			Code:       d.Code,
			Target:     d.Target,
			Message:    d.Message,
			InnerError: d.InnerError.Errors,
		})
	}
	return out
}

// normalizeFields returns nil when the response carries neither a
// DaVinci form nor a Journey callbacks array — the caller treats that
// as "not a continue step".
func (d *Driver) normalizeFields(wire continueWire) []collector.RawField {
	if wire.Form != nil && len(wire.Form.Components.Fields) > 0 {
		fields := make([]collector.RawField, 0, len(wire.Form.Components.Fields))
		for _, raw := range wire.Form.Components.Fields {
			var f wireField
			if err := json.Unmarshal(raw, &f); err != nil {
				continue
			}
			var def any
			if len(f.Default) > 0 {
				_ = json.Unmarshal(f.Default, &def)
			}
			fields = append(fields, collector.RawField{
				ID: f.ID, Key: f.Key, Type: f.Type, Label: f.Label,
				Default: def, Raw: raw,
			})
		}
		return fields
	}
	if len(wire.Callbacks) > 0 {
		fields := make([]collector.RawField, 0, len(wire.Callbacks))
		for i, cb := range wire.Callbacks {
			key := fmt.Sprintf("callback_%d", i)
			var def any
			for _, out := range cb.Output {
				if out.Name == "value" || out.Name == "prompt" {
					_ = json.Unmarshal(out.Value, &def)
				}
			}
			fields = append(fields, collector.RawField{
				Key: key, Type: cb.Type, Default: def,
			})
		}
		return fields
	}
	if wire.Form != nil {
		return []collector.RawField{}
	}
	return nil
}

func (d *Driver) buildContinueNode(wire continueWire, fields []collector.RawField) *node.ContinueNode {
	var collectors []collector.Collector
	var actions []string
	var policyWire passwordPolicyWire
	havePolicy := false
	for _, f := range fields {
		if f.Type != "PASSWORD" {
			continue
		}
		var wrap struct {
			Policy *passwordPolicyWire `json:"passwordPolicy"`
		}
		if err := json.Unmarshal(f.Raw, &wrap); err == nil && wrap.Policy != nil {
			policyWire = *wrap.Policy
			havePolicy = true
		}
	}

	for _, f := range fields {
		c, ok := d.registry.Build(f)
		if !ok {
			continue
		}
		if pw, ok := c.(*collector.Password); ok && havePolicy {
			p := policy.Policy{
				MinLength:             policyWire.Length.Min,
				MaxLength:             policyWire.Length.Max,
				MinUniqueCharacters:   policyWire.MinUniqueCharacters,
				MaxRepeatedCharacters: policyWire.MaxRepeatedCharacters,
				MinCharacters:         orderedCharacterClasses(policyWire.MinCharacters),
			}
			pw.BindPolicy(func(password string) []string { return policy.Validate(p, password) })
		}
		collectors = append(collectors, c)
		if f.Type == "SUBMIT_BUTTON" || f.Type == "FLOW_LINK" {
			actions = append(actions, f.Key)
		}
	}

	name := ""
	if wire.Form != nil {
		name = wire.Form.Name
	}

	raw, _ := json.Marshal(wire)
	return node.NewContinueNode(wire.ID, name, "", "", raw, collectors, actions, nil)
}
