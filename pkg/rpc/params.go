package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Params is a JSON object whose values are decoded lazily, once the handler
// knows their shape.
type Params map[string]json.RawMessage

// NewParams encodes v, which must marshal to a JSON object. nil yields empty params.
func NewParams(v any) (Params, error) {
	if v == nil {
		return Params{}, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("error marshalling params: %w", err)
	}
	var params Params
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("error unmarshalling params: %w", err)
	}
	return params, nil
}

// Translate decodes the whole object into v.
func (p Params) Translate(v any) error {
	data, err := p.Raw()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("error unmarshalling params: %w", err)
	}
	return nil
}

// Raw returns the params as one JSON object. nil params encode as {}.
func (p Params) Raw() (json.RawMessage, error) {
	if p == nil {
		return json.RawMessage(`{}`), nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("error marshalling params: %w", err)
	}
	return data, nil
}

// Error returns the message stored under "error", or nil when there is no
// string message.
func (p Params) Error() error {
	raw, ok := p[errorParamKey]
	if !ok {
		return nil
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil
	}
	return errors.New(msg)
}

// NewErrorParams returns params carrying msg under "error".
func NewErrorParams(msg string) Params {
	raw, err := json.Marshal(msg)
	if err != nil {
		raw = []byte(`""`)
	}
	return Params{errorParamKey: raw}
}
