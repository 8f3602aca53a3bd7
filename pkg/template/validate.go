package template

import (
	"bytes"
	"encoding/json"
	"sort"
)

// ValidationResult reports which required variables were not supplied.
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Missing  []string `json:"missing"`
	Provided []string `json:"provided"`
	Required []string `json:"required"`
}

// ValidateVariables checks vars against the required names. vars may be a
// map or a JSON object encoded as a string or bytes; anything that does not
// decode to an object counts as an empty mapping.
//
// A name is missing when its key is absent, its value is null, or its value
// is an empty list. An empty string is a deliberate value and is not missing.
func ValidateVariables(vars any, required []string) ValidationResult {
	m := toVariables(vars)

	res := ValidationResult{
		Missing:  []string{},
		Provided: make([]string, 0, len(m)),
		Required: required,
	}
	if res.Required == nil {
		res.Required = []string{}
	}
	for k := range m {
		res.Provided = append(res.Provided, k)
	}
	sort.Strings(res.Provided)

	for _, name := range required {
		if isMissing(m, name) {
			res.Missing = append(res.Missing, name)
		}
	}
	res.IsValid = len(res.Missing) == 0
	return res
}

func isMissing(vars map[string]any, name string) bool {
	v, ok := vars[name]
	if !ok || v == nil {
		return true
	}
	val := FromAny(v)
	switch val.Kind() {
	case KindNull:
		return true
	case KindList:
		return val.Len() == 0
	}
	return false
}

// toVariables coerces the accepted variable encodings into a map.
func toVariables(vars any) map[string]any {
	switch v := vars.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	case string:
		return decodeVariables([]byte(v))
	case []byte:
		return decodeVariables(v)
	case json.RawMessage:
		return decodeVariables(v)
	}
	val := FromAny(vars)
	if val.Kind() != KindObject {
		return map[string]any{}
	}
	m, _ := val.raw.(map[string]any)
	if m == nil {
		return map[string]any{}
	}
	return m
}

// DecodeVariables decodes a JSON object, keeping numbers as json.Number so
// that they render exactly as written. Invalid input yields an empty map.
func DecodeVariables(data []byte) map[string]any {
	return decodeVariables(data)
}

func decodeVariables(data []byte) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}
