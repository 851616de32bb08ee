// Package model defines the core data types for the style engine.
// Struct tags (the `json:"..."` and `db:"..."` annotations) tell
// serialization libraries how to map fields.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Base model identifiers referenced by style presets.
const (
	BaseModelSDXL = "stable-diffusion-xl"
	BaseModelSD21 = "stable-diffusion-v2.1"
	BaseModelSD15 = "stable-diffusion-v1.5"
)

// ParamKind tags the value held by a ParamValue.
type ParamKind uint8

const (
	ParamNumber ParamKind = iota + 1
	ParamString
	ParamBool
)

// ParamValue is a closed union of number, string, and bool. It is used for
// the open-ended extra technical parameters of a style preset.
type ParamValue struct {
	kind ParamKind
	num  float64
	str  string
	b    bool
}

func Number(v float64) ParamValue { return ParamValue{kind: ParamNumber, num: v} }
func String(v string) ParamValue  { return ParamValue{kind: ParamString, str: v} }
func Bool(v bool) ParamValue      { return ParamValue{kind: ParamBool, b: v} }

func (p ParamValue) Kind() ParamKind { return p.kind }

// Float returns the numeric value and whether the value is a number.
func (p ParamValue) Float() (float64, bool) { return p.num, p.kind == ParamNumber }

// Text returns the string value and whether the value is a string.
func (p ParamValue) Text() (string, bool) { return p.str, p.kind == ParamString }

// Flag returns the bool value and whether the value is a bool.
func (p ParamValue) Flag() (bool, bool) { return p.b, p.kind == ParamBool }

func (p ParamValue) String() string {
	switch p.kind {
	case ParamNumber:
		return strconv.FormatFloat(p.num, 'g', -1, 64)
	case ParamString:
		return p.str
	case ParamBool:
		return strconv.FormatBool(p.b)
	default:
		return ""
	}
}

func (p ParamValue) MarshalJSON() ([]byte, error) {
	switch p.kind {
	case ParamNumber:
		return json.Marshal(p.num)
	case ParamString:
		return json.Marshal(p.str)
	case ParamBool:
		return json.Marshal(p.b)
	default:
		return []byte("null"), nil
	}
}

func (p *ParamValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*p = Number(v)
	case string:
		*p = String(v)
	case bool:
		*p = Bool(v)
	default:
		return fmt.Errorf("unsupported parameter value %s", string(data))
	}
	return nil
}

// TechnicalParams are the generation parameters a style carries.
// Guidance and BaseModel are always present; anything else lives in Extra.
type TechnicalParams struct {
	Guidance  float64               `json:"guidance"`
	BaseModel string                `json:"baseModel"`
	Extra     map[string]ParamValue `json:"extra,omitempty"`
}

// StylePreset is an immutable catalog entry describing one visual style.
type StylePreset struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	Prompt          string          `json:"prompt"`
	NegativePrompt  string          `json:"negativePrompt"`
	MixCompatible   bool            `json:"mixCompatible"`
	TechnicalParams TechnicalParams `json:"technicalParams"`
}

// StyleResult is the effective generation configuration produced by
// combining one or more presets.
type StyleResult struct {
	Prompt          string                `json:"prompt"`
	NegativePrompt  string                `json:"negativePrompt"`
	Guidance        float64               `json:"guidance"`
	BaseModel       string                `json:"baseModel"`
	TechnicalParams map[string]ParamValue `json:"technicalParams"`
}
