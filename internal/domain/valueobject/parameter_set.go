package valueobject

import (
	"net/url"
	"slices"
	"strings"
)

// Param is a single wire-level request parameter.
type Param struct {
	Key   string
	Value string
}

// ParameterSet is an ordered, immutable list of request parameters.
// Keys may repeat (e.g. one entry per language filter).
type ParameterSet struct {
	params []Param
}

// NewParameterSet creates a ParameterSet from the given parameters, preserving order.
func NewParameterSet(params ...Param) ParameterSet {
	return ParameterSet{params: slices.Clone(params)}
}

// With returns a copy of the set with an additional parameter appended.
func (p ParameterSet) With(key, value string) ParameterSet {
	params := make([]Param, 0, len(p.params)+1)
	params = append(params, p.params...)
	params = append(params, Param{Key: key, Value: value})
	return ParameterSet{params: params}
}

// Get returns the first value for key, or an empty string.
func (p ParameterSet) Get(key string) string {
	for _, param := range p.params {
		if param.Key == key {
			return param.Value
		}
	}
	return ""
}

// All returns every value for key in insertion order.
func (p ParameterSet) All(key string) []string {
	var values []string
	for _, param := range p.params {
		if param.Key == key {
			values = append(values, param.Value)
		}
	}
	return values
}

// Has reports whether key is present.
func (p ParameterSet) Has(key string) bool {
	return slices.ContainsFunc(p.params, func(param Param) bool { return param.Key == key })
}

// Len returns the number of parameters.
func (p ParameterSet) Len() int {
	return len(p.params)
}

// Params returns a copy of the parameters.
func (p ParameterSet) Params() []Param {
	return slices.Clone(p.params)
}

// Equal reports whether both sets hold the same parameters in the same order.
func (p ParameterSet) Equal(other ParameterSet) bool {
	return slices.Equal(p.params, other.params)
}

// Encode returns the URL query string in insertion order.
// Unlike url.Values.Encode it does not sort keys, so the output is
// reproducible from the builder's order alone.
func (p ParameterSet) Encode() string {
	var b strings.Builder
	for i, param := range p.params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(param.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(param.Value))
	}
	return b.String()
}
