// Package tree defines the closed set of value shapes that make up loader and
// plugin option payloads in an assembled bundler configuration, and the
// structural deep clone used when one configuration is fanned out into several
// build targets.
//
// A Node is exactly one of Mapping, Sequence, *Pattern or Scalar. Patterns are
// immutable and are shared by reference when cloned; every other shape is
// copied so that a clone never aliases the original at any depth.
package tree

import (
	"fmt"
	"regexp"
	"sort"
)

// Node is a value in an option tree.
type Node interface {
	// Clone returns a copy of the node that shares no mutable state with it.
	Clone() Node
	isNode()
}

// Mapping is an ordered-by-key set of named nodes.
type Mapping map[string]Node

// Sequence is an ordered list of nodes.
type Sequence []Node

// Pattern is a compiled regular expression. It is never mutated after
// construction.
type Pattern struct {
	re *regexp.Regexp
}

// Scalar wraps a string, bool, int64, float64 or nil.
type Scalar struct {
	v any
}

func (Mapping) isNode()  {}
func (Sequence) isNode() {}
func (*Pattern) isNode() {}
func (Scalar) isNode()   {}

// Clone copies every entry recursively. A nil mapping clones to nil.
func (m Mapping) Clone() Node {
	if m == nil {
		return Mapping(nil)
	}
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}

// Clone copies every element recursively. A nil sequence clones to nil.
func (s Sequence) Clone() Node {
	if s == nil {
		return Sequence(nil)
	}
	out := make(Sequence, len(s))
	for i, v := range s {
		out[i] = Clone(v)
	}
	return out
}

// Clone returns the pattern itself.
func (p *Pattern) Clone() Node { return p }

// Clone returns the scalar itself; scalars are values.
func (s Scalar) Clone() Node { return s }

// Clone is the nil-safe entry point for cloning any node.
func Clone(n Node) Node {
	if n == nil {
		return nil
	}
	return n.Clone()
}

// CloneMapping clones m and keeps the static type.
func CloneMapping(m Mapping) Mapping {
	if m == nil {
		return nil
	}
	return m.Clone().(Mapping)
}

// NewPattern compiles expr into a Pattern.
func NewPattern(expr string) (*Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return &Pattern{re: re}, nil
}

// MustPattern is like NewPattern but panics on an invalid expression. It is
// meant for expressions known at compile time.
func MustPattern(expr string) *Pattern {
	p, err := NewPattern(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// MatchString reports whether s contains a match of the pattern.
func (p *Pattern) MatchString(s string) bool {
	return p != nil && p.re.MatchString(s)
}

// String returns the source expression.
func (p *Pattern) String() string {
	if p == nil {
		return ""
	}
	return p.re.String()
}

// Regexp exposes the compiled expression for read-only use.
func (p *Pattern) Regexp() *regexp.Regexp { return p.re }

// String, Bool, Int and Float build scalars.
func String(s string) Scalar { return Scalar{v: s} }
func Bool(b bool) Scalar     { return Scalar{v: b} }
func Int(i int64) Scalar     { return Scalar{v: i} }
func Float(f float64) Scalar { return Scalar{v: f} }

// Null is the nil scalar.
var Null = Scalar{}

// Value returns the wrapped Go value.
func (s Scalar) Value() any { return s.v }

// Strings builds a sequence of string scalars.
func Strings(ss ...string) Sequence {
	out := make(Sequence, len(ss))
	for i, s := range ss {
		out[i] = String(s)
	}
	return out
}

// FromAny converts decoded YAML/JSON data into a node. Unsupported Go values
// become string scalars of their %v form.
func FromAny(v any) Node {
	switch t := v.(type) {
	case nil:
		return Null
	case Node:
		return t
	case *regexp.Regexp:
		return &Pattern{re: t}
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint64:
		return Int(int64(t))
	case float64:
		return Float(t)
	case float32:
		return Float(float64(t))
	case map[string]any:
		m := make(Mapping, len(t))
		for k, e := range t {
			m[k] = FromAny(e)
		}
		return m
	case map[any]any:
		m := make(Mapping, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = FromAny(e)
		}
		return m
	case []any:
		s := make(Sequence, len(t))
		for i, e := range t {
			s[i] = FromAny(e)
		}
		return s
	case []string:
		return Strings(t...)
	default:
		return String(fmt.Sprint(t))
	}
}

// ToAny converts a node back into plain Go values. Patterns are returned as
// their source string.
func ToAny(n Node) any {
	switch t := n.(type) {
	case nil:
		return nil
	case Mapping:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = ToAny(v)
		}
		return out
	case Sequence:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = ToAny(v)
		}
		return out
	case *Pattern:
		return t.String()
	case Scalar:
		return t.v
	default:
		return nil
	}
}

// Keys returns the mapping keys in sorted order.
func (m Mapping) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the string value at key, or "" when absent or not a string.
func (m Mapping) String(key string) string {
	if s, ok := m[key].(Scalar); ok {
		if v, ok := s.v.(string); ok {
			return v
		}
	}
	return ""
}

// Bool returns the bool value at key, or false.
func (m Mapping) Bool(key string) bool {
	if s, ok := m[key].(Scalar); ok {
		if v, ok := s.v.(bool); ok {
			return v
		}
	}
	return false
}

// Int returns the numeric value at key truncated to int64, or def.
func (m Mapping) Int(key string, def int64) int64 {
	if s, ok := m[key].(Scalar); ok {
		switch v := s.v.(type) {
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return def
}

// Map returns the nested mapping at key, or nil.
func (m Mapping) Map(key string) Mapping {
	if v, ok := m[key].(Mapping); ok {
		return v
	}
	return nil
}

// Strings returns the string elements of the sequence at key.
func (m Mapping) Strings(key string) []string {
	seq, ok := m[key].(Sequence)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(seq))
	for _, e := range seq {
		if s, ok := e.(Scalar); ok {
			if v, ok := s.v.(string); ok {
				out = append(out, v)
			}
		}
	}
	return out
}
