// Package metadatafilter implements the boolean/range/set predicate
// tree that post-filters search results by vector metadata, parsed from
// a MongoDB-style JSON grammar.
package metadatafilter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vecthorn/vecthorn/internal/errs"
)

// Kind distinguishes the five predicate variants.
type Kind int

const (
	KindEquals Kind = iota
	KindIn
	KindRange
	KindAnd
	KindOr
)

// Filter is an algebraic predicate tree. Exactly one of the field
// groups is populated, per Kind.
type Filter struct {
	Kind Kind

	// Equals, In, Range
	Field string

	// Equals
	Value interface{}

	// In
	Values []interface{}

	// Range
	Min          *float64
	Max          *float64
	MinInclusive bool
	MaxInclusive bool

	// And, Or
	Children []*Filter
}

func Equals(field string, value interface{}) *Filter {
	return &Filter{Kind: KindEquals, Field: field, Value: value}
}

func In(field string, values []interface{}) *Filter {
	return &Filter{Kind: KindIn, Field: field, Values: values}
}

func And(children ...*Filter) *Filter {
	return &Filter{Kind: KindAnd, Children: children}
}

func Or(children ...*Filter) *Filter {
	return &Filter{Kind: KindOr, Children: children}
}

// ParseFilter parses the canonical JSON filter grammar (see Matches'
// sibling doc in the package, and SPEC_FULL.md §4.6 for the full
// grammar) into a Filter tree.
func ParseFilter(data []byte) (*Filter, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errs.New(errs.FilterInvalidSyntax, "metadatafilter.ParseFilter", err)
	}
	return parseValue(v)
}

func parseValue(v interface{}) (*Filter, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, errs.New(errs.FilterInvalidSyntax, "metadatafilter.ParseFilter", fmt.Errorf("filter must be a JSON object"))
	}

	if raw, ok := obj["$and"]; ok {
		return parseCombinator(KindAnd, raw)
	}
	if raw, ok := obj["$or"]; ok {
		return parseCombinator(KindOr, raw)
	}

	for key := range obj {
		if strings.HasPrefix(key, "$") {
			return nil, errs.New(errs.FilterUnsupportedOperator, "metadatafilter.ParseFilter", fmt.Errorf("unsupported operator %q", key))
		}
	}

	if len(obj) == 1 {
		for field, fv := range obj {
			return parseFieldFilter(field, fv)
		}
	}

	children := make([]*Filter, 0, len(obj))
	for field, fv := range obj {
		child, err := parseFieldFilter(field, fv)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return &Filter{Kind: KindAnd, Children: children}, nil
}

func parseCombinator(kind Kind, raw interface{}) (*Filter, error) {
	arr, ok := raw.([]interface{})
	if !ok {
		name := "$and"
		if kind == KindOr {
			name = "$or"
		}
		return nil, errs.New(errs.FilterInvalidSyntax, "metadatafilter.ParseFilter", fmt.Errorf("%s must be an array", name))
	}
	children := make([]*Filter, 0, len(arr))
	for _, item := range arr {
		child, err := parseValue(item)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return &Filter{Kind: kind, Children: children}, nil
}

func parseFieldFilter(field string, v interface{}) (*Filter, error) {
	obj, isObj := v.(map[string]interface{})
	if !isObj {
		return Equals(field, v), nil
	}

	if rawIn, ok := obj["$in"]; ok {
		arr, ok := rawIn.([]interface{})
		if !ok {
			return nil, errs.New(errs.FilterInvalidSyntax, "metadatafilter.ParseFilter", fmt.Errorf("$in value must be an array"))
		}
		return In(field, arr), nil
	}

	gte, hasGte := asFloat(obj["$gte"])
	gt, hasGt := asFloat(obj["$gt"])
	lte, hasLte := asFloat(obj["$lte"])
	lt, hasLt := asFloat(obj["$lt"])

	if hasGte && hasGt {
		return nil, errs.New(errs.FilterInvalidSyntax, "metadatafilter.ParseFilter", fmt.Errorf("cannot use both $gte and $gt on field %q", field))
	}
	if hasLte && hasLt {
		return nil, errs.New(errs.FilterInvalidSyntax, "metadatafilter.ParseFilter", fmt.Errorf("cannot use both $lte and $lt on field %q", field))
	}

	var min, max *float64
	minInclusive, maxInclusive := true, true
	switch {
	case hasGte:
		m := gte
		min = &m
		minInclusive = true
	case hasGt:
		m := gt
		min = &m
		minInclusive = false
	}
	switch {
	case hasLte:
		m := lte
		max = &m
		maxInclusive = true
	case hasLt:
		m := lt
		max = &m
		maxInclusive = false
	}

	if min != nil || max != nil {
		return &Filter{Kind: KindRange, Field: field, Min: min, Max: max, MinInclusive: minInclusive, MaxInclusive: maxInclusive}, nil
	}

	for key := range obj {
		if strings.HasPrefix(key, "$") {
			return nil, errs.New(errs.FilterUnsupportedOperator, "metadatafilter.ParseFilter", fmt.Errorf("unsupported operator %q on field %q", key, field))
		}
	}

	if len(obj) == 0 {
		return nil, errs.New(errs.FilterInvalidSyntax, "metadatafilter.ParseFilter", fmt.Errorf("empty object for field %q", field))
	}

	// No $-operators: the object itself is the value to match exactly.
	return Equals(field, v), nil
}

func asFloat(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Matches evaluates the filter against a metadata document.
func (f *Filter) Matches(metadata map[string]interface{}) bool {
	if f == nil {
		return true
	}
	switch f.Kind {
	case KindEquals:
		fv, ok := getField(metadata, f.Field)
		if !ok {
			return false
		}
		if arr, isArr := fv.([]interface{}); isArr {
			for _, item := range arr {
				if deepEqual(item, f.Value) {
					return true
				}
			}
			return false
		}
		return deepEqual(fv, f.Value)

	case KindIn:
		fv, ok := getField(metadata, f.Field)
		if !ok {
			return false
		}
		for _, v := range f.Values {
			if deepEqual(fv, v) {
				return true
			}
		}
		return false

	case KindRange:
		fv, ok := getField(metadata, f.Field)
		if !ok {
			return false
		}
		num, ok := fv.(float64)
		if !ok {
			return false
		}
		if f.Min != nil {
			if f.MinInclusive {
				if num < *f.Min {
					return false
				}
			} else if num <= *f.Min {
				return false
			}
		}
		if f.Max != nil {
			if f.MaxInclusive {
				if num > *f.Max {
					return false
				}
			} else if num >= *f.Max {
				return false
			}
		}
		return true

	case KindAnd:
		if len(f.Children) == 0 {
			return true
		}
		for _, c := range f.Children {
			if !c.Matches(metadata) {
				return false
			}
		}
		return true

	case KindOr:
		if len(f.Children) == 0 {
			return false
		}
		for _, c := range f.Children {
			if c.Matches(metadata) {
				return true
			}
		}
		return false
	}
	return false
}

// getField resolves a dot-separated path, descending only through
// object (map) nodes. A missing segment fails the lookup rather than
// being treated as null.
func getField(metadata map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = metadata
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}

func deepEqual(a, b interface{}) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}
