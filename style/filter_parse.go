package style

import (
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

var ErrInvalidFilter = errors.New("invalid filter")

// ParseFilter reads a filter expression in array form, as written in HCL:
//
//	filter = ["all", ["==", "$type", "Polygon"], ["in", "class", "park", "forest"]]
//
// A null value yields the filter that accepts everything.
func ParseFilter(v cty.Value) (Filter, error) {
	if v.IsNull() {
		return Filter{}, nil
	}
	if !v.IsWhollyKnown() {
		return Filter{}, fmt.Errorf("%w: value is not known", ErrInvalidFilter)
	}

	ty := v.Type()
	if !ty.IsTupleType() && !ty.IsListType() {
		return Filter{}, fmt.Errorf("%w: expected an array, got %s", ErrInvalidFilter, ty.FriendlyName())
	}

	elems := v.AsValueSlice()
	if len(elems) == 0 {
		return Filter{}, fmt.Errorf("%w: empty array", ErrInvalidFilter)
	}
	if !elems[0].Type().Equals(cty.String) {
		return Filter{}, fmt.Errorf("%w: operator must be a string", ErrInvalidFilter)
	}

	op := Op(elems[0].AsString())
	args := elems[1:]

	switch op {
	case OpAll, OpAny, OpNone:
		flt := Filter{Op: op}
		for i, arg := range args {
			sub, err := ParseFilter(arg)
			if err != nil {
				return Filter{}, fmt.Errorf("%s[%d]: %w", op, i, err)
			}
			flt.Filters = append(flt.Filters, sub)
		}
		return flt, nil

	case OpHas, OpNotHas:
		if len(args) != 1 {
			return Filter{}, fmt.Errorf("%w: %q takes one key", ErrInvalidFilter, op)
		}
		key, err := parseKey(args[0])
		if err != nil {
			return Filter{}, err
		}
		return Filter{Op: op, Key: key}, nil

	case OpIn, OpNotIn:
		if len(args) < 1 {
			return Filter{}, fmt.Errorf("%w: %q needs a key", ErrInvalidFilter, op)
		}
		key, err := parseKey(args[0])
		if err != nil {
			return Filter{}, err
		}
		values, err := parseValues(args[1:])
		if err != nil {
			return Filter{}, err
		}
		return Filter{Op: op, Key: key, Values: values}, nil

	case OpEquals, OpNotEquals, OpLessThan, OpLessThanEquals, OpGreaterThan, OpGreaterThanEquals:
		if len(args) != 2 {
			return Filter{}, fmt.Errorf("%w: %q takes a key and a value", ErrInvalidFilter, op)
		}
		key, err := parseKey(args[0])
		if err != nil {
			return Filter{}, err
		}
		values, err := parseValues(args[1:])
		if err != nil {
			return Filter{}, err
		}
		return Filter{Op: op, Key: key, Values: values}, nil
	}

	return Filter{}, fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, op)
}

func parseKey(v cty.Value) (string, error) {
	if v.IsNull() || !v.Type().Equals(cty.String) {
		return "", fmt.Errorf("%w: key must be a string", ErrInvalidFilter)
	}
	return v.AsString(), nil
}

func parseValues(vs []cty.Value) ([]cty.Value, error) {
	out := make([]cty.Value, 0, len(vs))
	for _, v := range vs {
		if v.IsNull() || !v.Type().IsPrimitiveType() {
			return nil, fmt.Errorf("%w: values must be strings, numbers or booleans", ErrInvalidFilter)
		}
		out = append(out, v)
	}
	return out, nil
}
