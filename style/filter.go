package style

import (
	"strconv"
	"strings"

	"github.com/b1naryth1ef/geotile/tiledata"
	"github.com/zclconf/go-cty/cty"
)

type Op string

const (
	// OpAlways is the empty filter, it accepts every feature.
	OpAlways            Op = ""
	OpEquals            Op = "=="
	OpNotEquals         Op = "!="
	OpLessThan          Op = "<"
	OpLessThanEquals    Op = "<="
	OpGreaterThan       Op = ">"
	OpGreaterThanEquals Op = ">="
	OpIn                Op = "in"
	OpNotIn             Op = "!in"
	OpHas               Op = "has"
	OpNotHas            Op = "!has"
	OpAll               Op = "all"
	OpAny               Op = "any"
	OpNone              Op = "none"
)

const (
	TypeKey = "$type"
	IDKey   = "$id"
)

// Filter is a predicate over a feature's geometry type, id and properties.
// Comparison ops use Key and Values, combinators use Filters.
type Filter struct {
	Op      Op
	Key     string
	Values  []cty.Value
	Filters []Filter
}

// FilterFeature is the part of a feature a filter can see.
type FilterFeature interface {
	Type() tiledata.FeatureType
	ID() (cty.Value, bool)
	Property(key string) (cty.Value, bool)
}

func Equals(key string, v cty.Value) Filter {
	return Filter{Op: OpEquals, Key: key, Values: []cty.Value{v}}
}

func NotEquals(key string, v cty.Value) Filter {
	return Filter{Op: OpNotEquals, Key: key, Values: []cty.Value{v}}
}

func In(key string, vs ...cty.Value) Filter {
	return Filter{Op: OpIn, Key: key, Values: vs}
}

func Has(key string) Filter {
	return Filter{Op: OpHas, Key: key}
}

func All(fs ...Filter) Filter {
	return Filter{Op: OpAll, Filters: fs}
}

func Any(fs ...Filter) Filter {
	return Filter{Op: OpAny, Filters: fs}
}

// Evaluate reports whether f passes the filter.
func (flt Filter) Evaluate(f FilterFeature) bool {
	switch flt.Op {
	case OpAlways:
		return true
	case OpAll:
		for _, sub := range flt.Filters {
			if !sub.Evaluate(f) {
				return false
			}
		}
		return true
	case OpAny:
		for _, sub := range flt.Filters {
			if sub.Evaluate(f) {
				return true
			}
		}
		return false
	case OpNone:
		for _, sub := range flt.Filters {
			if sub.Evaluate(f) {
				return false
			}
		}
		return true
	case OpHas:
		_, ok := lookup(f, flt.Key)
		return ok
	case OpNotHas:
		_, ok := lookup(f, flt.Key)
		return !ok
	case OpIn, OpNotIn:
		v, ok := lookup(f, flt.Key)
		found := false
		if ok {
			for _, want := range flt.Values {
				if valuesEqual(v, want) {
					found = true
					break
				}
			}
		}
		return found == (flt.Op == OpIn)
	}

	v, ok := lookup(f, flt.Key)
	if len(flt.Values) == 0 {
		return false
	}
	want := flt.Values[0]

	switch flt.Op {
	case OpEquals:
		return ok && valuesEqual(v, want)
	case OpNotEquals:
		return !ok || !valuesEqual(v, want)
	}

	if !ok {
		return false
	}
	cmp, valid := compareValues(v, want)
	if !valid {
		return false
	}
	switch flt.Op {
	case OpLessThan:
		return cmp < 0
	case OpLessThanEquals:
		return cmp <= 0
	case OpGreaterThan:
		return cmp > 0
	case OpGreaterThanEquals:
		return cmp >= 0
	}
	return false
}

func lookup(f FilterFeature, key string) (cty.Value, bool) {
	switch key {
	case TypeKey:
		return cty.StringVal(f.Type().String()), true
	case IDKey:
		return f.ID()
	}
	return f.Property(key)
}

// valuesEqual compares scalars; numbers compare by value regardless of how
// they were encoded.
func valuesEqual(a, b cty.Value) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	if a.Type().Equals(cty.Bool) && b.Type().Equals(cty.Bool) {
		return a.True() == b.True()
	}
	return false
}

// compareValues orders two numbers or two strings. Any other pairing is not
// comparable.
func compareValues(a, b cty.Value) (int, bool) {
	if a.IsNull() || b.IsNull() || !a.IsKnown() || !b.IsKnown() {
		return 0, false
	}
	switch {
	case a.Type().Equals(cty.Number) && b.Type().Equals(cty.Number):
		return a.AsBigFloat().Cmp(b.AsBigFloat()), true
	case a.Type().Equals(cty.String) && b.Type().Equals(cty.String):
		return strings.Compare(a.AsString(), b.AsString()), true
	}
	return 0, false
}

// String renders the filter in its array form. The output is canonical and
// used when grouping layers.
func (flt Filter) String() string {
	if flt.Op == OpAlways {
		return "null"
	}

	parts := []string{strconv.Quote(string(flt.Op))}
	switch flt.Op {
	case OpAll, OpAny, OpNone:
		for _, sub := range flt.Filters {
			parts = append(parts, sub.String())
		}
	default:
		parts = append(parts, strconv.Quote(flt.Key))
		for _, v := range flt.Values {
			parts = append(parts, formatValue(v))
		}
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func formatValue(v cty.Value) string {
	if v.IsNull() || !v.IsKnown() {
		return "null"
	}
	switch {
	case v.Type().Equals(cty.String):
		return strconv.Quote(v.AsString())
	case v.Type().Equals(cty.Number):
		return v.AsBigFloat().Text('g', -1)
	case v.Type().Equals(cty.Bool):
		return strconv.FormatBool(v.True())
	}
	return v.GoString()
}
