package style

import (
	"testing"

	"github.com/b1naryth1ef/geotile/tiledata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

type fakeFeature struct {
	typ   tiledata.FeatureType
	id    cty.Value
	props map[string]cty.Value
}

func (f fakeFeature) Type() tiledata.FeatureType { return f.typ }

func (f fakeFeature) ID() (cty.Value, bool) {
	if f.id.IsNull() {
		return cty.NilVal, false
	}
	return f.id, true
}

func (f fakeFeature) Property(key string) (cty.Value, bool) {
	v, ok := f.props[key]
	return v, ok
}

func park() fakeFeature {
	return fakeFeature{
		typ: tiledata.Polygon,
		id:  cty.NumberIntVal(12),
		props: map[string]cty.Value{
			"class": cty.StringVal("park"),
			"rank":  cty.NumberFloatVal(3),
			"name":  cty.StringVal("Central"),
			"open":  cty.True,
		},
	}
}

func TestFilterEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"always", Filter{}, true},
		{"equals string", Equals("class", cty.StringVal("park")), true},
		{"equals other", Equals("class", cty.StringVal("forest")), false},
		{"equals number across encodings", Equals("rank", cty.NumberIntVal(3)), true},
		{"equals missing", Equals("missing", cty.StringVal("x")), false},
		{"equals bool", Equals("open", cty.True), true},
		{"string never equals number", Equals("class", cty.NumberIntVal(3)), false},
		{"not equals missing", NotEquals("missing", cty.StringVal("x")), true},
		{"not equals same", NotEquals("class", cty.StringVal("park")), false},
		{"type", Equals(TypeKey, cty.StringVal("Polygon")), true},
		{"type mismatch", Equals(TypeKey, cty.StringVal("Point")), false},
		{"id", Equals(IDKey, cty.NumberUIntVal(12)), true},
		{"less than", Filter{Op: OpLessThan, Key: "rank", Values: []cty.Value{cty.NumberIntVal(4)}}, true},
		{"less equals", Filter{Op: OpLessThanEquals, Key: "rank", Values: []cty.Value{cty.NumberIntVal(3)}}, true},
		{"greater than", Filter{Op: OpGreaterThan, Key: "rank", Values: []cty.Value{cty.NumberIntVal(3)}}, false},
		{"greater equals", Filter{Op: OpGreaterThanEquals, Key: "rank", Values: []cty.Value{cty.NumberIntVal(3)}}, true},
		{"string ordering", Filter{Op: OpLessThan, Key: "name", Values: []cty.Value{cty.StringVal("D")}}, true},
		{"mixed ordering", Filter{Op: OpLessThan, Key: "name", Values: []cty.Value{cty.NumberIntVal(1)}}, false},
		{"in", In("class", cty.StringVal("forest"), cty.StringVal("park")), true},
		{"in miss", In("class", cty.StringVal("forest")), false},
		{"not in", Filter{Op: OpNotIn, Key: "class", Values: []cty.Value{cty.StringVal("forest")}}, true},
		{"not in missing key", Filter{Op: OpNotIn, Key: "missing", Values: []cty.Value{cty.StringVal("forest")}}, true},
		{"has", Has("name"), true},
		{"has id", Has(IDKey), true},
		{"not has", Filter{Op: OpNotHas, Key: "name"}, false},
		{"all", All(Has("name"), Equals("class", cty.StringVal("park"))), true},
		{"all fails", All(Has("name"), Has("missing")), false},
		{"all empty", All(), true},
		{"any", Any(Has("missing"), Has("name")), true},
		{"any empty", Any(), false},
		{"none", Filter{Op: OpNone, Filters: []Filter{Has("missing")}}, true},
	}

	f := park()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Evaluate(f))
		})
	}
}

func TestFilterWithoutID(t *testing.T) {
	f := park()
	f.id = cty.NilVal

	assert.False(t, Has(IDKey).Evaluate(f))
	assert.False(t, Equals(IDKey, cty.NumberIntVal(12)).Evaluate(f))
}

func TestParseFilter(t *testing.T) {
	v := cty.TupleVal([]cty.Value{
		cty.StringVal("all"),
		cty.TupleVal([]cty.Value{cty.StringVal("=="), cty.StringVal("$type"), cty.StringVal("Polygon")}),
		cty.TupleVal([]cty.Value{cty.StringVal("in"), cty.StringVal("class"), cty.StringVal("park"), cty.StringVal("forest")}),
		cty.TupleVal([]cty.Value{cty.StringVal(">="), cty.StringVal("rank"), cty.NumberIntVal(2)}),
		cty.TupleVal([]cty.Value{cty.StringVal("!has"), cty.StringVal("closed")}),
	})

	flt, err := ParseFilter(v)
	require.NoError(t, err)
	assert.Equal(t, OpAll, flt.Op)
	require.Len(t, flt.Filters, 4)
	assert.True(t, flt.Evaluate(park()))
	assert.Equal(t, `["all",["==","$type","Polygon"],["in","class","park","forest"],[">=","rank",2],["!has","closed"]]`, flt.String())

	empty, err := ParseFilter(cty.NullVal(cty.DynamicPseudoType))
	require.NoError(t, err)
	assert.Equal(t, OpAlways, empty.Op)
	assert.Equal(t, "null", empty.String())
}

func TestParseFilterErrors(t *testing.T) {
	tests := []struct {
		name string
		v    cty.Value
	}{
		{"not an array", cty.StringVal("==")},
		{"empty", cty.EmptyTupleVal},
		{"unknown op", cty.TupleVal([]cty.Value{cty.StringVal("~="), cty.StringVal("a"), cty.StringVal("b")})},
		{"op not string", cty.TupleVal([]cty.Value{cty.NumberIntVal(1)})},
		{"missing value", cty.TupleVal([]cty.Value{cty.StringVal("=="), cty.StringVal("a")})},
		{"key not string", cty.TupleVal([]cty.Value{cty.StringVal("has"), cty.NumberIntVal(1)})},
		{"nested value", cty.TupleVal([]cty.Value{cty.StringVal("in"), cty.StringVal("a"), cty.EmptyTupleVal})},
		{"bad child", cty.TupleVal([]cty.Value{cty.StringVal("any"), cty.StringVal("x")})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilter(tt.v)
			assert.ErrorIs(t, err, ErrInvalidFilter)
		})
	}
}
