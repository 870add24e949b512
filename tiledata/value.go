package tiledata

import (
	"math"

	"github.com/zclconf/go-cty/cty"
)

// ToValue converts a decoded scalar property into a cty value. Vector tile
// values are always scalars; anything else (nested GeoJSON objects, nil)
// reports false.
func ToValue(raw interface{}) (cty.Value, bool) {
	switch v := raw.(type) {
	case string:
		return cty.StringVal(v), true
	case bool:
		return cty.BoolVal(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return cty.NilVal, false
		}
		return cty.NumberFloatVal(v), true
	case float32:
		return ToValue(float64(v))
	case int:
		return cty.NumberIntVal(int64(v)), true
	case int32:
		return cty.NumberIntVal(int64(v)), true
	case int64:
		return cty.NumberIntVal(v), true
	case uint:
		return cty.NumberUIntVal(uint64(v)), true
	case uint32:
		return cty.NumberUIntVal(uint64(v)), true
	case uint64:
		return cty.NumberUIntVal(v), true
	case cty.Value:
		if v.IsNull() || !v.IsKnown() || !v.Type().IsPrimitiveType() {
			return cty.NilVal, false
		}
		return v, true
	default:
		return cty.NilVal, false
	}
}
