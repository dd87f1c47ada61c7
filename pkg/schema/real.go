package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// UndefinedMarker is the wire form of an undefined Real.
const UndefinedMarker = "undefined"

// Real is a float that may be explicitly undefined (no root found, error
// unknown). Non-finite values are never stored as defined.
type Real struct {
	value   float64
	defined bool
}

// Defined returns a Real holding v. NaN and ±Inf collapse to Undefined.
func Defined(v float64) Real {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Real{}
	}
	return Real{value: v, defined: true}
}

// Undefined returns the undefined marker.
func Undefined() Real { return Real{} }

// IsDefined reports whether r carries a value.
func (r Real) IsDefined() bool { return r.defined }

// Value returns the value and whether it is defined.
func (r Real) Value() (float64, bool) { return r.value, r.defined }

// Float64 returns the value, or NaN when undefined.
func (r Real) Float64() float64 {
	if !r.defined {
		return math.NaN()
	}
	return r.value
}

// Ptr returns a pointer to the value, nil when undefined. Useful for
// nullable columns.
func (r Real) Ptr() *float64 {
	if !r.defined {
		return nil
	}
	v := r.value
	return &v
}

// RealFromPtr is the inverse of Ptr.
func RealFromPtr(p *float64) Real {
	if p == nil {
		return Undefined()
	}
	return Defined(*p)
}

func (r Real) String() string {
	if !r.defined {
		return UndefinedMarker
	}
	return strconv.FormatFloat(r.value, 'g', -1, 64)
}

// MarshalJSON emits a JSON number or the string "undefined".
func (r Real) MarshalJSON() ([]byte, error) {
	if !r.defined {
		return []byte(`"` + UndefinedMarker + `"`), nil
	}
	return json.Marshal(r.value)
}

// UnmarshalJSON accepts a number, null, or "undefined".
func (r *Real) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`"`+UndefinedMarker+`"`)) {
		*r = Undefined()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("real: %w", err)
	}
	*r = Defined(v)
	return nil
}

// wireFloat converts a raw float for flat records: finite values pass
// through, everything else becomes the undefined marker.
func wireFloat(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return UndefinedMarker
	}
	return v
}
