package types

import (
	"fmt"
	"math"

	"github.com/spf13/cast"
)

// Value is a single cell: string, integer, float, bool, or nil when missing.
type Value any

// IsMissing reports whether v is absent. NaN floats count as missing.
func IsMissing(v Value) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// String formats a present value deterministically: integers in base 10,
// floats in shortest round-trip form.
func String(v Value) string {
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

// Display is String with missing values rendered empty.
func Display(v Value) string {
	if IsMissing(v) {
		return ""
	}
	return String(v)
}
