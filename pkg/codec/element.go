package codec

import (
	"math"
	"math/big"

	"github.com/ssargent/flatjson/pkg/builder"
)

// Int128 is a signed 128-bit integer. Literals are parsed at this width so
// that every 64-bit value, signed or unsigned, fits before it is narrowed to
// its field.
type Int128 struct {
	Hi int64
	Lo uint64
}

var (
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	mask64    = new(big.Int).SetUint64(math.MaxUint64)
)

// Int128From widens v.
func Int128From(v int64) Int128 {
	return Int128{Hi: v >> 63, Lo: uint64(v)}
}

// ParseInt128 parses a base 10 integer literal. It reports false when s is
// not an integer or does not fit in 128 bits.
func ParseInt128(s string) (Int128, bool) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Cmp(minInt128) < 0 || n.Cmp(maxInt128) > 0 {
		return Int128{}, false
	}
	lo := new(big.Int).And(n, mask64).Uint64()
	hi := new(big.Int).Rsh(n, 64).Int64()
	return Int128{Hi: hi, Lo: lo}, true
}

// Int64 returns the low 64 bits. Narrowing to a field width is done by the
// builder from there.
func (v Int128) Int64() int64 {
	return int64(v.Lo)
}

func (v Int128) bigInt() *big.Int {
	n := new(big.Int).Lsh(big.NewInt(v.Hi), 64)
	return n.Or(n, new(big.Int).SetUint64(v.Lo))
}

// Float64 converts v to the nearest float64.
func (v Int128) Float64() float64 {
	if v.Hi == int64(v.Lo)>>63 {
		return float64(int64(v.Lo))
	}
	f, _ := new(big.Float).SetInt(v.bigInt()).Float64()
	return f
}

func (v Int128) String() string {
	return v.bigInt().String()
}

// Element is a finished value waiting to be placed into its parent table,
// struct or vector. It is one of IntElement, DoubleElement, OffsetElement or
// StructElement.
type Element interface {
	element()
}

// IntElement is an integer or bool scalar.
type IntElement struct{ Value Int128 }

// DoubleElement is a floating point scalar.
type DoubleElement struct{ Value float64 }

// OffsetElement references a finished string, vector or table.
type OffsetElement struct{ Value builder.Offset }

// StructElement is a packed struct value.
type StructElement struct{ Bytes []byte }

func (IntElement) element()    {}
func (DoubleElement) element() {}
func (OffsetElement) element() {}
func (StructElement) element() {}
