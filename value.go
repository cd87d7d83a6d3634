package tabula

import (
	"fmt"
	"time"
)

// Value is a tagged union over the DataType set, the way a Row's fields are
// held: one concrete Go representation per logical type rather than a bare
// `any` or a reflect-driven container, so dispatch never needs reflection
// once a Layout is built.
type Value struct {
	typ DataType

	b    bool
	i    int64
	u    uint64
	f64  float64
	f32  float32
	dec  Decimal128
	s    string
	bin  []byte
	t    time.Time
	dur  time.Duration
	null bool
}

// Decimal128 is a fixed-point decimal value: an int64 mantissa scaled by
// 10^-scale, enough precision for the Decimal logical type without pulling
// in a big-decimal dependency (see DESIGN.md).
type Decimal128 struct {
	Mantissa int64
	Scale    uint8
}

func (d Decimal128) Float64() float64 {
	return float64(d.Mantissa) / pow10(d.Scale)
}

func pow10(n uint8) float64 {
	r := 1.0
	for i := uint8(0); i < n; i++ {
		r *= 10
	}
	return r
}

// NewBool, NewInt, ... construct Values of a given logical type. Callers
// building a Row use these rather than touching unexported fields.
func NewBool(v bool) Value                { return Value{typ: Bool, b: v} }
func NewInt8(v int8) Value                { return Value{typ: Int8, i: int64(v)} }
func NewInt16(v int16) Value              { return Value{typ: Int16, i: int64(v)} }
func NewInt32(v int32) Value              { return Value{typ: Int32, i: int64(v)} }
func NewInt64(v int64) Value              { return Value{typ: Int64, i: v} }
func NewUInt8(v uint8) Value              { return Value{typ: UInt8, u: uint64(v)} }
func NewUInt16(v uint16) Value            { return Value{typ: UInt16, u: uint64(v)} }
func NewUInt32(v uint32) Value            { return Value{typ: UInt32, u: uint64(v)} }
func NewUInt64(v uint64) Value            { return Value{typ: UInt64, u: v} }
func NewSingle(v float32) Value           { return Value{typ: Single, f32: v} }
func NewDouble(v float64) Value           { return Value{typ: Double, f64: v} }
func NewDecimal(v Decimal128) Value       { return Value{typ: Decimal, dec: v} }
func NewChar(v rune) Value                { return Value{typ: Char, i: int64(v)} }
func NewString(v string) Value            { return Value{typ: String, s: v} }
func NewNullString() Value                { return Value{typ: String, null: true} }
func NewBinary(v []byte) Value            { return Value{typ: Binary, bin: v} }
func NewNullBinary() Value                { return Value{typ: Binary, bin: nil, null: true} }
func NewDateTime(v time.Time) Value       { return Value{typ: DateTime, t: v} }
func NewTimeSpan(v time.Duration) Value   { return Value{typ: TimeSpan, dur: v} }
func NewEnum(v int64) Value               { return Value{typ: Enum, i: v} }
func NewUser(v string) Value              { return Value{typ: User, s: v} }

// Type reports the logical DataType the value was constructed with.
func (v Value) Type() DataType { return v.typ }

// IsNull reports whether a String or Binary value represents SQL-style
// NULL rather than an empty string/slice.
func (v Value) IsNull() bool { return v.null }

func (v Value) Bool() bool             { return v.b }
func (v Value) Int() int64             { return v.i }
func (v Value) Uint() uint64           { return v.u }
func (v Value) Float32() float32       { return v.f32 }
func (v Value) Float64() float64       { return v.f64 }
func (v Value) DecimalValue() Decimal128 { return v.dec }
func (v Value) Rune() rune             { return rune(v.i) }
func (v Value) String() string         { return v.s }
func (v Value) Bytes() []byte          { return v.bin }
func (v Value) Time() time.Time        { return v.t }
func (v Value) Duration() time.Duration { return v.dur }

// Equal reports value equality within the same logical type. Values of
// differing DataType are never equal.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	if v.null != o.null {
		return false
	}
	if v.null {
		return true
	}
	switch v.typ {
	case Bool:
		return v.b == o.b
	case Int8, Int16, Int32, Int64, Char, Enum:
		return v.i == o.i
	case UInt8, UInt16, UInt32, UInt64:
		return v.u == o.u
	case Single:
		return v.f32 == o.f32
	case Double:
		return v.f64 == o.f64
	case Decimal:
		return v.dec == o.dec
	case String, User:
		return v.s == o.s
	case Binary:
		return string(v.bin) == string(o.bin)
	case DateTime:
		return v.t.Equal(o.t)
	case TimeSpan:
		return v.dur == o.dur
	default:
		return false
	}
}

// Interface returns the Go-native representation of v, useful for
// printing/debugging and for the reflection-based register path.
func (v Value) Interface() any {
	if v.null {
		return nil
	}
	switch v.typ {
	case Bool:
		return v.b
	case Int8:
		return int8(v.i)
	case Int16:
		return int16(v.i)
	case Int32:
		return int32(v.i)
	case Int64, Enum:
		return v.i
	case UInt8:
		return uint8(v.u)
	case UInt16:
		return uint16(v.u)
	case UInt32:
		return uint32(v.u)
	case UInt64:
		return v.u
	case Single:
		return v.f32
	case Double:
		return v.f64
	case Decimal:
		return v.dec
	case Char:
		return rune(v.i)
	case String, User:
		return v.s
	case Binary:
		return v.bin
	case DateTime:
		return v.t
	case TimeSpan:
		return v.dur
	default:
		return nil
	}
}

func (v Value) goString() string {
	return fmt.Sprintf("%v", v.Interface())
}
