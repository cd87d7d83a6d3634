package tabula

import "fmt"

// DataType is the closed set of logical field types.
type DataType uint8

const (
	Bool DataType = iota + 1
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Single
	Double
	Decimal
	Char
	String
	Binary
	DateTime
	TimeSpan
	Enum
	User
)

func (d DataType) String() string {
	switch d {
	case Bool:
		return "Bool"
	case Int8:
		return "Int8"
	case Int16:
		return "Int16"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case UInt8:
		return "UInt8"
	case UInt16:
		return "UInt16"
	case UInt32:
		return "UInt32"
	case UInt64:
		return "UInt64"
	case Single:
		return "Single"
	case Double:
		return "Double"
	case Decimal:
		return "Decimal"
	case Char:
		return "Char"
	case String:
		return "String"
	case Binary:
		return "Binary"
	case DateTime:
		return "DateTime"
	case TimeSpan:
		return "TimeSpan"
	case Enum:
		return "Enum"
	case User:
		return "User"
	default:
		return fmt.Sprintf("DataType(%d)", uint8(d))
	}
}

// storageDataType returns the physical DataType a logical DataType maps to
// when a field doesn't override TypeAtDatabase explicitly.
func (d DataType) storageDataType() DataType {
	switch d {
	case Enum:
		return Int64
	case User:
		return String
	default:
		return d
	}
}

// FieldFlags is a bit set over a field's structural properties.
type FieldFlags uint16

const (
	FlagID FieldFlags = 1 << iota
	FlagAutoIncrement
	FlagUnique
	FlagIndexed
	FlagNullable
)

func (f FieldFlags) has(flag FieldFlags) bool { return f&flag != 0 }

// DateTimeType is the physical representation variant for DateTime and
// TimeSpan fields.
type DateTimeType uint8

const (
	Native DateTimeType = iota + 1
	BigIntTicks
	BigIntHumanReadable
	DecimalSeconds
	DoubleSeconds
	DoubleEpoch
)

func (d DateTimeType) String() string {
	switch d {
	case Native:
		return "Native"
	case BigIntTicks:
		return "BigIntTicks"
	case BigIntHumanReadable:
		return "BigIntHumanReadable"
	case DecimalSeconds:
		return "DecimalSeconds"
	case DoubleSeconds:
		return "DoubleSeconds"
	case DoubleEpoch:
		return "DoubleEpoch"
	default:
		return fmt.Sprintf("DateTimeType(%d)", uint8(d))
	}
}

// storageDataType is the physical DataType a DateTimeType requires, per the
// field-header compatibility rules.
func (d DateTimeType) storageDataType(logical DataType) DataType {
	switch d {
	case BigIntTicks, BigIntHumanReadable:
		return Int64
	case DecimalSeconds:
		return Decimal
	case DoubleSeconds, DoubleEpoch:
		return Double
	case Native:
		return logical
	default:
		return logical
	}
}

// DateTimeKind is the time zone discipline of a DateTime field.
type DateTimeKind uint8

const (
	Utc DateTimeKind = iota + 1
	Local
	Unspecified
)

func (k DateTimeKind) String() string {
	switch k {
	case Utc:
		return "Utc"
	case Local:
		return "Local"
	case Unspecified:
		return "Unspecified"
	default:
		return fmt.Sprintf("DateTimeKind(%d)", uint8(k))
	}
}

// StringEncoding is the byte-level text encoding used for String/User
// fields.
type StringEncoding uint8

const (
	ASCII StringEncoding = iota + 1
	UTF8
	UTF16
	UTF32
)

func (e StringEncoding) String() string {
	switch e {
	case ASCII:
		return "ASCII"
	case UTF8:
		return "UTF8"
	case UTF16:
		return "UTF16"
	case UTF32:
		return "UTF32"
	default:
		return fmt.Sprintf("StringEncoding(%d)", uint8(e))
	}
}
