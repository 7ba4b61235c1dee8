package core

// PropertyType enumerates the semantic types a property can have.
// The numeric values are part of the schema wire contract.
type PropertyType uint8

const (
	TypeBool PropertyType = iota + 1
	TypeByte
	TypeShort
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeString
	TypeByteVector
	TypeDate // millisecond timestamp, stored as TypeLong
)

// String returns the schema name of the type.
func (t PropertyType) String() string {
	switch t {
	case TypeBool:
		return "Bool"
	case TypeByte:
		return "Byte"
	case TypeShort:
		return "Short"
	case TypeInt:
		return "Int"
	case TypeLong:
		return "Long"
	case TypeFloat:
		return "Float"
	case TypeDouble:
		return "Double"
	case TypeString:
		return "String"
	case TypeByteVector:
		return "ByteVector"
	case TypeDate:
		return "Date"
	default:
		return "Unknown"
	}
}

// IsFloat reports whether the type stores an IEEE floating-point value.
func (t PropertyType) IsFloat() bool {
	return t == TypeFloat || t == TypeDouble
}

// IsInteger reports whether the type stores an integer value
// (booleans and dates included; both are integers on the wire).
func (t PropertyType) IsInteger() bool {
	switch t {
	case TypeBool, TypeByte, TypeShort, TypeInt, TypeLong, TypeDate:
		return true
	default:
		return false
	}
}

// Property describes one entity property. Instances are immutable; generated
// bindings create one Property value per schema property and share it.
type Property struct {
	Entity EntityID
	ID     PropertyID
	Type   PropertyType

	// Unsigned marks integer properties that compare as unsigned.
	Unsigned bool
}
