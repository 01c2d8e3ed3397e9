package mtype

// Wrapper class types for boxed primitives.
var (
	BooleanClass   = ClassType("Boolean")
	ByteClass      = ClassType("Byte")
	ShortClass     = ClassType("Short")
	CharacterClass = ClassType("Character")
	IntegerClass   = ClassType("Integer")
	LongClass      = ClassType("Long")
	FloatClass     = ClassType("Float")
	DoubleClass    = ClassType("Double")
)

// Classed is implemented by Go values that declare their runtime class.
type Classed interface {
	ClassName() string
}

// Wrapper returns the box class of a primitive type, or t itself.
func Wrapper(t Type) Type {
	switch t.Kind() {
	case KindBoolean:
		return BooleanClass
	case KindByte:
		return ByteClass
	case KindShort:
		return ShortClass
	case KindChar:
		return CharacterClass
	case KindInt:
		return IntegerClass
	case KindLong:
		return LongClass
	case KindFloat:
		return FloatClass
	case KindDouble:
		return DoubleClass
	default:
		return t
	}
}

// Unwrapped returns the primitive type boxed by a wrapper class.
func Unwrapped(t Type) (Type, bool) {
	switch t {
	case BooleanClass:
		return Boolean, true
	case ByteClass:
		return Byte, true
	case ShortClass:
		return Short, true
	case CharacterClass:
		return Char, true
	case IntegerClass:
		return Int, true
	case LongClass:
		return Long, true
	case FloatClass:
		return Float, true
	case DoubleClass:
		return Double, true
	default:
		return Type{}, false
	}
}

func isNumericWrapper(t Type) bool {
	switch t {
	case ByteClass, ShortClass, IntegerClass, LongClass, FloatClass, DoubleClass:
		return true
	}
	return false
}

// IsAssignable reports whether a reference of type from can be stored
// in a variable of type to without a runtime check.
func IsAssignable(to, from Type) bool {
	if to == from {
		return true
	}
	if !to.IsReference() || !from.IsReference() {
		return false
	}
	if to == Object {
		return true
	}
	if to == Number {
		return isNumericWrapper(from)
	}
	if to.IsArray() && from.IsArray() {
		te, fe := to.Elem(), from.Elem()
		if te.IsReference() && fe.IsReference() {
			return IsAssignable(te, fe)
		}
	}
	return false
}

// ClassOf returns the runtime class of a Go value. Values that carry no
// class information are Objects; nil has no class and yields Object.
func ClassOf(v any) Type {
	switch x := v.(type) {
	case nil:
		return Object
	case Classed:
		return ClassType(x.ClassName())
	case bool:
		return BooleanClass
	case int8:
		return ByteClass
	case int16:
		return ShortClass
	case uint16:
		return CharacterClass
	case int32:
		return IntegerClass
	case int64:
		return LongClass
	case float32:
		return FloatClass
	case float64:
		return DoubleClass
	case string:
		return String
	case []any:
		return ObjectArray
	case []string:
		return ArrayOf(String)
	case []bool:
		return ArrayOf(Boolean)
	case []int8:
		return ArrayOf(Byte)
	case []int16:
		return ArrayOf(Short)
	case []uint16:
		return ArrayOf(Char)
	case []int32:
		return ArrayOf(Int)
	case []int64:
		return ArrayOf(Long)
	case []float32:
		return ArrayOf(Float)
	case []float64:
		return ArrayOf(Double)
	default:
		return Object
	}
}

// IsInstance reports whether v may be stored in a reference of type t.
func IsInstance(t Type, v any) bool {
	if !t.IsReference() {
		return false
	}
	if v == nil {
		return true
	}
	return IsAssignable(t, ClassOf(v))
}

// Conforms reports whether v is a valid value of type t under the
// runtime's value representation.
func Conforms(t Type, v any) bool {
	switch t.Kind() {
	case KindBoolean:
		_, ok := v.(bool)
		return ok
	case KindByte:
		_, ok := v.(int8)
		return ok
	case KindShort:
		_, ok := v.(int16)
		return ok
	case KindChar:
		_, ok := v.(uint16)
		return ok
	case KindInt:
		_, ok := v.(int32)
		return ok
	case KindLong:
		_, ok := v.(int64)
		return ok
	case KindFloat:
		_, ok := v.(float32)
		return ok
	case KindDouble:
		_, ok := v.(float64)
		return ok
	case KindReference, KindArray:
		return IsInstance(t, v)
	default:
		return v == nil
	}
}

// Zero returns the zero value of t; nil for references and void.
func Zero(t Type) any {
	switch t.Kind() {
	case KindBoolean:
		return false
	case KindByte:
		return int8(0)
	case KindShort:
		return int16(0)
	case KindChar:
		return uint16(0)
	case KindInt:
		return int32(0)
	case KindLong:
		return int64(0)
	case KindFloat:
		return float32(0)
	case KindDouble:
		return float64(0)
	default:
		return nil
	}
}
