package mtype

import "strings"

// Kind classifies a Type.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBoolean
	KindByte
	KindShort
	KindChar
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindReference
	KindArray
)

// BasicType is the erased calling-convention class of a Type.
// Boolean, byte, short, char and int share I; every reference is L.
type BasicType byte

const (
	BasicL BasicType = 'L'
	BasicI BasicType = 'I'
	BasicJ BasicType = 'J'
	BasicF BasicType = 'F'
	BasicD BasicType = 'D'
	BasicV BasicType = 'V'
)

func (b BasicType) String() string { return string(rune(b)) }

// Type returns the representative Type of the basic type.
func (b BasicType) Type() Type {
	switch b {
	case BasicI:
		return Int
	case BasicJ:
		return Long
	case BasicF:
		return Float
	case BasicD:
		return Double
	case BasicV:
		return Void
	default:
		return Object
	}
}

// Type is a field type identified by its descriptor:
// Z B S C I J F D V for primitives and void, L<name>; for classes,
// and [<elem> for arrays. The zero Type is invalid.
type Type struct {
	desc string
}

var (
	Void    = Type{"V"}
	Boolean = Type{"Z"}
	Byte    = Type{"B"}
	Short   = Type{"S"}
	Char    = Type{"C"}
	Int     = Type{"I"}
	Long    = Type{"J"}
	Float   = Type{"F"}
	Double  = Type{"D"}

	Object = ClassType("Object")
	String = ClassType("String")
	Number = ClassType("Number")

	HandleType     = ClassType("Handle")
	VarHandleType  = ClassType("VarHandle")
	CallSiteType   = ClassType("CallSite")
	MethodTypeType = ClassType("MethodType")
	DescriptorType = ClassType("AccessDescriptor")

	ObjectArray = ArrayOf(Object)
)

// ClassType returns the reference type for a class name.
func ClassType(name string) Type {
	return Type{"L" + name + ";"}
}

// ArrayOf returns the array type with the given element type.
func ArrayOf(elem Type) Type {
	return Type{"[" + elem.desc}
}

// ParseType parses a single field or return type descriptor.
func ParseType(desc string) (Type, error) {
	t, n, err := parseField(desc, 0, true)
	if err != nil {
		return Type{}, err
	}
	if n != len(desc) {
		return Type{}, descriptorError(desc, n, "trailing characters")
	}
	return t, nil
}

// Descriptor returns the type descriptor string.
func (t Type) Descriptor() string { return t.desc }

// Valid reports whether t is a non-zero type.
func (t Type) Valid() bool { return t.desc != "" }

// Kind returns the kind of the type.
func (t Type) Kind() Kind {
	if t.desc == "" {
		return KindVoid
	}
	switch t.desc[0] {
	case 'Z':
		return KindBoolean
	case 'B':
		return KindByte
	case 'S':
		return KindShort
	case 'C':
		return KindChar
	case 'I':
		return KindInt
	case 'J':
		return KindLong
	case 'F':
		return KindFloat
	case 'D':
		return KindDouble
	case 'L':
		return KindReference
	case '[':
		return KindArray
	default:
		return KindVoid
	}
}

// IsPrimitive reports whether t is a primitive value type (not void).
func (t Type) IsPrimitive() bool {
	k := t.Kind()
	return k >= KindBoolean && k <= KindDouble
}

// IsReference reports whether t is a class or array type.
func (t Type) IsReference() bool {
	k := t.Kind()
	return k == KindReference || k == KindArray
}

// IsVoid reports whether t is void.
func (t Type) IsVoid() bool { return t.desc == "V" }

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool { return t.Kind() == KindArray }

// Elem returns the element type of an array type, or the zero Type.
func (t Type) Elem() Type {
	if !t.IsArray() {
		return Type{}
	}
	return Type{t.desc[1:]}
}

// ClassName returns the class name of a reference type, or "".
func (t Type) ClassName() string {
	if t.Kind() != KindReference {
		return ""
	}
	return t.desc[1 : len(t.desc)-1]
}

// Basic returns the erased calling-convention class of t.
func (t Type) Basic() BasicType {
	switch t.Kind() {
	case KindBoolean, KindByte, KindShort, KindChar, KindInt:
		return BasicI
	case KindLong:
		return BasicJ
	case KindFloat:
		return BasicF
	case KindDouble:
		return BasicD
	case KindReference, KindArray:
		return BasicL
	default:
		return BasicV
	}
}

// Slots returns the number of parameter slots the type occupies.
func (t Type) Slots() int {
	switch t.Kind() {
	case KindLong, KindDouble:
		return 2
	case KindVoid:
		return 0
	default:
		return 1
	}
}

// String returns the source-like spelling: int, String, int[].
func (t Type) String() string {
	switch t.Kind() {
	case KindBoolean:
		return "boolean"
	case KindByte:
		return "byte"
	case KindShort:
		return "short"
	case KindChar:
		return "char"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindReference:
		return t.ClassName()
	case KindArray:
		return t.Elem().String() + "[]"
	default:
		if t.desc == "" {
			return "<invalid>"
		}
		return "void"
	}
}

// parseField parses one type at desc[pos:] and returns the position after it.
func parseField(desc string, pos int, allowVoid bool) (Type, int, error) {
	if pos >= len(desc) {
		return Type{}, pos, descriptorError(desc, pos, "unexpected end")
	}
	start := pos
	for pos < len(desc) && desc[pos] == '[' {
		pos++
		allowVoid = false
	}
	if pos >= len(desc) {
		return Type{}, pos, descriptorError(desc, pos, "missing array element type")
	}
	switch desc[pos] {
	case 'Z', 'B', 'S', 'C', 'I', 'J', 'F', 'D':
		pos++
	case 'V':
		if !allowVoid {
			return Type{}, pos, descriptorError(desc, pos, "void not allowed here")
		}
		pos++
	case 'L':
		end := strings.IndexByte(desc[pos:], ';')
		if end <= 1 {
			return Type{}, pos, descriptorError(desc, pos, "malformed class name")
		}
		pos += end + 1
	default:
		return Type{}, pos, descriptorError(desc, pos, "unknown type character")
	}
	return Type{desc[start:pos]}, pos, nil
}
