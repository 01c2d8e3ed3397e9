// Package mtype implements method type descriptors: the immutable,
// interned signatures that handles, invokers and call sites are keyed by.
//
// A Type is a field type spelled by its descriptor (I, J, LString;, [I).
// A MethodType is interned in a Table, so identity is equality:
//
//	tab := mtype.NewTable()
//	a := tab.MustMake(mtype.Int, mtype.String)
//	b, _ := tab.Parse("(LString;)I")
//	// a == b
//
// Every MethodType carries two derived views computed at interning time:
// Erase (references become Object) and BasicType (references become
// Object and boolean, byte, short and char become int). Signatures that
// share a basic type share adapter programs.
//
// Slot counts follow the stack model: long and double occupy two slots.
// No signature may exceed MaxArity slots.
package mtype
