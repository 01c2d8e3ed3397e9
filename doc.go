// Package mhruntime provides a Go implementation of method handle
// invocation linkage.
//
// This library builds, caches and runs the adapter programs that sit
// between a call site and a typed function handle: exact and generic
// invokers, argument spreading, var handle access, call site linkers and
// the customization policy that specializes hot handles.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	mhruntime/           Root package (documentation only)
//	├── runtime/         High-level API: host handles, archive, configuration
//	├── invoke/          Handles, adapter programs, invoker caches, linkers
//	├── mtype/           Field types and interned method types
//	│   └── witsig/      WIT signatures as method types
//	├── lower/wasmlower/ Program lowering onto wazero modules
//	├── archive/         CBOR invoker archive for warm starts
//	├── config/          YAML and TOML configuration files
//	├── errors/          Structured error types for debugging
//	└── cmd/mhrun/       Invoker inspection CLI and explorer
//
// # Quick Start
//
// Register a Go function and call it:
//
//	rt, err := runtime.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	rt.RegisterFunc("math", "add", func(a, b int32) int32 { return a + b })
//	add, _ := rt.Hosts().Lookup("math", "add")
//
//	// (int,int)int must match exactly
//	result, err := rt.Registry().InvokeExact(add, add.Type(), int32(2), int32(3))
//
// # Signatures
//
// Method types are interned: two structurally equal types from one table
// are the same pointer. Types are written as descriptors:
//
//	(II)I              (int,int)int
//	(LString;[J)V      (String,long[])void
//
// Each signature erases to a basic type (references become Object,
// sub-int primitives become int). Adapter programs are cached per basic
// type and shared by every signature that erases to it.
//
// # Arity
//
// A signature has at most 255 parameter slots; long and double take two.
// Invokers need one extra slot for the handle they call, and their
// shared forms one more, so invokers cover up to 253 slots. Spreading
// invokers decompose wider signatures in two stages.
//
// # Thread Safety
//
// Registries, handles, call sites and var handles are safe for
// concurrent use. Invoker caches publish each entry at most once; racing
// builders agree on the first published invoker.
package mhruntime
