// Package wasmlower lowers adapter programs into WebAssembly modules run
// by wazero.
//
// Each lowered program becomes a call of a synthesized module:
//
//	(import "mh" "exec" (func $exec (param i32 i32) (result i32)))
//	(func (export "run") (param $frame i32) (result i32)
//	  (if (local.tee $s (call $exec (local.get $frame) (i32.const 2)))
//	    (then (return (local.get $s))))
//	  ...
//	  (i32.const 0))
//
// The module drives the program: it calls exec once per operation, in
// order, and stops at the first non-zero status. Operation values stay
// on the Go side in a frame addressed by a handle, so the module never
// touches program data.
//
// Modules depend only on the operation range of a program, so programs
// with the same arity and length share one compiled module. Instances
// are pooled; nested calls from inside exec take a separate instance.
//
// Usage:
//
//	l, err := wasmlower.New(ctx)
//	if err != nil {
//		return err
//	}
//	defer l.Close(ctx)
//
//	cfg := invoke.DefaultConfig()
//	cfg.Lowerer = l
//	reg := invoke.NewRegistry(&cfg)
package wasmlower
