// Package invoke implements handle invocation linkage: typed callable
// values (Handle), the small adapter programs that check and forward
// calls to them (Program), and the per-signature invoker caches that
// guarantee one published adapter per (signature, kind).
//
// # Registry
//
// All shared state lives in a Registry: the method type table, the
// per-signature Invokers, and the per-erasure program cache. Caches follow
// a first-writer-wins discipline: concurrent builders may construct
// duplicate adapters, but every caller observes the same published
// instance.
//
//	reg := invoke.NewRegistry(nil)
//	mt := reg.Types().MustMake(mtype.Int, mtype.Int, mtype.Int)
//	add, _ := reg.FromFunc(mt, func(args []any) (any, error) {
//		return args[0].(int32) + args[1].(int32), nil
//	})
//	inv, _ := reg.ExactInvoker(mt)
//	sum, _ := inv.InvokeBasic(add, int32(3), int32(4))
//
// # Invoker kinds
//
// An exact invoker rejects a handle whose type differs from its
// signature. A generic invoker retypes the handle with AsType first. A
// basic invoker forwards without checks and is shared by all signatures
// with the same basic type. Var-handle invokers fetch the physical
// accessor for an access mode before checking it.
//
// # Programs
//
// Every handle runs a Program: a linear list of names, each either an
// incoming argument or an operation over earlier names. Programs are
// interpreted until lowered by the registry's Lowerer, either eagerly
// for small erased signatures or when a handle is customized.
//
// # Customization
//
// Invoker programs count calls per target handle. Once a handle crosses
// Config.CustomizeThreshold its program is rebuilt once with its bound
// values folded in as constants.
package invoke
