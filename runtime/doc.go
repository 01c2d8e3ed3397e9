// Package runtime provides the high-level API over the invoker registry.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	// Register a Go function as a method handle
//	if err := rt.RegisterFunc("math", "add", func(a, b int32) int32 {
//	    return a + b
//	}); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Call it through a generic invoker
//	result, err := rt.Call("math", "add", int32(2), int32(3))
//	fmt.Println(result) // 5
//
// # Configuration
//
// Options.Config carries a config.File. It selects the lowering backend,
// the customization threshold, the invoker archive and the invokers to
// build at startup:
//
//	cfg, err := config.Load("mhrun.yaml")
//	rt, err := runtime.New(ctx, &runtime.Options{Config: cfg, Logger: logger})
//
// # Type Mapping
//
// Go function signatures map to method types:
//
//	Go Type          Method Type
//	───────────────────────────
//	bool             boolean
//	int8             byte
//	int16            short
//	uint16           char
//	int32            int
//	int64            long
//	float32          float
//	float64          double
//	string           String
//	any              Object
//	[]T              T[] (for the types above)
//	*invoke.Handle   Handle
//
// A trailing error result is returned as the call error.
//
// WIT signatures bind through BindWIT:
//
//	h, err := rt.BindWIT([]string{"u32", "string"}, []string{"u64"}, fn)
//
// # Invoker Archive
//
// Snapshot lists every invoker the registry has built. Prewarm rebuilds
// the invokers of an archive in parallel, so a restarted process starts
// with warm caches:
//
//	a := rt.Snapshot()
//	err := archive.WriteFile("invokers.cbor", a)
//	...
//	n, err := rt.Prewarm(ctx, a)
//
// With archive.save set in the configuration, Close writes the snapshot
// to archive.path; archive.load prewarms from it in New.
//
// # Thread Safety
//
// Runtime and HostRegistry are safe for concurrent use. Handles returned
// by the runtime may be invoked from any goroutine.
package runtime
