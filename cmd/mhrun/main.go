package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/wippyai/mh-runtime/archive"
	"github.com/wippyai/mh-runtime/config"
	"github.com/wippyai/mh-runtime/invoke"
	"github.com/wippyai/mh-runtime/runtime"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file (.yaml, .yml or .toml)")
		desc        = flag.String("desc", "", "Target method type descriptor, e.g. (II)I")
		kind        = flag.String("kind", "exact", "Invoker kind: exact, generic, basic, varhandle, varhandle-exact, spread")
		mode        = flag.String("mode", "get", "Access mode for var handle invokers")
		leading     = flag.Int("leading", 0, "Leading arguments kept by a spread invoker")
		backend     = flag.String("backend", "", "Lowering backend override: closure or wasm")
		save        = flag.String("save", "", "Write an invoker archive after building")
		show        = flag.String("show", "", "List the entries of an invoker archive and exit")
		verbose     = flag.Bool("v", false, "Debug logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *show != "" {
		if err := showArchive(os.Stdout, *show); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *desc == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: mhrun -desc <descriptor> [-kind kind] [-mode mode] [-leading n] [-config file]")
		fmt.Fprintln(os.Stderr, "       mhrun -show <archive.cbor>")
		fmt.Fprintln(os.Stderr, "       mhrun -i [-config file]  (interactive mode)")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFile, *backend, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	req := request{desc: *desc, kind: *kind, mode: *mode, leading: *leading}
	if err := run(os.Stdout, cfg, req, *save); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path, backend string, verbose bool) (*config.File, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if backend != "" {
		cfg.Lowering.Backend = backend
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// request names the invoker to build.
type request struct {
	desc    string
	kind    string
	mode    string
	leading int
}

func (r request) build(rt *runtime.Runtime) (*invoke.Handle, error) {
	mt, err := rt.MethodType(r.desc)
	if err != nil {
		return nil, err
	}
	k, err := invoke.ParseInvokerKind(r.kind)
	if err != nil {
		return nil, err
	}
	c := invoke.CachedInvoker{Type: mt, Kind: k, Leading: r.leading}
	if k == invoke.InvokerVarHandle || k == invoke.InvokerVarHandleExact {
		if c.Mode, err = invoke.ParseAccessMode(r.mode); err != nil {
			return nil, err
		}
	}
	return rt.Registry().Warm(c)
}

func run(w io.Writer, cfg *config.File, req request, savePath string) error {
	ctx := context.Background()

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	rt, err := runtime.New(ctx, &runtime.Options{Config: cfg, Logger: logger})
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(ctx)

	h, err := req.build(rt)
	if err != nil {
		return fmt.Errorf("build %s invoker for %s: %w", req.kind, req.desc, err)
	}
	describe(w, h)
	printStats(w, rt.Stats())

	if savePath != "" {
		if err := rt.SaveArchive(savePath); err != nil {
			return fmt.Errorf("save archive: %w", err)
		}
		fmt.Fprintf(w, "\nArchive written: %s\n", savePath)
	}
	return nil
}

func describe(w io.Writer, h *invoke.Handle) {
	p := h.Program()
	fmt.Fprintf(w, "Invoker: %s\n", h)
	fmt.Fprintf(w, "Type: %s\n", h.Type().Descriptor())
	fmt.Fprintf(w, "Program: %s (kind %s, arity %d, %d names)\n", p.DebugName(), p.Kind(), p.Arity(), p.Len())
	fmt.Fprintf(w, "Lowered: %v\n", p.IsCompiled())
	fmt.Fprintf(w, "\n%s\n", p.Dump())
}

func printStats(w io.Writer, s runtime.Stats) {
	fmt.Fprintf(w, "\nBackend: %s\n", s.Backend)
	fmt.Fprintf(w, "Types: %d  Invokers: %d  Forms: %d  Compiled: %d  Customized: %d\n",
		s.Types, s.Invokers, s.Forms, s.Compiled, s.Customized)
	if s.Backend == config.BackendWasm {
		fmt.Fprintf(w, "Wasm modules: %d  Lowered calls: %d\n", s.WasmModules, s.LoweredCalls)
	}
}

func showArchive(w io.Writer, path string) error {
	a, err := archive.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Archive: %s (version %d)\n", path, a.Version)
	fmt.Fprintf(w, "Entries: %d\n", len(a.Entries))
	for _, e := range a.Entries {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return nil
}
