package invoke

// Customization thresholds.
const (
	// DefaultCustomizeThreshold is the number of invoker calls a handle
	// receives before its program is customized.
	DefaultCustomizeThreshold = 127
	// MaxCustomizeThreshold is the ceiling of the per-handle call counter.
	MaxCustomizeThreshold = 255
	// DefaultEagerCompileArityLimit bounds the parameter count of invokers
	// lowered at construction.
	DefaultEagerCompileArityLimit = 10
)

// Config holds registry configuration.
type Config struct {
	// Lowerer compiles programs. Nil means ClosureLowerer.
	Lowerer Lowerer

	// OnCustomize is called once for every handle that gets customized.
	OnCustomize func(h *Handle)

	// CustomizeThreshold is the number of invoker calls before a target
	// handle is customized. Negative disables customization; values above
	// MaxCustomizeThreshold are clamped.
	CustomizeThreshold int

	// EagerCompileArityLimit lowers exact and generic invokers for erased
	// signatures with fewer parameters at construction. 0 disables eager
	// lowering.
	EagerCompileArityLimit int

	// DebugChecks enables internal consistency checks on constructed
	// invokers and cached programs.
	DebugChecks bool
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{
		Lowerer:                ClosureLowerer{},
		CustomizeThreshold:     DefaultCustomizeThreshold,
		EagerCompileArityLimit: DefaultEagerCompileArityLimit,
	}
}

func (c Config) normalized() Config {
	if c.Lowerer == nil {
		c.Lowerer = ClosureLowerer{}
	}
	if c.CustomizeThreshold > MaxCustomizeThreshold {
		c.CustomizeThreshold = MaxCustomizeThreshold
	}
	if c.CustomizeThreshold < 0 {
		c.CustomizeThreshold = -1
	}
	if c.EagerCompileArityLimit < 0 {
		c.EagerCompileArityLimit = 0
	}
	return c
}

// customizes reports whether invoker programs carry a checkCustomized step.
func (c Config) customizes() bool {
	return c.CustomizeThreshold >= 0
}
