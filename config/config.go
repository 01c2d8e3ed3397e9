package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/invoke"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Lowering backends.
const (
	BackendClosure = "closure"
	BackendWasm    = "wasm"
)

// DefaultPrewarmParallelism bounds concurrent invoker construction
// during prewarming.
const DefaultPrewarmParallelism = 8

// File is the contents of a configuration file.
type File struct {
	Log         Log       `yaml:"log" toml:"log"`
	Archive     Archive   `yaml:"archive" toml:"archive"`
	Lowering    Lowering  `yaml:"lowering" toml:"lowering"`
	Prewarm     []Invoker `yaml:"prewarm" toml:"prewarm"`
	Customize   Customize `yaml:"customize" toml:"customize"`
	DebugChecks bool      `yaml:"debug_checks" toml:"debug_checks"`
}

// Customize configures handle customization.
type Customize struct {
	// Threshold is the number of invoker calls before customization.
	// Nil keeps the default.
	Threshold *int `yaml:"threshold" toml:"threshold"`
	// Disabled turns customization off regardless of Threshold.
	Disabled bool `yaml:"disabled" toml:"disabled"`
}

// Lowering configures program lowering.
type Lowering struct {
	// Backend is "closure" or "wasm".
	Backend string `yaml:"backend" toml:"backend"`
	// EagerArityLimit bounds eagerly lowered invokers. Nil keeps the default.
	EagerArityLimit *int `yaml:"eager_arity_limit" toml:"eager_arity_limit"`
	// Interpreter selects wazero's interpreter for the wasm backend.
	Interpreter bool `yaml:"interpreter" toml:"interpreter"`
	// MaxIdleInstances bounds pooled wasm instances per module.
	MaxIdleInstances int `yaml:"max_idle_instances" toml:"max_idle_instances"`
}

// Archive configures the invoker archive.
type Archive struct {
	Path string `yaml:"path" toml:"path"`
	// Load prewarms from the archive at startup.
	Load bool `yaml:"load" toml:"load"`
	// Save writes the archive on close.
	Save bool `yaml:"save" toml:"save"`
	// Parallelism bounds concurrent prewarming. 0 means the default.
	Parallelism int `yaml:"parallelism" toml:"parallelism"`
}

// Log configures logging.
type Log struct {
	Level       string `yaml:"level" toml:"level"`
	Development bool   `yaml:"development" toml:"development"`
}

// Invoker names an invoker to build at startup.
type Invoker struct {
	Descriptor string `yaml:"descriptor" toml:"descriptor"`
	Kind       string `yaml:"kind" toml:"kind"`
	Mode       string `yaml:"mode" toml:"mode"`
	Leading    int    `yaml:"leading" toml:"leading"`
}

// Default returns the default configuration.
func Default() *File {
	return &File{
		Lowering: Lowering{Backend: BackendClosure},
		Log:      Log{Level: "info"},
	}
}

// Load reads the configuration file at path. The format follows the
// extension: .yaml, .yml or .toml.
func Load(path string) (*File, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".toml":
		format = FormatTOML
	default:
		return nil, errors.InvalidInput(errors.PhaseConfig, "unknown configuration format: "+path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(errors.PhaseConfig, "configuration file", path)
		}
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInternal, err, "read "+path)
	}
	f, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Parse decodes and validates a configuration in the given format.
func Parse(data []byte, format Format) (*File, error) {
	f := Default()
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(f); err != nil && !stderrors.Is(err, io.EOF) {
			return nil, errors.ParseFailed("yaml configuration", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), f)
		if err != nil {
			return nil, errors.ParseFailed("toml configuration", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
				Detail("unknown key %s", undecoded[0].String()).
				Build()
		}
	default:
		return nil, errors.InvalidInput(errors.PhaseConfig, "unknown configuration format "+string(format))
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks field values.
func (f *File) Validate() error {
	switch f.Lowering.Backend {
	case BackendClosure, BackendWasm:
	default:
		return invalid("lowering.backend", "unknown backend %q", f.Lowering.Backend)
	}
	if l := f.Lowering.EagerArityLimit; l != nil && *l < 0 {
		return invalid("lowering.eager_arity_limit", "must not be negative")
	}
	if f.Lowering.MaxIdleInstances < 0 {
		return invalid("lowering.max_idle_instances", "must not be negative")
	}
	if f.Archive.Parallelism < 0 {
		return invalid("archive.parallelism", "must not be negative")
	}
	if (f.Archive.Load || f.Archive.Save) && f.Archive.Path == "" {
		return invalid("archive.path", "required when load or save is set")
	}
	if _, err := f.LogLevel(); err != nil {
		return invalid("log.level", "%v", err)
	}
	for i, inv := range f.Prewarm {
		path := fmt.Sprintf("prewarm.%d", i)
		if inv.Descriptor == "" {
			return invalid(path, "missing descriptor")
		}
		kind, err := invoke.ParseInvokerKind(inv.Kind)
		if err != nil {
			return invalid(path, "unknown kind %q", inv.Kind)
		}
		if kind == invoke.InvokerVarHandle || kind == invoke.InvokerVarHandleExact {
			if _, err := invoke.ParseAccessMode(inv.Mode); err != nil {
				return invalid(path, "unknown access mode %q", inv.Mode)
			}
		}
		if inv.Leading < 0 {
			return invalid(path, "negative leading argument count")
		}
	}
	return nil
}

func invalid(field, msg string, args ...any) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Path(strings.Split(field, ".")...).
		Detail(msg, args...).
		Build()
}

// LogLevel returns the parsed log level.
func (f *File) LogLevel() (zapcore.Level, error) {
	if f.Log.Level == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(f.Log.Level)
}

// InvokeConfig returns the registry configuration. The lowerer is left
// nil; the runtime installs the configured backend.
func (f *File) InvokeConfig() invoke.Config {
	cfg := invoke.DefaultConfig()
	cfg.Lowerer = nil
	cfg.DebugChecks = f.DebugChecks
	if t := f.Customize.Threshold; t != nil {
		cfg.CustomizeThreshold = *t
	}
	if f.Customize.Disabled {
		cfg.CustomizeThreshold = -1
	}
	if l := f.Lowering.EagerArityLimit; l != nil {
		cfg.EagerCompileArityLimit = *l
	}
	return cfg
}

// PrewarmParallelism returns the effective prewarm parallelism.
func (f *File) PrewarmParallelism() int {
	if f.Archive.Parallelism > 0 {
		return f.Archive.Parallelism
	}
	return DefaultPrewarmParallelism
}
