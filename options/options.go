package options

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v2"

	"github.com/suborbital/zsbind/engine"
	"github.com/suborbital/zsbind/engine/native"
	"github.com/suborbital/zsbind/foundation/metrics"
)

const (
	DefaultFailureResult = "free"
	DefaultLogLevel      = "warn"
	DefaultServiceName   = "zsbind"
	DefaultProbability   = 0.5
)

// Options configures the binding. Values come from modifiers (flags) first, then the
// environment, then the config file, and finally the defaults.
type Options struct {
	ConfigPath    string         `env:"ZSCRIPT_CONFIG" yaml:"-" toml:"-"`
	LibraryPath   string         `env:"ZSCRIPT_LIB_PATH" yaml:"library_path" toml:"library_path"`
	Symbols       native.Symbols `env:",prefix=ZSCRIPT_SYMBOL_" yaml:"symbols" toml:"symbols"`
	FailureResult string         `env:"ZSCRIPT_FAILURE_RESULT" yaml:"failure_result" toml:"failure_result"`
	MaxResultSize *int           `env:"ZSCRIPT_MAX_RESULT_SIZE,noinit" yaml:"max_result_size" toml:"max_result_size"`
	LogLevel      string         `env:"ZSCRIPT_LOG_LEVEL" yaml:"log_level" toml:"log_level"`
	TracerConfig  TracerConfig   `env:",prefix=ZSCRIPT_TRACER_" yaml:"tracer" toml:"tracer"`
	MetricsConfig metrics.Config `env:",prefix=ZSCRIPT_METRICS_" yaml:"metrics" toml:"metrics"`
}

// TracerConfig holds values specific to setting up the tracer. All configuration options
// have a prefix of ZSCRIPT_TRACER_ specified in the parent Options struct.
type TracerConfig struct {
	TracerType  string          `env:"TYPE" yaml:"type" toml:"type"`
	ServiceName string          `env:"SERVICENAME" yaml:"service_name" toml:"service_name"`
	Probability *float64        `env:"PROBABILITY,noinit" yaml:"probability" toml:"probability"`
	Collector   CollectorConfig `env:",prefix=COLLECTOR_" yaml:"collector" toml:"collector"`
}

// CollectorConfig holds config values for an OTLP collector reachable over gRPC.
// All the configuration values here have a prefix of ZSCRIPT_TRACER_COLLECTOR_.
type CollectorConfig struct {
	Endpoint string `env:"ENDPOINT" yaml:"endpoint" toml:"endpoint"`
}

// SampleProbability is the configured sampling ratio, zero when unset
func (c TracerConfig) SampleProbability() float64 {
	if c.Probability == nil {
		return 0
	}

	return *c.Probability
}

// Modifier sets an option explicitly, taking precedence over every other source
type Modifier func(*Options)

// UseConfigPath sets the config file to read
func UseConfigPath(path string) Modifier {
	return func(opts *Options) {
		opts.ConfigPath = path
	}
}

// UseLibraryPath sets the shared library to load
func UseLibraryPath(path string) Modifier {
	return func(opts *Options) {
		opts.LibraryPath = path
	}
}

// UseFailureResult sets the failure-path result policy ("free" or "null")
func UseFailureResult(policy string) Modifier {
	return func(opts *Options) {
		opts.FailureResult = policy
	}
}

// UseLogLevel sets the log level
func UseLogLevel(level string) Modifier {
	return func(opts *Options) {
		opts.LogLevel = level
	}
}

// Resolve assembles Options from mods, the environment seen through lookuper, and the config
// file. If lookuper is nil, the OsLookuper implementation is used.
func Resolve(lookuper envconfig.Lookuper, mods ...Modifier) (*Options, error) {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}

	opts := &Options{}
	for _, mod := range mods {
		mod(opts)
	}

	envOpts := Options{}
	if err := envconfig.ProcessWith(context.Background(), &envOpts, lookuper); err != nil {
		return nil, errors.Wrap(err, "zscript options parsing")
	}

	opts.fill(envOpts)

	if opts.ConfigPath != "" {
		fileOpts, err := FromFile(opts.ConfigPath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to FromFile")
		}

		opts.fill(*fileOpts)
	}

	opts.fill(defaults())

	if _, err := opts.FailurePolicy(); err != nil {
		return nil, err
	}

	if _, err := opts.Level(); err != nil {
		return nil, err
	}

	if *opts.MaxResultSize <= 0 {
		return nil, errors.Errorf("max result size must be positive, got %d", *opts.MaxResultSize)
	}

	if p := *opts.TracerConfig.Probability; p < 0 || p > 1 {
		return nil, errors.Errorf("tracer probability must be between 0 and 1, got %g", p)
	}

	return opts, nil
}

// FromFile reads a YAML (.yml, .yaml) or TOML (.toml) config file
func FromFile(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to ReadFile")
	}

	opts := &Options{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, opts); err != nil {
			return nil, errors.Wrap(err, "failed to yaml.Unmarshal")
		}
	case ".toml":
		if err := toml.Unmarshal(data, opts); err != nil {
			return nil, errors.Wrap(err, "failed to toml.Unmarshal")
		}
	default:
		return nil, errors.Errorf("unsupported config file type %q, expected .yml, .yaml or .toml", filepath.Ext(path))
	}

	return opts, nil
}

func defaults() Options {
	maxResultSize := engine.DefaultMaxResultSize
	probability := DefaultProbability

	return Options{
		LibraryPath:   native.DefaultPath(),
		Symbols:       native.DefaultSymbols(),
		FailureResult: DefaultFailureResult,
		MaxResultSize: &maxResultSize,
		LogLevel:      DefaultLogLevel,
		TracerConfig: TracerConfig{
			TracerType:  "none",
			ServiceName: DefaultServiceName,
			Probability: &probability,
		},
		MetricsConfig: metrics.Config{
			Type: metrics.TypeNone,
		},
	}
}

// fill sets every option that is still empty from src
func (o *Options) fill(src Options) {
	if o.ConfigPath == "" {
		o.ConfigPath = src.ConfigPath
	}

	if o.LibraryPath == "" {
		o.LibraryPath = src.LibraryPath
	}

	fillString(&o.Symbols.Init, src.Symbols.Init)
	fillString(&o.Symbols.RunFile, src.Symbols.RunFile)
	fillString(&o.Symbols.Interpret, src.Symbols.Interpret)
	fillString(&o.Symbols.InterpretWithResult, src.Symbols.InterpretWithResult)
	fillString(&o.Symbols.RunFileWithResult, src.Symbols.RunFileWithResult)
	fillString(&o.Symbols.Teardown, src.Symbols.Teardown)
	fillString(&o.Symbols.FreeResult, src.Symbols.FreeResult)

	if o.FailureResult == "" {
		o.FailureResult = src.FailureResult
	}

	if o.MaxResultSize == nil {
		o.MaxResultSize = src.MaxResultSize
	}

	if o.LogLevel == "" {
		o.LogLevel = src.LogLevel
	}

	fillString(&o.TracerConfig.TracerType, src.TracerConfig.TracerType)
	fillString(&o.TracerConfig.ServiceName, src.TracerConfig.ServiceName)
	fillString(&o.TracerConfig.Collector.Endpoint, src.TracerConfig.Collector.Endpoint)

	if o.TracerConfig.Probability == nil {
		o.TracerConfig.Probability = src.TracerConfig.Probability
	}

	fillString(&o.MetricsConfig.Type, src.MetricsConfig.Type)
	fillString(&o.MetricsConfig.Endpoint, src.MetricsConfig.Endpoint)
}

func fillString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

// FailurePolicy parses the FailureResult option
func (o *Options) FailurePolicy() (engine.FailurePolicy, error) {
	return engine.ParseFailurePolicy(o.FailureResult)
}

// Level parses the LogLevel option
func (o *Options) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(o.LogLevel))
	if err != nil {
		return zerolog.NoLevel, errors.Wrap(err, "failed to ParseLevel")
	}

	return level, nil
}

// NativeConfig returns the config used to load the library
func (o *Options) NativeConfig() native.Config {
	return native.Config{
		Path:    o.LibraryPath,
		Symbols: o.Symbols,
	}
}

// EngineModifiers translates the options into engine modifiers
func (o *Options) EngineModifiers() []engine.Modifier {
	policy, _ := o.FailurePolicy()

	return []engine.Modifier{
		engine.UseFailurePolicy(policy),
		engine.UseMaxResultSize(*o.MaxResultSize),
	}
}
