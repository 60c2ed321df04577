// Package config handles the xpvm.toml runtime configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/inhies/go-bytesize"

	"github.com/colorfulnotion/xpvm/log"
	"github.com/colorfulnotion/xpvm/xpvm"
	"github.com/colorfulnotion/xpvm/xpvm/native"
)

// Config is the runtime configuration of one xpvm invocation.
type Config struct {
	VM     VM     `toml:"vm"`
	Log    Log    `toml:"log"`
	Trace  Trace  `toml:"trace"`
	Native Native `toml:"native"`
}

// VM sizes the arena and bounds the processor table.
type VM struct {
	Memory        string `toml:"memory"`
	MaxProcessors int    `toml:"max_processors"`
	MaxArgs       int    `toml:"max_args"`
}

// Log configures the global logger. Format is "terminal" or "json".
type Log struct {
	Level   string   `toml:"level"`
	Format  string   `toml:"format"`
	Modules []string `toml:"modules"`
}

// Trace selects the instruction trace sinks. Empty paths disable a sink.
type Trace struct {
	JSONL   string `toml:"jsonl"`
	LevelDB string `toml:"leveldb"`
}

// Native lists the native functions resolved into the call table, in slot order.
type Native struct {
	Functions []string `toml:"functions"`
}

func Default() *Config {
	return &Config{
		VM: VM{
			Memory:        bytesize.ByteSize(xpvm.DefaultMemory).String(),
			MaxProcessors: xpvm.DefaultMaxProcessors,
			MaxArgs:       xpvm.DefaultMaxArgs,
		},
		Log:    Log{Level: "info", Format: log.FormatTerminal},
		Native: Native{Functions: append([]string(nil), native.DefaultFunctions...)},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in %s", undecoded[0].String(), path)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	mem, err := ParseSize(c.VM.Memory)
	if err != nil {
		return fmt.Errorf("vm.memory: %w", err)
	}
	if mem == 0 {
		return fmt.Errorf("vm.memory: must be positive")
	}
	if c.VM.MaxProcessors < 1 {
		return fmt.Errorf("vm.max_processors: %d < 1", c.VM.MaxProcessors)
	}
	if c.VM.MaxArgs < 0 {
		return fmt.Errorf("vm.max_args: %d < 0", c.VM.MaxArgs)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case log.FormatTerminal, log.FormatJSON:
	default:
		return fmt.Errorf("log.format: %q is not %q or %q", c.Log.Format, log.FormatTerminal, log.FormatJSON)
	}
	return nil
}

// MemoryBytes is the arena capacity in bytes.
func (c *Config) MemoryBytes() (uint64, error) {
	return ParseSize(c.VM.Memory)
}

// ParseSize accepts a plain byte count or a human size such as "16MB".
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	b, err := bytesize.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return uint64(b), nil
}

// Natives resolves the configured function names against the built-in
// registry.
func (c *Config) Natives() (*native.Table, error) {
	return native.Builtins().Resolve(c.Native.Functions)
}

// Options turns the configuration into machine options. Trace sinks are
// opened by the caller.
func (c *Config) Options() (xpvm.Options, error) {
	mem, err := c.MemoryBytes()
	if err != nil {
		return xpvm.Options{}, err
	}
	natives, err := c.Natives()
	if err != nil {
		return xpvm.Options{}, err
	}
	return xpvm.Options{
		Memory:        mem,
		MaxProcessors: c.VM.MaxProcessors,
		MaxArgs:       c.VM.MaxArgs,
		Natives:       natives,
	}, nil
}
