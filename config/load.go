package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// EnvPrefix starts the name of every environment variable read by Load.
const EnvPrefix = "LLCMAP_"

type field struct {
	flag  string
	usage string
	value func(c *Config) any
}

var fields = []field{
	{"cores", "number of physical cores",
		func(c *Config) any { return &c.Cores }},
	{"core-stride", "cpu id distance between two cores",
		func(c *Config) any { return &c.CoreStride }},
	{"core-offset", "cpu id of core 0",
		func(c *Config) any { return &c.CoreOffset }},
	{"home-core", "core that builds the eviction sets",
		func(c *Config) any { return &c.HomeCore }},
	{"ways", "associativity of the last-level cache",
		func(c *Config) any { return &c.Ways }},
	{"threshold", "latency at which a line counts as evicted",
		func(c *Config) any { return &c.Threshold }},
	{"evict-count", "walks of an eviction chain per round",
		func(c *Config) any { return &c.EvictCount }},
	{"buffer-size", "size of the eviction buffer in bytes",
		func(c *Config) any { return &c.BufferSize }},
	{"huge-page-size", "huge page size backing the buffer, 0 for small pages",
		func(c *Config) any { return &c.HugePageSize }},
	{"set-index-bits", "log2 of the set-index stride",
		func(c *Config) any { return &c.SetIndexBits }},
	{"line-bits", "log2 of the cache line size",
		func(c *Config) any { return &c.LineBits }},
	{"page-bits", "log2 of the small page size",
		func(c *Config) any { return &c.PageBits }},
	{"max-slices", "slice slots per set-index",
		func(c *Config) any { return &c.MaxSlices }},
	{"quick-set-size", "slice size at which a quick set is taken",
		func(c *Config) any { return &c.QuickSetSize }},
	{"measure-rounds", "rounds per eviction test",
		func(c *Config) any { return &c.MeasureRounds }},
	{"core-rounds", "samples per slice and core",
		func(c *Config) any { return &c.CoreRounds }},
	{"access-evictors", "slice pages walked before a timed access",
		func(c *Config) any { return &c.AccessEvictors }},
	{"set-index-probes", "samples per offset when detecting a set-index",
		func(c *Config) any { return &c.SetIndexProbes }},
	{"mean-scale", "fixed-point scale of mean latencies",
		func(c *Config) any { return &c.MeanScale }},
	{"seed", "seed of the candidate order",
		func(c *Config) any { return &c.Seed }},
}

func envName(flag string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// Load returns base overridden by envFile, if not empty, and then by the
// environment.
func Load(base Config, envFile string) (Config, error) {
	c := base

	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		if err != nil {
			return c, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}

		if err := c.apply(func(name string) (string, bool) {
			v, ok := vars[name]
			return v, ok
		}); err != nil {
			return c, err
		}
	}

	if err := c.apply(os.LookupEnv); err != nil {
		return c, err
	}

	return c, nil
}

func (c *Config) apply(lookup func(string) (string, bool)) error {
	for _, f := range fields {
		s, ok := lookup(envName(f.flag))
		if !ok {
			continue
		}

		if err := set(f.value(c), s); err != nil {
			return fmt.Errorf("%w: %s=%q: %v",
				ErrInvalidConfig, envName(f.flag), s, err)
		}
	}

	return nil
}

func set(ptr any, s string) error {
	switch p := ptr.(type) {
	case *int:
		v, err := ParseSize(s)
		if err != nil {
			return err
		}

		*p = v
	case *uint64:
		v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
		if err != nil {
			return err
		}

		*p = v
	}

	return nil
}

// ParseSize parses a decimal, hex or octal integer with an optional K, M or
// G suffix.
func ParseSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	shift := 0

	if s != "" {
		switch s[len(s)-1] {
		case 'k', 'K':
			shift = 10
		case 'm', 'M':
			shift = 20
		case 'g', 'G':
			shift = 30
		}
	}

	if shift > 0 {
		s = s[:len(s)-1]
	}

	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, err
	}

	if v > math.MaxInt>>shift || v < math.MinInt>>shift {
		return 0, fmt.Errorf("size %q overflows", s)
	}

	return int(v) << shift, nil
}

// AddFlags registers one flag per knob with the values of c as defaults.
func (c Config) AddFlags(fs *pflag.FlagSet) {
	for _, f := range fields {
		switch v := f.value(&c).(type) {
		case *int:
			fs.Int(f.flag, *v, f.usage)
		case *uint64:
			fs.Uint64(f.flag, *v, f.usage)
		}
	}
}

// ApplyFlags overrides c with the flags set on the command line.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	for _, f := range fields {
		if !fs.Changed(f.flag) {
			continue
		}

		var err error

		switch v := f.value(c).(type) {
		case *int:
			*v, err = fs.GetInt(f.flag)
		case *uint64:
			*v, err = fs.GetUint64(f.flag)
		}

		if err != nil {
			return fmt.Errorf("%w: --%s: %v", ErrInvalidConfig, f.flag, err)
		}
	}

	return nil
}
