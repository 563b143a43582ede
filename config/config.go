package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cmunell/featurespace/blobstore"
	"github.com/cmunell/featurespace/blobstore/minio"
	"github.com/cmunell/featurespace/blobstore/s3"
	"github.com/cmunell/featurespace/codec"
	"github.com/cmunell/featurespace/feature"
	"github.com/cmunell/featurespace/grammar"
	"github.com/cmunell/featurespace/resource"
	"github.com/cmunell/featurespace/train"
)

// Storage kinds.
const (
	StorageLocal  = "local"
	StorageMemory = "memory"
	StorageS3     = "s3"
	StorageMinIO  = "minio"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// GeneratorSpec configures one generator. Params are applied in the
// generator's declared parameter order.
type GeneratorSpec struct {
	Kind   string            `yaml:"kind" json:"kind"`
	Name   string            `yaml:"name" json:"name"`
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// Storage selects where models are persisted. AccessKey and SecretKey may
// reference environment variables as ${VAR}.
type Storage struct {
	Kind        string `yaml:"kind" json:"kind"`
	Root        string `yaml:"root,omitempty" json:"root,omitempty"`
	Bucket      string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix      string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Region      string `yaml:"region,omitempty" json:"region,omitempty"`
	AccessKey   string `yaml:"accessKey,omitempty" json:"accessKey,omitempty"`
	SecretKey   string `yaml:"secretKey,omitempty" json:"secretKey,omitempty"`
	Secure      bool   `yaml:"secure,omitempty" json:"secure,omitempty"`
	Compression string `yaml:"compression,omitempty" json:"compression,omitempty"`
	Codec       string `yaml:"codec,omitempty" json:"codec,omitempty"`
}

// Resources bounds the work shared by fitting, training and persistence.
// Zero values are unlimited.
type Resources struct {
	MaxWorkers       int64 `yaml:"maxWorkers,omitempty" json:"maxWorkers,omitempty"`
	CacheMemoryBytes int64 `yaml:"cacheMemoryBytes,omitempty" json:"cacheMemoryBytes,omitempty"`
	IOBytesPerSec    int64 `yaml:"ioBytesPerSec,omitempty" json:"ioBytesPerSec,omitempty"`
}

// Controller returns a controller for r, nil if r sets no limit.
func (r Resources) Controller() *resource.Controller {
	if r == (Resources{}) {
		return nil
	}
	return resource.NewController(resource.Config{
		MaxWorkers:       r.MaxWorkers,
		CacheMemoryBytes: r.CacheMemoryBytes,
		IOBytesPerSec:    r.IOBytesPerSec,
	})
}

// Config is the file form of a feature space and its training run.
type Config struct {
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty"`
	// CacheCapacity bounds the vector cache in bytes (0 = unbounded).
	CacheCapacity int64 `yaml:"cacheCapacity,omitempty" json:"cacheCapacity,omitempty"`
	// Holdout is the fraction of the training data held out to evaluate
	// binary models (0 disables evaluation).
	Holdout    float64         `yaml:"holdout,omitempty" json:"holdout,omitempty"`
	Generators []GeneratorSpec `yaml:"generators" json:"generators"`
	Rules      []grammar.Spec  `yaml:"rules,omitempty" json:"rules,omitempty"`
	Training   train.Config    `yaml:"training" json:"training"`
	Storage    Storage         `yaml:"storage" json:"storage"`
	Resources  Resources       `yaml:"resources,omitempty" json:"resources,omitempty"`
}

// Default returns a config with default training and local zstd storage.
func Default() *Config {
	return &Config{
		Workers:  1,
		Training: train.DefaultConfig(),
		Storage: Storage{
			Kind:        StorageLocal,
			Root:        "models",
			Compression: codec.Zstd.Name(),
			Codec:       codec.Default.Name(),
		},
	}
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks names, kinds, storage and training settings. Parameter
// values are checked by Build.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative", ErrInvalid)
	}
	if c.Holdout < 0 || c.Holdout >= 1 {
		return fmt.Errorf("%w: holdout must be in [0, 1)", ErrInvalid)
	}
	if len(c.Generators) == 0 {
		return fmt.Errorf("%w: no generators", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Generators))
	for i, g := range c.Generators {
		if g.Kind == "" || g.Name == "" {
			return fmt.Errorf("%w: generator %d needs kind and name", ErrInvalid, i)
		}
		if seen[g.Name] {
			return fmt.Errorf("%w: duplicate generator %q", ErrInvalid, g.Name)
		}
		seen[g.Name] = true
	}
	rules := make(map[string]bool, len(c.Rules))
	for i, r := range c.Rules {
		if r.Kind == "" || r.Name == "" {
			return fmt.Errorf("%w: rule %d needs kind and name", ErrInvalid, i)
		}
		if rules[r.Name] {
			return fmt.Errorf("%w: duplicate rule %q", ErrInvalid, r.Name)
		}
		rules[r.Name] = true
	}
	if err := c.Training.Validate(); err != nil {
		return fmt.Errorf("%w: training: %w", ErrInvalid, err)
	}
	return c.Storage.Validate()
}

// Build instantiates the configured generators and rules. Nil registries
// select the defaults.
func (c *Config) Build(gens *feature.Registry, rules *grammar.Registry) ([]feature.Generator, []grammar.Rule, error) {
	if gens == nil {
		gens = feature.DefaultRegistry()
	}
	if rules == nil {
		rules = grammar.DefaultRegistry(gens)
	}
	out := make([]feature.Generator, 0, len(c.Generators))
	for _, spec := range c.Generators {
		g, err := gens.New(spec.Kind, spec.Name)
		if err != nil {
			return nil, nil, err
		}
		if err := feature.Apply(g, spec.Params); err != nil {
			return nil, nil, fmt.Errorf("generator %q: %w", spec.Name, err)
		}
		out = append(out, g)
	}
	rs := make([]grammar.Rule, 0, len(c.Rules))
	for _, spec := range c.Rules {
		r, err := rules.FromSpec(spec)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %q: %w", spec.Name, err)
		}
		rs = append(rs, r)
	}
	return out, rs, nil
}

// FromComponents captures gens and rules with every parameter value, on top
// of the defaults.
func FromComponents(gens []feature.Generator, rules []grammar.Rule) *Config {
	c := Default()
	for _, g := range gens {
		c.Generators = append(c.Generators, SpecOf(g))
	}
	for _, r := range rules {
		c.Rules = append(c.Rules, grammar.SpecOf(r))
	}
	return c
}

// SpecOf captures the kind, name and parameter values of g.
func SpecOf(g feature.Generator) GeneratorSpec {
	s := GeneratorSpec{Kind: g.Kind(), Name: g.Name(), Params: make(map[string]string)}
	for _, name := range g.ParameterNames() {
		if v, err := g.ParameterValue(name); err == nil {
			s.Params[name] = v
		}
	}
	return s
}

// Validate checks the storage kind and the codec and compression names.
func (s Storage) Validate() error {
	switch s.Kind {
	case StorageLocal:
		if s.Root == "" {
			return fmt.Errorf("%w: local storage needs a root", ErrInvalid)
		}
	case StorageMemory:
	case StorageS3, StorageMinIO:
		if s.Bucket == "" {
			return fmt.Errorf("%w: %s storage needs a bucket", ErrInvalid, s.Kind)
		}
		if s.Kind == StorageMinIO && s.Endpoint == "" {
			return fmt.Errorf("%w: minio storage needs an endpoint", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage kind %q", ErrInvalid, s.Kind)
	}
	if _, ok := codec.CompressionByName(s.Compression); !ok {
		return fmt.Errorf("%w: unknown compression %q", ErrInvalid, s.Compression)
	}
	if s.Codec != "" {
		if _, ok := codec.ByName(s.Codec); !ok {
			return fmt.Errorf("%w: unknown codec %q", ErrInvalid, s.Codec)
		}
	}
	return nil
}

// CompressionCodec returns the configured document compression, none if unknown.
func (s Storage) CompressionCodec() codec.Compression {
	c, ok := codec.CompressionByName(s.Compression)
	if !ok {
		return codec.None
	}
	return c
}

// DocumentCodec returns the configured section codec, the default if empty or unknown.
func (s Storage) DocumentCodec() codec.Codec {
	c, ok := codec.ByName(s.Codec)
	if !ok {
		return codec.Default
	}
	return c
}

// Open connects to the configured store.
func (s Storage) Open(ctx context.Context) (blobstore.Store, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	switch s.Kind {
	case StorageMemory:
		return blobstore.NewMemoryStore(), nil
	case StorageLocal:
		return blobstore.NewLocalStore(s.Root), nil
	case StorageMinIO:
		st, err := minio.Open(ctx, minio.Config{
			Endpoint:  s.Endpoint,
			AccessKey: os.ExpandEnv(s.AccessKey),
			SecretKey: os.ExpandEnv(s.SecretKey),
			Region:    s.Region,
			Bucket:    s.Bucket,
			Prefix:    s.Prefix,
			Secure:    s.Secure,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		opts := []s3.Option{s3.WithPrefix(strings.Trim(s.Prefix, "/"))}
		if s.Region != "" {
			opts = append(opts, s3.WithRegion(s.Region))
		}
		if s.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(s.Endpoint))
		}
		st, err := s3.New(ctx, s.Bucket, opts...)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}
