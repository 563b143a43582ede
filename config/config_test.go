package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmunell/featurespace/blobstore"
	"github.com/cmunell/featurespace/codec"
	"github.com/cmunell/featurespace/feature"
	"github.com/cmunell/featurespace/grammar"
	"github.com/cmunell/featurespace/train"
)

const sample = `
workers: 4
generators:
  - kind: NGram
    name: words
    params: {n: "1", minCount: "2"}
  - kind: Filtered
    name: ing
    params: {source: words, mode: suffix, pattern: ing}
rules:
  - kind: Affix
    name: suf
    params: {source: words, mode: suffix, length: "3"}
training:
  threshold: 0.5
  variant: plain
storage:
  kind: memory
  compression: lz4
  codec: json
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Workers)
	require.Len(t, cfg.Generators, 2)
	assert.Equal(t, GeneratorSpec{Kind: feature.KindNGram, Name: "words", Params: map[string]string{"n": "1", "minCount": "2"}}, cfg.Generators[0])
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, grammar.KindAffix, cfg.Rules[0].Kind)

	assert.Equal(t, 0.5, cfg.Training.Threshold)
	assert.Equal(t, train.Plain, cfg.Training.Variant)
	// keys absent from the file keep their defaults
	assert.Equal(t, train.DefaultConfig().LearningRate, cfg.Training.LearningRate)
	assert.Equal(t, train.DefaultConfig().MaxIterations, cfg.Training.MaxIterations)

	assert.Equal(t, StorageMemory, cfg.Storage.Kind)
	assert.Equal(t, codec.LZ4, cfg.Storage.CompressionCodec())
	assert.Equal(t, "json", cfg.Storage.DocumentCodec().Name())
}

func TestBuild(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	gens, rules, err := cfg.Build(nil, nil)
	require.NoError(t, err)
	require.Len(t, gens, 2)
	require.Len(t, rules, 1)

	assert.Equal(t, "words", gens[0].Name())
	v, err := gens[0].ParameterValue("minCount")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	v, err = gens[1].ParameterValue("pattern")
	require.NoError(t, err)
	assert.Equal(t, "ing", v)

	v, err = rules[0].ParameterValue("length")
	require.NoError(t, err)
	assert.Equal(t, "3", v)
}

func TestBuild_Errors(t *testing.T) {
	cfg := Default()
	cfg.Generators = []GeneratorSpec{{Kind: "Missing", Name: "x"}}
	_, _, err := cfg.Build(nil, nil)
	require.ErrorIs(t, err, feature.ErrUnknownKind)

	cfg.Generators = []GeneratorSpec{{Kind: feature.KindNGram, Name: "x", Params: map[string]string{"bogus": "1"}}}
	_, _, err = cfg.Build(nil, nil)
	require.ErrorIs(t, err, feature.ErrUnknownParameter)

	cfg.Generators = []GeneratorSpec{{Kind: feature.KindNGram, Name: "x", Params: map[string]string{"n": "zero"}}}
	_, _, err = cfg.Build(nil, nil)
	var ce *feature.ConfigurationError
	require.ErrorAs(t, err, &ce)

	cfg.Generators = []GeneratorSpec{{Kind: feature.KindNGram, Name: "x"}}
	cfg.Rules = []grammar.Spec{{Kind: "Missing", Name: "r"}}
	_, _, err = cfg.Build(nil, nil)
	require.ErrorIs(t, err, feature.ErrUnknownKind)
}

func TestRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)
	gens, rules, err := cfg.Build(nil, nil)
	require.NoError(t, err)

	captured := FromComponents(gens, rules)
	raw, err := captured.Marshal()
	require.NoError(t, err)

	back, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, captured, back)

	gens2, rules2, err := back.Build(nil, nil)
	require.NoError(t, err)
	require.Len(t, gens2, len(gens))
	for i := range gens {
		assert.Equal(t, SpecOf(gens[i]), SpecOf(gens2[i]))
	}
	for i := range rules {
		assert.Equal(t, grammar.SpecOf(rules[i]), grammar.SpecOf(rules2[i]))
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := Default()
		c.Generators = []GeneratorSpec{{Kind: feature.KindNGram, Name: "words"}}
		return c
	}
	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no generators", func(c *Config) { c.Generators = nil }},
		{"unnamed generator", func(c *Config) { c.Generators[0].Name = "" }},
		{"duplicate generator", func(c *Config) { c.Generators = append(c.Generators, c.Generators[0]) }},
		{"duplicate rule", func(c *Config) {
			c.Rules = []grammar.Spec{{Kind: grammar.KindAffix, Name: "r"}, {Kind: grammar.KindAffix, Name: "r"}}
		}},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"holdout of one", func(c *Config) { c.Holdout = 1 }},
		{"bad variant", func(c *Config) { c.Training.Variant = "dual" }},
		{"unknown storage", func(c *Config) { c.Storage.Kind = "ftp" }},
		{"local without root", func(c *Config) { c.Storage.Root = "" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Kind = StorageS3 }},
		{"minio without endpoint", func(c *Config) { c.Storage.Kind, c.Storage.Bucket = StorageMinIO, "models" }},
		{"unknown compression", func(c *Config) { c.Storage.Compression = "brotli" }},
		{"unknown codec", func(c *Config) { c.Storage.Codec = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			require.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}

	c := base()
	c.Training.LearningRate = 0
	require.ErrorIs(t, c.Validate(), train.ErrInvalidConfig)
}

func TestResources_Controller(t *testing.T) {
	assert.Nil(t, Resources{}.Controller())

	rc := Resources{MaxWorkers: 2, IOBytesPerSec: 1024}.Controller()
	require.NotNil(t, rc)
	assert.Equal(t, int64(2), rc.Config().MaxWorkers)
	assert.Equal(t, int64(1024), rc.Config().IOBytesPerSec)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "featurespace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Generators, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(path, []byte("generators: [unterminated"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
}

func TestStorage_Open(t *testing.T) {
	ctx := context.Background()

	s, err := Storage{Kind: StorageMemory}.Open(ctx)
	require.NoError(t, err)
	assert.IsType(t, &blobstore.MemoryStore{}, s)

	root := t.TempDir()
	s, err = Storage{Kind: StorageLocal, Root: root, Compression: "zstd"}.Open(ctx)
	require.NoError(t, err)
	local, ok := s.(*blobstore.LocalStore)
	require.True(t, ok)
	assert.Equal(t, root, local.Root())

	_, err = Storage{Kind: "ftp"}.Open(ctx)
	require.ErrorIs(t, err, ErrInvalid)
}
