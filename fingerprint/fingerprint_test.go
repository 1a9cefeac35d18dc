package fingerprint

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cifarConfig() Config {
	return Config{
		Profile:       CIFARLike,
		NumDirections: 5,
		NumClasses:    10,
		InputDim:      3 * 32 * 32,
		Epsilon:       0.1,
	}
}

func TestGenerateValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero directions", mutate: func(c *Config) { c.NumDirections = 0 }},
		{name: "negative directions", mutate: func(c *Config) { c.NumDirections = -3 }},
		{name: "one class", mutate: func(c *Config) { c.NumClasses = 1 }},
		{name: "zero input dim", mutate: func(c *Config) { c.InputDim = 0 }},
		{name: "zero epsilon", mutate: func(c *Config) { c.Epsilon = 0 }},
		{name: "unknown profile", mutate: func(c *Config) { c.Profile = "imagenet-like" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := cifarConfig()
			tt.mutate(&cfg)
			_, err := Generate(cfg, rng)
			assert.Error(t, err)
		})
	}
}

func TestTargetCodeScenario(t *testing.T) {
	// numClasses=10, D=5, eps=0.1, cifar-like profile.
	fp, err := Generate(cifarConfig(), rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	for j := 0; j < 5; j++ {
		assert.InDelta(t, 0.9, fp.TargetCodes.At(3, j, 3), 1e-12, "own-class code, direction %d", j)
		assert.InDelta(t, -0.381, fp.TargetCodes.At(3, j, 7), 1e-12, "other-class code, direction %d", j)
	}
}

func TestCodeSeparation(t *testing.T) {
	profiles := []Profile{MNISTLike, CIFARLike}
	for _, p := range profiles {
		t.Run(string(p), func(t *testing.T) {
			cfg := cifarConfig()
			cfg.Profile = p
			cfg.NumClasses = 4
			cfg.NumDirections = 3
			cfg.InputDim = 16
			fp, err := Generate(cfg, rand.New(rand.NewSource(2)))
			require.NoError(t, err)

			want := p.Separation()
			for c := 0; c < cfg.NumClasses; c++ {
				for j := 0; j < cfg.NumDirections; j++ {
					for other := 0; other < cfg.NumClasses; other++ {
						if other == c {
							continue
						}
						gap := fp.TargetCodes.At(c, j, c) - fp.TargetCodes.At(c, j, other)
						assert.InDelta(t, want, gap, 1e-12)
					}
				}
			}
		})
	}
}

func TestCIFARSeparationConstant(t *testing.T) {
	assert.InDelta(t, 1.281, CIFARLike.Separation(), 1e-12)
}

func TestDirectionRanges(t *testing.T) {
	cfg := cifarConfig()
	cfg.InputDim = 512

	t.Run("cifar-like is centered", func(t *testing.T) {
		fp, err := Generate(cfg, rand.New(rand.NewSource(3)))
		require.NoError(t, err)
		sawNegative := false
		for _, d := range fp.Directions {
			for j := 0; j < d.Len(); j++ {
				v := d.AtVec(j)
				require.LessOrEqual(t, math.Abs(v), cfg.Epsilon)
				if v < 0 {
					sawNegative = true
				}
			}
		}
		assert.True(t, sawNegative, "cifar-like directions should span negative values")
	})

	t.Run("mnist-like is non-negative", func(t *testing.T) {
		mcfg := cfg
		mcfg.Profile = MNISTLike
		fp, err := Generate(mcfg, rand.New(rand.NewSource(3)))
		require.NoError(t, err)
		for _, d := range fp.Directions {
			for j := 0; j < d.Len(); j++ {
				v := d.AtVec(j)
				require.GreaterOrEqual(t, v, 0.0)
				require.LessOrEqual(t, v, mcfg.Epsilon)
			}
		}
	})
}

func TestGenerateIsDeterministicForASeed(t *testing.T) {
	cfg := cifarConfig()
	a, err := Generate(cfg, rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	b, err := Generate(cfg, rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	c, err := Generate(cfg, rand.New(rand.NewSource(12)))
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
}

func TestRegularizationScale(t *testing.T) {
	// B=48, D=5, cifar-like, no override: 1 + 50/5 = 11.
	assert.InDelta(t, 11.0, CIFARLike.RegularizationScale(5), 1e-12)
	assert.InDelta(t, 1.0, MNISTLike.RegularizationScale(5), 1e-12)
	assert.InDelta(t, 1.0+50.0/10.0, CIFARLike.RegularizationScale(10), 1e-12)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := cifarConfig()
	cfg.InputDim = 64 // keep the blobs small
	fp, err := Generate(cfg, rand.New(rand.NewSource(21)))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, fp.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, fp.Equal(loaded), "round trip must preserve exact values")
	assert.Equal(t, CIFARLike, loaded.Profile)
	assert.Equal(t, cfg.Epsilon, loaded.Epsilon)
}

func TestLoadRejectsMissingFiles(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestCodeRowAliasesCodes(t *testing.T) {
	fp, err := Generate(cifarConfig(), rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	row := fp.CodeRow(3, 2)
	require.Len(t, row, fp.NumClasses)
	assert.Equal(t, fp.TargetCodes.At(3, 2, 0), row[0])
	assert.Equal(t, fp.TargetCodes.At(3, 2, 9), row[9])
}
