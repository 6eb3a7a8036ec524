package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"nback-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, root, body string) {
	t.Helper()
	dir := filepath.Join(root, "config")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
}

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, 2, c.Game.Mode)
	assert.Equal(t, 2, c.ResolveBack(models.DualMode))
	assert.Equal(t, 1, c.ResolveBack(7))
	assert.Equal(t, 1, c.ResolveBack(7|models.CrabFlag), "variants resolve through their base mode")
	assert.Equal(t, 30, c.ResolveTicks(models.DualMode))
	assert.Equal(t, 40, c.ResolveTicks(8))
	assert.Equal(t, 35, c.ResolveTicks(models.DualMode|256), "double stimulus adds its bonus")
	assert.Equal(t, 40, c.ResolveTicks(models.DualMode|512))
	assert.Equal(t, 80, c.AdvanceThreshold())
	assert.Equal(t, 50, c.FallbackThreshold())
	assert.Len(t, c.Operations(), 4)
	assert.Equal(t, 0, c.MinNumber())

	decimals, err := c.AcceptableDecimals()
	require.NoError(t, err)
	assert.Len(t, decimals, len(c.Arithmetic.AcceptableDecimals))
}

func TestInitReadsFileAndEnvironment(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "game:\n  mode: 3\nlevels:\n  ticks:\n    \"3\": 25\n")
	t.Setenv("NBACK_GAME_ROLLOVER_HOUR", "6")

	c, err := Init(root, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Game.Mode)
	assert.Equal(t, 6, c.Game.RolloverHour)
	assert.Equal(t, 25, c.ResolveTicks(3))
	assert.Equal(t, 30, c.ResolveTicks(models.DualMode))
}

func TestInitWithoutFileUsesDefaults(t *testing.T) {
	c, err := Init(t.TempDir(), zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestJaeggiModeForcesOptions(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "game:\n  mode: 3\n  jaeggi_mode: true\n  variable_nback: true\n")

	c, err := Init(root, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, int(models.DualMode), c.Game.Mode)
	assert.False(t, c.Game.VariableNBack)
	assert.True(t, c.Game.JaeggiScoring)
	assert.Equal(t, 1, c.Thresholds.FallbackSessions)
	assert.Equal(t, 1, c.Trials.Exponent)
	assert.Equal(t, 90, c.AdvanceThreshold())
	assert.Equal(t, 75, c.FallbackThreshold())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Game.Mode = 999 }},
		{"zero back", func(c *Config) { c.Levels.BackDefault = 0 }},
		{"ticks default", func(c *Config) { c.Levels.TicksDefault = 3 }},
		{"mode ticks", func(c *Config) { c.Levels.Ticks = map[int]int{2: 2} }},
		{"crab bonus", func(c *Config) { c.Levels.BonusTicksCrab = -c.Levels.TicksDefault }},
		{"multi bonus", func(c *Config) { c.Levels.BonusTicksMulti = map[int]int{2: -c.Levels.TicksDefault + 1} }},
		{"rollover", func(c *Config) { c.Game.RolloverHour = 24 }},
		{"chance", func(c *Config) { c.Game.ChanceOfInterference = 1.5 }},
		{"multi mode", func(c *Config) { c.Game.MultiMode = "sound" }},
		{"thresholds", func(c *Config) { c.Thresholds.Fallback = 90 }},
		{"operations", func(c *Config) {
			c.Arithmetic.UseAddition = false
			c.Arithmetic.UseSubtraction = false
			c.Arithmetic.UseMultiplication = false
			c.Arithmetic.UseDivision = false
		}},
		{"decimals", func(c *Config) { c.Arithmetic.AcceptableDecimals = []string{"half"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}

func TestInitRejectsInvalidFile(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "game:\n  rollover_hour: 30\n")
	_, err := Init(root, zap.NewNop(), nil)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestInitReloadsOnChange(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "game:\n  mode: 2\n")

	changes := make(chan *Config, 4)
	_, err := Init(root, zap.NewNop(), func(c *Config) {
		select {
		case changes <- c:
		default:
		}
	})
	require.NoError(t, err)

	writeConfig(t, root, "game:\n  mode: 3\n")
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			// A truncating write can surface an intermediate empty file first.
			if c.Game.Mode == 3 {
				return
			}
		case <-timeout:
			t.Fatal("no reload after the file changed")
		}
	}
}
