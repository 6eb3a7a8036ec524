package config

import (
	"fmt"
	"math/big"

	"nback-go/internal/models"
)

// minTicksPerTrial leaves room for the stimulus and the feedback tick.
const minTicksPerTrial = 4

// Normalize applies the option forcing implied by Jaeggi mode: the dual
// task only, fixed N, strict scoring, one-session fallback and linear
// trial growth.
func (c *Config) Normalize() {
	if !c.Game.JaeggiMode {
		return
	}
	c.Game.Mode = int(models.DualMode)
	c.Game.VariableNBack = false
	c.Game.JaeggiScoring = true
	c.Thresholds.FallbackSessions = 1
	c.Trials.Factor = 1
	c.Trials.Exponent = 1
}

// Validate rejects values that cannot drive a training session.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	if _, err := models.LookupMode(models.ModeID(c.Game.Mode)); err != nil {
		return invalid("game.mode: %v", err)
	}
	if c.Levels.BackDefault < 1 {
		return invalid("levels.back_default must be >= 1, got %d", c.Levels.BackDefault)
	}
	for mode, back := range c.Levels.Back {
		if back < 1 {
			return invalid("levels.back[%d] must be >= 1, got %d", mode, back)
		}
	}
	if c.Levels.TicksDefault < minTicksPerTrial {
		return invalid("levels.ticks_default must be >= %d, got %d", minTicksPerTrial, c.Levels.TicksDefault)
	}
	for mode, ticks := range c.Levels.Ticks {
		if ticks < minTicksPerTrial {
			return invalid("levels.ticks[%d] must be >= %d, got %d", mode, minTicksPerTrial, ticks)
		}
	}
	// bonuses may be negative
	for _, mode := range models.Modes() {
		if ticks := c.ResolveTicks(mode); ticks < minTicksPerTrial {
			return invalid("mode %d resolves to %d ticks per trial, need >= %d", mode, ticks, minTicksPerTrial)
		}
	}
	if c.Game.RolloverHour < 0 || c.Game.RolloverHour > 23 {
		return invalid("game.rollover_hour must be within 0..23, got %d", c.Game.RolloverHour)
	}
	for name, p := range map[string]float64{
		"game.chance_of_guaranteed_match": c.Game.ChanceOfGuaranteedMatch,
		"game.chance_of_interference":     c.Game.ChanceOfInterference,
	} {
		if p < 0 || p > 1 {
			return invalid("%s must be within [0, 1], got %v", name, p)
		}
	}
	if c.Game.MultiMode != "color" && c.Game.MultiMode != "image" {
		return invalid("game.multi_mode must be color or image, got %q", c.Game.MultiMode)
	}
	if len(c.Game.VisualColors) == 0 {
		return invalid("game.visual_colors must not be empty")
	}
	if c.Trials.Base < 0 || c.Trials.Factor < 0 || c.Trials.Exponent < 0 {
		return invalid("trials parameters must be non-negative")
	}
	if c.Thresholds.FallbackSessions < 1 {
		return invalid("thresholds.fallback_sessions must be >= 1, got %d", c.Thresholds.FallbackSessions)
	}
	if c.Thresholds.Fallback > c.Thresholds.Advance || c.Thresholds.JaeggiFallback > c.Thresholds.JaeggiAdvance {
		return invalid("fallback thresholds must not exceed advance thresholds")
	}
	if c.Arithmetic.MaxNumber < 1 {
		return invalid("arithmetic.max_number must be >= 1, got %d", c.Arithmetic.MaxNumber)
	}
	if len(c.Operations()) == 0 {
		return invalid("at least one arithmetic operation must be enabled")
	}
	if _, err := c.AcceptableDecimals(); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// AdvanceThreshold is the score at or above which the level increases.
func (c *Config) AdvanceThreshold() int {
	if c.Game.JaeggiScoring {
		return c.Thresholds.JaeggiAdvance
	}
	return c.Thresholds.Advance
}

// FallbackThreshold is the score below which fallback progress accrues.
func (c *Config) FallbackThreshold() int {
	if c.Game.JaeggiScoring {
		return c.Thresholds.JaeggiFallback
	}
	return c.Thresholds.Fallback
}

// Operations lists the enabled arithmetic operations in a stable order.
func (c *Config) Operations() []models.Operation {
	var ops []models.Operation
	if c.Arithmetic.UseAddition {
		ops = append(ops, models.OpAdd)
	}
	if c.Arithmetic.UseSubtraction {
		ops = append(ops, models.OpSubtract)
	}
	if c.Arithmetic.UseMultiplication {
		ops = append(ops, models.OpMultiply)
	}
	if c.Arithmetic.UseDivision {
		ops = append(ops, models.OpDivide)
	}
	return ops
}

// AcceptableDecimals parses the division whitelist into exact fractions.
func (c *Config) AcceptableDecimals() ([]*big.Rat, error) {
	out := make([]*big.Rat, 0, len(c.Arithmetic.AcceptableDecimals))
	for _, s := range c.Arithmetic.AcceptableDecimals {
		r, ok := new(big.Rat).SetString(s)
		if !ok {
			return nil, fmt.Errorf("arithmetic.acceptable_decimals: cannot parse %q", s)
		}
		out = append(out, r)
	}
	return out, nil
}

// MinNumber is the lower bound of the operand range.
func (c *Config) MinNumber() int {
	if c.Arithmetic.UseNegatives {
		return -c.Arithmetic.MaxNumber
	}
	return 0
}

// resolutionChain lists the mode ids consulted for per-mode overrides, most
// specific first. Variants resolve through their base mode.
func resolutionChain(mode models.ModeID) []models.ModeID {
	if base := models.BaseMode(mode); base != mode {
		return []models.ModeID{mode, base}
	}
	return []models.ModeID{mode}
}

// ResolveBack returns the starting N-back level for mode: the mode's own
// override, then its base mode's, then the global default.
func (c *Config) ResolveBack(mode models.ModeID) int {
	for _, id := range resolutionChain(mode) {
		if back, ok := c.Levels.Back[int(id)]; ok {
			return back
		}
	}
	return c.Levels.BackDefault
}

// ResolveTicks returns ticks per trial for mode. When a variant falls back
// to its base mode, crab and multi-stim bonuses are added.
func (c *Config) ResolveTicks(mode models.ModeID) int {
	chain := resolutionChain(mode)
	if ticks, ok := c.Levels.Ticks[int(chain[0])]; ok {
		return ticks
	}
	if len(chain) == 1 {
		return c.Levels.TicksDefault
	}

	bonus := 0
	if mode&models.CrabFlag != 0 {
		bonus += c.Levels.BonusTicksCrab
	}
	if multi := mode & models.MultiMask; multi != 0 {
		bonus += c.Levels.BonusTicksMulti[int(multi)/256+1]
	}
	base := c.Levels.TicksDefault
	if ticks, ok := c.Levels.Ticks[int(chain[1])]; ok {
		base = ticks
	}
	return bonus + base
}
