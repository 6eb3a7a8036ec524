package sequence

import (
	"math/rand"
	"testing"

	"nback-go/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestGenerateLagSchedule(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	schedule := GenerateLagSchedule(rng, 29, 3)

	assert.Len(t, schedule, 26)
	for _, lag := range schedule {
		assert.GreaterOrEqual(t, lag, 1)
		assert.LessOrEqual(t, lag, 3)
	}

	assert.Nil(t, GenerateLagSchedule(rng, 3, 3))
	assert.Nil(t, GenerateLagSchedule(rng, 10, 0))
}

func TestLagScheduleSkewsTowardBack(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	schedule := GenerateLagSchedule(rng, 20000+6, 6)

	counts := map[int]int{}
	for _, lag := range schedule {
		counts[lag]++
	}
	// P(lag = back) = 1 - ((back-1)/back)^(back/2) ≈ 0.42 for back 6.
	assert.InDelta(t, 0.42, float64(counts[6])/float64(len(schedule)), 0.02)
	assert.Greater(t, counts[6], counts[5])
	assert.Greater(t, counts[5], counts[1])
}

func TestCrabLagAlternation(t *testing.T) {
	mode, err := models.LookupMode(10 | models.CrabFlag)
	assert.NoError(t, err)
	sess := &models.Session{Mode: mode, Back: 3}

	var lags []int
	for trial := 1; trial <= 6; trial++ {
		lags = append(lags, sess.Lag(trial))
	}
	assert.Equal(t, []int{1, 3, 5, 1, 3, 5}, lags)
}

func TestVariableScheduleOverridesCrab(t *testing.T) {
	mode, _ := models.LookupMode(10 | models.CrabFlag)
	sess := &models.Session{Mode: mode, Back: 2, Lags: models.VariableLagSchedule{1, 2, 1}}

	assert.Equal(t, 2, sess.Lag(2), "before the schedule starts")
	assert.Equal(t, 1, sess.Lag(3))
	assert.Equal(t, 2, sess.Lag(4))
	assert.Equal(t, 1, sess.Lag(5))
	assert.Equal(t, 2, sess.Lag(6), "past the schedule")
}
