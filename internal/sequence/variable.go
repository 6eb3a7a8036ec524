package sequence

import (
	"math"
	"math/rand"

	"nback-go/internal/models"
)

// GenerateLagSchedule draws one lag per trial beyond back. Each lag is
// floor(X*back)+1 with X ~ Beta(back/2, 1), so lags lie in 1..back and
// skew toward back as the level grows.
func GenerateLagSchedule(rng *rand.Rand, totalTrials, back int) models.VariableLagSchedule {
	n := totalTrials - back
	if n <= 0 || back < 1 {
		return nil
	}
	alpha := float64(back) / 2
	schedule := make(models.VariableLagSchedule, n)
	for i := range schedule {
		schedule[i] = int(betaOne(rng, alpha)*float64(back)) + 1
		if schedule[i] > back {
			schedule[i] = back
		}
	}
	return schedule
}

// betaOne samples Beta(alpha, 1) by inverting its CDF x^alpha.
func betaOne(rng *rand.Rand, alpha float64) float64 {
	return math.Pow(rng.Float64(), 1/alpha)
}
