package sequence

import (
	"errors"
	"fmt"
	"math/rand"
)

const (
	// Match counts fixed by the Jaeggi protocol.
	constrainedPositionMatches = 6
	constrainedAudioMatches    = 6
	constrainedBothMatches     = 2

	// maxConstrainedDraws bounds the number of stream resamples.
	maxConstrainedDraws = 1_000_000
)

var (
	// ErrInfeasibleSequence means the trial count cannot hold the required matches.
	ErrInfeasibleSequence = errors.New("constrained sequence infeasible")
	// ErrSequenceExhausted means rejection sampling ran out of attempts.
	ErrSequenceExhausted = errors.New("constrained sequence search exhausted")
)

// MinConstrainedTrials is the smallest session length that can carry the
// Jaeggi match pattern at the given back level.
func MinConstrainedTrials(back int) int {
	return back + constrainedPositionMatches + constrainedAudioMatches - constrainedBothMatches
}

// GenerateConstrained builds position and audio streams of numTrials values
// in 1..8 with exactly six position matches, six audio matches and two
// trials where both match, all at distance back.
func GenerateConstrained(rng *rand.Rand, numTrials, back int) (position, audio []int, err error) {
	if back < 1 {
		return nil, nil, fmt.Errorf("%w: back must be >= 1, got %d", ErrInfeasibleSequence, back)
	}
	if numTrials < MinConstrainedTrials(back) {
		return nil, nil, fmt.Errorf("%w: %d trials at %d-back, need at least %d",
			ErrInfeasibleSequence, numTrials, back, MinConstrainedTrials(back))
	}

	position = make([]int, numTrials)
	audio = make([]int, numTrials)
	for i := 0; i < back; i++ {
		position[i] = rng.Intn(StimulusValues) + 1
		audio[i] = rng.Intn(StimulusValues) + 1
	}

	draws := 0
	resample := func(stream []int, want int) bool {
		for draws < maxConstrainedDraws {
			draws++
			if fillMatches(rng, stream, back) == want {
				return true
			}
		}
		return false
	}

	for {
		if !resample(position, constrainedPositionMatches) || !resample(audio, constrainedAudioMatches) {
			return nil, nil, fmt.Errorf("%w after %d draws", ErrSequenceExhausted, draws)
		}
		if countBoth(position, audio, back) == constrainedBothMatches {
			return position, audio, nil
		}
	}
}

// fillMatches redraws stream[back:] and returns the number of back-matches.
func fillMatches(rng *rand.Rand, stream []int, back int) int {
	matches := 0
	for i := back; i < len(stream); i++ {
		stream[i] = rng.Intn(StimulusValues) + 1
		if stream[i] == stream[i-back] {
			matches++
		}
	}
	return matches
}

// CountMatches returns how many trials repeat the value back trials earlier.
func CountMatches(stream []int, back int) int {
	n := 0
	for i := back; i < len(stream); i++ {
		if stream[i] == stream[i-back] {
			n++
		}
	}
	return n
}

func countBoth(position, audio []int, back int) int {
	n := 0
	for i := back; i < len(position); i++ {
		if position[i] == position[i-back] && audio[i] == audio[i-back] {
			n++
		}
	}
	return n
}
