// Package votesim is a toy Monte-Carlo voting model: N voters each vote for
// one of the others at random, or abstain with probability prob. It is the
// experiment bundled with gridrun.
package votesim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Params are the experiment parameters.
type Params struct {
	N          int
	Iterations int
	Prob       float64
	MasterSeed int64

	// NumSeeds is the number of seeds derived from MasterSeed. Zero runs a
	// single seed equal to MasterSeed.
	NumSeeds int
}

// Validate checks the parameters before any computation.
func (p Params) Validate() error {
	var errs []error
	if p.N < 2 {
		errs = append(errs, fmt.Errorf("N must be greater than 1, got %d", p.N))
	}
	if p.Iterations < 1 {
		errs = append(errs, fmt.Errorf("iterations must be positive, got %d", p.Iterations))
	}
	if math.IsNaN(p.Prob) || p.Prob < 0 || p.Prob > 1 {
		errs = append(errs, fmt.Errorf("prob must be in [0, 1], got %v", p.Prob))
	}
	if p.MasterSeed < 0 {
		errs = append(errs, fmt.Errorf("master_seed must be non-negative, got %d", p.MasterSeed))
	}
	return errors.Join(errs...)
}

// SeedResult aggregates the iterations run with one seed.
type SeedResult struct {
	AvgNumAbstained  float64 `json:"avg_num_abstained"`
	MostCommonWinner int     `json:"most_common_winner"`
	Seed             uint64  `json:"seed"`
}

// Result is the artifact written by the experiment.
type Result struct {
	ExpName     string       `json:"exp_name"`
	N           int          `json:"N"`
	Iterations  int          `json:"iterations"`
	Prob        float64      `json:"prob"`
	MasterSeed  int64        `json:"master_seed"`
	NumSeeds    int          `json:"num_seeds"`
	SeedResults []SeedResult `json:"seed_results"`
}

// NewRand returns the generator used for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

// Compute runs one round of voting among n voters. votes[i] is the number
// of votes voter i received.
func Compute(n int, prob float64, rng *rand.Rand) (votes []float64, abstained int) {
	votes = make([]float64, n)
	for i := range n {
		if rng.Float64() < prob {
			abstained++
			continue
		}
		// Uniform over every voter except i.
		j := rng.IntN(n - 1)
		if j >= i {
			j++
		}
		votes[j]++
	}
	return votes, abstained
}

// SingleSeed runs iterations rounds with rng. The winner of a round is the
// voter with the most votes, lowest index on ties; the most common winner is
// chosen the same way.
func SingleSeed(rng *rand.Rand, n, iterations int, prob float64) SeedResult {
	abstained := make([]float64, iterations)
	wins := make([]float64, n)
	for i := range iterations {
		votes, a := Compute(n, prob, rng)
		abstained[i] = float64(a)
		wins[floats.MaxIdx(votes)]++
	}
	return SeedResult{
		AvgNumAbstained:  stat.Mean(abstained, nil),
		MostCommonWinner: floats.MaxIdx(wins),
	}
}

// Seeds returns the seeds to run: MasterSeed alone when numSeeds <= 0,
// otherwise numSeeds values drawn from [0, 2^32-1) by a generator seeded
// with masterSeed.
func Seeds(masterSeed int64, numSeeds int) []uint64 {
	if numSeeds <= 0 {
		return []uint64{uint64(masterSeed)}
	}
	master := NewRand(uint64(masterSeed))
	seeds := make([]uint64, numSeeds)
	for i := range seeds {
		seeds[i] = master.Uint64N(math.MaxUint32)
	}
	return seeds
}

// Run validates p and runs every seed. ctx is checked between seeds.
func Run(ctx context.Context, expName string, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		ExpName:    expName,
		N:          p.N,
		Iterations: p.Iterations,
		Prob:       p.Prob,
		MasterSeed: p.MasterSeed,
		NumSeeds:   p.NumSeeds,
	}
	for _, seed := range Seeds(p.MasterSeed, p.NumSeeds) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sr := SingleSeed(NewRand(seed), p.N, p.Iterations, p.Prob)
		sr.Seed = seed
		res.SeedResults = append(res.SeedResults, sr)
	}
	return res, nil
}

// WriteFile writes r as 2-space indented JSON to path, creating the parent
// directory if needed.
func WriteFile(path string, r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
