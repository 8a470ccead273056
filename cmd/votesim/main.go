// Command votesim runs the toy voting experiment with the parameters gridrun
// passes on its command line and writes the result as JSON.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvandessel/gridrun/internal/logging"
	"github.com/nvandessel/gridrun/internal/votesim"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "votesim",
		Short: "Toy Monte-Carlo voting experiment",
		Long: `Simulate N voters who each vote for one of the others at random, or
abstain with probability --prob. For every seed, report the average
number of abstentions and the most common winner over --iterations.

Meant to be started by gridrun, which passes one flag per parameter:
  gridrun run --config configs/vote.json --name vote --index 0 --lang exec --source votesim`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			expName, _ := cmd.Flags().GetString("exp_name")
			outputDir, _ := cmd.Flags().GetString("output_dir")
			outputFilename, _ := cmd.Flags().GetString("output_filename")
			vars, _ := cmd.Flags().GetString("vars")
			level, _ := cmd.Flags().GetString("log-level")

			var p votesim.Params
			p.N, _ = cmd.Flags().GetInt("N")
			p.Iterations, _ = cmd.Flags().GetInt("iterations")
			p.Prob, _ = cmd.Flags().GetFloat64("prob")
			p.MasterSeed, _ = cmd.Flags().GetInt64("master_seed")
			p.NumSeeds, _ = cmd.Flags().GetInt("num_seeds")

			if strings.ContainsAny(outputFilename, `/\`) {
				return fmt.Errorf("output_filename %q must not contain path separators", outputFilename)
			}

			logger := logging.NewLogger(level, cmd.ErrOrStderr())
			logger.Info("starting experiment",
				"exp_name", expName, "N", p.N, "iterations", p.Iterations, "prob", p.Prob,
				"master_seed", p.MasterSeed, "num_seeds", p.NumSeeds, "vars", vars)

			start := time.Now()
			res, err := votesim.Run(cmd.Context(), expName, p)
			if err != nil {
				return err
			}

			path := filepath.Join(outputDir, outputFilename)
			if err := votesim.WriteFile(path, res); err != nil {
				return err
			}
			logger.Info("experiment finished", "seeds", len(res.SeedResults), "duration", time.Since(start), "output", path)
			return nil
		},
	}

	// Parameters that votesim does not know are ignored, so one configuration
	// can carry extra bookkeeping values.
	cmd.FParseErrWhitelist.UnknownFlags = true

	cmd.Flags().String("exp_name", "votesim", "Experiment name recorded in the result")
	cmd.Flags().String("output_dir", ".", "Directory for the result file")
	cmd.Flags().String("output_filename", "", "Result file name")
	cmd.Flags().Int("N", 0, "Number of voters (at least 2)")
	cmd.Flags().Int("iterations", 0, "Iterations per seed")
	cmd.Flags().Float64("prob", 0.1, "Probability that a voter abstains")
	cmd.Flags().Int64("master_seed", 42, "Seed of the seed generator")
	cmd.Flags().Int("num_seeds", 0, "Number of derived seeds (0 runs master_seed alone)")
	cmd.Flags().String("vars", "", "Comma-separated names of the swept parameters")
	cmd.Flags().String("log-level", "info", "Log verbosity: error, warn, info, debug or trace")
	cmd.MarkFlagRequired("output_filename")
	cmd.MarkFlagRequired("N")
	cmd.MarkFlagRequired("iterations")

	return cmd
}
