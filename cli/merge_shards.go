// Copyright 2026 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"context"
	"flag"
	"os"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"go.chromium.org/build/collect"
	"go.chromium.org/build/internal/base"
	"go.chromium.org/build/shards"
)

// registerMergeFlags registers flags that control merging of shard outputs.
func registerMergeFlags(fs *flag.FlagSet, opts *collect.Options) {
	fs.StringVar(&opts.MergedTestOutput, "merged-test-output", "", "Where to write merged test results as JSON. Required.")
	fs.StringVar(&opts.WarningsJSON, "warnings-json", "", "Where to write warnings as JSON list of [title, log] pairs.")
	fs.IntVar(&opts.SlowTestsCutoff, "slow-tests-cutoff", shards.DefaultSlowTestsCutoff, "How many slowest tests to keep in the merged results.")
	fs.IntVar(&opts.Parallelism, "j", 8, "How many shard outputs to read at once.")
	fs.StringVar(&opts.CoverageDir, "coverage-dir", "", "If set, merge sancov coverage data of all shards into this directory.")
	fs.StringVar(&opts.SancovMerger, "sancov-merger", "", "Script that merges coverage data of a shard. Required with -coverage-dir.")
	fs.StringVar(&opts.Python, "python", "python3", "Python interpreter that runs -sancov-merger.")
}

func cmdMergeShards() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "merge-shards -output-dir <path> -merged-test-output <path> [-warnings-json <path>]",
		ShortDesc: "merges test results found in a swarming output directory",
		LongDesc: `Merges test results found in a swarming output directory.

The directory is what "swarming collect -output-dir" produces: summary.json
plus <task ID>/output.json for every shard. Missing or failed shards make the
merged results tagged UNRELIABLE_RESULTS. Shards that disagree on arch or mode
are fatal.`,
		CommandRun: func() subcommands.CommandRun {
			return base.NewCommandRun(&mergeShardsImpl{}, base.Features{
				MeasureDuration: true,
			})
		},
	}
}

type mergeShardsImpl struct {
	outputDir string
	opts      collect.Options
}

func (cmd *mergeShardsImpl) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&cmd.outputDir, "output-dir", "", "Directory with shard outputs. Required.")
	registerMergeFlags(fs, &cmd.opts)
}

func (cmd *mergeShardsImpl) ParseInputs(ctx context.Context, args []string, env subcommands.Env, extra base.Extra) error {
	if cmd.outputDir == "" {
		return errors.Reason("-output-dir is required").Err()
	}
	switch fi, err := os.Stat(cmd.outputDir); {
	case err != nil:
		return errors.Annotate(err, "bad -output-dir").Err()
	case !fi.IsDir():
		return errors.Reason("bad -output-dir: %s is not a directory", cmd.outputDir).Err()
	}
	return cmd.opts.Validate()
}

func (cmd *mergeShardsImpl) Execute(ctx context.Context, extra base.Extra) error {
	c := &collect.Collector{
		Options: cmd.opts,
		Stdout:  extra.Stdout,
		Stderr:  extra.Stderr,
	}
	mergeErr := c.Process(ctx, cmd.outputDir)
	if err := c.WriteWarnings(); err != nil {
		if mergeErr == nil {
			return err
		}
		logging.Errorf(ctx, "%s", err)
	}
	return mergeErr
}
