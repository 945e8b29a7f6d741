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

// Package collect wraps `swarming collect` for sharded test tasks.
//
// It downloads outputs of all shards into a temporary directory, merges their
// JSON test results into one file and, optionally, merges sancov coverage data
// of every shard. Problems with the outputs never change the exit code, which
// is always the one of `swarming collect`. They are reported as warnings.
package collect

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/exec"
	"go.chromium.org/luci/common/logging"

	"go.chromium.org/build/shards"
)

// Options configure a Collector.
type Options struct {
	// TempRootDir is where to create the directory for shard outputs.
	//
	// Defaults to the system temp directory.
	TempRootDir string
	// MergedTestOutput is where to write merged test results.
	MergedTestOutput string
	// WarningsJSON is where to write warnings, if set.
	WarningsJSON string
	// SlowTestsCutoff is how many slowest tests to keep.
	SlowTestsCutoff int
	// Parallelism limits how many shard outputs are read at once.
	Parallelism int

	// CoverageDir is where to merge sancov coverage data, if set.
	CoverageDir string
	// SancovMerger is the script that merges coverage data of a shard.
	SancovMerger string

	// Swarming is the swarming client binary. Defaults to "swarming".
	Swarming string
	// Python runs SancovMerger. Defaults to "python3".
	Python string
}

// Validate checks options are consistent.
func (o *Options) Validate() error {
	if o.MergedTestOutput == "" {
		return errors.Reason("merged test output path is required").Err()
	}
	if o.SlowTestsCutoff < 0 {
		return errors.Reason("slow tests cutoff must not be negative").Err()
	}
	if o.CoverageDir != "" && o.SancovMerger == "" {
		return errors.Reason("sancov merger is required for merging coverage data").Err()
	}
	return nil
}

// Collector runs swarming and processes shard outputs.
type Collector struct {
	Options

	// Stdout and Stderr receive output of subprocesses. Default to os.Stdout
	// and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer

	warnings shards.Warnings
}

// Warnings returns warnings emitted so far.
func (c *Collector) Warnings() []shards.Warning {
	return c.warnings.List()
}

func (c *Collector) warn(ctx context.Context, title, log string) {
	logging.Warningf(ctx, "%s", title)
	c.warnings.Add(title, log)
}

func (c *Collector) stdout() io.Writer {
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

func (c *Collector) stderr() io.Writer {
	if c.Stderr != nil {
		return c.Stderr
	}
	return os.Stderr
}

// SwarmingCommand returns the command line that collects results of a task
// into outputDir.
func (c *Collector) SwarmingCommand(swarmingArgs []string, outputDir string) []string {
	bin := c.Swarming
	if bin == "" {
		bin = "swarming"
	}
	cmd := append([]string{bin}, swarmingArgs...)
	return append(cmd,
		"-output-dir", outputDir,
		"-task-summary-json", filepath.Join(outputDir, shards.SummaryFileName),
	)
}

// Run collects the task, processes its outputs and writes warnings.
//
// Returns the exit code of swarming. The error is only about failing to set up
// or to write the warnings file.
func (c *Collector) Run(ctx context.Context, swarmingArgs []string) (int, error) {
	outputDir, err := os.MkdirTemp(c.TempRootDir, "*_swarming")
	if err != nil {
		return 1, errors.Annotate(err, "creating output directory").Err()
	}
	defer func() {
		if err := os.RemoveAll(outputDir); err != nil {
			logging.Warningf(ctx, "Failed to remove %s: %s", outputDir, err)
		}
	}()

	// Whatever the exit code is, look for the outputs: a non-zero code may mean
	// a failed task, not a failed swarming invocation.
	exitCode := c.runSwarming(ctx, swarmingArgs, outputDir)
	// A merge error is already a warning here. The swarming exit code wins.
	_ = c.Process(ctx, outputDir)

	return exitCode, c.WriteWarnings()
}

// WriteWarnings writes warnings to WarningsJSON, if set.
func (c *Collector) WriteWarnings() error {
	if c.WarningsJSON == "" {
		return nil
	}
	return c.warnings.Write(c.WarningsJSON)
}

func (c *Collector) runSwarming(ctx context.Context, swarmingArgs []string, outputDir string) int {
	argv := c.SwarmingCommand(swarmingArgs, outputDir)
	logging.Infof(ctx, "Running %q", argv)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = c.stdout()
	cmd.Stderr = c.stderr()
	err := cmd.Run()
	if cmd.ProcessState == nil {
		c.warn(ctx, "failed to run swarming", err.Error())
		return 1
	}
	return cmd.ProcessState.ExitCode()
}

// Process merges outputs found in outputDir, as left by `swarming collect`.
//
// Problems are recorded as warnings. Shards that disagree on what they must
// agree on are also returned as an error tagged with shards.ContractViolation,
// after the rest of the processing is done.
func (c *Collector) Process(ctx context.Context, outputDir string) error {
	var descs []*shards.Descriptor
	summary, err := shards.LoadSummary(filepath.Join(outputDir, shards.SummaryFileName))
	if err != nil {
		logging.Errorf(ctx, "%s", err)
		c.warn(ctx, "summary.json is missing or can not be read",
			"Something is seriously wrong with the swarming client or the bot.")
	} else {
		descs = summary.Shards
	}

	res, _, mergeErr := shards.Merge(ctx, descs, &shards.DirReader{Dir: outputDir}, shards.MergeOptions{
		SlowTestsCutoff: c.SlowTestsCutoff,
		Parallelism:     c.Parallelism,
		Warnings:        &c.warnings,
	})
	switch {
	case mergeErr != nil:
		c.warn(ctx, "failed to process output JSON", mergeErr.Error())
		res = nil
	case res != nil:
		logging.Infof(ctx, "Merged %s test results of %d shard(s)", humanize.Comma(int64(res.TestTotal)), len(descs))
	}
	if err := shards.WriteResult(c.MergedTestOutput, res); err != nil {
		c.warn(ctx, "failed to write merged output JSON", err.Error())
	}

	if c.CoverageDir != "" {
		c.mergeCoverage(ctx, outputDir, descs)
	}
	return mergeErr
}

// mergeCoverage runs the sancov merger for every shard.
func (c *Collector) mergeCoverage(ctx context.Context, outputDir string, descs []*shards.Descriptor) {
	python := c.Python
	if python == "" {
		python = "python3"
	}
	for _, d := range descs {
		if d.TaskID == "" {
			c.warn(ctx, fmt.Sprintf("no coverage data for shard %d with no task", d.Index), "")
			continue
		}
		cmd := exec.CommandContext(ctx, python, "-u", c.SancovMerger,
			"--coverage-dir", c.CoverageDir,
			"--swarming-output-dir", filepath.Join(outputDir, d.TaskID),
		)
		cmd.Stdout = c.stdout()
		cmd.Stderr = c.stderr()
		if err := cmd.Run(); err != nil {
			logging.Errorf(ctx, "Merging coverage of shard %d: %s", d.Index, err)
			c.warn(ctx, fmt.Sprintf("error when merging coverage data of shard %d", d.Index), "")
		}
	}
}
