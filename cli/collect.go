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

	"github.com/maruel/subcommands"

	"go.chromium.org/build/collect"
	"go.chromium.org/build/internal/base"
)

func cmdCollect() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "collect [flags] -- <swarming collect arguments>",
		ShortDesc: "runs swarming collect and merges results of all shards",
		LongDesc: `Runs "swarming collect" and merges results of all shards.

Arguments after "--" are passed to the swarming client as is. Outputs are
downloaded into a temporary directory that is removed afterwards. Exits with
the exit code of the swarming client. Problems with shard outputs are only
reported in -warnings-json.`,
		CommandRun: func() subcommands.CommandRun {
			return base.NewCommandRun(&collectImpl{}, base.Features{
				MaxArgs:         base.Unlimited,
				MeasureDuration: true,
			})
		},
	}
}

type collectImpl struct {
	opts         collect.Options
	swarmingArgs []string
	exitCode     int
}

func (cmd *collectImpl) RegisterFlags(fs *flag.FlagSet) {
	registerMergeFlags(fs, &cmd.opts)
	fs.StringVar(&cmd.opts.TempRootDir, "temp-root-dir", "", "Where to create the directory for shard outputs. The system temp directory by default.")
	fs.StringVar(&cmd.opts.Swarming, "swarming", "swarming", "Swarming client binary.")
}

func (cmd *collectImpl) ParseInputs(ctx context.Context, args []string, env subcommands.Env, extra base.Extra) error {
	cmd.swarmingArgs = args
	return cmd.opts.Validate()
}

func (cmd *collectImpl) Execute(ctx context.Context, extra base.Extra) error {
	c := &collect.Collector{
		Options: cmd.opts,
		Stdout:  extra.Stdout,
		Stderr:  extra.Stderr,
	}
	var err error
	cmd.exitCode, err = c.Run(ctx, cmd.swarmingArgs)
	return err
}

// ExitCode is the exit code of the swarming client.
func (cmd *collectImpl) ExitCode() int {
	return cmd.exitCode
}
