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
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/errors"
	luciflag "go.chromium.org/luci/common/flag"
	"go.chromium.org/luci/common/logging"

	"go.chromium.org/build/diffmap"
	"go.chromium.org/build/internal/base"
)

func cmdRebaseDiff() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "rebase-diff -local-diff-file <path> -gerrit-diff-file <path> -output-file <path>",
		ShortDesc: "maps added lines of a local diff to lines of the same change in Gerrit",
		LongDesc: `Maps added lines of a local diff to lines of the same change in Gerrit.

Both diffs must add the same lines to the same files, but may be computed
against different base revisions. Writes a JSON object
{"<file>": {"<local line>": [<gerrit line>, "<content>"]}} to the output file
and echoes it to stdout.`,
		CommandRun: func() subcommands.CommandRun {
			return base.NewCommandRun(&rebaseDiffImpl{}, base.Features{})
		},
	}
}

type rebaseDiffImpl struct {
	localDiff  string
	gerritDiff string
	output     string
	sources    []string
}

func (cmd *rebaseDiffImpl) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&cmd.localDiff, "local-diff-file", "", "Path to the diff of the local checkout. Required.")
	fs.StringVar(&cmd.gerritDiff, "gerrit-diff-file", "", "Path to the diff of the change in Gerrit. Required.")
	fs.StringVar(&cmd.output, "output-file", "", "Where to write the line mapping as JSON. Required.")
	fs.Var(luciflag.StringSlice(&cmd.sources), "source", "Only map this file. May be repeated. All files by default.")
}

func (cmd *rebaseDiffImpl) ParseInputs(ctx context.Context, args []string, env subcommands.Env, extra base.Extra) error {
	for _, f := range []struct{ name, path string }{
		{"local-diff-file", cmd.localDiff},
		{"gerrit-diff-file", cmd.gerritDiff},
	} {
		if f.path == "" {
			return errors.Reason("-%s is required", f.name).Err()
		}
		if _, err := os.Stat(f.path); err != nil {
			return errors.Annotate(err, "bad -%s", f.name).Err()
		}
	}
	if cmd.output == "" {
		return errors.Reason("-output-file is required").Err()
	}
	return nil
}

func (cmd *rebaseDiffImpl) Execute(ctx context.Context, extra base.Extra) error {
	local, err := os.ReadFile(cmd.localDiff)
	if err != nil {
		return errors.Annotate(err, "reading local diff").Err()
	}
	remote, err := os.ReadFile(cmd.gerritDiff)
	if err != nil {
		return errors.Annotate(err, "reading gerrit diff").Err()
	}

	m, err := diffmap.MapDiffs(string(local), string(remote), cmd.sources...)
	if err != nil {
		return err
	}
	logging.Debugf(ctx, "Mapped lines of %d file(s)", len(m))

	blob, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Annotate(err, "serializing the mapping").Err()
	}
	if err := os.WriteFile(cmd.output, blob, 0666); err != nil {
		return errors.Annotate(err, "writing the mapping").Err()
	}
	_, err = fmt.Fprintf(extra.Stdout, "%s\n", blob)
	return err
}
