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

package base

import (
	"bytes"
	"context"

	"github.com/maruel/subcommands"
)

// SubcommandTest runs a subcommand in a test environment.
//
// Returns the error returned by Execute, the exit code and whatever the
// command wrote to stdout and stderr.
func SubcommandTest(ctx context.Context, cmd func() *subcommands.Command, args []string, env subcommands.Env) (err error, code int, stdout, stderr string) {
	run := cmd().CommandRun().(*CommandRun)

	var stdoutBuf, stderrBuf bytes.Buffer
	run.TestingMocks(ctx, &err, &stdoutBuf, &stderrBuf)

	fs := run.GetFlags()
	fs.SetOutput(&stderrBuf)
	if perr := fs.Parse(args); perr != nil {
		return perr, 2, stdoutBuf.String(), stderrBuf.String()
	}

	app := &subcommands.DefaultApplication{Name: "resultagg"}
	code = run.Run(app, fs.Args(), env)
	return err, code, stdoutBuf.String(), stderrBuf.String()
}
