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

// Package base is shared functionality used by all resultagg subcommands.
//
// Its things like registering common flags, setting up the context and
// reporting errors.
package base

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/common/system/signals"
)

// Subcommand is implemented by individual subcommands.
type Subcommand interface {
	// RegisterFlags registers subcommand flags, if any.
	RegisterFlags(fs *flag.FlagSet)
	// ParseInputs extracts information from flags, CLI args and environ.
	ParseInputs(ctx context.Context, args []string, env subcommands.Env, extra Extra) error
	// Execute executes the subcommand.
	Execute(ctx context.Context, extra Extra) error
}

// ExitCoder is implemented by subcommands that pick their own exit code.
//
// ExitCode is called after a successful Execute.
type ExitCoder interface {
	ExitCode() int
}

// Extra is passed to an executing subcommand and it contains any additional
// context the subcommand may need.
type Extra struct {
	// Standard output stream, perhaps redirected somewhere.
	Stdout io.Writer

	// Standard error stream, perhaps redirected somewhere.
	Stderr io.Writer
}

// Unlimited can be passed as Features.MaxArgs to indicate no limit.
const Unlimited = -1

// Features customize "standard" behaviors exposed by a subcommand.
type Features struct {
	// MinArgs is the minimum number of expected positional arguments.
	MinArgs int
	// MaxArgs is the maximum number of expected positional arguments.
	MaxArgs int
	// MeasureDuration indicates to measure and log how long the command took.
	MeasureDuration bool
}

// NewCommandRun creates a CommandRun that runs the given subcommand.
func NewCommandRun(impl Subcommand, feats Features) *CommandRun {
	cr := &CommandRun{
		impl:  impl,
		feats: feats,
	}
	cr.Flags.BoolVar(&cr.quiet, "quiet", false, "Log at Warning verbosity level.")
	cr.Flags.BoolVar(&cr.verbose, "verbose", false, "Log at Debug verbosity level.")
	impl.RegisterFlags(&cr.Flags)
	return cr
}

// CommandRun implements the command part of subcommand processing.
//
// It is responsible for registering and parsing flags, setting up the root
// context and calling the subcommand implementation.
type CommandRun struct {
	subcommands.CommandRunBase

	quiet   bool // -quiet
	verbose bool // -verbose

	impl  Subcommand
	feats Features

	// Testing helpers.
	testingContext context.Context
	testingStderr  io.Writer
	testingStdout  io.Writer
	testingErr     *error
}

// TestingMocks is used in tests to mock dependencies.
func (cr *CommandRun) TestingMocks(ctx context.Context, err *error, stdout, stderr io.Writer) {
	cr.testingContext = ctx
	cr.testingStdout = stdout
	cr.testingStderr = stderr
	cr.testingErr = err
}

func (cr *CommandRun) stdout() io.Writer {
	if cr.testingStdout != nil {
		return cr.testingStdout
	}
	return os.Stdout
}

func (cr *CommandRun) stderr() io.Writer {
	if cr.testingStderr != nil {
		return cr.testingStderr
	}
	return os.Stderr
}

// checkArgs validates the number of positional arguments.
func (cr *CommandRun) checkArgs(args []string) string {
	lo, hi := cr.feats.MinArgs, cr.feats.MaxArgs
	switch {
	case hi == 0 && len(args) != 0:
		return fmt.Sprintf("unexpected arguments: %v", args)
	case lo > 0 && len(args) < lo:
		if hi == lo {
			return fmt.Sprintf("expecting exactly %d argument(s), but got %d", lo, len(args))
		}
		return fmt.Sprintf("expecting at least %d argument(s), but got %d", lo, len(args))
	case hi != Unlimited && len(args) > hi:
		if hi == lo {
			return fmt.Sprintf("expecting exactly %d argument(s), but got %d", lo, len(args))
		}
		return fmt.Sprintf("expecting at most %d argument(s), but got %d", hi, len(args))
	}
	return ""
}

// Run is part of subcommands.CommandRun interface.
func (cr *CommandRun) Run(app subcommands.Application, args []string, env subcommands.Env) int {
	if msg := cr.checkArgs(args); msg != "" {
		fmt.Fprintf(cr.stderr(), "%s: %s\n", app.GetName(), msg)
		return 1
	}

	ctx := cr.testingContext
	if ctx == nil {
		ctx = cli.GetContext(app, cr, env)
	}
	var level logging.Level
	switch {
	case cr.quiet && !cr.verbose:
		level = logging.Warning
	case cr.verbose:
		level = logging.Debug
	default:
		level = logging.Info
	}
	ctx = logging.SetLevel(ctx, level)

	// Terminate everything on Ctrl+C.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer signals.HandleInterrupt(func() {
		logging.Warningf(ctx, "Canceled via Ctrl+C or SIGTERM!")
		cancel()
	})()

	extra := Extra{
		Stdout: cr.stdout(),
		Stderr: cr.stderr(),
	}

	if err := cr.impl.ParseInputs(ctx, args, env, extra); err != nil {
		fmt.Fprintf(cr.stderr(), "%s: %s\n", app.GetName(), err)
		return 1
	}

	started := clock.Now(ctx)
	err := cr.impl.Execute(ctx, extra)
	if cr.feats.MeasureDuration {
		dt := clock.Since(ctx, started)
		if err == nil {
			logging.Infof(ctx, "The command completed in %s", dt.Round(time.Millisecond))
		} else {
			logging.Infof(ctx, "The command failed in %s", dt.Round(time.Millisecond))
		}
	}

	if err != nil {
		errors.Log(ctx, err)
		fmt.Fprintf(cr.stderr(), "%s: %s\n", app.GetName(), err)
		if cr.testingErr != nil {
			*cr.testingErr = err
		}
		return 1
	}

	if ec, ok := cr.impl.(ExitCoder); ok {
		return ec.ExitCode()
	}
	return 0
}
