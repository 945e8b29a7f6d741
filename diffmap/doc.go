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

// Package diffmap maps added lines between two diffs of the same change
// against different base revisions.
//
// A tool that reports findings against a local checkout (e.g. code coverage
// of a patch applied on top of tip of tree) can use the mapping to show them
// at the right lines of the patchset in code review, which may be based on an
// older revision.
package diffmap
