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

// Package shards merges per-shard JSON test output of a sharded swarming
// task into a single aggregated result.
//
// The inputs are the task summary written by `swarming collect
// -task-summary-json` and the `output.json` file each shard leaves in its
// task output directory. Shards that did not produce output or that exited
// with a non-zero code are excluded from the aggregate, which is then tagged
// as unreliable. Merging never fails because of bad shards: callers always
// get a well-formed result to inspect.
package shards
