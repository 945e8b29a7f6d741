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

package shards

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// BadShards records shards that did not contribute to the aggregate.
//
// A shard is at most in one of the lists.
type BadShards struct {
	// Missing are indices of shards whose output is absent or unparsable.
	Missing []int
	// Incomplete are indices of shards that exited with a non-zero code.
	Incomplete []int
}

// AddMissing records a shard without readable output.
func (b *BadShards) AddMissing(index int) {
	b.Missing = append(b.Missing, index)
}

// AddIncomplete records a shard that exited with a non-zero code.
func (b *BadShards) AddIncomplete(index int) {
	b.Incomplete = append(b.Incomplete, index)
}

// Empty is true if all shards are good.
func (b *BadShards) Empty() bool {
	return len(b.Missing) == 0 && len(b.Incomplete) == 0
}

// Count is the total number of bad shards.
func (b *BadShards) Count() int {
	return len(b.Missing) + len(b.Incomplete)
}

// Indices returns indices of all bad shards, sorted.
func (b *BadShards) Indices() []int {
	all := make([]int, 0, b.Count())
	all = append(all, b.Missing...)
	all = append(all, b.Incomplete...)
	sort.Ints(all)
	return all
}

// String renders indices of all bad shards as "1, 3, 4".
func (b *BadShards) String() string {
	idx := b.Indices()
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

// CollectBadShards classifies shards given their outputs.
//
// outputs[i] is the output of descs[i], nil if it couldn't be read. A shard
// with a non-zero exit code is incomplete even if it produced output, since
// test runners terminated by a signal still write partial results. Otherwise
// a shard without output is missing. Both lists are sorted.
func CollectBadShards(descs []*Descriptor, outputs []*Output) BadShards {
	if len(descs) != len(outputs) {
		panic(fmt.Sprintf("got %d outputs for %d shards", len(outputs), len(descs)))
	}
	var bad BadShards
	for i, d := range descs {
		switch {
		case d.ExitCode != 0:
			bad.AddIncomplete(d.Index)
		case outputs[i] == nil:
			bad.AddMissing(d.Index)
		}
	}
	sort.Ints(bad.Missing)
	sort.Ints(bad.Incomplete)
	return bad
}
