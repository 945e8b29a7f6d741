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
	"encoding/json"
	"os"
	"sort"

	"go.chromium.org/luci/common/data/stringset"
	"go.chromium.org/luci/common/errors"
)

// UnreliableResults tags an aggregate that misses data of some shards.
//
// Such aggregate must not be used to decide if the tests passed.
const UnreliableResults = "UNRELIABLE_RESULTS"

// ContractViolation tags errors caused by shards that disagree on things
// they must agree on, e.g. the arch and mode they were built with.
var ContractViolation = errors.BoolTag{Key: errors.NewTagKey("shard contract violation")}

// DefaultSlowTestsCutoff is the default number of slowest tests to keep.
const DefaultSlowTestsCutoff = 100

// AggregatedResult is the combined output of all good shards.
type AggregatedResult struct {
	Arch         string
	Mode         string
	SlowestTests []SlowTest
	Results      []json.RawMessage
	TestTotal    int
	Tags         stringset.Set

	// SlowTestsCutoff is how many entries of SlowestTests Finalize keeps.
	SlowTestsCutoff int

	shards int // number of shards appended so far
}

// NewAggregatedResult returns an empty aggregate.
func NewAggregatedResult(slowTestsCutoff int) *AggregatedResult {
	return &AggregatedResult{
		SlowestTests:    []SlowTest{},
		Results:         []json.RawMessage{},
		Tags:            stringset.New(1),
		SlowTestsCutoff: slowTestsCutoff,
	}
}

// Append folds the output of one shard into the aggregate.
//
// All shards must report the same arch and mode.
func (a *AggregatedResult) Append(out *Output) error {
	if a.shards == 0 {
		a.Arch = out.Arch
		a.Mode = out.Mode
	} else if out.Arch != a.Arch || out.Mode != a.Mode {
		return errors.Reason("shards disagree on arch/mode: %s/%s vs %s/%s",
			a.Arch, a.Mode, out.Arch, out.Mode).Tag(ContractViolation).Err()
	}
	a.shards++
	a.SlowestTests = append(a.SlowestTests, out.SlowestTests...)
	a.Results = append(a.Results, out.Results...)
	a.TestTotal += out.TestTotal
	return nil
}

// Finalize sorts the slowest tests by duration, slowest first, and keeps at
// most SlowTestsCutoff of them. Ties keep their encounter order.
func (a *AggregatedResult) Finalize() {
	sort.SliceStable(a.SlowestTests, func(i, j int) bool {
		return a.SlowestTests[i].Duration > a.SlowestTests[j].Duration
	})
	if a.SlowTestsCutoff >= 0 && len(a.SlowestTests) > a.SlowTestsCutoff {
		a.SlowestTests = a.SlowestTests[:a.SlowTestsCutoff]
	}
}

// aggregatedJSON is the serialized form of AggregatedResult.
type aggregatedJSON struct {
	Arch         string            `json:"arch,omitempty"`
	Mode         string            `json:"mode,omitempty"`
	SlowestTests []SlowTest        `json:"slowest_tests"`
	Results      []json.RawMessage `json:"results"`
	Tags         []string          `json:"tags"`
	TestTotal    int               `json:"test_total"`
}

// MarshalJSON implements json.Marshaler.
//
// The aggregate is rendered as a list with a single element, which is what
// consumers of the v8 test runner output expect.
func (a *AggregatedResult) MarshalJSON() ([]byte, error) {
	tags := []string{}
	if a.Tags != nil {
		tags = a.Tags.ToSortedSlice()
	}
	return json.Marshal([]aggregatedJSON{{
		Arch:         a.Arch,
		Mode:         a.Mode,
		SlowestTests: nonNil(a.SlowestTests),
		Results:      nonNil(a.Results),
		Tags:         tags,
		TestTotal:    a.TestTotal,
	}})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// WriteResult writes the aggregate as compact JSON.
//
// A nil aggregate is written as JSON null.
func WriteResult(path string, res *AggregatedResult) error {
	var blob []byte
	var err error
	if res == nil {
		blob = []byte("null")
	} else if blob, err = json.Marshal(res); err != nil {
		return errors.Annotate(err, "serializing merged results").Err()
	}
	if err := os.WriteFile(path, blob, 0666); err != nil {
		return errors.Annotate(err, "writing merged results").Err()
	}
	return nil
}
