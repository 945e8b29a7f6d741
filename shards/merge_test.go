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
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go.chromium.org/luci/common/logging/gologger"

	. "github.com/smartystreets/goconvey/convey"
	. "go.chromium.org/luci/common/testing/assertions"
)

// fakeReader serves shard outputs from memory.
type fakeReader struct {
	outputs map[string]string // task ID => JSON
	delays  map[string]time.Duration
	reads   int32
}

func (r *fakeReader) ReadShard(ctx context.Context, taskID string) (*Output, error) {
	atomic.AddInt32(&r.reads, 1)
	if d := r.delays[taskID]; d != 0 {
		time.Sleep(d)
	}
	body, ok := r.outputs[taskID]
	if !ok {
		return nil, fmt.Errorf("no output for %s", taskID)
	}
	return ParseOutput([]byte(body))
}

func toJSON(a *AggregatedResult) string {
	blob, err := json.Marshal(a)
	So(err, ShouldBeNil)
	return string(blob)
}

func TestMerge(t *testing.T) {
	t.Parallel()

	Convey(`Merge`, t, func() {
		ctx := gologger.StdConfig.Use(context.Background())
		r := &fakeReader{outputs: map[string]string{}}
		warnings := &Warnings{}
		opts := MergeOptions{SlowTestsCutoff: 10, Warnings: warnings}

		Convey(`no shards`, func() {
			agg, bad, err := Merge(ctx, nil, r, opts)
			So(err, ShouldBeNil)
			So(agg, ShouldBeNil)
			So(bad.Empty(), ShouldBeTrue)
		})

		Convey(`one good, one incomplete without output`, func() {
			r.outputs["a"] = `{"slowest_tests": [], "results": [[1, 2]], "test_total": 1}`
			descs := []*Descriptor{
				{Index: 0, TaskID: "a"},
				{Index: 1, TaskID: "b", ExitCode: 1},
			}
			agg, bad, err := Merge(ctx, descs, r, opts)
			So(err, ShouldBeNil)
			So(bad.Incomplete, ShouldResemble, []int{1})
			So(bad.Missing, ShouldBeEmpty)
			So(agg.TestTotal, ShouldEqual, 1)
			So(agg.Results, ShouldResemble, []json.RawMessage{json.RawMessage(`[1, 2]`)})
			So(agg.Tags.ToSortedSlice(), ShouldResemble, []string{UnreliableResults})

			So(warnings.List(), ShouldHaveLength, 1)
			So(warnings.List()[0].Title, ShouldEqual, "some shards did not complete: 1")
			So(warnings.List()[0].Log, ShouldContainSubstring, "Missing results from the following shard(s): 1")
		})

		Convey(`all shards bad`, func() {
			r.outputs["b"] = `{"slowest_tests": [{"name": "x", "duration": 1}], "results": [1], "test_total": 1}`
			descs := []*Descriptor{
				{Index: 0, TaskID: "a"},
				{Index: 1, TaskID: "b", ExitCode: 1},
				{Index: 2},
			}
			agg, bad, err := Merge(ctx, descs, r, opts)
			So(err, ShouldBeNil)
			So(bad.Missing, ShouldResemble, []int{0, 2})
			So(bad.Incomplete, ShouldResemble, []int{1})
			So(toJSON(agg), ShouldEqual,
				`[{"slowest_tests":[],"results":[],"tags":["UNRELIABLE_RESULTS"],"test_total":0}]`)
		})

		Convey(`incomplete shards with output are excluded`, func() {
			r.outputs["a"] = `{"slowest_tests": [], "results": ["a"], "test_total": 1}`
			r.outputs["b"] = `{"slowest_tests": [], "results": ["b"], "test_total": 1}`
			descs := []*Descriptor{
				{Index: 0, TaskID: "a"},
				{Index: 1, TaskID: "b", ExitCode: 130},
			}
			agg, _, err := Merge(ctx, descs, r, opts)
			So(err, ShouldBeNil)
			So(toJSON(agg), ShouldEqual,
				`[{"slowest_tests":[],"results":["a"],"tags":["UNRELIABLE_RESULTS"],"test_total":1}]`)
		})

		Convey(`all good`, func() {
			r.outputs["a"] = `{"arch": "x64", "mode": "release", "slowest_tests": [{"name": "t1", "duration": 1}], "results": ["a"], "test_total": 2}`
			r.outputs["b"] = `{"arch": "x64", "mode": "release", "slowest_tests": [{"name": "t2", "duration": 3}], "results": ["b"], "test_total": 3}`
			descs := []*Descriptor{
				{Index: 0, TaskID: "a"},
				{Index: 1, TaskID: "b"},
			}
			agg, bad, err := Merge(ctx, descs, r, opts)
			So(err, ShouldBeNil)
			So(bad.Empty(), ShouldBeTrue)
			So(warnings.List(), ShouldBeEmpty)
			So(toJSON(agg), ShouldEqual, `[{"arch":"x64","mode":"release",`+
				`"slowest_tests":[{"name":"t2","duration":3},{"name":"t1","duration":1}],`+
				`"results":["a","b"],"tags":[],"test_total":5}]`)

			Convey(`idempotent`, func() {
				again, _, err := Merge(ctx, descs, r, opts)
				So(err, ShouldBeNil)
				So(toJSON(again), ShouldEqual, toJSON(agg))
			})
		})

		Convey(`arch mismatch is fatal`, func() {
			r.outputs["a"] = `{"arch": "x64", "mode": "release", "results": [], "test_total": 1}`
			r.outputs["b"] = `{"arch": "arm64", "mode": "release", "results": [], "test_total": 1}`
			descs := []*Descriptor{
				{Index: 0, TaskID: "a"},
				{Index: 1, TaskID: "b"},
			}
			_, _, err := Merge(ctx, descs, r, opts)
			So(err, ShouldErrLike, "shards disagree on arch/mode")
			So(ContractViolation.In(err), ShouldBeTrue)
		})

		Convey(`descriptors are ordered by index`, func() {
			r.outputs["a"] = `{"results": ["a"], "test_total": 1}`
			r.outputs["b"] = `{"results": ["b"], "test_total": 1}`
			descs := []*Descriptor{
				{Index: 3},
				{Index: 1, TaskID: "b"},
				{Index: 2, TaskID: "c", ExitCode: 1},
				{Index: 0, TaskID: "a"},
				{Index: 4, TaskID: "e", ExitCode: 2},
				{Index: 5, TaskID: "f"},
			}
			agg, bad, err := Merge(ctx, descs, r, opts)
			So(err, ShouldBeNil)
			So(bad.Missing, ShouldResemble, []int{3, 5})
			So(bad.Incomplete, ShouldResemble, []int{2, 4})
			So(toJSON(agg), ShouldEqual,
				`[{"slowest_tests":[],"results":["a","b"],"tags":["UNRELIABLE_RESULTS"],"test_total":2}]`)

			// The caller's slice is left alone.
			So(descs[0].Index, ShouldEqual, 3)
		})

		Convey(`results are folded in shard order`, func() {
			var descs []*Descriptor
			for i := 0; i < 8; i++ {
				id := fmt.Sprintf("%d", i)
				r.outputs[id] = fmt.Sprintf(`{"results": [%d], "test_total": 1}`, i)
				descs = append(descs, &Descriptor{Index: i, TaskID: id})
			}
			// Early shards finish last.
			r.delays = map[string]time.Duration{
				"0": 30 * time.Millisecond,
				"1": 20 * time.Millisecond,
				"2": 10 * time.Millisecond,
			}
			opts.Parallelism = 4
			agg, _, err := Merge(ctx, descs, r, opts)
			So(err, ShouldBeNil)
			So(toJSON(agg), ShouldEqual,
				`[{"slowest_tests":[],"results":[0,1,2,3,4,5,6,7],"tags":[],"test_total":8}]`)
			So(atomic.LoadInt32(&r.reads), ShouldEqual, 8)
		})
	})
}
