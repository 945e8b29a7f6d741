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
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	. "go.chromium.org/luci/common/testing/assertions"
)

func slowTests(durations ...float64) []SlowTest {
	out := make([]SlowTest, len(durations))
	for i, d := range durations {
		out[i] = SlowTest{Name: string(rune('a' + i)), Duration: d}
	}
	return out
}

func names(tests []SlowTest) []string {
	out := make([]string, len(tests))
	for i, t := range tests {
		out[i] = t.Name
	}
	return out
}

func TestAggregatedResult(t *testing.T) {
	t.Parallel()

	Convey(`Empty`, t, func() {
		a := NewAggregatedResult(10)
		So(a.SlowestTests, ShouldBeEmpty)
		So(a.Results, ShouldBeEmpty)
		So(a.TestTotal, ShouldEqual, 0)
		So(a.SlowTestsCutoff, ShouldEqual, 10)

		blob, err := json.Marshal(a)
		So(err, ShouldBeNil)
		So(string(blob), ShouldEqual, `[{"slowest_tests":[],"results":[],"tags":[],"test_total":0}]`)
	})

	Convey(`Append`, t, func() {
		a := NewAggregatedResult(10)
		So(a.Append(&Output{
			Arch:         "x64",
			Mode:         "release",
			SlowestTests: slowTests(1),
			Results:      []json.RawMessage{json.RawMessage(`"y"`)},
			TestTotal:    1,
		}), ShouldBeNil)
		So(a.Append(&Output{
			Arch:      "x64",
			Mode:      "release",
			Results:   []json.RawMessage{json.RawMessage(`"z"`)},
			TestTotal: 2,
		}), ShouldBeNil)
		So(a.SlowestTests, ShouldHaveLength, 1)
		So(a.Results, ShouldResemble, []json.RawMessage{json.RawMessage(`"y"`), json.RawMessage(`"z"`)})
		So(a.TestTotal, ShouldEqual, 3)

		Convey(`arch mismatch`, func() {
			err := a.Append(&Output{Arch: "arm64", Mode: "release"})
			So(err, ShouldErrLike, "shards disagree on arch/mode")
			So(ContractViolation.In(err), ShouldBeTrue)
		})

		Convey(`mode mismatch`, func() {
			err := a.Append(&Output{Arch: "x64", Mode: "debug"})
			So(ContractViolation.In(err), ShouldBeTrue)
		})
	})

	Convey(`Finalize`, t, func() {
		Convey(`sorts slowest first`, func() {
			a := NewAggregatedResult(10)
			So(a.Append(&Output{SlowestTests: slowTests(10, 30, 20)}), ShouldBeNil)
			a.Finalize()
			So(names(a.SlowestTests), ShouldResemble, []string{"b", "c", "a"})
		})

		Convey(`keeps top K`, func() {
			a := NewAggregatedResult(2)
			So(a.Append(&Output{SlowestTests: slowTests(5, 1, 4, 2, 3)}), ShouldBeNil)
			a.Finalize()
			So(names(a.SlowestTests), ShouldResemble, []string{"a", "c"})
			So(a.SlowestTests[1].Duration, ShouldBeGreaterThanOrEqualTo, 3)
		})

		Convey(`ties keep encounter order`, func() {
			a := NewAggregatedResult(3)
			So(a.Append(&Output{SlowestTests: slowTests(1, 2, 2, 2)}), ShouldBeNil)
			a.Finalize()
			So(names(a.SlowestTests), ShouldResemble, []string{"b", "c", "d"})
		})

		Convey(`zero cutoff`, func() {
			a := NewAggregatedResult(0)
			So(a.Append(&Output{SlowestTests: slowTests(1, 2)}), ShouldBeNil)
			a.Finalize()
			So(a.SlowestTests, ShouldBeEmpty)
		})
	})

	Convey(`MarshalJSON`, t, func() {
		a := NewAggregatedResult(10)
		So(a.Append(&Output{
			Arch:         "x64",
			Mode:         "release",
			SlowestTests: slowTests(10, 30, 20),
			Results:      []json.RawMessage{json.RawMessage(`[1, 2]`)},
			TestTotal:    3,
		}), ShouldBeNil)
		a.Tags.Add("tag 3")
		a.Tags.Add("tag 1")
		a.Tags.Add("tag 2")
		a.Finalize()

		blob, err := json.Marshal(a)
		So(err, ShouldBeNil)
		So(string(blob), ShouldEqual, `[{"arch":"x64","mode":"release",`+
			`"slowest_tests":[{"name":"b","duration":30},{"name":"c","duration":20},{"name":"a","duration":10}],`+
			`"results":[[1,2]],"tags":["tag 1","tag 2","tag 3"],"test_total":3}]`)
	})

	Convey(`WriteResult`, t, func() {
		path := filepath.Join(t.TempDir(), "merged.json")

		Convey(`aggregate`, func() {
			So(WriteResult(path, NewAggregatedResult(1)), ShouldBeNil)
			blob, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(string(blob), ShouldEqual, `[{"slowest_tests":[],"results":[],"tags":[],"test_total":0}]`)
		})

		Convey(`nil`, func() {
			So(WriteResult(path, nil), ShouldBeNil)
			blob, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(string(blob), ShouldEqual, `null`)
		})

		Convey(`bad path`, func() {
			err := WriteResult(filepath.Join(path, "sub", "x.json"), nil)
			So(err, ShouldErrLike, "writing merged results")
		})
	})
}
