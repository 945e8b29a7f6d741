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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"go.chromium.org/luci/common/errors"
)

// OutputFileName is the name of the file a shard writes its test results to,
// relative to the shard's task output directory.
const OutputFileName = "output.json"

// SlowTest is an entry of the slowest tests list reported by a shard.
//
// Only Name and Duration are interpreted. The original JSON object is kept
// and written back unchanged.
type SlowTest struct {
	Name     string
	Duration float64

	raw json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (t SlowTest) MarshalJSON() ([]byte, error) {
	if t.raw != nil {
		return t.raw, nil
	}
	return json.Marshal(struct {
		Name     string  `json:"name"`
		Duration float64 `json:"duration"`
	}{t.Name, t.Duration})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *SlowTest) UnmarshalJSON(data []byte) error {
	var v struct {
		Name     string  `json:"name"`
		Duration float64 `json:"duration"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	t.Name = v.Name
	t.Duration = v.Duration
	t.raw = append(json.RawMessage(nil), data...)
	return nil
}

// Output is the test output of a single shard.
type Output struct {
	Arch         string            `json:"arch,omitempty"`
	Mode         string            `json:"mode,omitempty"`
	SlowestTests []SlowTest        `json:"slowest_tests"`
	Results      []json.RawMessage `json:"results"`
	TestTotal    int               `json:"test_total"`
}

// ParseOutput parses the test output of a single shard.
//
// Both the current format (a JSON object) and the legacy one (a list with
// exactly one object per arch/mode) are accepted. Empty documents are
// rejected, since a test runner always reports at least its totals.
func ParseOutput(data []byte) (*Output, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var legacy []json.RawMessage
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, err
		}
		if len(legacy) != 1 {
			return nil, errors.Reason("expecting exactly one arch/mode entry, got %d", len(legacy)).Err()
		}
		data = bytes.TrimSpace(legacy[0])
	}
	switch string(data) {
	case "", "null", "{}":
		return nil, errors.Reason("empty test output").Err()
	}
	out := &Output{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Reader reads the output of a shard given its task ID.
type Reader interface {
	// ReadShard returns the parsed output of the shard.
	//
	// An error means the output is missing or can't be parsed. It is not
	// fatal to the merge.
	ReadShard(ctx context.Context, taskID string) (*Output, error)
}

// DirReader reads shard outputs downloaded by `swarming collect -output-dir`.
//
// The output of a shard is read from <Dir>/<task ID>/<FileName>.
type DirReader struct {
	Dir string
	// FileName defaults to OutputFileName.
	FileName string
}

// Path returns the path of the output file of the given task.
func (r *DirReader) Path(taskID string) string {
	name := r.FileName
	if name == "" {
		name = OutputFileName
	}
	return filepath.Join(r.Dir, taskID, name)
}

// ReadShard implements Reader.
func (r *DirReader) ReadShard(ctx context.Context, taskID string) (*Output, error) {
	path := r.Path(taskID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "missing JSON file %s", path).Err()
	}
	out, err := ParseOutput(data)
	if err != nil {
		return nil, errors.Annotate(err, "invalid JSON file %s", path).Err()
	}
	return out, nil
}
