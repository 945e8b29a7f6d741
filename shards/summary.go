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
	"encoding/json"
	"os"

	"google.golang.org/protobuf/encoding/protojson"

	"go.chromium.org/luci/common/errors"
	swarmingpb "go.chromium.org/luci/swarming/proto/api_v2"
)

// SummaryFileName is the name of the task summary file inside the swarming
// output directory.
const SummaryFileName = "summary.json"

// Descriptor describes one shard of a sharded swarming task.
type Descriptor struct {
	// Index is the position of the shard in the task summary.
	Index int
	// TaskID is the swarming task ID of the shard.
	//
	// It is empty if the summary had no entry for this shard, in which case
	// the shard is always missing.
	TaskID string
	// ExitCode is the exit code of the shard's command, 0 if not reported.
	ExitCode int
}

// Summary is a parsed swarming task summary, as written by `swarming collect
// -task-summary-python`.
type Summary struct {
	Shards []*Descriptor
}

// Shard entries are protojson renderings of TaskResultResponse, which carry
// more fields than needed here.
var shardUnmarshal = protojson.UnmarshalOptions{DiscardUnknown: true}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Summary) UnmarshalJSON(data []byte) error {
	var raw struct {
		Shards []json.RawMessage `json:"shards"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Shards == nil {
		return errors.Reason("no \"shards\" in the summary").Err()
	}
	s.Shards = make([]*Descriptor, len(raw.Shards))
	for i, r := range raw.Shards {
		d := &Descriptor{Index: i}
		if r = bytes.TrimSpace(r); !bytes.Equal(r, []byte("null")) {
			res := &swarmingpb.TaskResultResponse{}
			if err := shardUnmarshal.Unmarshal(r, res); err != nil {
				return errors.Annotate(err, "shard %d", i).Err()
			}
			d.TaskID = res.GetTaskId()
			d.ExitCode = int(res.GetExitCode())
		}
		s.Shards[i] = d
	}
	return nil
}

// ParseSummary parses a task summary.
func ParseSummary(data []byte) (*Summary, error) {
	s := &Summary{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, errors.Annotate(err, "parsing task summary").Err()
	}
	return s, nil
}

// LoadSummary reads and parses a task summary file.
func LoadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "reading task summary").Err()
	}
	return ParseSummary(data)
}
