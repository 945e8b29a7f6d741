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
	"fmt"
	"os"
	"sync"

	"go.chromium.org/luci/common/errors"
)

// MissingShardsMessage explains to a human what might have happened to the
// given shards.
func MissingShardsMessage(bad string) string {
	return fmt.Sprintf(`Missing results from the following shard(s): %s

It can happen in following cases:
  * Test failed to start (missing *.dll/*.so dependency for example)
  * Test crashed or hung
  * Task expired because there are not enough bots available and are all used
  * Swarming service experiences problems

Please examine logs to figure out what happened.
`, bad)
}

// Warning is a non-fatal problem to show on the build step.
type Warning struct {
	Title string
	Log   string
}

// MarshalJSON renders the warning as a [title, log] pair.
func (w Warning) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{w.Title, w.Log})
}

// UnmarshalJSON implements json.Unmarshaler.
func (w *Warning) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	w.Title, w.Log = pair[0], pair[1]
	return nil
}

// Warnings accumulates warnings. Safe for concurrent use.
//
// A nil *Warnings discards everything.
type Warnings struct {
	m    sync.Mutex
	list []Warning
}

// Add records a warning.
func (w *Warnings) Add(title, log string) {
	if w == nil {
		return
	}
	w.m.Lock()
	defer w.m.Unlock()
	w.list = append(w.list, Warning{Title: title, Log: log})
}

// List returns recorded warnings.
func (w *Warnings) List() []Warning {
	if w == nil {
		return nil
	}
	w.m.Lock()
	defer w.m.Unlock()
	return append([]Warning(nil), w.list...)
}

// Write stores warnings as a JSON list of [title, log] pairs.
func (w *Warnings) Write(path string) error {
	list := w.List()
	if list == nil {
		list = []Warning{}
	}
	blob, err := json.Marshal(list)
	if err != nil {
		return errors.Annotate(err, "serializing warnings").Err()
	}
	if err := os.WriteFile(path, blob, 0666); err != nil {
		return errors.Annotate(err, "writing warnings").Err()
	}
	return nil
}
