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

package diffmap

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"go.chromium.org/luci/common/errors"
)

// Mismatch tags errors caused by diffs that are not of the same change.
var Mismatch = errors.BoolTag{Key: errors.NewTagKey("diffs of different changes")}

// Target is where a local added line is in the remote diff.
type Target struct {
	Line    int
	Content string
}

// MarshalJSON renders the target as a [line, content] pair.
func (t Target) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.Line, t.Content})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Target) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return errors.Reason("expecting [line, content], got %d elements", len(pair)).Err()
	}
	if err := json.Unmarshal(pair[0], &t.Line); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &t.Content)
}

// Mapping maps a file path and a local line number to the remote line.
//
// Serialized as {"path": {"<local line>": [<remote line>, "<content>"]}}.
type Mapping map[string]map[int]Target

// Lookup returns where the given local line is in the remote diff.
func (m Mapping) Lookup(path string, line int) (Target, bool) {
	t, ok := m[path][line]
	return t, ok
}

// BuildCrossMapping maps lines added by the local diff to the same lines
// added by the remote diff.
//
// Both diffs must be of the same change: for every file in the local diff the
// remote diff must add exactly the same lines, in the same order, though
// possibly at different line numbers. Anything else is an error tagged with
// Mismatch, since there is no reliable way to map lines.
//
// If sources are given, only these files are mapped (and checked). Sources not
// touched by the local diff are skipped.
func BuildCrossMapping(local, remote FileLines, sources ...string) (Mapping, error) {
	files := sources
	if len(files) == 0 {
		files = make([]string, 0, len(local))
		for f := range local {
			files = append(files, f)
		}
		sort.Strings(files)
	}

	mapping := make(Mapping, len(files))
	for _, f := range files {
		localLines, ok := local[f]
		if !ok {
			continue
		}
		remoteLines, ok := remote[f]
		if !ok {
			return nil, errors.Reason("File present in local diff, but not remote diff: %s", f).
				Tag(Mismatch).Err()
		}
		if len(localLines) != len(remoteLines) {
			return nil, errors.Reason("%s: local has %d added lines, remote has %d",
				f, len(localLines), len(remoteLines)).Tag(Mismatch).Err()
		}
		lines := make(map[int]Target, len(localLines))
		for i, l := range localLines {
			r := remoteLines[i]
			if l.Content != r.Content {
				return nil, errors.Reason("%s: local line %d %q does not match remote line %d %q: %s",
					f, l.Line, l.Content, r.Line, r.Content, inlineDiff(l.Content, r.Content)).
					Tag(Mismatch).Err()
			}
			lines[l.Line] = Target{Line: r.Line, Content: r.Content}
		}
		mapping[f] = lines
	}
	return mapping, nil
}

// inlineDiff renders a character level diff as "ab[-c-]{+d+}".
func inlineDiff(a, b string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(a, b, false))
	sb := strings.Builder{}
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			sb.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			sb.WriteString("{+" + d.Text + "+}")
		default:
			sb.WriteString(d.Text)
		}
	}
	return sb.String()
}

// MapDiffs parses both diffs and maps their added lines.
func MapDiffs(localDiff, remoteDiff string, sources ...string) (Mapping, error) {
	local, err := Parse(strings.NewReader(localDiff))
	if err != nil {
		return nil, errors.Annotate(err, "local diff").Err()
	}
	remote, err := Parse(strings.NewReader(remoteDiff))
	if err != nil {
		return nil, errors.Annotate(err, "remote diff").Err()
	}
	return BuildCrossMapping(local, remote, sources...)
}
