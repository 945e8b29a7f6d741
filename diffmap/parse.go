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
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"go.chromium.org/luci/common/errors"
)

// AddedLine is a line added by a diff.
type AddedLine struct {
	// Content is the line without the leading '+'.
	Content string
	// Line is the 1-based line number in the new version of the file.
	Line int
}

// FileLines maps a file path to lines added to it, in diff order.
type FileLines map[string][]AddedLine

// Hunk is a parsed hunk header.
type Hunk struct {
	OldStart, OldLines int
	NewStart, NewLines int
}

// hunkHeaderRe matches "@@ -start1[,len1] +start2[,len2] @@[ section]".
var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// ParseHunkHeader parses a "@@ -a,b +c,d @@" line.
//
// An omitted length defaults to 1, as in git.
func ParseHunkHeader(line string) (Hunk, error) {
	m := hunkHeaderRe.FindStringSubmatch(line)
	if m == nil {
		return Hunk{}, errors.Reason("malformed hunk header %q", line).Err()
	}
	num := func(s string) int {
		if s == "" {
			return 1
		}
		// Digits only, per the regexp.
		n, _ := strconv.Atoi(s)
		return n
	}
	return Hunk{
		OldStart: num(m[1]),
		OldLines: num(m[2]),
		NewStart: num(m[3]),
		NewLines: num(m[4]),
	}, nil
}

// newFilePath extracts the path from a "+++ b/<path>" line.
//
// Returns "" for deleted files.
func newFilePath(line string) string {
	path := strings.TrimPrefix(line, "+++ ")
	// git appends a tab when the path has spaces.
	path = strings.TrimSuffix(path, "\t")
	if path == "/dev/null" {
		return ""
	}
	return strings.TrimPrefix(path, "b/")
}

// scanner tracks the position in a diff.
type scanner struct {
	lines FileLines

	file   string // file the current hunk belongs to
	inHunk bool
	base   int // new file line number at the start of the hunk
	offset int // lines of the new file seen so far in the hunk

	oldLeft, newLeft int // lines still expected in the hunk

	// hunkDone is set when a hunk ended by exhausting its lengths and no
	// header or marker followed yet.
	hunkDone bool
}

// hunkBody is true for lines that can only appear inside a hunk.
func hunkBody(line string) bool {
	if line == "" || line == "-- " { // "-- " starts a format-patch signature
		return false
	}
	switch line[0] {
	case '+', '-', ' ':
		return true
	}
	return false
}

func (s *scanner) feed(line string) error {
	if s.inHunk && s.oldLeft <= 0 && s.newLeft <= 0 {
		s.inHunk = false
		s.hunkDone = true
	}

	if !s.inHunk || strings.HasPrefix(line, "@@ ") {
		switch {
		case strings.HasPrefix(line, "@@"):
			h, err := ParseHunkHeader(line)
			if err != nil {
				return err
			}
			s.inHunk = true
			s.hunkDone = false
			s.base = h.NewStart
			s.offset = 0
			s.oldLeft = h.OldLines
			s.newLeft = h.NewLines
		case strings.HasPrefix(line, "+++ "):
			s.file = newFilePath(line)
			s.hunkDone = false
		case strings.HasPrefix(line, "--- "):
			s.hunkDone = false
		case strings.HasPrefix(line, "diff "):
			s.file = ""
			s.hunkDone = false
		case s.hunkDone && hunkBody(line):
			// Skipping it would silently lose added lines.
			return errors.Reason("%q is past the end of the hunk, its header understates the hunk length", line).Err()
		}
		return nil
	}

	switch {
	case line == "" || line[0] == ' ':
		s.offset++
		s.oldLeft--
		s.newLeft--
	case line[0] == '+':
		if s.file != "" {
			s.lines[s.file] = append(s.lines[s.file], AddedLine{
				Content: line[1:],
				Line:    s.base + s.offset,
			})
		}
		s.offset++
		s.newLeft--
	case line[0] == '-':
		s.oldLeft--
	case line[0] == '\\':
		// "\ No newline at end of file".
	default:
		// Not a hunk line, so the header understated the hunk lengths. The hunk
		// is over, whatever this line is.
		s.inHunk = false
		return s.feed(line)
	}
	return nil
}

// ExtractAddedLines returns lines added by a diff in `git diff` format, per
// file.
//
// Files are identified by the "+++ b/<path>" line. Line numbers of added lines
// are computed from the new file start line of the hunk header, counting
// context and added lines that precede them in the hunk. A hunk line found
// after the hunk is over, per its header, is an error.
//
// A trailing "\r" is stripped from every line, so CRLF diffs report the same
// content as LF ones.
func ExtractAddedLines(lines []string) (FileLines, error) {
	s := &scanner{lines: FileLines{}}
	for i, line := range lines {
		if err := s.feed(strings.TrimSuffix(line, "\r")); err != nil {
			return nil, errors.Annotate(err, "line %d", i+1).Err()
		}
	}
	return s.lines, nil
}

// Parse reads a diff and returns lines it adds, per file.
//
// It behaves as ExtractAddedLines on the lines of the diff.
func Parse(r io.Reader) (FileLines, error) {
	s := &scanner{lines: FileLines{}}
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 64*1024*1024)
	for n := 1; sc.Scan(); n++ {
		// ScanLines already drops the "\r" of CRLF endings.
		if err := s.feed(sc.Text()); err != nil {
			return nil, errors.Annotate(err, "line %d", n).Err()
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Annotate(err, "reading diff").Err()
	}
	return s.lines, nil
}
