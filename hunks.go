package main

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

var (
	directCallPattern = regexp.MustCompile(`(\w+)\s*\(`)
	methodCallPattern = regexp.MustCompile(`(\w+)\.(\w+)\s*\(`)
)

// Words that look like calls to the regexes but are control flow.
var callKeywords = map[string]bool{
	"if":       true,
	"for":      true,
	"while":    true,
	"switch":   true,
	"catch":    true,
	"return":   true,
	"function": true,
	"typeof":   true,
	"await":    true,
	"new":      true,
	"super":    true,
	"import":   true,
	"elif":     true,
	"with":     true,
}

// StringSet is an unordered set of strings.
type StringSet map[string]struct{}

func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, item := range items {
		s.Add(item)
	}
	return s
}

func (s StringSet) Add(item string) {
	s[item] = struct{}{}
}

func (s StringSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// ParsePatch returns the hunks of a GitHub per-file patch (starting at the
// first "@@" header) or of a complete unified diff.
func ParsePatch(patch string) ([]*diff.Hunk, error) {
	if strings.TrimSpace(patch) == "" {
		return nil, nil
	}
	if !strings.HasSuffix(patch, "\n") {
		patch += "\n"
	}

	if strings.HasPrefix(patch, "@@") {
		hunks, err := diff.ParseHunks([]byte(patch))
		if err != nil {
			return nil, fmt.Errorf("failed to parse hunks: %w", err)
		}
		return hunks, nil
	}

	fileDiffs, err := diff.ParseMultiFileDiff([]byte(patch))
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff: %w", err)
	}
	var hunks []*diff.Hunk
	for _, fd := range fileDiffs {
		hunks = append(hunks, fd.Hunks...)
	}
	return hunks, nil
}

func hunkLines(h *diff.Hunk) []string {
	return strings.Split(strings.TrimSuffix(string(h.Body), "\n"), "\n")
}

// parseFunctions adds every call-looking token on the added or removed lines
// of a hunk to functionCalls: "name" for direct calls and "recv.name" for
// method calls.
func parseFunctions(lines []string, functionCalls StringSet) {
	for _, line := range lines {
		if !strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "-") {
			continue
		}
		changed := strings.TrimSpace(line[1:])

		for _, match := range directCallPattern.FindAllStringSubmatch(changed, -1) {
			if callKeywords[match[1]] {
				continue
			}
			functionCalls.Add(match[1])
		}
		for _, match := range methodCallPattern.FindAllStringSubmatch(changed, -1) {
			functionCalls.Add(match[1] + "." + match[2])
		}
	}
}

// changedLineNumbers returns the new-file line numbers of the lines a hunk adds.
func changedLineNumbers(h *diff.Hunk) []int {
	var numbers []int
	line := int(h.NewStartLine)
	for _, l := range hunkLines(h) {
		switch {
		case strings.HasPrefix(l, "+"):
			numbers = append(numbers, line)
			line++
		case strings.HasPrefix(l, "-"), strings.HasPrefix(l, `\`):
		default:
			line++
		}
	}
	return numbers
}

// lineRanges collapses sorted line numbers into "a-b" / "a" spans.
func lineRanges(numbers []int) []string {
	var ranges []string
	for i := 0; i < len(numbers); {
		j := i
		for j+1 < len(numbers) && numbers[j+1] == numbers[j]+1 {
			j++
		}
		if i == j {
			ranges = append(ranges, fmt.Sprintf("%d", numbers[i]))
		} else {
			ranges = append(ranges, fmt.Sprintf("%d-%d", numbers[i], numbers[j]))
		}
		i = j + 1
	}
	return ranges
}
