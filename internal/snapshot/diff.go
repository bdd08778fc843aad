package snapshot

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// maxDiffLines caps the diff embedded in a failure message; the full
// actual output is written next to the golden anyway.
const maxDiffLines = 80

// LineDiff renders a line-level diff of expected against actual, "-" for
// lines only in expected and "+" for lines only in actual. It also returns
// the similarity in [0,1] by Levenshtein distance over lines.
func LineDiff(expected, actual string) (string, float64) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(expected, actual)
	diffs := dmp.DiffMain(a, b, false)

	// Each rune stands for one line here, so distance and length count lines.
	dist := dmp.DiffLevenshtein(diffs)
	maxLen := len([]rune(a))
	if n := len([]rune(b)); n > maxLen {
		maxLen = n
	}
	similarity := 1.0
	if maxLen > 0 {
		similarity = 1.0 - float64(dist)/float64(maxLen)
	}

	diffs = dmp.DiffCharsToLines(diffs, lines)

	var sb strings.Builder
	written := 0
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			if written == maxDiffLines {
				sb.WriteString("... (diff truncated)\n")
				return sb.String(), similarity
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteString("\n")
			}
			written++
		}
	}
	return sb.String(), similarity
}
