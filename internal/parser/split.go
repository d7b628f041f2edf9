package parser

import (
	"math"
	"regexp"
	"strings"

	"github.com/dgallion1/opinionparse/internal/doctree"
)

const (
	// centeredOffset is the start-x excess over the margin that marks a centered line.
	centeredOffset = 50.0

	// minIndent and maxIndent bound a first-line paragraph indent.
	minIndent = 5.0
	maxIndent = 50.0
)

var (
	romanRe       = regexp.MustCompile(`^[IVXLC]+$`)
	capitalRe     = regexp.MustCompile(`^[A-Z]$`)
	numberLabelRe = regexp.MustCompile(`^\d{1,2}$`)
	footnoteNumRe = regexp.MustCompile(`^\d{1,2}$`)
)

// SplitPage separates assembled lines into marked body lines and the
// footnote block. The header is filled in by the caller.
func SplitPage(lines []doctree.Line, bfs float64) doctree.PageResult {
	res := doctree.PageResult{Footnotes: make(map[int]string)}

	sep := len(lines)
	for i, l := range lines {
		if isSeparatorText(l.Text) && l.AvgFontSize < bfs-1 {
			sep = i
			break
		}
	}

	res.BodyLines = bodyLines(lines[:sep], bfs)
	if sep < len(lines) {
		res.Footnotes, res.FootnoteContinuation = footnoteBlock(lines[sep+1:], bfs)
	}
	return res
}

func isBodyFont(l doctree.Line, bfs float64) bool {
	return math.Abs(l.AvgFontSize-bfs) <= 1
}

// bodyMargin is the most frequent rounded start-x among body-font lines.
func bodyMargin(lines []doctree.Line, bfs float64) float64 {
	counts := make(map[float64]int)
	for _, l := range lines {
		if isBodyFont(l, bfs) {
			counts[math.Round(l.StartX)]++
		}
	}
	margin, best := 0.0, 0
	for x, n := range counts {
		if n > best || (n == best && x < margin) {
			margin, best = x, n
		}
	}
	return margin
}

// headingLevel classifies centered label text: Roman numeral, single
// capital, or small number.
func headingLevel(text string) int {
	switch {
	case romanRe.MatchString(text):
		return 1
	case capitalRe.MatchString(text):
		return 2
	case numberLabelRe.MatchString(text):
		return 3
	}
	return 0
}

func bodyLines(lines []doctree.Line, bfs float64) []string {
	margin := bodyMargin(lines, bfs)
	var out []string
	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}
		if !isBodyFont(l, bfs) {
			out = append(out, text)
			continue
		}
		indent := l.StartX - margin
		if indent > centeredOffset {
			if level := headingLevel(text); level > 0 {
				out = append(out, "", doctree.HeadingMarker(level, text), "")
				continue
			}
		} else if indent > minIndent && indent < maxIndent {
			out = append(out, "")
		}
		out = append(out, text)
	}
	return out
}

// footnoteBlock collects numbered footnotes below the separator. Text before
// the first number continues a footnote from the previous page. A number line
// only opens a footnote when it is the first on the page or follows the
// previous id.
func footnoteBlock(lines []doctree.Line, bfs float64) (map[int]string, string) {
	notes := make(map[int]string)
	var (
		continuation []string
		current      []string
		currentID    int
	)
	flush := func() {
		if currentID > 0 {
			notes[currentID] = strings.Join(current, " ")
		}
		current = nil
	}
	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if text == "" || isSeparatorText(text) {
			continue
		}
		if footnoteNumRe.MatchString(text) && l.AvgFontSize < bfs-3 {
			n := atoiSafe(text)
			if n > 0 && (currentID == 0 || n == currentID+1) {
				flush()
				currentID = n
				continue
			}
		}
		if currentID == 0 {
			continuation = append(continuation, text)
		} else {
			current = append(current, text)
		}
	}
	flush()
	return notes, strings.Join(continuation, " ")
}
