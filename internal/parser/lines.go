package parser

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/dgallion1/opinionparse/internal/doctree"
)

const (
	// footerZoneY is the y below which runs are page furniture.
	footerZoneY = 60.0

	// lineBreakDelta is the vertical distance that starts a new line.
	lineBreakDelta = 2.0

	// bucketTolerance absorbs sub-integer y jitter within one visual row.
	bucketTolerance = 1.0

	// smallCapsDelta is the font shrink that marks a small-caps remainder run.
	smallCapsDelta = 0.5
)

var (
	pageCitationRe = regexp.MustCompile(`^\d{1,4}\s+[A-Z][A-Z0-9 .,'’&()-]*\s+v\.\s+[A-Z][A-Z0-9 .,'’&()-]*$`)
	bareNumberRe   = regexp.MustCompile(`^\d{1,4}$`)
	slipTagRe      = regexp.MustCompile(`(?i)^\(?slip opinion\)?`)
	citeAsRe       = regexp.MustCompile(`^Cite as:`)
	termLineRe     = regexp.MustCompile(`^OCTOBER TERM, \d{4}$`)
)

// isMarginArtifact reports running-head furniture printed above the header band.
func isMarginArtifact(text string) bool {
	t := strings.TrimSpace(text)
	return pageCitationRe.MatchString(t) || bareNumberRe.MatchString(t) ||
		slipTagRe.MatchString(t) || citeAsRe.MatchString(t) || termLineRe.MatchString(t)
}

// placedRun is a run moving through assembly. sortY may differ from the
// run's own y after superscript snapping.
type placedRun struct {
	doctree.TextRun
	sortY    float64
	bucket   int
	footnote int // Footnote id when the run is a reference marker.
}

// contentRuns drops header-band, footer-zone and top-margin artifact runs.
func contentRuns(page doctree.Page) []doctree.TextRun {
	var out []doctree.TextRun
	top := headerBandHigh * page.Height
	for _, r := range page.Runs {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		if inHeaderBand(r.Y, page.Height) || r.Y < footerZoneY {
			continue
		}
		if r.Y > top && isMarginArtifact(r.Text) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// AssembleLines merges a page's content runs into visual lines. It returns
// the lines and the page body font size.
func AssembleLines(page doctree.Page) ([]doctree.Line, float64) {
	runs := contentRuns(page)
	if len(runs) == 0 {
		return nil, 0
	}
	bfs := BodyFontSize(runs)
	sepY, _ := separatorY(runs, bfs)

	placed := make([]placedRun, len(runs))
	for i, r := range runs {
		placed[i] = placedRun{TextRun: r, sortY: r.Y}
	}
	sortPlaced(placed)
	snapSuperscripts(placed, bfs, sepY)
	sortPlaced(placed)
	return groupLines(placed), bfs
}

// BodyFontSize is the largest font size with at least five occurrences,
// falling back to the modal size.
func BodyFontSize(runs []doctree.TextRun) float64 {
	counts := make(map[float64]int)
	for _, r := range runs {
		counts[roundTenth(r.FontSize)]++
	}
	best := -1.0
	for size, n := range counts {
		if n >= 5 && size > best {
			best = size
		}
	}
	if best > 0 {
		return best
	}
	modal, modalN := 0.0, 0
	for size, n := range counts {
		if n > modalN || (n == modalN && size > modal) {
			modal, modalN = size, n
		}
	}
	return modal
}

var dashRunRe = regexp.MustCompile(`^[-‐‑‒–—―_]{2,}$`)

// isSeparatorText reports a footnote separator rule rendered as dashes. The
// rule may be drawn as several runs, which line assembly joins with spaces.
func isSeparatorText(text string) bool {
	return dashRunRe.MatchString(strings.Join(strings.Fields(text), ""))
}

// separatorY finds the footnote separator run. Without one, every y is
// above the separator.
func separatorY(runs []doctree.TextRun, bfs float64) (float64, bool) {
	for _, r := range runs {
		if isSeparatorText(r.Text) && r.FontSize < bfs-1 {
			return r.Y, true
		}
	}
	return math.Inf(-1), false
}

var refDigitsRe = regexp.MustCompile(`^\d{1,2}$`)

// isFootnoteCandidate reports a superscript reference. Footnotes are numbered
// from 1, so "0" and "00" stay literal text.
func isFootnoteCandidate(r placedRun, bfs, sepY float64) bool {
	t := strings.TrimSpace(r.Text)
	return refDigitsRe.MatchString(t) && atoiSafe(t) > 0 &&
		r.FontSize < bfs-2.5 && r.Y > sepY+2
}

// snapSuperscripts marks footnote reference candidates and moves isolated
// ones onto the y of their nearest non-candidate neighbour.
func snapSuperscripts(runs []placedRun, bfs, sepY float64) {
	const window = 10
	candidate := make([]bool, len(runs))
	for i := range runs {
		candidate[i] = isFootnoteCandidate(runs[i], bfs, sepY)
	}
	for i := range runs {
		if !candidate[i] {
			continue
		}
		runs[i].footnote = atoiSafe(strings.TrimSpace(runs[i].Text))

		lo, hi := max(0, i-window), min(len(runs)-1, i+window)
		isolated := true
		for j := lo; j <= hi; j++ {
			if j == i || candidate[j] {
				continue
			}
			if math.Round(runs[j].Y) == math.Round(runs[i].Y) && runs[j].FontSize >= bfs-1 {
				isolated = false
				break
			}
		}
		if !isolated {
			continue
		}
		nearest := -1
		bestDY, bestDX := math.Inf(1), math.Inf(1)
		for j := lo; j <= hi; j++ {
			if j == i || candidate[j] {
				continue
			}
			dy := math.Abs(runs[j].Y - runs[i].Y)
			dx := math.Abs(runs[j].X - runs[i].X)
			if dy < bestDY || (dy == bestDY && dx < bestDX) {
				nearest, bestDY, bestDX = j, dy, dx
			}
		}
		if nearest >= 0 {
			runs[i].sortY = runs[nearest].Y
		}
	}
}

// sortPlaced orders runs top to bottom, left to right. Rows are bucketed so
// y values within bucketTolerance of their neighbour share a row.
func sortPlaced(runs []placedRun) {
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].sortY > runs[j].sortY })
	bucket := 0
	for i := range runs {
		if i > 0 && runs[i-1].sortY-runs[i].sortY > bucketTolerance {
			bucket++
		}
		runs[i].bucket = bucket
	}
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].bucket != runs[j].bucket {
			return runs[i].bucket < runs[j].bucket
		}
		return runs[i].X < runs[j].X
	})
}

// groupLines joins sorted runs into lines.
func groupLines(runs []placedRun) []doctree.Line {
	var (
		lines   []doctree.Line
		buf     strings.Builder
		sumFont float64
		nFont   int
		startX  float64
		lineY   float64
		prevFS  float64
		open    bool
	)
	flush := func() {
		if !open {
			return
		}
		text := strings.TrimSpace(buf.String())
		if text != "" {
			avg := 0.0
			if nFont > 0 {
				avg = sumFont / float64(nFont)
			}
			lines = append(lines, doctree.Line{Text: text, AvgFontSize: avg, StartX: startX, Y: lineY})
		}
		buf.Reset()
		sumFont, nFont, open = 0, 0, false
	}

	for _, r := range runs {
		if open && math.Abs(r.sortY-lineY) > lineBreakDelta {
			flush()
		}
		if !open {
			open = true
			lineY = r.sortY
			startX = r.X
			prevFS = 0
		}
		if r.X < startX {
			startX = r.X
		}

		if r.footnote > 0 {
			buf.WriteString(doctree.FootnoteMarker(r.footnote))
			continue
		}

		text := strings.TrimSpace(r.Text)
		current := buf.String()
		switch {
		case isSmallCapsTail(text, r.FontSize, prevFS, current):
		case current == "" || strings.HasSuffix(current, " "):
		default:
			buf.WriteByte(' ')
		}
		buf.WriteString(text)
		sumFont += r.FontSize
		nFont++
		prevFS = r.FontSize
	}
	flush()
	return lines
}

// isSmallCapsTail reports a reduced-size uppercase run continuing an
// enlarged initial, e.g. "J" followed by "USTICE".
func isSmallCapsTail(text string, fs, prevFS float64, buf string) bool {
	if prevFS == 0 || fs >= prevFS-smallCapsDelta || !isAllUpper(text) {
		return false
	}
	last, ok := lastRune(buf)
	return ok && unicode.IsUpper(last)
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

func lastRune(s string) (rune, bool) {
	rs := []rune(s)
	if len(rs) == 0 {
		return 0, false
	}
	return rs[len(rs)-1], true
}

func roundTenth(f float64) float64 {
	return math.Round(f*10) / 10
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
