package parser

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/opinionparse/internal/doctree"
)

const (
	UnknownCase = "Unknown Case"

	// titleLineTolerance groups caption runs into lines.
	titleLineTolerance = 3.0

	// fallbackTitleLines is how many body lines the title fallback scans.
	fallbackTitleLines = 20

	// metadataPages is how many leading pages are searched for docket and date.
	metadataPages = 3
)

var (
	titleStopRe    = regexp.MustCompile(`CERTIORARI|ON WRIT OF|^Nos?\.\s*\d`)
	etAlRe         = regexp.MustCompile(`\bET AL\b\.?`)
	versusRe       = regexp.MustCompile(`\s+v(?:\.|\s)\s*`)
	repeatedDotsRe = regexp.MustCompile(`\.{2,}`)
	fallbackTitle  = regexp.MustCompile(`([A-Z][\w.'’&-]*(?:\s+[A-Z][\w.'’&,-]*)*)\s+v\.\s+([A-Z][\w.'’&-]*(?:\s+[A-Z][\w.'’&-]*)*)`)
	docketNumberRe = regexp.MustCompile(`\bNos?\.\s*(\d+[-–]\d+)`)
	decidedDateRe  = regexp.MustCompile(`Decided\s+(` + datePattern + `)`)
	bracketDateRe  = regexp.MustCompile(`\[(` + datePattern + `)\]`)
)

// Metadata is the case identity recovered from the first pages.
type Metadata struct {
	CaseTitle    string
	DocketNumber string
	DecidedDate  string
}

// ExtractMetadata reads case title, docket number and decision date.
// bodyLines are page 1's body lines, used when no court banner is found.
func ExtractMetadata(pages []doctree.Page, bodyLines []string) Metadata {
	md := Metadata{CaseTitle: UnknownCase}
	if len(pages) == 0 {
		return md
	}
	if t := captionTitle(pages[0]); t != "" {
		md.CaseTitle = t
	} else if t := bodyTitle(bodyLines); t != "" {
		md.CaseTitle = t
	}

	text := leadingText(pages)
	if m := docketNumberRe.FindStringSubmatch(text); m != nil {
		md.DocketNumber = strings.ReplaceAll(m[1], "–", "-")
	}
	if m := decidedDateRe.FindStringSubmatch(text); m != nil {
		md.DecidedDate = collapseSpaces(m[1])
	} else if m := bracketDateRe.FindStringSubmatch(text); m != nil {
		md.DecidedDate = collapseSpaces(m[1])
	}
	return md
}

// captionTitle collects the runs between the court banner and the nearest
// cert/writ/docket run below it.
func captionTitle(page doctree.Page) string {
	bannerY, found := 0.0, false
	for _, r := range page.Runs {
		if strings.Contains(r.Text, courtBanner) {
			bannerY, found = r.Y, true
			break
		}
	}
	if !found {
		return ""
	}
	stopY, stopFound := 0.0, false
	for _, r := range page.Runs {
		if r.Y < bannerY && titleStopRe.MatchString(strings.TrimSpace(r.Text)) {
			if !stopFound || r.Y > stopY {
				stopY, stopFound = r.Y, true
			}
		}
	}
	if !stopFound {
		return ""
	}

	var between []doctree.TextRun
	for _, r := range page.Runs {
		t := strings.TrimSpace(r.Text)
		if r.Y < bannerY && r.Y > stopY && t != "" && t != "Syllabus" {
			between = append(between, r)
		}
	}
	if len(between) == 0 {
		return ""
	}
	return normalizeTitle(strings.Join(groupRunLines(between, titleLineTolerance), " "))
}

// groupRunLines groups runs into top-to-bottom lines by y proximity.
func groupRunLines(runs []doctree.TextRun, tol float64) []string {
	sorted := append([]doctree.TextRun(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var groups [][]doctree.TextRun
	for _, r := range sorted {
		n := len(groups)
		if n > 0 && math.Abs(groups[n-1][0].Y-r.Y) <= tol {
			groups[n-1] = append(groups[n-1], r)
			continue
		}
		groups = append(groups, []doctree.TextRun{r})
	}

	lines := make([]string, 0, len(groups))
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].X < g[j].X })
		parts := make([]string, 0, len(g))
		for _, r := range g {
			parts = append(parts, strings.TrimSpace(r.Text))
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return lines
}

func bodyTitle(lines []string) string {
	for i, l := range lines {
		if i >= fallbackTitleLines {
			break
		}
		if m := fallbackTitle.FindString(l); m != "" {
			return normalizeTitle(m)
		}
	}
	return ""
}

// normalizeTitle tidies a caption: "et al.", "v.", repeated periods and
// trailing separators.
func normalizeTitle(s string) string {
	s = collapseSpaces(s)
	s = etAlRe.ReplaceAllString(s, "et al.")
	s = versusRe.ReplaceAllString(s, " v. ")
	s = repeatedDotsRe.ReplaceAllString(s, ".")
	s = collapseSpaces(s)
	return strings.TrimRight(s, ", ")
}

// leadingText joins the runs of the first pages in reading order.
func leadingText(pages []doctree.Page) string {
	var sb strings.Builder
	for i, p := range pages {
		if i >= metadataPages {
			break
		}
		for _, line := range groupRunLines(p.Runs, lineBreakDelta) {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
