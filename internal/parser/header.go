package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/opinionparse/internal/doctree"
)

// Header band bounds as fractions of page height.
const (
	headerBandLow  = 0.80
	headerBandHigh = 0.84
)

const (
	IDSyllabus = "syllabus"
	IDMajority = "opinion-majority"
	IDPreamble = "preamble"
	IDDocument = "opinion"
)

func inHeaderBand(y, height float64) bool {
	return y >= headerBandLow*height && y <= headerBandHigh*height
}

// HeaderBand returns the header-band text of a page: band runs sorted
// left to right and joined with spaces.
func HeaderBand(page doctree.Page) string {
	var band []doctree.TextRun
	for _, r := range page.Runs {
		if inHeaderBand(r.Y, page.Height) {
			band = append(band, r)
		}
	}
	sort.SliceStable(band, func(i, j int) bool { return band[i].X < band[j].X })
	parts := make([]string, 0, len(band))
	for _, r := range band {
		if t := strings.TrimSpace(r.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// headerRule is one named classification rule. Rules are tried in order.
type headerRule struct {
	name  string
	match func(raw string, reg Registry) *doctree.SectionHeader
}

var (
	perCuriamRe  = regexp.MustCompile(`(?i)\bper\s+curiam\b`)
	opinionOfRe  = regexp.MustCompile(`^Opinion of (.+?)\s*,\s*(C\.\s*)?J\.$`)
	separateOpRe = regexp.MustCompile(`^(.+?)\s*,\s*(C\.\s*)?J\.\s*,\s*(concurring|dissenting)(?:\s+in\s+(?:the\s+)?(?:judgment|part))?`)
	headerRules  = []headerRule{
		{"syllabus", matchSyllabus},
		{"opinion-of-the-court", matchOpinionOfCourt},
		{"per-curiam", matchPerCuriam},
		{"opinion-of-justice", matchOpinionOf},
		{"separate-opinion", matchSeparateOpinion},
	}
)

// ClassifyHeader maps header-band text to a section header, or nil when no
// rule matches or the author cannot be resolved.
func ClassifyHeader(raw string, reg Registry) *doctree.SectionHeader {
	raw = strings.Join(strings.Fields(raw), " ")
	if raw == "" {
		return nil
	}
	for _, rule := range headerRules {
		if h := rule.match(raw, reg); h != nil {
			h.RawText = raw
			return h
		}
	}
	return nil
}

func matchSyllabus(raw string, _ Registry) *doctree.SectionHeader {
	if raw != "Syllabus" {
		return nil
	}
	return &doctree.SectionHeader{ID: IDSyllabus, Title: "Syllabus"}
}

func matchOpinionOfCourt(raw string, _ Registry) *doctree.SectionHeader {
	if raw != "Opinion of the Court" {
		return nil
	}
	return &doctree.SectionHeader{ID: IDMajority, Title: "Opinion of the Court"}
}

func matchPerCuriam(raw string, _ Registry) *doctree.SectionHeader {
	if !perCuriamRe.MatchString(raw) {
		return nil
	}
	return &doctree.SectionHeader{ID: IDMajority, Title: "Per Curiam"}
}

func matchOpinionOf(raw string, reg Registry) *doctree.SectionHeader {
	m := opinionOfRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	name, ok := resolveName(m[1], reg)
	if !ok {
		return nil
	}
	if m[2] != "" {
		return &doctree.SectionHeader{ID: IDMajority, Title: "Opinion of the Court", Author: name}
	}
	return &doctree.SectionHeader{
		ID:     "opinion-" + strings.ToLower(name),
		Title:  "Opinion of " + name + ", J.",
		Author: name,
	}
}

func matchSeparateOpinion(raw string, reg Registry) *doctree.SectionHeader {
	m := separateOpRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	name, ok := resolveName(m[1], reg)
	if !ok {
		return nil
	}
	kind := m[3]
	office := "J."
	if m[2] != "" {
		office = "C. J."
	}
	return &doctree.SectionHeader{
		ID:     kind + "-" + strings.ToLower(name),
		Title:  name + ", " + office + ", " + kind,
		Author: name,
	}
}

// resolveName accepts a drop-cap split ("T HOMAS") or a direct token
// ("THOMAS") and validates it against the registry.
func resolveName(text string, reg Registry) (string, bool) {
	tokens := strings.Fields(text)
	switch {
	case len(tokens) == 2 && len([]rune(tokens[0])) == 1:
		return reg.Resolve(tokens[0] + tokens[1])
	case len(tokens) == 1:
		return reg.Resolve(tokens[0])
	}
	return "", false
}
