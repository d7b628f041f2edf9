package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/opinionparse/internal/doctree"
)

const (
	// leadScan is how many leading paragraphs phase 1 inspects.
	leadScan = 3

	// anchorScan is how many paragraphs are searched for the end of boilerplate.
	anchorScan = 15

	// mergedBodyLen marks a paragraph that swallowed body text.
	mergedBodyLen = 500

	// shortLineLen bounds caption-style lines in the fallback prefix.
	shortLineLen = 300

	courtBanner = "SUPREME COURT OF THE UNITED STATES"
)

const datePattern = `(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4}`

var (
	disclaimerRe     = regexp.MustCompile(`^NOTE: Where it is feasible`)
	disclaimerEndRe  = regexp.MustCompile(`Detroit Timber (?:&|and) Lumber Co\., 200 U\. ?S\. 321, 337\.`)
	revisionNoticeRe = regexp.MustCompile(`^NOTICE: This opinion`)
	decidedCutRe     = regexp.MustCompile(`Decided\s+` + datePattern + `\*?\.?`)
	bracketDateCutRe = regexp.MustCompile(`\[` + datePattern + `\]`)
	certAnchorRe     = regexp.MustCompile(`ON WRIT OF|CERTIORARI`)
	docketAnchorRe   = regexp.MustCompile(`\bNos?\.\s*\d`)
	syllabusLabelRe  = regexp.MustCompile(`^Syllabus\b\s*`)
	sentenceEndRe    = regexp.MustCompile(`\.\s+[A-Z][a-z]`)
)

// anchorRule is a named end-of-boilerplate pattern.
type anchorRule struct {
	name string
	re   *regexp.Regexp
}

var anchorRules = []anchorRule{
	{"delivery", regexp.MustCompile(`^(?:THE\s+)?(?:CHIEF\s+)?JUSTICE(?:\s+[A-Z][A-Z'’-]+)?,?\s+(?:delivered|announced|filed|concurring|dissenting|concurs|dissents)\b`)},
	{"joinder", regexp.MustCompile(`^(?:THE\s+)?(?:CHIEF\s+)?JUSTICE\b.{0,400}?\bjoin(?:s|ed)?\b.{0,400}?\b(?:concurring|dissenting)\b`)},
	{"per-curiam", regexp.MustCompile(`(?i)^per curiam\.?$`)},
}

// prefixRule is a named caption/cert/docket pattern for chapters without a
// delivery line. terminal rules end the prefix once matched.
type prefixRule struct {
	name     string
	match    func(string) bool
	terminal bool
}

var (
	partyRoleRe = regexp.MustCompile(`^(?:PETITIONERS?|RESPONDENTS?|APPELLANTS?|APPELLEES?)\b`)
	certLineRe  = regexp.MustCompile(`^(?:ON (?:WRIT OF CERTIORARI|APPEAL|PETITION)|CERTIORARI TO)\b`)
	docketRe    = regexp.MustCompile(`^Nos?\.\s*\d`)
	argDateRe   = regexp.MustCompile(`^(?:Argued|Reargued|Submitted|Decided)\s+` + datePattern)
	bareDateRe  = regexp.MustCompile(`^\[` + datePattern + `\]$`)
	termRe      = regexp.MustCompile(`^OCTOBER TERM, \d{4}$`)
)

var prefixRules = []prefixRule{
	{"banner", func(s string) bool { return s == courtBanner }, false},
	{"syllabus-label", func(s string) bool { return s == "Syllabus" }, false},
	{"term", termRe.MatchString, false},
	{"party-role", partyRoleRe.MatchString, false},
	{"caption", isCaptionLine, false},
	{"cert", certLineRe.MatchString, true},
	{"date", func(s string) bool { return argDateRe.MatchString(s) || bareDateRe.MatchString(s) }, false},
	{"docket", docketRe.MatchString, true},
}

// isCaptionLine reports an all-caps "PARTY v. PARTY" caption.
func isCaptionLine(s string) bool {
	if !strings.Contains(s, " v. ") {
		return false
	}
	rest := strings.ReplaceAll(s, " v. ", " ")
	rest = strings.ReplaceAll(rest, "et al.", "")
	return !strings.ContainsFunc(rest, func(r rune) bool { return r >= 'a' && r <= 'z' })
}

// TagBoilerplate marks a chapter's leading caption/procedural block. Input
// that already carries tags is returned unchanged.
func TagBoilerplate(paras []doctree.Paragraph) []doctree.Paragraph {
	for i := 0; i < len(paras) && i < anchorScan; i++ {
		if doctree.IsTagged(paras[i].Text) {
			return paras
		}
	}
	out := tagLeading(paras)
	if k, ok := findAnchor(out); ok {
		return tagThroughAnchor(out, k)
	}
	return tagCaptionPrefix(out)
}

// tagLeading is phase 1: disclaimer, revision notice and court banner.
func tagLeading(paras []doctree.Paragraph) []doctree.Paragraph {
	queue := append([]doctree.Paragraph(nil), paras...)
	var out []doctree.Paragraph
	for examined := 0; len(queue) > 0 && examined < leadScan; examined++ {
		text := queue[0].Text
		queue = queue[1:]
		switch {
		case disclaimerRe.MatchString(text):
			head, rest := text, ""
			if loc := disclaimerEndRe.FindStringIndex(text); loc != nil {
				head, rest = text[:loc[1]], strings.TrimSpace(text[loc[1]:])
			}
			out = append(out, tagged(head))
			if len(rest) >= minParagraphLen {
				queue = append([]doctree.Paragraph{{Text: rest}}, queue...)
			}
		case revisionNoticeRe.MatchString(text):
			out = append(out, tagged(text))
		case strings.HasPrefix(text, courtBanner):
			pieces, rest := splitHeader(text)
			for _, p := range pieces {
				out = append(out, tagged(p))
			}
			if len(rest) >= minParagraphLen {
				out = append(out, doctree.Paragraph{Text: rest})
			}
		default:
			out = append(out, doctree.Paragraph{Text: text})
		}
	}
	return append(out, queue...)
}

// splitHeader cuts body text after the decision date off a banner-opening
// paragraph and carves the header at the banner, cert and docket anchors.
func splitHeader(text string) (pieces []string, remainder string) {
	head := text
	loc := decidedCutRe.FindStringIndex(text)
	if loc == nil {
		loc = bracketDateCutRe.FindStringIndex(text)
	}
	if loc != nil {
		head, remainder = text[:loc[1]], strings.TrimSpace(text[loc[1]:])
	}

	bannerEnd := len(courtBanner)
	cuts := []int{0, bannerEnd}
	rest := head[bannerEnd:]
	if l := certAnchorRe.FindStringIndex(rest); l != nil {
		cuts = append(cuts, bannerEnd+l[0])
	}
	if l := docketAnchorRe.FindStringIndex(rest); l != nil {
		cuts = append(cuts, bannerEnd+l[0])
	}
	sort.Ints(cuts)
	cuts = append(cuts, len(head))

	for i := 0; i+1 < len(cuts); i++ {
		piece := strings.TrimSpace(head[cuts[i]:cuts[i+1]])
		if i == 1 {
			piece = syllabusLabelRe.ReplaceAllString(piece, "")
		}
		if piece != "" {
			pieces = append(pieces, piece)
		}
	}
	return pieces, remainder
}

// findAnchor is phase 2: the first untagged paragraph, within the scan
// window, that ends the boilerplate.
func findAnchor(paras []doctree.Paragraph) (int, bool) {
	for i := 0; i < len(paras) && i < anchorScan; i++ {
		if doctree.IsTagged(paras[i].Text) {
			continue
		}
		for _, rule := range anchorRules {
			if rule.re.MatchString(paras[i].Text) {
				return i, true
			}
		}
	}
	return 0, false
}

func tagThroughAnchor(paras []doctree.Paragraph, k int) []doctree.Paragraph {
	var out []doctree.Paragraph
	for i, p := range paras {
		switch {
		case i > k || doctree.IsTagged(p.Text):
			out = append(out, p)
		case i < k:
			out = append(out, tagPrefixOf(p)...)
		default:
			out = append(out, tagJustice(p)...)
		}
	}
	return out
}

// tagPrefixOf tags a boilerplate paragraph, or only its dated prefix when
// the paragraph is long enough to have swallowed body text.
func tagPrefixOf(p doctree.Paragraph) []doctree.Paragraph {
	if len(p.Text) < mergedBodyLen {
		return []doctree.Paragraph{tagged(p.Text)}
	}
	if head, rest, ok := splitAtDecided(p.Text); ok {
		return withRest(tagged(head), rest)
	}
	return []doctree.Paragraph{p}
}

func tagJustice(p doctree.Paragraph) []doctree.Paragraph {
	if len(p.Text) >= mergedBodyLen {
		if loc := sentenceEndRe.FindStringIndex(p.Text); loc != nil {
			head := p.Text[:loc[0]+1]
			rest := strings.TrimSpace(p.Text[loc[0]+1:])
			return withRest(doctree.Paragraph{Text: doctree.WrapJustice(head)}, rest)
		}
	}
	return []doctree.Paragraph{{Text: doctree.WrapJustice(p.Text)}}
}

// tagCaptionPrefix tags leading short caption/cert/docket lines, stopping at
// the first non-match or right after a cert or docket line. A docket line
// directly under the cert line belongs to the same block.
func tagCaptionPrefix(paras []doctree.Paragraph) []doctree.Paragraph {
	var out []doctree.Paragraph
	i := 0
	for ; i < len(paras); i++ {
		text := paras[i].Text
		if doctree.IsTagged(text) {
			out = append(out, paras[i])
			continue
		}
		if len(text) >= mergedBodyLen {
			if head, rest, ok := splitAtDecided(text); ok {
				out = append(out, withRest(tagged(head), rest)...)
				i++
			}
			break
		}
		if len(text) > shortLineLen {
			break
		}
		rule, ok := matchPrefixRule(text)
		if !ok {
			break
		}
		out = append(out, tagged(text))
		if rule.terminal {
			i++
			if rule.name == "cert" && i < len(paras) && isShortDocketLine(paras[i].Text) {
				out = append(out, tagged(paras[i].Text))
				i++
			}
			break
		}
	}
	return append(out, paras[i:]...)
}

func isShortDocketLine(text string) bool {
	return !doctree.IsTagged(text) && len(text) <= shortLineLen && docketRe.MatchString(text)
}

func matchPrefixRule(text string) (prefixRule, bool) {
	for _, r := range prefixRules {
		if r.match(text) {
			return r, true
		}
	}
	return prefixRule{}, false
}

func splitAtDecided(text string) (head, rest string, ok bool) {
	loc := decidedCutRe.FindStringIndex(text)
	if loc == nil {
		return "", "", false
	}
	return text[:loc[1]], strings.TrimSpace(text[loc[1]:]), true
}

func withRest(first doctree.Paragraph, rest string) []doctree.Paragraph {
	if len(rest) < minParagraphLen {
		return []doctree.Paragraph{first}
	}
	return []doctree.Paragraph{first, {Text: rest}}
}

func tagged(text string) doctree.Paragraph {
	return doctree.Paragraph{Text: doctree.WrapBoilerplate(text)}
}
