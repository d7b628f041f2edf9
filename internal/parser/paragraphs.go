package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dgallion1/opinionparse/internal/doctree"
)

// minParagraphLen drops stray fragments such as lone page numbers.
const minParagraphLen = 3

var (
	paragraphBreakRe = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)*`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
	spaceBeforePunct = regexp.MustCompile(`(\p{L}) +([,;:])`)

	// word- {{fn:N}} lower  ->  wordlower{{fn:N}}
	hyphenMarkerRe = regexp.MustCompile(`(\p{L}+) ?- ?(\{\{fn:\d+\}\}) ?(\p{Ll}+)`)
	// word- lower | word - lower  ->  wordlower. "well-known" has no space and is kept.
	hyphenBreakRe = regexp.MustCompile(`(\p{L}+)(?:- | - )(\p{Ll})`)

	runningHeaderRes = []*regexp.Regexp{
		regexp.MustCompile(`^Cite as: \d+ U\. ?S\. [_\d]+ \(\d{4}\)(?: \d{1,3})?$`),
		pageCitationRe,
		regexp.MustCompile(`^\d{1,3} SUPREME COURT OF THE UNITED STATES$`),
		regexp.MustCompile(`^SUPREME COURT OF THE UNITED STATES \d{1,3}$`),
	}
	citeAsPrefixRe = regexp.MustCompile(`^Cite as: \d+ U\. ?S\. [_\d]+ \(\d{4}\)(?: \d{1,3})? `)
)

// Dehyphenate rejoins words broken across lines, moving a footnote marker
// caught in the break past the rejoined word. Same-line compounds are kept.
func Dehyphenate(text string) string {
	for range 4 {
		next := hyphenMarkerRe.ReplaceAllString(text, "${1}${3}${2}")
		next = hyphenBreakRe.ReplaceAllString(next, "${1}${2}")
		if next == text {
			break
		}
		text = next
	}
	return text
}

// isRunningHeader reports a running-head line that leaked into the body.
func isRunningHeader(text string) bool {
	for _, re := range runningHeaderRes {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// ParagraphBuilder turns a chapter's line blob into paragraphs.
type ParagraphBuilder struct {
	caps *SmallCapsRepairer
}

// NewParagraphBuilder returns a builder that repairs small caps for reg.
func NewParagraphBuilder(reg Registry) *ParagraphBuilder {
	return &ParagraphBuilder{caps: NewSmallCapsRepairer(reg)}
}

// Clean normalizes one candidate: whitespace, de-hyphenation, small caps.
func (b *ParagraphBuilder) Clean(text string) string {
	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	text = Dehyphenate(text)
	text = b.caps.Repair(text)
	return spaceBeforePunct.ReplaceAllString(text, "${1}${2}")
}

// Build splits text on blank lines and assembles paragraphs, merging a
// lowercase continuation into the previous paragraph when that paragraph
// has no terminal punctuation.
func (b *ParagraphBuilder) Build(text string) []doctree.Paragraph {
	var paras []doctree.Paragraph
	for _, cand := range paragraphBreakRe.Split(text, -1) {
		cand = strings.TrimSpace(whitespaceRe.ReplaceAllString(cand, " "))
		if len(cand) < minParagraphLen {
			continue
		}
		if doctree.IsHeading(cand) {
			paras = append(paras, doctree.Paragraph{Text: cand})
			continue
		}
		cand = citeAsPrefixRe.ReplaceAllString(cand, "")
		if isRunningHeader(cand) {
			continue
		}
		cand = b.Clean(cand)
		if len(cand) < minParagraphLen {
			continue
		}

		if n := len(paras); n > 0 && continuesPrevious(paras[n-1].Text, cand) {
			paras[n-1].Text = Dehyphenate(paras[n-1].Text + " " + cand)
			continue
		}
		paras = append(paras, doctree.Paragraph{Text: cand})
	}
	return paras
}

// continuesPrevious reports a sentence split by a page or column boundary.
func continuesPrevious(prev, cand string) bool {
	if doctree.IsHeading(prev) {
		return false
	}
	first := []rune(cand)[0]
	if !unicode.IsLower(first) {
		return false
	}
	last, ok := lastRune(trailingMarkersRe.ReplaceAllString(prev, ""))
	if !ok {
		return false
	}
	switch last {
	case '.', '!', '?', '"', '”', '’', '\'':
		return false
	}
	return true
}

var trailingMarkersRe = regexp.MustCompile(`(?:\{\{fn:\d+\}\})+$`)
