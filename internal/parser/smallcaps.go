package parser

import (
	"regexp"
	"strings"
)

// minRemainderLen bounds bare-remainder repair to fragments long enough to
// be distinctive.
const minRemainderLen = 4

type capsFix struct {
	re   *regexp.Regexp
	repl string
}

var structuralCapsFixes = []capsFix{
	{regexp.MustCompile(`\bJ USTICE\b`), "JUSTICE"},
	{regexp.MustCompile(`\bC HIEF\b`), "CHIEF"},
}

var orphanCapsFixes = []capsFix{
	{regexp.MustCompile(`\bUSTICE\b`), "JUSTICE"},
	{regexp.MustCompile(`\bHIEF\b`), "CHIEF"},
}

// SmallCapsRepairer rejoins small-caps words split by the renderer. Its
// rules are compiled once from the registry.
type SmallCapsRepairer struct {
	splitNames []capsFix
	remainders []capsFix
}

// NewSmallCapsRepairer compiles the per-name rules for reg.
func NewSmallCapsRepairer(reg Registry) *SmallCapsRepairer {
	s := &SmallCapsRepairer{}
	for _, name := range reg.Upper() {
		first, rest := name[:1], name[1:]
		s.splitNames = append(s.splitNames, capsFix{
			re:   regexp.MustCompile(`\b` + regexp.QuoteMeta(first) + ` ` + regexp.QuoteMeta(rest) + `\b`),
			repl: name,
		})
		if len(rest) >= minRemainderLen {
			s.remainders = append(s.remainders, capsFix{
				re:   regexp.MustCompile(`\b` + regexp.QuoteMeta(rest) + `([,.'’ ])`),
				repl: name + "${1}",
			})
		}
	}
	return s
}

// Repair applies, in order: structural word fixes, split-name collapse,
// orphaned structural fragments, and bare name remainders followed by a
// name-boundary character. Repair is idempotent.
func (s *SmallCapsRepairer) Repair(text string) string {
	if !strings.ContainsFunc(text, isUpperASCII) {
		return text
	}
	for _, f := range structuralCapsFixes {
		text = f.re.ReplaceAllString(text, f.repl)
	}
	for _, f := range s.splitNames {
		text = f.re.ReplaceAllString(text, f.repl)
	}
	for _, f := range orphanCapsFixes {
		text = f.re.ReplaceAllString(text, f.repl)
	}
	for _, f := range s.remainders {
		text = f.re.ReplaceAllString(text, f.repl)
	}
	return text
}

func isUpperASCII(r rune) bool { return r >= 'A' && r <= 'Z' }
