package doctree

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Inline markers embedded in paragraph text. "{{" does not occur in
// slip-opinion prose, so the grammar cannot collide with ordinary text.
const (
	BoilerplateOpen  = "{{bp}}"
	BoilerplateClose = "{{/bp}}"
	JusticeOpen      = "{{justice}}"
	JusticeClose     = "{{/justice}}"
)

var (
	headingMarkerRe  = regexp.MustCompile(`^\{\{h([123]):([^}]*)\}\}$`)
	footnoteMarkerRe = regexp.MustCompile(`\{\{fn:(\d+)\}\}`)
)

// HeadingMarker formats a heading marker, e.g. {{h1:II}}.
func HeadingMarker(level int, label string) string {
	return fmt.Sprintf("{{h%d:%s}}", level, label)
}

// ParseHeading reports the level and label if text is a heading marker.
func ParseHeading(text string) (level int, label string, ok bool) {
	m := headingMarkerRe.FindStringSubmatch(text)
	if m == nil {
		return 0, "", false
	}
	level, _ = strconv.Atoi(m[1])
	return level, m[2], true
}

// IsHeading reports whether text is exactly one heading marker.
func IsHeading(text string) bool {
	return headingMarkerRe.MatchString(text)
}

// FootnoteMarker formats an inline footnote reference, e.g. {{fn:3}}.
func FootnoteMarker(id int) string {
	return "{{fn:" + strconv.Itoa(id) + "}}"
}

// FootnoteRefs returns the footnote ids referenced in text, in order.
func FootnoteRefs(text string) []int {
	var ids []int
	for _, m := range footnoteMarkerRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			ids = append(ids, n)
		}
	}
	return ids
}

// ReplaceFootnoteRefs rewrites every footnote marker in text with fn(id).
func ReplaceFootnoteRefs(text string, fn func(id int) string) string {
	return footnoteMarkerRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := footnoteMarkerRe.FindStringSubmatch(m)
		n, _ := strconv.Atoi(sub[1])
		return fn(n)
	})
}

// WrapBoilerplate marks text as a plain boilerplate line.
func WrapBoilerplate(text string) string {
	return BoilerplateOpen + text + BoilerplateClose
}

// WrapJustice marks text as the distinguished justice/joinder line.
func WrapJustice(text string) string {
	return JusticeOpen + text + JusticeClose
}

// IsTagged reports whether text already carries a boilerplate or justice wrapper.
func IsTagged(text string) bool {
	return strings.HasPrefix(text, BoilerplateOpen) || strings.HasPrefix(text, JusticeOpen)
}

// Unwrap strips a boilerplate or justice wrapper and reports which one it was.
func Unwrap(text string) (inner string, boilerplate, justice bool) {
	switch {
	case strings.HasPrefix(text, BoilerplateOpen) && strings.HasSuffix(text, BoilerplateClose):
		return strings.TrimSuffix(strings.TrimPrefix(text, BoilerplateOpen), BoilerplateClose), true, false
	case strings.HasPrefix(text, JusticeOpen) && strings.HasSuffix(text, JusticeClose):
		return strings.TrimSuffix(strings.TrimPrefix(text, JusticeOpen), JusticeClose), false, true
	}
	return text, false, false
}
