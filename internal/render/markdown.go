package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/opinionparse/internal/doctree"
)

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"#", `\#`,
	"`", "\\`",
)

// Paragraph openings that Markdown would read as list items.
var (
	orderedMarkerRe = regexp.MustCompile(`^(\d{1,9})([.)])(\s|$)`)
	bulletMarkerRe  = regexp.MustCompile(`^([-+])(\s|$)`)
)

// escapeBlockStart keeps body text such as "1. The first question" from
// turning into a list.
func escapeBlockStart(s string) string {
	s = orderedMarkerRe.ReplaceAllString(s, `${1}\${2}${3}`)
	return bulletMarkerRe.ReplaceAllString(s, `\${1}${2}`)
}

// Markdown renders a parsed document. Chapters become level-2 headings,
// inline headings nest below them, boilerplate is quoted, the justice line
// is bold, and footnotes use [^label] references scoped per chapter.
func Markdown(doc *doctree.ParsedDocument) string {
	var sb strings.Builder
	sb.WriteString("# " + markdownEscaper.Replace(doc.CaseTitle) + "\n\n")
	if meta := metaLine(doc); meta != "" {
		sb.WriteString("*" + markdownEscaper.Replace(meta) + "*\n\n")
	}
	if doc.SourceURL != "" {
		sb.WriteString("<" + doc.SourceURL + ">\n\n")
	}

	for _, ch := range doc.Chapters {
		sb.WriteString("## " + markdownEscaper.Replace(ch.Title) + "\n\n")
		for _, p := range ch.Paragraphs {
			sb.WriteString(markdownParagraph(ch.ID, p.Text))
			sb.WriteString("\n\n")
		}
		for _, fn := range ch.Footnotes {
			fmt.Fprintf(&sb, "[^%s]: %s\n\n", footnoteLabel(ch.ID, fn.ID), escapeBlockStart(markdownEscaper.Replace(fn.Text)))
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func markdownParagraph(chapterID, text string) string {
	if level, label, ok := doctree.ParseHeading(text); ok {
		return strings.Repeat("#", level+2) + " " + markdownEscaper.Replace(label)
	}
	inner, boilerplate, justice := doctree.Unwrap(text)
	body := doctree.ReplaceFootnoteRefs(escapeBlockStart(markdownEscaper.Replace(inner)), func(id int) string {
		return "[^" + footnoteLabel(chapterID, id) + "]"
	})
	switch {
	case boilerplate:
		return "> " + body
	case justice:
		return "**" + body + "**"
	}
	return body
}

// metaLine summarizes docket number and decision date.
func metaLine(doc *doctree.ParsedDocument) string {
	var parts []string
	if doc.DocketNumber != "" {
		parts = append(parts, "No. "+doc.DocketNumber)
	}
	if doc.DecidedDate != "" {
		parts = append(parts, "Decided "+doc.DecidedDate)
	}
	return strings.Join(parts, " · ")
}

func footnoteLabel(chapterID string, id int) string {
	return fmt.Sprintf("%s-%d", chapterID, id)
}
