package render

import (
	"fmt"
	"io"
	"regexp"

	"github.com/dgallion1/opinionparse/internal/doctree"
	"github.com/fumiama/go-docx"
)

// Font sizes in half-points.
const (
	docxTitleSize   = "36"
	docxChapterSize = "30"
	docxHeadingSize = "26"
	docxNoteRefSize = "16"
)

var footnoteSplitRe = regexp.MustCompile(`\{\{fn:(\d+)\}\}`)

// DOCX writes the document as a Word file.
func DOCX(doc *doctree.ParsedDocument, w io.Writer) error {
	d := docx.New().WithDefaultTheme()

	d.AddParagraph().Justification("center").AddText(doc.CaseTitle).Bold().Size(docxTitleSize)
	if meta := metaLine(doc); meta != "" {
		d.AddParagraph().Justification("center").AddText(meta).Italic()
	}

	for _, ch := range doc.Chapters {
		d.AddParagraph().AddText(ch.Title).Bold().Size(docxChapterSize)
		for _, p := range ch.Paragraphs {
			if _, label, ok := doctree.ParseHeading(p.Text); ok {
				d.AddParagraph().Justification("center").AddText(label).Bold().Size(docxHeadingSize)
				continue
			}
			inner, boilerplate, justice := doctree.Unwrap(p.Text)
			para := d.AddParagraph()
			if boilerplate {
				para.Justification("center")
			}
			addMarkedText(para, inner, justice)
		}
		if len(ch.Footnotes) > 0 {
			d.AddParagraph().AddText("Notes").Bold()
			for _, fn := range ch.Footnotes {
				d.AddParagraph().AddText(fmt.Sprintf("%d. %s", fn.ID, fn.Text))
			}
		}
	}

	if _, err := d.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

// addMarkedText writes text as runs, with footnote markers as small
// bracketed references.
func addMarkedText(para *docx.Paragraph, text string, bold bool) {
	last := 0
	for _, loc := range footnoteSplitRe.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > last {
			addRun(para, text[last:loc[0]], bold)
		}
		para.AddText("[" + text[loc[2]:loc[3]] + "]").Size(docxNoteRefSize)
		last = loc[1]
	}
	if last < len(text) {
		addRun(para, text[last:], bold)
	}
}

func addRun(para *docx.Paragraph, text string, bold bool) {
	r := para.AddText(text)
	if bold {
		r.Bold()
	}
}
