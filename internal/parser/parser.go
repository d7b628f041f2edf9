package parser

import (
	"github.com/dgallion1/opinionparse/internal/doctree"
)

// Parser recovers chapters, paragraphs and footnotes from positioned text
// runs. It holds only immutable configuration, so one Parser may serve
// concurrent Parse calls.
type Parser struct {
	reg        Registry
	paragraphs *ParagraphBuilder
}

// New returns a Parser for the given author registry.
func New(reg Registry) *Parser {
	return &Parser{
		reg:        reg,
		paragraphs: NewParagraphBuilder(reg),
	}
}

// Registry returns the author registry the parser was built with.
func (p *Parser) Registry() Registry { return p.reg }

// Parse runs the full pipeline over pages, which must be in ascending page
// order. It never fails; unrecognized layout degrades to fallbacks.
func (p *Parser) Parse(pages []doctree.Page, sourceURL string) *doctree.ParsedDocument {
	doc := &doctree.ParsedDocument{
		CaseTitle: UnknownCase,
		SourceURL: sourceURL,
		Chapters:  []doctree.Chapter{},
	}
	if len(pages) == 0 {
		return doc
	}

	agg := newAggregator(p.buildChapter)
	var firstBody []string
	for i, page := range pages {
		res := p.ParsePage(page)
		if i == 0 {
			firstBody = res.BodyLines
		}
		agg.add(res)
	}
	doc.Chapters = agg.finish()

	md := ExtractMetadata(pages, firstBody)
	doc.CaseTitle = md.CaseTitle
	doc.DocketNumber = md.DocketNumber
	doc.DecidedDate = md.DecidedDate
	return doc
}

// ParsePage classifies the header and splits one page into body and footnotes.
func (p *Parser) ParsePage(page doctree.Page) doctree.PageResult {
	lines, bfs := AssembleLines(page)
	res := SplitPage(lines, bfs)
	res.Header = ClassifyHeader(HeaderBand(page), p.reg)
	return res
}

// buildChapter assembles paragraphs, tags boilerplate, cleans footnotes and
// drops references to footnotes the chapter does not carry.
func (p *Parser) buildChapter(h doctree.SectionHeader, blob string, notes map[int]string) doctree.Chapter {
	paras := TagBoilerplate(p.paragraphs.Build(blob))
	footnotes := sortedFootnotes(notes, p.paragraphs.Clean)

	known := make(map[int]bool, len(footnotes))
	for _, fn := range footnotes {
		known[fn.ID] = true
	}
	for i := range paras {
		paras[i].Text = doctree.ReplaceFootnoteRefs(paras[i].Text, func(id int) string {
			if known[id] {
				return doctree.FootnoteMarker(id)
			}
			return ""
		})
	}
	if paras == nil {
		paras = []doctree.Paragraph{}
	}
	return doctree.Chapter{
		ID:         h.ID,
		Title:      h.Title,
		Author:     h.Author,
		Paragraphs: paras,
		Footnotes:  footnotes,
	}
}
