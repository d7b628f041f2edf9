package parser

import (
	"sort"
	"strings"

	"github.com/dgallion1/opinionparse/internal/doctree"
)

// aggregator threads chapter and footnote state from page to page.
type aggregator struct {
	build func(h doctree.SectionHeader, blob string, notes map[int]string) doctree.Chapter

	current   *doctree.SectionHeader
	pages     []string
	footnotes map[int]string

	chapters []doctree.Chapter
	index    map[string]int // Chapter id -> position in chapters
}

func newAggregator(build func(doctree.SectionHeader, string, map[int]string) doctree.Chapter) *aggregator {
	return &aggregator{
		build:     build,
		footnotes: make(map[int]string),
		index:     make(map[string]int),
	}
}

// add folds one page into the open chapter, flushing on a header change.
func (a *aggregator) add(res doctree.PageResult) {
	if res.Header != nil && (a.current == nil || res.Header.ID != a.current.ID) {
		if a.current != nil || a.pending() {
			a.flush()
		}
		h := *res.Header
		a.current = &h
	}

	if res.FootnoteContinuation != "" && len(a.footnotes) > 0 {
		last := maxKey(a.footnotes)
		a.footnotes[last] = joinText(a.footnotes[last], res.FootnoteContinuation)
	}
	for id, text := range res.Footnotes {
		a.footnotes[id] = joinText(a.footnotes[id], text)
	}
	a.pages = append(a.pages, strings.Join(res.BodyLines, "\n"))
}

// pending reports whether header-less content is waiting to be flushed.
func (a *aggregator) pending() bool {
	if len(a.footnotes) > 0 {
		return true
	}
	for _, p := range a.pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

func (a *aggregator) flush() {
	h := doctree.SectionHeader{ID: IDPreamble, Title: "Preamble"}
	if a.current != nil {
		h = *a.current
	}
	// Page boundaries become paragraph breaks; split sentences are
	// rejoined by the paragraph builder.
	ch := a.build(h, strings.Join(a.pages, "\n\n"), a.footnotes)
	if i, ok := a.index[ch.ID]; ok {
		a.chapters[i] = mergeChapters(a.chapters[i], ch)
	} else {
		a.index[ch.ID] = len(a.chapters)
		a.chapters = append(a.chapters, ch)
	}
	a.pages = nil
	a.footnotes = make(map[int]string)
}

// finish flushes the open chapter. A document with no recoverable chapter
// still yields one synthetic chapter.
func (a *aggregator) finish() []doctree.Chapter {
	if a.current != nil || a.pending() {
		a.flush()
	}
	if len(a.chapters) == 0 {
		a.chapters = append(a.chapters, doctree.Chapter{
			ID:         IDDocument,
			Title:      "Opinion",
			Paragraphs: []doctree.Paragraph{},
			Footnotes:  []doctree.Footnote{},
		})
	}
	return a.chapters
}

// mergeChapters appends a later run of pages that repeated an earlier id.
func mergeChapters(dst, src doctree.Chapter) doctree.Chapter {
	dst.Paragraphs = append(dst.Paragraphs, src.Paragraphs...)
	byID := make(map[int]string, len(dst.Footnotes)+len(src.Footnotes))
	for _, fn := range dst.Footnotes {
		byID[fn.ID] = fn.Text
	}
	for _, fn := range src.Footnotes {
		byID[fn.ID] = joinText(byID[fn.ID], fn.Text)
	}
	dst.Footnotes = sortedFootnotes(byID, func(s string) string { return s })
	return dst
}

func sortedFootnotes(notes map[int]string, clean func(string) string) []doctree.Footnote {
	ids := make([]int, 0, len(notes))
	for id := range notes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]doctree.Footnote, 0, len(ids))
	for _, id := range ids {
		out = append(out, doctree.Footnote{ID: id, Text: clean(notes[id])})
	}
	return out
}

func maxKey(m map[int]string) int {
	best := 0
	first := true
	for k := range m {
		if first || k > best {
			best, first = k, false
		}
	}
	return best
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}
