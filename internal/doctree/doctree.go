package doctree

// TextRun is a positioned glyph run as delivered by the page decoder.
// Origin is bottom-left, y increases upward.
type TextRun struct {
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize float64 `json:"font_size"`
}

// Page is one decoded page: its height and runs in decoder order.
type Page struct {
	Number int       `json:"number"`
	Height float64   `json:"height"`
	Runs   []TextRun `json:"runs"`
}

// Line is a visual line assembled from runs.
type Line struct {
	Text        string
	AvgFontSize float64
	StartX      float64 // Leading x (indent)
	Y           float64
}

// SectionHeader is the chapter identity read from a page's header band.
type SectionHeader struct {
	RawText string `json:"raw_text"`
	ID      string `json:"id"`
	Title   string `json:"title"`
	Author  string `json:"author,omitempty"`
}

// PageResult is the per-page output of the body/footnote split.
type PageResult struct {
	Header               *SectionHeader
	BodyLines            []string
	Footnotes            map[int]string
	FootnoteContinuation string
}

// Footnote is a numbered note belonging to one chapter.
type Footnote struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Paragraph carries marked text (see markers.go).
type Paragraph struct {
	Text string `json:"text"`
}

// Chapter is one authored section: syllabus, majority, concurrence or dissent.
type Chapter struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Author     string      `json:"author,omitempty"`
	Paragraphs []Paragraph `json:"paragraphs"`
	Footnotes  []Footnote  `json:"footnotes"` // Sorted by ID
}

// ParsedDocument is the reflowable result for one slip opinion.
type ParsedDocument struct {
	CaseTitle    string    `json:"case_title"`
	DocketNumber string    `json:"docket_number"`
	DecidedDate  string    `json:"decided_date"`
	SourceURL    string    `json:"source_url"`
	Chapters     []Chapter `json:"chapters"`
}

// FootnoteByID returns the chapter footnote with the given id.
func (c *Chapter) FootnoteByID(id int) (Footnote, bool) {
	for _, fn := range c.Footnotes {
		if fn.ID == id {
			return fn, true
		}
	}
	return Footnote{}, false
}
