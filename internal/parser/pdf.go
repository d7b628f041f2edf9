package parser

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/opinionparse/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"
)

// defaultPageHeight is US Letter, used when a page has no readable MediaBox.
const defaultPageHeight = 792.0

// PDFSource decodes a PDF into positioned text runs. It tries the Go
// library first, then falls back to pdftotext if enabled.
type PDFSource struct {
	FallbackPdftotext bool
}

// Pages decodes every page of the PDF read from r.
func (s *PDFSource) Pages(r io.Reader) ([]doctree.Page, error) {
	// ledongthuc/pdf and pdftotext both want a file on disk.
	tmp, err := os.CreateTemp("", "opinionparse-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pages, err := extractPDFRuns(tmpPath)
	if (err != nil || countRuns(pages) == 0) && s.FallbackPdftotext {
		pages, err = extractPdftotextRuns(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf runs: %w", err)
	}
	return pages, nil
}

func extractPDFRuns(path string) (pages []doctree.Page, err error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// The decoder panics on some malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("decode content: %v", rec)
		}
	}()

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pages = append(pages, doctree.Page{
			Number: i,
			Height: pageHeight(page),
			Runs:   mergeGlyphs(page.Content().Text),
		})
	}
	return pages, nil
}

// pageHeight reads the MediaBox, following inherited Parent entries.
func pageHeight(page pdflib.Page) float64 {
	v := page.V
	for range 8 {
		if v.IsNull() {
			break
		}
		if box := v.Key("MediaBox"); box.Len() == 4 {
			if h := box.Index(3).Float64() - box.Index(1).Float64(); h > 0 {
				return h
			}
		}
		v = v.Key("Parent")
	}
	return defaultPageHeight
}

// mergeGlyphs joins per-glyph output into runs: consecutive glyphs with the
// same font and size on one baseline, without a word gap between them.
func mergeGlyphs(glyphs []pdflib.Text) []doctree.TextRun {
	var (
		runs []doctree.TextRun
		buf  bytes.Buffer
		cur  doctree.TextRun
		font string
		endX float64
	)
	flush := func() {
		if t := normalizeRunText(buf.String()); t != "" {
			cur.Text = t
			runs = append(runs, cur)
		}
		buf.Reset()
	}
	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			flush()
			continue
		}
		contiguous := buf.Len() > 0 &&
			g.Font == font &&
			math.Abs(g.FontSize-cur.FontSize) < 0.01 &&
			math.Abs(g.Y-cur.Y) < 0.5 &&
			math.Abs(g.X-endX) < 0.25*g.FontSize
		if !contiguous {
			flush()
			cur = doctree.TextRun{X: g.X, Y: g.Y, FontSize: g.FontSize}
			font = g.Font
		}
		buf.WriteString(g.S)
		endX = g.X + g.W
	}
	flush()
	return runs
}

// normalizeRunText folds compatibility glyphs such as the fi and ffl
// ligatures into their plain letters.
func normalizeRunText(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

func countRuns(pages []doctree.Page) int {
	n := 0
	for _, p := range pages {
		n += len(p.Runs)
	}
	return n
}

func extractPdftotextRuns(path string) ([]doctree.Page, error) {
	cmd := exec.Command("pdftotext", "-bbox-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return parseBBox(bytes.NewReader(out))
}
