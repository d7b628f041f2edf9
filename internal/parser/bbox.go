package parser

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/opinionparse/internal/doctree"
	"golang.org/x/net/html"
)

// parseBBox reads pdftotext -bbox-layout XHTML. Each <word> becomes a run;
// coordinates are flipped from top-left to bottom-left origin and the word
// box height stands in for the font size.
func parseBBox(r io.Reader) ([]doctree.Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse bbox html: %w", err)
	}

	var pages []doctree.Page
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "page":
				h := attrFloat(n, "height")
				if h <= 0 {
					h = defaultPageHeight
				}
				pages = append(pages, doctree.Page{Number: len(pages) + 1, Height: h})
			case "word":
				if len(pages) == 0 {
					return
				}
				p := &pages[len(pages)-1]
				text := textContent(n)
				if text == "" {
					return
				}
				yMin, yMax := attrFloat(n, "ymin"), attrFloat(n, "ymax")
				p.Runs = append(p.Runs, doctree.TextRun{
					Text:     text,
					X:        attrFloat(n, "xmin"),
					Y:        p.Height - yMax,
					FontSize: yMax - yMin,
				})
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return pages, nil
}

// attrFloat reads a numeric attribute. The HTML tokenizer lowercases names.
func attrFloat(n *html.Node, key string) float64 {
	for _, a := range n.Attr {
		if a.Key == key {
			f, err := strconv.ParseFloat(strings.TrimSpace(a.Val), 64)
			if err != nil {
				return 0
			}
			return f
		}
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return normalizeRunText(buf.String())
}
