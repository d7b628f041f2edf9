package render

import (
	"bytes"
	"fmt"

	"github.com/dgallion1/opinionparse/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
)

// HTML renders the document as a standalone HTML page by converting the
// Markdown rendering with goldmark and its footnote extension.
func HTML(doc *doctree.ParsedDocument) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Footnote))

	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(doc)), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n", html.EscapeString(doc.CaseTitle))
	out.WriteString("</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}
