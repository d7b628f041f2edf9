package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/opinionparse/internal/doctree"
)

// PageSource decodes an input file into positioned pages.
type PageSource interface {
	Pages(r io.Reader) ([]doctree.Page, error)
}

// JSONSource reads pages already extracted by another tool, as a JSON array
// of doctree.Page.
type JSONSource struct{}

func (JSONSource) Pages(r io.Reader) ([]doctree.Page, error) {
	var pages []doctree.Page
	if err := json.NewDecoder(r).Decode(&pages); err != nil {
		return nil, fmt.Errorf("decode pages json: %w", err)
	}
	for i := range pages {
		if pages[i].Number == 0 {
			pages[i].Number = i + 1
		}
		if pages[i].Height <= 0 {
			pages[i].Height = defaultPageHeight
		}
	}
	return pages, nil
}

// BBoxSource reads saved pdftotext -bbox-layout output.
type BBoxSource struct{}

func (BBoxSource) Pages(r io.Reader) ([]doctree.Page, error) {
	return parseBBox(r)
}

// ForFile returns the source for a filename based on its extension.
func ForFile(filename string, pdfFallback bool) (PageSource, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return &PDFSource{FallbackPdftotext: pdfFallback}, nil
	case ".json":
		return JSONSource{}, nil
	case ".html", ".xhtml":
		return BBoxSource{}, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
}

// IsSupportedExtension reports whether ForFile accepts the filename.
func IsSupportedExtension(filename string) bool {
	_, err := ForFile(filename, false)
	return err == nil
}
