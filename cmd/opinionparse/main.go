package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dgallion1/opinionparse/internal/doctree"
	"github.com/dgallion1/opinionparse/internal/parser"
	"github.com/dgallion1/opinionparse/internal/render"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "opinionparse",
		Short: "Recover reflowable structure from slip opinions",
		Long: `opinionparse reads a Supreme Court slip opinion and recovers its
chapters (syllabus, majority, concurrences, dissents), paragraphs,
inline headings and per-chapter footnotes, dropping page furniture.

Input may be a PDF, a JSON array of pages with positioned runs, or saved
pdftotext -bbox-layout output.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log progress to stderr")

	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file.pdf|pages.json>",
		Short: "Parse an opinion into chapters, paragraphs and footnotes",
		Long: `Parse an opinion and write the result.

Formats: json (default), markdown, html, docx.

Example:
  opinionparse parse 24-568.pdf --format markdown
  opinionparse parse 24-568.pdf --format docx --out 24-568.docx
  opinionparse parse pages.json --justices Roberts,Thomas,Jackson`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")
			sourceURL, _ := cmd.Flags().GetString("source-url")
			justices, _ := cmd.Flags().GetStringSlice("justices")
			justicesFile, _ := cmd.Flags().GetString("justices-file")
			fallback, _ := cmd.Flags().GetBool("pdftotext")
			log := newLogger(cmd)

			pages, err := readPages(args[0], fallback)
			if err != nil {
				return err
			}
			log.Info("decoded pages", "file", args[0], "pages", len(pages))

			reg, err := parser.RegistryFrom(justicesFile, justices)
			if err != nil {
				return fmt.Errorf("load justices: %w", err)
			}
			start := time.Now()
			doc := parser.New(reg).Parse(pages, sourceURL)
			log.Info("parsed document",
				"case_title", doc.CaseTitle,
				"chapters", len(doc.Chapters),
				"duration_ms", time.Since(start).Milliseconds(),
			)

			data, err := renderDocument(doc, format)
			if err != nil {
				return err
			}
			return writeOutput(out, data)
		},
	}
	cmd.Flags().StringP("format", "f", "json", "Output format: json, markdown, html, docx")
	cmd.Flags().StringP("out", "o", "", "Output file (default stdout)")
	cmd.Flags().String("source-url", "", "Source URL recorded in the document")
	cmd.Flags().StringSlice("justices", nil, "Author surnames, overriding the default roster")
	cmd.Flags().String("justices-file", "", "YAML roster file (justices: [...]), takes precedence over --justices")
	cmd.Flags().Bool("pdftotext", true, "Fall back to pdftotext when the PDF decoder fails")
	return cmd
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs <file.pdf>",
		Short: "Dump the positioned text runs of a PDF as JSON pages",
		Long: `Dump decoded pages as JSON. The output is accepted by "parse", which
makes it a convenient fixture format.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			fallback, _ := cmd.Flags().GetBool("pdftotext")

			pages, err := readPages(args[0], fallback)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(pages, "", "  ")
			if err != nil {
				return fmt.Errorf("encode pages: %w", err)
			}
			return writeOutput(out, append(data, '\n'))
		},
	}
	cmd.Flags().StringP("out", "o", "", "Output file (default stdout)")
	cmd.Flags().Bool("pdftotext", true, "Fall back to pdftotext when the PDF decoder fails")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "opinionparse %s\n", version)
		},
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func readPages(path string, fallback bool) ([]doctree.Page, error) {
	src, err := parser.ForFile(path, fallback)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	pages, err := src.Pages(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return pages, nil
}

func renderDocument(doc *doctree.ParsedDocument, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
		return append(data, '\n'), nil
	case "markdown", "md":
		return []byte(render.Markdown(doc)), nil
	case "html":
		return render.HTML(doc)
	case "docx":
		var buf bytes.Buffer
		if err := render.DOCX(doc, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func writeOutput(path string, data []byte) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
