// Package document converts uploaded resume files (PDF, DOCX) to plain text.
//
// Extraction is purely functional over the byte buffer: no file I/O, no
// partial results. Callers receive either text or a typed error —
// portfolio.ErrUnsupportedFormat for formats without a decoder,
// portfolio.ErrCorruptFile for buffers a decoder rejects.
package document

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/codeGROOVE-dev/dossier/pkg/portfolio"
)

// Format signatures. Extension selects the decoder; the magic bytes guard
// against mislabeled uploads before the decoder runs.
var (
	pdfMagic = []byte("%PDF-")
	zipMagic = []byte("PK\x03\x04")
)

// Supported reports whether the filename's extension has a decoder.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx":
		return true
	default:
		return false
	}
}

// ExtractText converts a PDF or DOCX byte buffer to normalized plain text.
// Legacy .doc has no decoder and reports ErrUnsupportedFormat, as does any
// other extension.
func ExtractText(filename string, data []byte) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".pdf":
		if !bytes.HasPrefix(data, pdfMagic) {
			return "", fmt.Errorf("%w: %s lacks PDF signature", portfolio.ErrCorruptFile, filename)
		}
		return extractPDF(data)
	case ".docx":
		if !bytes.HasPrefix(data, zipMagic) {
			return "", fmt.Errorf("%w: %s lacks DOCX signature", portfolio.ErrCorruptFile, filename)
		}
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %q", portfolio.ErrUnsupportedFormat, ext)
	}
}

// extractPDF pulls plain text from every page. The pdf library panics on
// some malformed xref tables, so the whole decode runs under a recover.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: pdf decode panic: %v", portfolio.ErrCorruptFile, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", portfolio.ErrCorruptFile, err)
	}
	rs, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", portfolio.ErrCorruptFile, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rs); err != nil {
		return "", fmt.Errorf("%w: %v", portfolio.ErrCorruptFile, err)
	}
	return normalizeWhitespace(buf.String()), nil
}

// extractDOCX reads word/document.xml out of the zip container and strips
// the WordprocessingML markup, keeping paragraph and tab boundaries.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", portfolio.ErrCorruptFile, err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: %v", portfolio.ErrCorruptFile, err)
		}
		docXML, err = io.ReadAll(rc)
		rc.Close() //nolint:errcheck,gosec // read already complete
		if err != nil {
			return "", fmt.Errorf("%w: %v", portfolio.ErrCorruptFile, err)
		}
		break
	}
	if len(docXML) == 0 {
		return "", fmt.Errorf("%w: no word/document.xml in archive", portfolio.ErrCorruptFile)
	}

	xml := string(docXML)
	xml = strings.ReplaceAll(xml, "</w:p>", "\n")
	xml = strings.ReplaceAll(xml, "<w:tab/>", "\t")
	txt := tagRe.ReplaceAllString(xml, " ")
	return normalizeWhitespace(txt), nil
}

var (
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	spaceRe = regexp.MustCompile(`[ \t\r\f\v]+`)
)

// normalizeWhitespace collapses runs of spaces, trims every line, and drops
// blank lines, leaving text the line-oriented field extractor can walk.
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = spaceRe.ReplaceAllString(s, " ")

	var lines []string
	for line := range strings.SplitSeq(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
