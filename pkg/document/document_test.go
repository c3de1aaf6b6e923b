package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/codeGROOVE-dev/dossier/pkg/portfolio"
)

// buildDOCX assembles a minimal DOCX container around the given document.xml body.
func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractTextDOCX(t *testing.T) {
	xml := `<?xml version="1.0"?><w:document><w:body>` +
		`<w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Senior</w:t></w:r><w:tab/><w:r><w:t>Engineer</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	got, err := ExtractText("resume.docx", buildDOCX(t, xml))
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}

	lines := strings.Split(got, "\n")
	if len(lines) < 2 {
		t.Fatalf("got %d lines, want at least 2: %q", len(lines), got)
	}
	if lines[0] != "Jane Doe" {
		t.Errorf("first line = %q, want %q", lines[0], "Jane Doe")
	}
	if !strings.Contains(lines[1], "Senior") || !strings.Contains(lines[1], "Engineer") {
		t.Errorf("second line = %q, want Senior and Engineer", lines[1])
	}
}

func TestExtractTextDOCXMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/styles.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte("<styles/>")); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	_, err = ExtractText("resume.docx", buf.Bytes())
	if !errors.Is(err, portfolio.ErrCorruptFile) {
		t.Errorf("error = %v, want ErrCorruptFile", err)
	}
}

func TestExtractTextCorrupt(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"pdf signature only", "resume.pdf", []byte("%PDF-1.4 then garbage")},
		{"pdf wrong signature", "resume.pdf", []byte("not a pdf at all")},
		{"docx wrong signature", "resume.docx", []byte("not a zip at all")},
		{"docx truncated zip", "resume.docx", append([]byte("PK\x03\x04"), 0, 1, 2, 3)},
		{"empty pdf", "resume.pdf", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractText(tt.filename, tt.data)
			if !errors.Is(err, portfolio.ErrCorruptFile) {
				t.Errorf("ExtractText(%s) error = %v, want ErrCorruptFile", tt.filename, err)
			}
		})
	}
}

func TestExtractTextUnsupported(t *testing.T) {
	tests := []string{"resume.doc", "resume.txt", "resume.odt", "resume", "resume.rtf"}

	for _, filename := range tests {
		t.Run(filename, func(t *testing.T) {
			_, err := ExtractText(filename, []byte("content"))
			if !errors.Is(err, portfolio.ErrUnsupportedFormat) {
				t.Errorf("ExtractText(%s) error = %v, want ErrUnsupportedFormat", filename, err)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"resume.pdf", true},
		{"resume.PDF", true},
		{"resume.docx", true},
		{"resume.doc", false},
		{"resume.txt", false},
		{"resume", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := Supported(tt.filename); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a  b\t\tc", "a b c"},
		{"a\n\n\nb", "a\nb"},
		{"  padded  ", "padded"},
		{"non breaking", "non breaking"},
	}

	for _, tt := range tests {
		if got := normalizeWhitespace(tt.in); got != tt.want {
			t.Errorf("normalizeWhitespace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
