package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/policyrag/internal/models"
)

func pageTexts(pages []models.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Text
	}
	return out
}

func zipOf(t *testing.T, files map[string]string, order ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range order {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(files[name]))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractBytes_plain(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		ext     string
		want    string
	}{
		{"txt", []byte("Employees receive 15 paid vacation days annually.\nLine 2"), ".txt", "Employees receive 15 paid vacation days annually.\nLine 2"},
		{"utf8", []byte("caf\xc3\xa9"), ".md", "café"},
		{"invalid utf8", []byte("hello\x80world"), ".rst", "hello�world"},
		{"unknown extension", []byte("raw content"), ".xyz", "raw content"},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := e.ExtractBytes(tt.content, tt.ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if len(pages) != 1 || pages[0].Number != 1 || pages[0].Text != tt.want {
				t.Errorf("got %+v", pages)
			}
		})
	}
}

func TestExtractBytes_excelOnePagePerSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetCellValue("Sheet1", "A1", "Title")
	_ = f.SetCellValue("Sheet1", "A2", "Value 1")
	_ = f.SetCellValue("Sheet1", "B2", "Value 2")
	if _, err := f.NewSheet("Leave"); err != nil {
		t.Fatal(err)
	}
	_ = f.SetCellValue("Leave", "A1", "Annual leave")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	pages, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	got := pageTexts(pages)
	if len(got) != 2 || got[0] != "Title\nValue 1\tValue 2" || got[1] != "Annual leave" {
		t.Errorf("got %q", got)
	}
	if pages[1].Number != 2 {
		t.Errorf("second sheet number = %d", pages[1].Number)
	}
}

func TestExtract_files(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "handbook.txt")
	if err := os.WriteFile(txt, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	xlsx := filepath.Join(dir, "data.XLSX")
	f := excelize.NewFile()
	_ = f.SetCellValue("Sheet1", "A1", "Searchable text")
	if err := f.SaveAs(xlsx); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	e := NewExtractor()
	for path, want := range map[string]string{txt: "File content", xlsx: "Searchable text"} {
		pages, err := e.Extract(path)
		if err != nil {
			t.Fatalf("Extract(%s): %v", path, err)
		}
		if len(pages) != 1 || pages[0].Text != want {
			t.Errorf("Extract(%s) = %+v", path, pages)
		}
	}
	if _, err := e.Extract(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

const docxBody = `<w:document xmlns:w="w"><w:body>` +
	`<w:p w:rsidR="00A1"><w:r><w:t>Vacation </w:t></w:r><w:r><w:t xml:space="preserve">policy</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Employees receive 15 days.</w:t></w:r></w:p>` +
	`</w:body></w:document>`

func TestExtractBytes_docx(t *testing.T) {
	tests := []struct {
		name    string
		content map[string]string
		order   []string
	}{
		{
			name:    "default path",
			content: map[string]string{"word/document.xml": docxBody},
			order:   []string{"word/document.xml"},
		},
		{
			name: "content types override",
			content: map[string]string{
				"[Content_Types].xml": `<Types><Override PartName="/word/document2.xml" ContentType="` + docxMainContentType + `"/></Types>`,
				"word/document2.xml":  docxBody,
			},
			order: []string{"[Content_Types].xml", "word/document2.xml"},
		},
		{
			name: "content types reversed attributes",
			content: map[string]string{
				"[Content_Types].xml": `<Types><Override ContentType="` + docxMainContentType + `" PartName="/word/document3.xml"/></Types>`,
				"word/document3.xml":  docxBody,
			},
			order: []string{"[Content_Types].xml", "word/document3.xml"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := NewExtractor().ExtractBytes(zipOf(t, tt.content, tt.order...), ".docx")
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			want := "Vacation policy\nEmployees receive 15 days."
			if len(pages) != 1 || pages[0].Text != want {
				t.Errorf("got %q, want %q", pageTexts(pages), want)
			}
		})
	}
}

func TestExtractBytes_docxMissingBody(t *testing.T) {
	content := zipOf(t, map[string]string{"docProps/core.xml": ""}, "docProps/core.xml")
	if _, err := NewExtractor().ExtractBytes(content, ".docx"); err == nil {
		t.Error("expected error when document.xml is missing")
	}
}

func slideXML(text string) string {
	return `<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
}

func TestExtractBytes_pptxSlidesInNumericOrder(t *testing.T) {
	files := map[string]string{
		"ppt/slides/slide10.xml":            slideXML("Tenth"),
		"ppt/slides/slide2.xml":             slideXML("Second"),
		"ppt/slides/slide1.xml":             slideXML("First"),
		"ppt/slides/_rels/slide1.xml.rels":  "<a:t>ignored</a:t>",
		"ppt/slideLayouts/slideLayout1.xml": slideXML("Layout"),
	}
	content := zipOf(t, files,
		"ppt/slides/slide10.xml", "ppt/slides/slide2.xml", "ppt/slides/slide1.xml",
		"ppt/slides/_rels/slide1.xml.rels", "ppt/slideLayouts/slideLayout1.xml")

	pages, err := NewExtractor().ExtractBytes(content, ".pptx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	got := pageTexts(pages)
	if len(got) != 3 || got[0] != "First" || got[1] != "Second" || got[2] != "Tenth" {
		t.Errorf("got %q", got)
	}
	if pages[2].Number != 10 {
		t.Errorf("page number = %d, want 10", pages[2].Number)
	}
}

func TestExtractBytes_pptxErrors(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("not a zip"), ".pptx"); err == nil {
		t.Error("expected error for invalid pptx")
	}
	pages, err := NewExtractor().ExtractBytes(zipOf(t, map[string]string{"docProps/core.xml": ""}, "docProps/core.xml"), ".pptx")
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 0 {
		t.Errorf("expected no pages, got %+v", pages)
	}
}

func TestExtractBytes_openDocument(t *testing.T) {
	tests := []struct {
		ext  string
		xml  string
		want []string
	}{
		{
			ext:  ".odt",
			xml:  `<office:body><office:text><text:h>Leave</text:h><text:p>Body <text:span>text</text:span> &amp;</text:p></office:text></office:body>`,
			want: []string{"Leave\nBody text &"},
		},
		{
			ext:  ".odp",
			xml:  `<office:body><draw:page draw:name="1"><text:h>Slide title</text:h><text:p>Body text</text:p></draw:page><draw:page draw:name="2"><text:p>Next</text:p></draw:page></office:body>`,
			want: []string{"Slide title\nBody text", "Next"},
		},
		{
			ext:  ".ods",
			xml:  `<office:body><table:table table:name="A"><table:table-row><table:table-cell><text:p>Cell A</text:p></table:table-cell><table:table-cell><text:span>Cell B</text:span></table:table-cell></table:table-row></table:table></office:body>`,
			want: []string{"Cell A\nCell B"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			content := zipOf(t, map[string]string{"content.xml": tt.xml}, "content.xml")
			pages, err := NewExtractor().ExtractBytes(content, tt.ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			got := pageTexts(pages)
			if len(got) != len(tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("page %d = %q, want %q", i+1, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtractBytes_openDocumentMissingContent(t *testing.T) {
	content := zipOf(t, map[string]string{"other.xml": ""}, "other.xml")
	for _, ext := range []string{".odt", ".odp", ".ods"} {
		if _, err := NewExtractor().ExtractBytes(content, ext); err == nil {
			t.Errorf("%s: expected error when content.xml missing", ext)
		}
	}
}

func TestExtractBytes_invalidPDF(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("%PDF-garbage"), ".pdf"); err == nil {
		t.Error("expected error for invalid PDF")
	}
}

func TestSupported(t *testing.T) {
	for ext, want := range map[string]bool{".pdf": true, ".PDF": true, ".md": true, ".exe": false, "": false} {
		if got := Supported(ext); got != want {
			t.Errorf("Supported(%q) = %v, want %v", ext, got, want)
		}
	}
}
