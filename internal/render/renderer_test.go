package render

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRenderPDF(t *testing.T) {
	r := New()
	path := filepath.Join(t.TempDir(), "report.pdf")
	if err := r.RenderPDF("A Title", "A description of the page.", path); err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat pdf: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("pdf file is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		t.Fatalf("file does not look like a pdf")
	}
}

func TestRenderDOCX(t *testing.T) {
	r := New()
	path := filepath.Join(t.TempDir(), "report.docx")
	if err := r.RenderDOCX("A Title", "A description of the page.", path); err != nil {
		t.Fatalf("render docx: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat docx: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("docx file is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read docx: %v", err)
	}
	// DOCX files are zip archives.
	if len(data) < 2 || data[0] != 'P' || data[1] != 'K' {
		t.Fatalf("file does not look like a docx archive")
	}
}
