package render

import (
	"fmt"
	"os"

	"github.com/fumiama/go-docx"
)

// RenderDOCX writes the metadata report as a Word document to path.
func (r *Renderer) RenderDOCX(title, description, path string) error {
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().AddText("SEO Metadata Report").Size("32").Bold()
	doc.AddParagraph()
	doc.AddParagraph().AddText("Title").Size("24").Bold()
	doc.AddParagraph().AddText(title)
	doc.AddParagraph()
	doc.AddParagraph().AddText("Meta Description").Size("24").Bold()
	doc.AddParagraph().AddText(description)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create docx: %w", err)
	}
	defer f.Close()
	if _, err := doc.WriteTo(f); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}
