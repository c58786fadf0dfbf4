// Package render writes generated metadata out as downloadable
// PDF and DOCX report files.
package render

// Renderer renders metadata reports to files on disk.
type Renderer struct{}

// New builds a Renderer.
func New() *Renderer {
	return &Renderer{}
}
