package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

const (
	maxFetchBytes = 8 << 20
	fetchUA       = "Mozilla/5.0 (compatible; seogen/1.0)"
)

// ErrUnsupportedType is returned for file extensions the extractor
// does not handle.
var ErrUnsupportedType = errors.New("unsupported file type")

// Extractor turns source documents and web pages into plain text.
type Extractor struct {
	httpClient *http.Client
}

// New builds an Extractor with the given URL fetch timeout.
func New(fetchTimeout time.Duration) *Extractor {
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	return &Extractor{
		httpClient: &http.Client{Timeout: fetchTimeout},
	}
}

// FromURL fetches a page and extracts its visible text.
func (e *Extractor) FromURL(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUA)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch url: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	text := normalizeText(extractText(doc))
	if text == "" {
		return "", errors.New("no text extracted from page")
	}
	return text, nil
}

// FromFile extracts text from an uploaded document. Dispatch is by
// file extension: .pdf, .docx and .txt are supported.
func (e *Extractor) FromFile(filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return extractPDF(data)
	case ".docx":
		return extractDOCX(data)
	case ".txt":
		text := normalizeText(string(data))
		if text == "" {
			return "", errors.New("no text extracted from file")
		}
		return text, nil
	default:
		return "", ErrUnsupportedType
	}
}

func extractPDF(data []byte) (string, error) {
	// pdftotext first (better support for complex PDFs), Go library fallback.
	if text, err := pdftotext(data); err == nil && text != "" {
		return text, nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing entirely
			continue
		}
		buf.WriteString(text)
		buf.WriteString(" ")
	}
	text := normalizeText(buf.String())
	if text == "" {
		return "", errors.New("no text extracted from PDF")
	}
	return text, nil
}

func pdftotext(data []byte) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("pdftotext not found: %w", err)
	}
	tmp, err := os.CreateTemp("", "seogen-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()
	cmd := exec.Command("pdftotext", "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	text := normalizeText(string(output))
	if text == "" {
		return "", errors.New("no text extracted from PDF")
	}
	return text, nil
}

func extractDOCX(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	var docXML []byte
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("read docx: %w", err)
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read docx content: %w", err)
		}
		break
	}
	if len(docXML) == 0 {
		return "", errors.New("docx has no document body")
	}
	var buf strings.Builder
	decoder := xml.NewDecoder(bytes.NewReader(docXML))
	var inText bool
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				buf.WriteString(" ")
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		}
	}
	text := normalizeText(buf.String())
	if text == "" {
		return "", errors.New("no text extracted from docx")
	}
	return text, nil
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

func extractText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			buf.WriteString(node.Data)
			buf.WriteString(" ")
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" {
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if node.Type == html.ElementNode && (node.Data == "p" || node.Data == "br" || node.Data == "div" || node.Data == "li") {
			buf.WriteString(" ")
		}
	}
	walk(n)
	return buf.String()
}
